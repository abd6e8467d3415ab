package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/readify/api/internal/platform/auth"
	"github.com/readify/api/internal/platform/httpx"
	"github.com/readify/api/internal/services"
)

// ListHandlers serves one per-customer book list. The cart and the wishlist mount separate
// instances; quantity updates are only routed for lists that track quantity.
type ListHandlers struct {
	authn *auth.Authenticator
	lists services.ListService
	cfg   handlerConfig
}

// NewListHandlers constructs handlers for the list kind managed by the service.
func NewListHandlers(authn *auth.Authenticator, lists services.ListService, opts ...HandlerOption) *ListHandlers {
	return &ListHandlers{
		authn: authn,
		lists: lists,
		cfg:   newHandlerConfig(opts),
	}
}

type addListItemRequest struct {
	BookID string `json:"bookId" validate:"required,max=64"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"min=1"`
}

// Routes wires /cart or /wishlist endpoints onto the provided router.
func (h *ListHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Use(requireRole(auth.RoleCustomer))

	r.With(h.cfg.paginate()).Get("/", h.listItems)
	r.With(h.cfg.mutating()...).Delete("/", h.clear)
	r.With(h.cfg.mutating()...).Post("/items", h.addItem)
	r.With(h.cfg.mutating()...).Delete("/items/{bookID}", h.removeItem)
	if h.lists != nil && h.lists.Kind().TracksQuantity() {
		r.With(h.cfg.mutating()...).Patch("/items/{bookID}", h.updateQuantity)
	}
}

func (h *ListHandlers) name() string {
	if h.lists == nil {
		return "list"
	}
	return string(h.lists.Kind())
}

func (h *ListHandlers) unavailable(w http.ResponseWriter, r *http.Request) {
	name := h.name()
	httpx.WriteError(r.Context(), w, httpx.NewError(name+"_service_unavailable", name+" service is unavailable", http.StatusServiceUnavailable))
}

func (h *ListHandlers) listItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.lists == nil {
		h.unavailable(w, r)
		return
	}
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	page, err := h.lists.List(ctx, actor, pageRequest(r))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	items := make([]listItemPayload, 0, len(page.Items))
	for _, entry := range page.Items {
		items = append(items, buildListItemPayload(entry))
	}
	httpx.WriteSuccess(w, http.StatusOK, httpx.Envelope{
		Message:    fmt.Sprintf("%s items retrieved successfully", titleCase(h.name())),
		Payload:    items,
		Pagination: paginationOf(page),
	})
}

func (h *ListHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.lists == nil {
		h.unavailable(w, r)
		return
	}
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req addListItemRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	list, err := h.lists.Add(ctx, actor, strings.TrimSpace(req.BookID))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, httpx.Envelope{
		Message: fmt.Sprintf("Book added to %s", h.name()),
		Payload: buildListPayload(list),
	})
}

func (h *ListHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.lists == nil {
		h.unavailable(w, r)
		return
	}
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	bookID := strings.TrimSpace(chi.URLParam(r, "bookID"))
	if bookID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "book id is required", http.StatusBadRequest))
		return
	}

	list, err := h.lists.Remove(ctx, actor, bookID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, httpx.Envelope{
		Message: fmt.Sprintf("Book removed from %s", h.name()),
		Payload: buildListPayload(list),
	})
}

func (h *ListHandlers) updateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.lists == nil {
		h.unavailable(w, r)
		return
	}
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	bookID := strings.TrimSpace(chi.URLParam(r, "bookID"))
	if bookID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "book id is required", http.StatusBadRequest))
		return
	}

	var req updateQuantityRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	list, err := h.lists.UpdateQuantity(ctx, actor, bookID, req.Quantity)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, httpx.Envelope{
		Message: "Quantity updated successfully",
		Payload: buildListPayload(list),
	})
}

func (h *ListHandlers) clear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.lists == nil {
		h.unavailable(w, r)
		return
	}
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	list, err := h.lists.Clear(ctx, actor)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, httpx.Envelope{
		Message: fmt.Sprintf("All items removed from %s", h.name()),
		Payload: buildListPayload(list),
	})
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
