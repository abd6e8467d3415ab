package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/readify/api/internal/domain"
	"github.com/readify/api/internal/platform/auth"
	"github.com/readify/api/internal/platform/httpx"
	"github.com/readify/api/internal/services"
)

// OrderHandlers exposes order placement, fulfilment and the customer and seller order views.
type OrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
	cfg    handlerConfig
}

// NewOrderHandlers constructs order handlers that authenticate every route before invoking the
// order service.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, opts ...HandlerOption) *OrderHandlers {
	return &OrderHandlers{
		authn:  authn,
		orders: orders,
		cfg:    newHandlerConfig(opts),
	}
}

type createOrderRequest struct {
	Items         []orderItemRequest `json:"items" validate:"required,min=1,dive"`
	Address       *addressRequest    `json:"address"`
	AddressID     string             `json:"addressId" validate:"omitempty,max=64"`
	PaymentMethod string             `json:"paymentMethod" validate:"omitempty,oneof=upi card netbanking cod"`
}

type orderItemRequest struct {
	BookID    string   `json:"bookId" validate:"required,max=64"`
	Quantity  int      `json:"quantity" validate:"min=1"`
	UnitPrice *float64 `json:"unitPrice" validate:"omitempty,gte=0,lte=10000000"`
}

type transitionItemRequest struct {
	Action string `json:"action" validate:"required,oneof=cancel dispatch deliver"`
}

// Routes wires the /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}

	customerOnly := requireRole(auth.RoleCustomer)
	sellerOnly := requireRole(auth.RoleSeller)

	r.With(append([]func(http.Handler) http.Handler{customerOnly}, h.cfg.mutating(h.cfg.idempotency)...)...).Post("/", h.createOrder)
	r.With(customerOnly, h.cfg.paginate()).Get("/mine", h.listMyOrders)
	r.With(sellerOnly).Get("/seller", h.listSellerOrders)
	r.With(sellerOnly).Get("/seller/stats", h.sellerStats)
	r.With(sellerOnly).Get("/seller/{orderID}", h.sellerOrderDetail)
	r.With(requireRole(auth.RoleCustomer, auth.RoleAdmin)).Get("/{orderID}", h.getOrder)
	r.With(append([]func(http.Handler) http.Handler{requireRole(auth.RoleCustomer, auth.RoleSeller)}, h.cfg.mutating()...)...).
		Patch("/{orderID}/items/{itemID}", h.transitionItem)
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	cmd := services.CreateOrderCommand{
		Actor:         actor,
		AddressID:     strings.TrimSpace(req.AddressID),
		PaymentMethod: domain.PaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod))),
		Items:         make([]services.OrderItemInput, 0, len(req.Items)),
	}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, services.OrderItemInput{
			BookID:    strings.TrimSpace(item.BookID),
			Quantity:  item.Quantity,
			UnitPrice: paisePtr(item.UnitPrice),
		})
	}
	if req.Address != nil {
		addr := req.Address.shippingAddress()
		cmd.Address = &addr
	}

	order, err := h.orders.Create(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	w.Header().Set("Location", strings.TrimSuffix(r.URL.Path, "/")+"/"+order.ID)
	httpx.WriteSuccess(w, http.StatusCreated, httpx.Envelope{
		Message: "Order placed successfully",
		Key:     "order",
		Payload: buildOrderPayload(order),
	})
}

func (h *OrderHandlers) listMyOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	page, err := h.orders.ListForCustomer(ctx, actor, pageRequest(r))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	rows := make([]customerOrderItemPayload, 0, len(page.Items))
	for _, row := range page.Items {
		rows = append(rows, buildCustomerOrderItemPayload(row))
	}
	httpx.WriteSuccess(w, http.StatusOK, httpx.Envelope{
		Message:    "Orders retrieved successfully",
		Payload:    rows,
		Pagination: paginationOf(page),
	})
}

func (h *OrderHandlers) listSellerOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	orders, err := h.orders.ListForSeller(ctx, actor)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	payload := make([]orderPayload, 0, len(orders))
	for _, order := range orders {
		payload = append(payload, buildOrderPayload(order))
	}
	httpx.WriteSuccess(w, http.StatusOK, httpx.Envelope{
		Message: "Seller orders retrieved successfully",
		Payload: payload,
	})
}

func (h *OrderHandlers) sellerStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	stats, err := h.orders.SellerStats(ctx, actor)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, httpx.Envelope{
		Message: "Seller stats retrieved successfully",
		Payload: buildSellerStatsPayload(stats),
	})
}

func (h *OrderHandlers) sellerOrderDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.SellerOrderDetail(ctx, actor, orderID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, httpx.Envelope{
		Message: "Order retrieved successfully",
		Key:     "order",
		Payload: buildOrderPayload(order),
	})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.Get(ctx, actor, orderID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, httpx.Envelope{
		Message: "Order retrieved successfully",
		Key:     "order",
		Payload: buildOrderPayload(order),
	})
}

func (h *OrderHandlers) transitionItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	itemID := strings.TrimSpace(chi.URLParam(r, "itemID"))
	if orderID == "" || itemID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id and item id are required", http.StatusBadRequest))
		return
	}

	var req transitionItemRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	order, err := h.orders.TransitionItem(ctx, services.TransitionItemCommand{
		Actor:   actor,
		OrderID: orderID,
		ItemID:  itemID,
		Action:  domain.ItemAction(strings.ToLower(strings.TrimSpace(req.Action))),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, httpx.Envelope{
		Message: "Order item updated successfully",
		Key:     "order",
		Payload: buildOrderPayload(order),
	})
}
