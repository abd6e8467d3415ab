package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/readify/api/internal/platform/auth"
	"github.com/readify/api/internal/platform/httpx"
	"github.com/readify/api/internal/services"
)

// AddressHandlers exposes the customer's address book.
type AddressHandlers struct {
	authn     *auth.Authenticator
	addresses services.AddressService
	cfg       handlerConfig
}

// NewAddressHandlers constructs address book handlers restricted to customers.
func NewAddressHandlers(authn *auth.Authenticator, addresses services.AddressService, opts ...HandlerOption) *AddressHandlers {
	return &AddressHandlers{
		authn:     authn,
		addresses: addresses,
		cfg:       newHandlerConfig(opts),
	}
}

// addressRequest is shared by address creation, address updates and inline order addresses.
// Absent fields stay nil so updates only touch what was sent.
type addressRequest struct {
	FullName     *string `json:"fullName" validate:"omitempty,max=120"`
	Phone        *string `json:"phone" validate:"omitempty,max=20"`
	AddressLine1 *string `json:"addressLine1" validate:"omitempty,max=200"`
	AddressLine2 *string `json:"addressLine2" validate:"omitempty,max=200"`
	City         *string `json:"city" validate:"omitempty,max=100"`
	State        *string `json:"state" validate:"omitempty,max=100"`
	PinCode      *string `json:"pinCode" validate:"omitempty,max=12"`
}

func (req addressRequest) shippingAddress() services.ShippingAddress {
	return services.ShippingAddress{
		FullName:     derefString(req.FullName),
		Phone:        derefString(req.Phone),
		AddressLine1: derefString(req.AddressLine1),
		AddressLine2: derefString(req.AddressLine2),
		City:         derefString(req.City),
		State:        derefString(req.State),
		PinCode:      derefString(req.PinCode),
	}
}

func (req addressRequest) patch() services.AddressPatch {
	return services.AddressPatch{
		FullName:     req.FullName,
		Phone:        req.Phone,
		AddressLine1: req.AddressLine1,
		AddressLine2: req.AddressLine2,
		City:         req.City,
		State:        req.State,
		PinCode:      req.PinCode,
	}
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// Routes wires the /addresses endpoints onto the provided router.
func (h *AddressHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Use(requireRole(auth.RoleCustomer))

	r.Get("/", h.listAddresses)
	r.With(h.cfg.mutating()...).Post("/", h.createAddress)
	r.With(h.cfg.mutating()...).Patch("/{addressID}", h.updateAddress)
	r.With(h.cfg.mutating()...).Delete("/{addressID}", h.deleteAddress)
}

func (h *AddressHandlers) listAddresses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.addresses == nil {
		httpx.WriteError(ctx, w, httpx.NewError("address_service_unavailable", "address service is unavailable", http.StatusServiceUnavailable))
		return
	}
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	addresses, err := h.addresses.List(ctx, actor)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, httpx.Envelope{
		Message: "Addresses retrieved successfully",
		Key:     "addresses",
		Payload: buildAddressPayloads(addresses),
	})
}

func (h *AddressHandlers) createAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.addresses == nil {
		httpx.WriteError(ctx, w, httpx.NewError("address_service_unavailable", "address service is unavailable", http.StatusServiceUnavailable))
		return
	}
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req addressRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	created, err := h.addresses.Add(ctx, actor, req.shippingAddress())
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	w.Header().Set("Location", strings.TrimSuffix(r.URL.Path, "/")+"/"+created.ID)
	httpx.WriteSuccess(w, http.StatusCreated, httpx.Envelope{
		Message: "Address added successfully",
		Payload: buildAddressPayload(created),
	})
}

func (h *AddressHandlers) updateAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.addresses == nil {
		httpx.WriteError(ctx, w, httpx.NewError("address_service_unavailable", "address service is unavailable", http.StatusServiceUnavailable))
		return
	}
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	addressID := strings.TrimSpace(chi.URLParam(r, "addressID"))
	if addressID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "address id is required", http.StatusBadRequest))
		return
	}

	var req addressRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	updated, err := h.addresses.Update(ctx, actor, addressID, req.patch())
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, httpx.Envelope{
		Message: "Address updated successfully",
		Payload: buildAddressPayload(updated),
	})
}

func (h *AddressHandlers) deleteAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.addresses == nil {
		httpx.WriteError(ctx, w, httpx.NewError("address_service_unavailable", "address service is unavailable", http.StatusServiceUnavailable))
		return
	}
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	addressID := strings.TrimSpace(chi.URLParam(r, "addressID"))
	if addressID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "address id is required", http.StatusBadRequest))
		return
	}

	if err := h.addresses.Delete(ctx, actor, addressID); err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	remaining, err := h.addresses.List(ctx, actor)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, httpx.Envelope{
		Message: "Address deleted successfully",
		Key:     "addresses",
		Payload: buildAddressPayloads(remaining),
	})
}

func buildAddressPayloads(addresses []services.Address) []addressPayload {
	payload := make([]addressPayload, 0, len(addresses))
	for _, addr := range addresses {
		payload = append(payload, buildAddressPayload(addr))
	}
	return payload
}
