package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/readify/api/internal/domain"
	"github.com/readify/api/internal/platform/auth"
	"github.com/readify/api/internal/services"
)

var testNow = time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)

type stubOrderService struct {
	createFn       func(context.Context, services.CreateOrderCommand) (services.Order, error)
	transitionFn   func(context.Context, services.TransitionItemCommand) (services.Order, error)
	getFn          func(context.Context, services.Actor, string) (services.Order, error)
	listCustomerFn func(context.Context, services.Actor, services.PageRequest) (domain.Page[services.CustomerOrderItem], error)
	listSellerFn   func(context.Context, services.Actor) ([]services.Order, error)
	sellerDetailFn func(context.Context, services.Actor, string) (services.Order, error)
	sellerStatsFn  func(context.Context, services.Actor) (services.SellerStats, error)
}

func (s *stubOrderService) Create(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) TransitionItem(ctx context.Context, cmd services.TransitionItemCommand) (services.Order, error) {
	if s.transitionFn != nil {
		return s.transitionFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) Get(ctx context.Context, actor services.Actor, orderID string) (services.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, actor, orderID)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) ListForCustomer(ctx context.Context, actor services.Actor, page services.PageRequest) (domain.Page[services.CustomerOrderItem], error) {
	if s.listCustomerFn != nil {
		return s.listCustomerFn(ctx, actor, page)
	}
	return domain.Page[services.CustomerOrderItem]{}, nil
}

func (s *stubOrderService) ListForSeller(ctx context.Context, actor services.Actor) ([]services.Order, error) {
	if s.listSellerFn != nil {
		return s.listSellerFn(ctx, actor)
	}
	return nil, nil
}

func (s *stubOrderService) SellerOrderDetail(ctx context.Context, actor services.Actor, orderID string) (services.Order, error) {
	if s.sellerDetailFn != nil {
		return s.sellerDetailFn(ctx, actor, orderID)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) SellerStats(ctx context.Context, actor services.Actor) (services.SellerStats, error) {
	if s.sellerStatsFn != nil {
		return s.sellerStatsFn(ctx, actor)
	}
	return services.SellerStats{}, nil
}

type stubAddressService struct {
	listFn   func(context.Context, services.Actor) ([]services.Address, error)
	addFn    func(context.Context, services.Actor, services.ShippingAddress) (services.Address, error)
	updateFn func(context.Context, services.Actor, string, services.AddressPatch) (services.Address, error)
	deleteFn func(context.Context, services.Actor, string) error
}

func (s *stubAddressService) List(ctx context.Context, actor services.Actor) ([]services.Address, error) {
	if s.listFn != nil {
		return s.listFn(ctx, actor)
	}
	return nil, nil
}

func (s *stubAddressService) Add(ctx context.Context, actor services.Actor, addr services.ShippingAddress) (services.Address, error) {
	if s.addFn != nil {
		return s.addFn(ctx, actor, addr)
	}
	return services.Address{}, errors.New("not implemented")
}

func (s *stubAddressService) Update(ctx context.Context, actor services.Actor, addressID string, patch services.AddressPatch) (services.Address, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, actor, addressID, patch)
	}
	return services.Address{}, errors.New("not implemented")
}

func (s *stubAddressService) Delete(ctx context.Context, actor services.Actor, addressID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, actor, addressID)
	}
	return nil
}

type stubListService struct {
	kind       domain.ListKind
	listFn     func(context.Context, services.Actor, services.PageRequest) (domain.Page[services.CustomerListEntry], error)
	addFn      func(context.Context, services.Actor, string) (services.CustomerList, error)
	removeFn   func(context.Context, services.Actor, string) (services.CustomerList, error)
	quantityFn func(context.Context, services.Actor, string, int) (services.CustomerList, error)
	clearFn    func(context.Context, services.Actor) (services.CustomerList, error)
}

func (s *stubListService) Kind() domain.ListKind { return s.kind }

func (s *stubListService) List(ctx context.Context, actor services.Actor, page services.PageRequest) (domain.Page[services.CustomerListEntry], error) {
	if s.listFn != nil {
		return s.listFn(ctx, actor, page)
	}
	return domain.Page[services.CustomerListEntry]{}, nil
}

func (s *stubListService) Add(ctx context.Context, actor services.Actor, bookID string) (services.CustomerList, error) {
	if s.addFn != nil {
		return s.addFn(ctx, actor, bookID)
	}
	return services.CustomerList{}, errors.New("not implemented")
}

func (s *stubListService) Remove(ctx context.Context, actor services.Actor, bookID string) (services.CustomerList, error) {
	if s.removeFn != nil {
		return s.removeFn(ctx, actor, bookID)
	}
	return services.CustomerList{}, errors.New("not implemented")
}

func (s *stubListService) UpdateQuantity(ctx context.Context, actor services.Actor, bookID string, quantity int) (services.CustomerList, error) {
	if s.quantityFn != nil {
		return s.quantityFn(ctx, actor, bookID, quantity)
	}
	return services.CustomerList{}, errors.New("not implemented")
}

func (s *stubListService) Clear(ctx context.Context, actor services.Actor) (services.CustomerList, error) {
	if s.clearFn != nil {
		return s.clearFn(ctx, actor)
	}
	return services.CustomerList{}, nil
}

type stubSystemService struct {
	report services.SystemHealthReport
	err    error
}

func (s *stubSystemService) HealthReport(context.Context) (services.SystemHealthReport, error) {
	return s.report, s.err
}

var (
	_ services.OrderService   = (*stubOrderService)(nil)
	_ services.AddressService = (*stubAddressService)(nil)
	_ services.ListService    = (*stubListService)(nil)
	_ services.SystemService  = (*stubSystemService)(nil)
)

// newAuthedRequest builds a request carrying an identity, as RequireAuth would leave it.
func newAuthedRequest(method, target, body, uid, role string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if uid != "" {
		req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: uid, Role: role}))
	}
	return req
}

func mount(path string, routes func(chi.Router)) chi.Router {
	router := chi.NewRouter()
	router.Route(path, routes)
	return router
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return body
}

func sampleOrder() services.Order {
	return services.Order{
		ID:            "ord_1",
		OrderNumber:   "RF-2025-000001",
		CustomerID:    "cust-1",
		Status:        domain.OrderStatusOrdered,
		PaymentMethod: domain.PaymentMethodCOD,
		PaymentStatus: domain.PaymentStatusPending,
		TotalQuantity: 2,
		TotalAmount:   50000,
		Address: services.ShippingAddress{
			FullName:     "Asha Rao",
			Phone:        "9999999999",
			AddressLine1: "12 MG Road",
			City:         "Pune",
			State:        "MH",
			PinCode:      "411001",
		},
		Items: []services.OrderItem{{
			ID:        "itm_1",
			BookID:    "book-1",
			SellerID:  "seller-1",
			Quantity:  2,
			UnitPrice: 25000,
			Status:    domain.ItemStatusOrdered,
			OrderedAt: testNow,
		}},
		SellerIDs: []string{"seller-1"},
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
}
