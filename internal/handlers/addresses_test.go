package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/readify/api/internal/services"
)

func sampleAddress(id string) services.Address {
	return services.Address{
		ID:           id,
		CustomerID:   "cust-1",
		FullName:     "Asha Rao",
		Phone:        "9999999999",
		AddressLine1: "12 MG Road",
		City:         "Pune",
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}
}

func TestAddressHandlersList(t *testing.T) {
	svc := &stubAddressService{
		listFn: func(_ context.Context, actor services.Actor) ([]services.Address, error) {
			if actor.ID != "cust-1" {
				t.Fatalf("unexpected actor %+v", actor)
			}
			return []services.Address{sampleAddress("adr_2"), sampleAddress("adr_1")}, nil
		},
	}
	router := mount("/addresses", NewAddressHandlers(nil, svc).Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newAuthedRequest(http.MethodGet, "/addresses", "", "cust-1", "customer"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := decodeBody(t, rr)
	addresses, ok := resp["addresses"].([]any)
	if !ok || len(addresses) != 2 {
		t.Fatalf("expected two addresses under addresses key, got %v", resp)
	}
	if addresses[0].(map[string]any)["id"] != "adr_2" {
		t.Fatalf("expected service order preserved, got %v", addresses[0])
	}
}

func TestAddressHandlersCreate(t *testing.T) {
	var captured services.ShippingAddress
	svc := &stubAddressService{
		addFn: func(_ context.Context, _ services.Actor, addr services.ShippingAddress) (services.Address, error) {
			captured = addr
			return sampleAddress("adr_1"), nil
		},
	}
	router := mount("/addresses", NewAddressHandlers(nil, svc).Routes)

	body := `{"fullName":"Asha Rao","phone":"9999999999","addressLine1":"12 MG Road","city":"Pune"}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newAuthedRequest(http.MethodPost, "/addresses", body, "cust-1", "customer"))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.FullName != "Asha Rao" || captured.City != "Pune" || captured.State != "" {
		t.Fatalf("unexpected address passed to service %+v", captured)
	}
	if loc := rr.Header().Get("Location"); loc != "/addresses/adr_1" {
		t.Fatalf("unexpected location %q", loc)
	}
}

func TestAddressHandlersCreateLimitExceeded(t *testing.T) {
	svc := &stubAddressService{
		addFn: func(context.Context, services.Actor, services.ShippingAddress) (services.Address, error) {
			return services.Address{}, &services.Error{Kind: services.KindLimitExceeded, Message: "you can save at most 3 addresses"}
		},
	}
	router := mount("/addresses", NewAddressHandlers(nil, svc).Routes)

	body := `{"fullName":"Asha Rao","phone":"9999999999","addressLine1":"12 MG Road"}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newAuthedRequest(http.MethodPost, "/addresses", body, "cust-1", "customer"))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	resp := decodeBody(t, rr)
	if resp["error"] != "limit_exceeded" || resp["message"] != "you can save at most 3 addresses" {
		t.Fatalf("unexpected error body %v", resp)
	}
}

func TestAddressHandlersCreateRejectsOversizedField(t *testing.T) {
	router := mount("/addresses", NewAddressHandlers(nil, &stubAddressService{}).Routes)

	body := `{"fullName":"Asha","phone":"123456789012345678901","addressLine1":"x"}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newAuthedRequest(http.MethodPost, "/addresses", body, "cust-1", "customer"))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	resp := decodeBody(t, rr)
	if resp["message"] != "phone must be at most 20 characters" {
		t.Fatalf("unexpected message %v", resp["message"])
	}
	fields, ok := resp["fields"].(map[string]any)
	if !ok || fields["phone"] != "max" {
		t.Fatalf("expected field details, got %v", resp["fields"])
	}
}

func TestAddressHandlersUpdatePatchesOnlySentFields(t *testing.T) {
	var (
		capturedID    string
		capturedPatch services.AddressPatch
	)
	svc := &stubAddressService{
		updateFn: func(_ context.Context, _ services.Actor, addressID string, patch services.AddressPatch) (services.Address, error) {
			capturedID = addressID
			capturedPatch = patch
			addr := sampleAddress(addressID)
			addr.City = *patch.City
			return addr, nil
		},
	}
	router := mount("/addresses", NewAddressHandlers(nil, svc).Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newAuthedRequest(http.MethodPatch, "/addresses/adr_1", `{"city":"Mumbai"}`, "cust-1", "customer"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if capturedID != "adr_1" {
		t.Fatalf("unexpected address id %q", capturedID)
	}
	if capturedPatch.City == nil || *capturedPatch.City != "Mumbai" {
		t.Fatalf("expected city patch, got %+v", capturedPatch)
	}
	if capturedPatch.FullName != nil || capturedPatch.Phone != nil {
		t.Fatalf("absent fields must stay nil, got %+v", capturedPatch)
	}
}

func TestAddressHandlersDeleteReturnsRemaining(t *testing.T) {
	deleted := ""
	svc := &stubAddressService{
		deleteFn: func(_ context.Context, _ services.Actor, addressID string) error {
			deleted = addressID
			return nil
		},
		listFn: func(context.Context, services.Actor) ([]services.Address, error) {
			return []services.Address{sampleAddress("adr_2")}, nil
		},
	}
	router := mount("/addresses", NewAddressHandlers(nil, svc).Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newAuthedRequest(http.MethodDelete, "/addresses/adr_1", "", "cust-1", "customer"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if deleted != "adr_1" {
		t.Fatalf("expected adr_1 deleted, got %q", deleted)
	}
	if remaining := decodeBody(t, rr)["addresses"].([]any); len(remaining) != 1 {
		t.Fatalf("expected one remaining address, got %d", len(remaining))
	}
}

func TestAddressHandlersDeleteNotFound(t *testing.T) {
	svc := &stubAddressService{
		deleteFn: func(context.Context, services.Actor, string) error {
			return &services.Error{Kind: services.KindNotFound, Message: "address not found"}
		},
	}
	router := mount("/addresses", NewAddressHandlers(nil, svc).Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newAuthedRequest(http.MethodDelete, "/addresses/adr_9", "", "cust-1", "customer"))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestAddressHandlersRejectSeller(t *testing.T) {
	router := mount("/addresses", NewAddressHandlers(nil, &stubAddressService{}).Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newAuthedRequest(http.MethodGet, "/addresses", "", "seller-1", "seller"))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}
