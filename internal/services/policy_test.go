package services

import (
	"testing"

	domain "github.com/readify/api/internal/domain"
)

func TestCanPerform(t *testing.T) {
	own := Resource{OwnerID: customer.ID}
	sold := Resource{OwnerID: customer.ID, SellerIDs: []string{seller.ID}}

	cases := []struct {
		name     string
		actor    domain.Actor
		action   Action
		resource Resource
		want     bool
	}{
		{"customer creates own order", customer, ActionOrderCreate, own, true},
		{"customer views other order", otherCustomer, ActionOrderView, own, false},
		{"customer cancels own item", customer, ActionItemCancel, sold, true},
		{"customer dispatches", customer, ActionItemDispatch, sold, false},
		{"customer manages own addresses", customer, ActionAddressManage, own, true},
		{"customer manages own list", customer, ActionListManage, own, true},
		{"seller dispatches own item", seller, ActionItemDispatch, sold, true},
		{"seller delivers own item", seller, ActionItemDeliver, sold, true},
		{"seller cancels own item", seller, ActionItemCancel, sold, true},
		{"seller touches other item", otherSeller, ActionItemDispatch, sold, false},
		{"seller views seller orders", seller, ActionSellerView, Resource{}, true},
		{"seller creates order", seller, ActionOrderCreate, Resource{}, false},
		{"seller manages list", seller, ActionListManage, Resource{}, false},
		{"admin views order", admin, ActionOrderView, own, true},
		{"admin cancels item", admin, ActionItemCancel, sold, false},
		{"unknown role", domain.Actor{ID: "x", Role: "guest"}, ActionOrderView, Resource{}, false},
		{"anonymous", domain.Actor{Role: domain.RoleCustomer}, ActionOrderCreate, Resource{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanPerform(tc.actor, tc.action, tc.resource); got != tc.want {
				t.Fatalf("CanPerform = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestErrorKindStatus(t *testing.T) {
	cases := map[ErrorKind]int{
		KindValidation:        400,
		KindAuthorization:     403,
		KindNotFound:          404,
		KindInvalidTransition: 400,
		KindLimitExceeded:     400,
		KindDuplicate:         400,
		KindConflict:          409,
		KindUnexpected:        500,
	}
	for kind, want := range cases {
		if got := kind.Status(); got != want {
			t.Fatalf("%s.Status() = %d, want %d", kind, got, want)
		}
	}
}

func TestMapRepositoryError(t *testing.T) {
	if err := mapRepositoryError("order", repoError{notFound: true}); KindOf(err) != KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := mapRepositoryError("order", repoError{conflict: true}); KindOf(err) != KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	original := validationError("bad")
	if err := mapRepositoryError("order", original); err != original {
		t.Fatalf("expected service errors to pass through, got %v", err)
	}
	if mapRepositoryError("order", nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}
