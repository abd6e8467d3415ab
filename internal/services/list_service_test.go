package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/readify/api/internal/domain"
)

func newTestListService(t *testing.T, kind domain.ListKind, repo *memoryListRepo, clock func() time.Time) (ListService, *stubCatalog) {
	t.Helper()
	catalog := &stubCatalog{}
	svc, err := NewListService(ListServiceDeps{
		Kind:    kind,
		Lists:   repo,
		Books:   catalogBooks(),
		Catalog: catalog,
		Clock:   clock,
	})
	if err != nil {
		t.Fatalf("NewListService: %v", err)
	}
	return svc, catalog
}

func TestNewListServiceValidatesDeps(t *testing.T) {
	if _, err := NewListService(ListServiceDeps{Kind: "basket", Lists: newMemoryListRepo(domain.ListKindCart), Books: catalogBooks()}); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if _, err := NewListService(ListServiceDeps{Kind: domain.ListKindCart, Books: catalogBooks()}); err == nil {
		t.Fatalf("expected error without repository")
	}
}

func TestCartAddRejectsDuplicatesAndUnknownBooks(t *testing.T) {
	repo := newMemoryListRepo(domain.ListKindCart)
	svc, _ := newTestListService(t, domain.ListKindCart, repo, fixedClock)
	ctx := context.Background()

	cart, err := svc.Add(ctx, customer, "b1")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 1 || !cart.Items[0].AddedAt.Equal(testNow) {
		t.Fatalf("unexpected cart %+v", cart)
	}
	if !cart.CreatedAt.Equal(testNow) || cart.Kind != domain.ListKindCart {
		t.Fatalf("expected lazily created cart, got %+v", cart)
	}

	if _, err := svc.Add(ctx, customer, "b1"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	stored, err := repo.Get(ctx, customer.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(stored.Items) != 1 {
		t.Fatalf("duplicate add must not change the item count, got %d items", len(stored.Items))
	}
	if stored.Items[0].Quantity != 1 {
		t.Fatalf("duplicate add must not increment quantity, got %d", stored.Items[0].Quantity)
	}

	if _, err := svc.Add(ctx, customer, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for unknown book, got %v", err)
	}
	if _, err := svc.Add(ctx, customer, "b3"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for deleted book, got %v", err)
	}
	if _, err := svc.Add(ctx, seller, "b1"); !errors.Is(err, ErrAuthorization) {
		t.Fatalf("expected sellers to be rejected, got %v", err)
	}
}

func TestCartUpdateRemoveAndClear(t *testing.T) {
	repo := newMemoryListRepo(domain.ListKindCart)
	svc, _ := newTestListService(t, domain.ListKindCart, repo, fixedClock)
	ctx := context.Background()
	if _, err := svc.Add(ctx, customer, "b1"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	cart, err := svc.UpdateQuantity(ctx, customer, "b1", 4)
	if err != nil {
		t.Fatalf("UpdateQuantity: %v", err)
	}
	if cart.Items[0].Quantity != 4 {
		t.Fatalf("expected quantity 4, got %d", cart.Items[0].Quantity)
	}
	if _, err := svc.UpdateQuantity(ctx, customer, "b1", 0); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for zero quantity, got %v", err)
	}
	if _, err := svc.UpdateQuantity(ctx, customer, "b2", 2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for absent book, got %v", err)
	}

	if _, err := svc.Remove(ctx, customer, "b2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found removing absent book, got %v", err)
	}
	cart, err = svc.Remove(ctx, customer, "b1")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(cart.Items) != 0 {
		t.Fatalf("expected empty cart, got %+v", cart.Items)
	}

	for i := 0; i < 2; i++ {
		cleared, err := svc.Clear(ctx, customer)
		if err != nil {
			t.Fatalf("Clear #%d: %v", i, err)
		}
		if len(cleared.Items) != 0 {
			t.Fatalf("expected empty list after clear, got %+v", cleared.Items)
		}
	}
}

func TestWishlistHasNoQuantity(t *testing.T) {
	repo := newMemoryListRepo(domain.ListKindWishlist)
	svc, _ := newTestListService(t, domain.ListKindWishlist, repo, fixedClock)
	ctx := context.Background()

	list, err := svc.Add(ctx, customer, "b2")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if list.Items[0].Quantity != 0 || svc.Kind() != domain.ListKindWishlist {
		t.Fatalf("expected wishlist item without quantity, got %+v", list.Items[0])
	}
	if _, err := svc.UpdateQuantity(ctx, customer, "b2", 2); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.Add(ctx, customer, "b2"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if stored, _ := repo.Get(ctx, customer.ID); len(stored.Items) != 1 {
		t.Fatalf("duplicate add must not change the item count, got %d items", len(stored.Items))
	}
}

func TestListPaginatesNewestFirstWithBooks(t *testing.T) {
	repo := newMemoryListRepo(domain.ListKindCart)
	current := testNow
	clock := func() time.Time { return current }
	svc, catalog := newTestListService(t, domain.ListKindCart, repo, clock)
	ctx := context.Background()

	for _, id := range []string{"b1", "b2"} {
		if _, err := svc.Add(ctx, customer, id); err != nil {
			t.Fatalf("Add %s: %v", id, err)
		}
		current = current.Add(time.Minute)
	}

	page, err := svc.List(ctx, customer, domain.PageRequest{Page: 1, Limit: 1})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 2 || page.TotalPages != 2 || len(page.Items) != 1 {
		t.Fatalf("unexpected page %+v", page)
	}
	if page.Items[0].Item.BookID != "b2" || page.Items[0].Book == nil {
		t.Fatalf("expected newest entry with book summary, got %+v", page.Items[0])
	}
	if len(catalog.calls) != 1 || len(catalog.calls[0]) != 1 {
		t.Fatalf("expected catalog lookup for the page only, got %v", catalog.calls)
	}

	beyond, err := svc.List(ctx, customer, domain.PageRequest{Page: 5, Limit: 10})
	if err != nil {
		t.Fatalf("List beyond range: %v", err)
	}
	if beyond.Items == nil || len(beyond.Items) != 0 {
		t.Fatalf("expected empty non-nil page, got %+v", beyond.Items)
	}

	far, err := svc.List(ctx, customer, domain.PageRequest{Page: 1 << 62, Limit: 100})
	if err != nil {
		t.Fatalf("List far page: %v", err)
	}
	if len(far.Items) != 0 || far.Total != 2 {
		t.Fatalf("expected empty page with total 2, got %+v", far)
	}
}

func TestListMapsRepositoryFailure(t *testing.T) {
	repo := newMemoryListRepo(domain.ListKindCart)
	repo.err = repoError{unavailable: true}
	svc, _ := newTestListService(t, domain.ListKindCart, repo, fixedClock)
	if _, err := svc.Clear(context.Background(), customer); !errors.Is(err, ErrUnexpected) {
		t.Fatalf("expected unexpected error, got %v", err)
	}
}
