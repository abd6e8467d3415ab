package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	domain "github.com/readify/api/internal/domain"
	"github.com/readify/api/internal/repositories"
)

// ListServiceDeps bundles collaborators required to construct a cart or wishlist service.
type ListServiceDeps struct {
	Kind    domain.ListKind
	Lists   repositories.CustomerListRepository
	Books   repositories.BookRepository
	Catalog CatalogService
	Clock   func() time.Time
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

type listService struct {
	kind    domain.ListKind
	lists   repositories.CustomerListRepository
	books   repositories.BookRepository
	catalog CatalogService
	clock   func() time.Time
	logger  func(context.Context, string, map[string]any)
}

var _ ListService = (*listService)(nil)

// NewListService constructs the manager for one list kind. Cart and wishlist share the
// implementation; only the cart tracks quantities.
func NewListService(deps ListServiceDeps) (ListService, error) {
	if deps.Kind != domain.ListKindCart && deps.Kind != domain.ListKindWishlist {
		return nil, fmt.Errorf("list service: unsupported list kind %q", deps.Kind)
	}
	if deps.Lists == nil {
		return nil, errors.New("list service: list repository is required")
	}
	if deps.Books == nil {
		return nil, errors.New("list service: book repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	return &listService{
		kind:    deps.Kind,
		lists:   deps.Lists,
		books:   deps.Books,
		catalog: deps.Catalog,
		clock:   func() time.Time { return clock().UTC() },
		logger:  logger,
	}, nil
}

func (s *listService) Kind() domain.ListKind {
	return s.kind
}

func (s *listService) List(ctx context.Context, actor Actor, page PageRequest) (domain.Page[CustomerListEntry], error) {
	if err := s.authorize(actor); err != nil {
		return domain.Page[CustomerListEntry]{}, err
	}
	list, err := s.lists.Get(ctx, actor.ID)
	if err != nil {
		return domain.Page[CustomerListEntry]{}, mapRepositoryError(string(s.kind), err)
	}

	items := slices.Clone(list.Items)
	slices.SortStableFunc(items, func(a, b domain.CustomerListItem) int {
		return b.AddedAt.Compare(a.AddedAt)
	})
	entries := make([]CustomerListEntry, len(items))
	for i, item := range items {
		entries[i] = CustomerListEntry{Item: item}
	}

	result := domain.Paginate(entries, page)
	if s.catalog == nil || len(result.Items) == 0 {
		return result, nil
	}
	ids := make([]string, len(result.Items))
	for i, entry := range result.Items {
		ids[i] = entry.Item.BookID
	}
	summaries, err := s.catalog.Summaries(ctx, ids)
	if err != nil {
		return domain.Page[CustomerListEntry]{}, err
	}
	for i := range result.Items {
		if summary, ok := summaries[result.Items[i].Item.BookID]; ok {
			result.Items[i].Book = &summary
		}
	}
	return result, nil
}

func (s *listService) Add(ctx context.Context, actor Actor, bookID string) (CustomerList, error) {
	if err := s.authorize(actor); err != nil {
		return CustomerList{}, err
	}
	bookID = strings.TrimSpace(bookID)
	if bookID == "" {
		return CustomerList{}, validationError("bookId is required")
	}
	book, err := s.books.Get(ctx, bookID)
	if err != nil {
		return CustomerList{}, mapRepositoryError("book", err)
	}
	if book.Deleted {
		return CustomerList{}, notFoundError("book not found")
	}

	now := s.clock()
	list, err := s.mutate(ctx, actor.ID, func(list *domain.CustomerList) error {
		if list.IndexOf(bookID) >= 0 {
			return newError(KindDuplicate, "book is already in the %s", s.kind)
		}
		item := domain.CustomerListItem{BookID: bookID, AddedAt: now}
		if s.kind.TracksQuantity() {
			item.Quantity = 1
		}
		list.Items = append(list.Items, item)
		return nil
	})
	if err != nil {
		return CustomerList{}, err
	}
	s.logger(ctx, s.event("item.added"), map[string]any{"customerId": actor.ID, "bookId": bookID})
	return list, nil
}

func (s *listService) Remove(ctx context.Context, actor Actor, bookID string) (CustomerList, error) {
	if err := s.authorize(actor); err != nil {
		return CustomerList{}, err
	}
	bookID = strings.TrimSpace(bookID)
	if bookID == "" {
		return CustomerList{}, validationError("bookId is required")
	}
	list, err := s.mutate(ctx, actor.ID, func(list *domain.CustomerList) error {
		idx := list.IndexOf(bookID)
		if idx < 0 {
			return notFoundError("book is not in the %s", s.kind)
		}
		list.Items = slices.Delete(list.Items, idx, idx+1)
		return nil
	})
	if err != nil {
		return CustomerList{}, err
	}
	s.logger(ctx, s.event("item.removed"), map[string]any{"customerId": actor.ID, "bookId": bookID})
	return list, nil
}

func (s *listService) UpdateQuantity(ctx context.Context, actor Actor, bookID string, quantity int) (CustomerList, error) {
	if err := s.authorize(actor); err != nil {
		return CustomerList{}, err
	}
	if !s.kind.TracksQuantity() {
		return CustomerList{}, validationError("%s items have no quantity", s.kind)
	}
	bookID = strings.TrimSpace(bookID)
	if bookID == "" {
		return CustomerList{}, validationError("bookId is required")
	}
	if quantity < 1 {
		return CustomerList{}, validationError("quantity must be at least 1")
	}
	return s.mutate(ctx, actor.ID, func(list *domain.CustomerList) error {
		idx := list.IndexOf(bookID)
		if idx < 0 {
			return notFoundError("book is not in the %s", s.kind)
		}
		list.Items[idx].Quantity = quantity
		return nil
	})
}

func (s *listService) Clear(ctx context.Context, actor Actor) (CustomerList, error) {
	if err := s.authorize(actor); err != nil {
		return CustomerList{}, err
	}
	list, err := s.mutate(ctx, actor.ID, func(list *domain.CustomerList) error {
		list.Items = []domain.CustomerListItem{}
		return nil
	})
	if err != nil {
		return CustomerList{}, err
	}
	s.logger(ctx, s.event("cleared"), map[string]any{"customerId": actor.ID})
	return list, nil
}

// mutate stamps the list timestamps around fn and maps repository failures.
func (s *listService) mutate(ctx context.Context, customerID string, fn repositories.CustomerListMutation) (CustomerList, error) {
	list, err := s.lists.Mutate(ctx, customerID, func(list *domain.CustomerList) error {
		if err := fn(list); err != nil {
			return err
		}
		now := s.clock()
		if list.CreatedAt.IsZero() {
			list.CreatedAt = now
		}
		list.UpdatedAt = now
		list.Kind = s.kind
		list.CustomerID = customerID
		return nil
	})
	if err != nil {
		return CustomerList{}, mapRepositoryError(string(s.kind), err)
	}
	return list, nil
}

func (s *listService) authorize(actor Actor) error {
	if actor.Role != domain.RoleCustomer || !CanPerform(actor, ActionListManage, Resource{OwnerID: actor.ID}) {
		return authorizationError("only customers have a %s", s.kind)
	}
	return nil
}

func (s *listService) event(name string) string {
	return string(s.kind) + "." + name
}
