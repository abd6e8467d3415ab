package services

import (
	"context"
	"errors"
	"sync"
	"time"

	domain "github.com/readify/api/internal/domain"
	"github.com/readify/api/internal/repositories"
)

var testNow = time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func sequentialIDs() func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return "ID" + string(rune('A'+n-1))
	}
}

var (
	customer      = domain.Actor{ID: "cust-1", Role: domain.RoleCustomer}
	otherCustomer = domain.Actor{ID: "cust-2", Role: domain.RoleCustomer}
	seller        = domain.Actor{ID: "seller-1", Role: domain.RoleSeller}
	otherSeller   = domain.Actor{ID: "seller-2", Role: domain.RoleSeller}
	admin         = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
)

type repoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e repoError) Error() string       { return "repository failure" }
func (e repoError) IsNotFound() bool    { return e.notFound }
func (e repoError) IsConflict() bool    { return e.conflict }
func (e repoError) IsUnavailable() bool { return e.unavailable }

var _ repositories.RepositoryError = repoError{}

type stubOrderRepo struct {
	insertFn         func(context.Context, domain.Order) error
	updateFn         func(context.Context, domain.Order, int64) error
	findFn           func(context.Context, string) (domain.Order, error)
	listByCustomerFn func(context.Context, string) ([]domain.Order, error)
	listBySellerFn   func(context.Context, string) ([]domain.Order, error)
}

func (s *stubOrderRepo) Insert(ctx context.Context, order domain.Order) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, order)
	}
	return nil
}

func (s *stubOrderRepo) Update(ctx context.Context, order domain.Order, expectedVersion int64) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, order, expectedVersion)
	}
	return nil
}

func (s *stubOrderRepo) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findFn != nil {
		return s.findFn(ctx, orderID)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderRepo) ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	if s.listByCustomerFn != nil {
		return s.listByCustomerFn(ctx, customerID)
	}
	return nil, nil
}

func (s *stubOrderRepo) ListBySeller(ctx context.Context, sellerID string) ([]domain.Order, error) {
	if s.listBySellerFn != nil {
		return s.listBySellerFn(ctx, sellerID)
	}
	return nil, nil
}

type stubBookRepo struct {
	books map[string]domain.Book
	err   error
}

func (s *stubBookRepo) Get(_ context.Context, bookID string) (domain.Book, error) {
	if s.err != nil {
		return domain.Book{}, s.err
	}
	book, ok := s.books[bookID]
	if !ok {
		return domain.Book{}, repoError{notFound: true}
	}
	return book, nil
}

func (s *stubBookRepo) GetMany(_ context.Context, bookIDs []string) (map[string]domain.Book, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]domain.Book, len(bookIDs))
	for _, id := range bookIDs {
		if book, ok := s.books[id]; ok {
			out[id] = book
		}
	}
	return out, nil
}

type stubCounterRepo struct {
	nextFn func(context.Context, string, int64) (int64, error)
}

func (s *stubCounterRepo) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	if s.nextFn != nil {
		return s.nextFn(ctx, counterID, step)
	}
	return 1, nil
}

type stubAddressRepo struct {
	listFn   func(context.Context, string) ([]domain.Address, error)
	getFn    func(context.Context, string, string) (domain.Address, error)
	createFn func(context.Context, domain.Address, int) (domain.Address, error)
	updateFn func(context.Context, domain.Address) (domain.Address, error)
	deleteFn func(context.Context, string, string) error
}

func (s *stubAddressRepo) List(ctx context.Context, customerID string) ([]domain.Address, error) {
	if s.listFn != nil {
		return s.listFn(ctx, customerID)
	}
	return nil, nil
}

func (s *stubAddressRepo) Get(ctx context.Context, customerID, addressID string) (domain.Address, error) {
	if s.getFn != nil {
		return s.getFn(ctx, customerID, addressID)
	}
	return domain.Address{}, repoError{notFound: true}
}

func (s *stubAddressRepo) Create(ctx context.Context, addr domain.Address, limit int) (domain.Address, error) {
	if s.createFn != nil {
		return s.createFn(ctx, addr, limit)
	}
	return addr, nil
}

func (s *stubAddressRepo) Update(ctx context.Context, addr domain.Address) (domain.Address, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, addr)
	}
	return addr, nil
}

func (s *stubAddressRepo) Delete(ctx context.Context, customerID, addressID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, customerID, addressID)
	}
	return nil
}

// memoryListRepo applies mutations to an in-memory list like the transactional repository does:
// the mutation error aborts the write.
type memoryListRepo struct {
	mu    sync.Mutex
	kind  domain.ListKind
	lists map[string]domain.CustomerList
	err   error
}

func newMemoryListRepo(kind domain.ListKind) *memoryListRepo {
	return &memoryListRepo{kind: kind, lists: map[string]domain.CustomerList{}}
}

func (r *memoryListRepo) Get(_ context.Context, customerID string) (domain.CustomerList, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return domain.CustomerList{}, r.err
	}
	list, ok := r.lists[customerID]
	if !ok {
		return domain.CustomerList{Kind: r.kind, CustomerID: customerID, Items: []domain.CustomerListItem{}}, nil
	}
	list.Items = append([]domain.CustomerListItem(nil), list.Items...)
	return list, nil
}

func (r *memoryListRepo) Mutate(_ context.Context, customerID string, fn repositories.CustomerListMutation) (domain.CustomerList, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return domain.CustomerList{}, r.err
	}
	list, ok := r.lists[customerID]
	if !ok {
		list = domain.CustomerList{Kind: r.kind, CustomerID: customerID}
	}
	list.Items = append([]domain.CustomerListItem(nil), list.Items...)
	if err := fn(&list); err != nil {
		return domain.CustomerList{}, err
	}
	r.lists[customerID] = list
	return list, nil
}

type stubCatalog struct {
	summariesFn func(context.Context, []string) (map[string]domain.BookSummary, error)
	calls       [][]string
}

func (s *stubCatalog) Summaries(ctx context.Context, ids []string) (map[string]domain.BookSummary, error) {
	s.calls = append(s.calls, append([]string(nil), ids...))
	if s.summariesFn != nil {
		return s.summariesFn(ctx, ids)
	}
	out := make(map[string]domain.BookSummary, len(ids))
	for _, id := range ids {
		out[id] = domain.BookSummary{ID: id, Title: "Title " + id}
	}
	return out, nil
}

type captureEvents struct {
	events []OrderEvent
	err    error
}

func (c *captureEvents) PublishOrderEvent(_ context.Context, event OrderEvent) error {
	c.events = append(c.events, event)
	return c.err
}

type logEntry struct {
	event  string
	fields map[string]any
}

type captureLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (c *captureLogger) log(_ context.Context, event string, fields map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, logEntry{event: event, fields: fields})
}

func (c *captureLogger) has(event string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range c.entries {
		if entry.event == event {
			return true
		}
	}
	return false
}
