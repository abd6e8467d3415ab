package repositories

import (
	"context"

	domain "github.com/readify/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists orders and answers the customer and seller queries over them.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	// Update replaces the order only while the stored version still equals expectedVersion.
	// A mismatch yields a RepositoryError reporting IsConflict.
	Update(ctx context.Context, order domain.Order, expectedVersion int64) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error)
	ListBySeller(ctx context.Context, sellerID string) ([]domain.Order, error)
}

// AddressRepository stores the saved addresses of a customer.
type AddressRepository interface {
	List(ctx context.Context, customerID string) ([]domain.Address, error)
	Get(ctx context.Context, customerID string, addressID string) (domain.Address, error)
	// Create stores the address unless the customer already holds limit addresses, in which case
	// ErrAddressLimitReached is returned.
	Create(ctx context.Context, addr domain.Address, limit int) (domain.Address, error)
	Update(ctx context.Context, addr domain.Address) (domain.Address, error)
	Delete(ctx context.Context, customerID string, addressID string) error
}

// CustomerListMutation edits a list in place. Returning an error aborts the write.
type CustomerListMutation func(list *domain.CustomerList) error

// CustomerListRepository stores one cart or wishlist document per customer.
type CustomerListRepository interface {
	// Get returns the list, or an empty list when the customer has none yet.
	Get(ctx context.Context, customerID string) (domain.CustomerList, error)
	// Mutate applies fn to the current list atomically and persists the result.
	Mutate(ctx context.Context, customerID string, fn CustomerListMutation) (domain.CustomerList, error)
}

// BookRepository reads catalog entries.
type BookRepository interface {
	Get(ctx context.Context, bookID string) (domain.Book, error)
	// GetMany returns the books that exist keyed by id. Missing ids are absent from the map.
	GetMany(ctx context.Context, bookIDs []string) (map[string]domain.Book, error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Registry exposes the repositories the service layer is assembled from.
type Registry interface {
	UnitOfWork
	Orders() OrderRepository
	Addresses() AddressRepository
	Carts() CustomerListRepository
	Wishlists() CustomerListRepository
	Books() BookRepository
	Counters() CounterRepository
	Health() HealthRepository
	Close(ctx context.Context) error
}
