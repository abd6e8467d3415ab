package firestore

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/readify/api/internal/domain"
	pfirestore "github.com/readify/api/internal/platform/firestore"
	"github.com/readify/api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories sharing one provider.
type Registry struct {
	*pfirestore.UnitOfWork

	provider  *pfirestore.Provider
	orders    *OrderRepository
	addresses *AddressRepository
	carts     *CustomerListRepository
	wishlists *CustomerListRepository
	books     *BookRepository
	counters  *CounterRepository
	health    repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds every repository on top of provider. health may be nil when readiness
// checks are not wired.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("orders: %w", err)
	}
	addresses, err := NewAddressRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("addresses: %w", err)
	}
	carts, err := NewCustomerListRepository(provider, domain.ListKindCart)
	if err != nil {
		return nil, fmt.Errorf("carts: %w", err)
	}
	wishlists, err := NewCustomerListRepository(provider, domain.ListKindWishlist)
	if err != nil {
		return nil, fmt.Errorf("wishlists: %w", err)
	}
	books, err := NewBookRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("books: %w", err)
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("counters: %w", err)
	}

	return &Registry{
		UnitOfWork: pfirestore.NewUnitOfWork(provider),
		provider:   provider,
		orders:     orders,
		addresses:  addresses,
		carts:      carts,
		wishlists:  wishlists,
		books:      books,
		counters:   counters,
		health:     health,
	}, nil
}

func (r *Registry) Orders() repositories.OrderRepository { return r.orders }
func (r *Registry) Addresses() repositories.AddressRepository { return r.addresses }
func (r *Registry) Carts() repositories.CustomerListRepository { return r.carts }
func (r *Registry) Wishlists() repositories.CustomerListRepository { return r.wishlists }
func (r *Registry) Books() repositories.BookRepository { return r.books }
func (r *Registry) Counters() repositories.CounterRepository { return r.counters }
func (r *Registry) Health() repositories.HealthRepository { return r.health }

// Close releases the shared Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}
