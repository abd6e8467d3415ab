package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/readify/api/internal/domain"
	pfirestore "github.com/readify/api/internal/platform/firestore"
	"github.com/readify/api/internal/repositories"
)

// CustomerListRepository stores a cart or wishlist as one document per customer, keyed by the
// customer id, inside the collection named after the list kind.
type CustomerListRepository struct {
	provider *pfirestore.Provider
	kind     domain.ListKind
	lists    *pfirestore.Collection[customerListDocument]
}

var _ repositories.CustomerListRepository = (*CustomerListRepository)(nil)

// NewCustomerListRepository constructs the repository for the given kind ("carts" or "wishlists").
func NewCustomerListRepository(provider *pfirestore.Provider, kind domain.ListKind) (*CustomerListRepository, error) {
	if provider == nil {
		return nil, errors.New("customer list repository requires firestore provider")
	}
	var collection string
	switch kind {
	case domain.ListKindCart:
		collection = "carts"
	case domain.ListKindWishlist:
		collection = "wishlists"
	default:
		return nil, fmt.Errorf("customer list repository: unknown list kind %q", kind)
	}
	return &CustomerListRepository{
		provider: provider,
		kind:     kind,
		lists:    pfirestore.NewCollection[customerListDocument](provider, collection),
	}, nil
}

// Get returns the customer's list; a customer without a document gets an empty list.
func (r *CustomerListRepository) Get(ctx context.Context, customerID string) (domain.CustomerList, error) {
	id := strings.TrimSpace(customerID)
	if id == "" {
		return domain.CustomerList{}, errors.New("customer list repository: customer id is required")
	}
	doc, err := r.lists.Get(ctx, id)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return r.empty(id), nil
		}
		return domain.CustomerList{}, err
	}
	return doc.Data.toDomain(r.kind, id), nil
}

// Mutate reads the list, applies fn and writes the result in a single transaction. Concurrent
// mutations of the same customer serialise through Firestore's optimistic transaction retries, so
// uniqueness checks in fn always see the latest committed items. An error from fn is returned
// unchanged and nothing is written.
func (r *CustomerListRepository) Mutate(ctx context.Context, customerID string, fn repositories.CustomerListMutation) (domain.CustomerList, error) {
	id := strings.TrimSpace(customerID)
	if id == "" {
		return domain.CustomerList{}, errors.New("customer list repository: customer id is required")
	}
	if fn == nil {
		return domain.CustomerList{}, errors.New("customer list repository: mutation is required")
	}

	var (
		result      domain.CustomerList
		mutationErr error
	)
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		mutationErr = nil
		ref, err := r.lists.Doc(ctx, id)
		if err != nil {
			return err
		}

		list := r.empty(id)
		snap, err := tx.Get(ref)
		switch status.Code(err) {
		case codes.OK:
			doc, err := pfirestore.Decode[customerListDocument](snap)
			if err != nil {
				return err
			}
			list = doc.Data.toDomain(r.kind, id)
		case codes.NotFound:
			// created lazily on first write
		default:
			return err
		}

		if err := fn(&list); err != nil {
			mutationErr = err
			return err
		}
		result = list
		return tx.Set(ref, encodeCustomerList(list))
	})
	if mutationErr != nil {
		return domain.CustomerList{}, mutationErr
	}
	if err != nil {
		return domain.CustomerList{}, pfirestore.WrapError(r.lists.Path()+".mutate", err)
	}
	return result, nil
}

func (r *CustomerListRepository) empty(customerID string) domain.CustomerList {
	return domain.CustomerList{Kind: r.kind, CustomerID: customerID, Items: []domain.CustomerListItem{}}
}

type customerListDocument struct {
	Items     []customerListItemDocument `firestore:"items"`
	CreatedAt time.Time                  `firestore:"createdAt"`
	UpdatedAt time.Time                  `firestore:"updatedAt"`
}

type customerListItemDocument struct {
	BookID   string    `firestore:"bookId"`
	Quantity int       `firestore:"quantity,omitempty"`
	AddedAt  time.Time `firestore:"addedAt"`
}

func encodeCustomerList(list domain.CustomerList) customerListDocument {
	items := make([]customerListItemDocument, 0, len(list.Items))
	for _, item := range list.Items {
		items = append(items, customerListItemDocument{
			BookID:   item.BookID,
			Quantity: item.Quantity,
			AddedAt:  item.AddedAt.UTC(),
		})
	}
	return customerListDocument{
		Items:     items,
		CreatedAt: list.CreatedAt.UTC(),
		UpdatedAt: list.UpdatedAt.UTC(),
	}
}

func (d customerListDocument) toDomain(kind domain.ListKind, customerID string) domain.CustomerList {
	items := make([]domain.CustomerListItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, domain.CustomerListItem{
			BookID:   item.BookID,
			Quantity: item.Quantity,
			AddedAt:  item.AddedAt,
		})
	}
	return domain.CustomerList{
		Kind:       kind,
		CustomerID: customerID,
		Items:      items,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}
