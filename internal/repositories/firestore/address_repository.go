package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/readify/api/internal/domain"
	pfirestore "github.com/readify/api/internal/platform/firestore"
	"github.com/readify/api/internal/repositories"
)

const addressCollectionPattern = "users/%s/addresses"

// AddressRepository persists customer addresses in a per-user subcollection.
type AddressRepository struct {
	provider *pfirestore.Provider
}

var _ repositories.AddressRepository = (*AddressRepository)(nil)

// NewAddressRepository constructs a Firestore-backed address repository.
func NewAddressRepository(provider *pfirestore.Provider) (*AddressRepository, error) {
	if provider == nil {
		return nil, errors.New("address repository requires firestore provider")
	}
	return &AddressRepository{provider: provider}, nil
}

// List returns the customer's addresses, newest first.
func (r *AddressRepository) List(ctx context.Context, customerID string) ([]domain.Address, error) {
	coll, err := r.collection(customerID)
	if err != nil {
		return nil, err
	}
	docs, err := coll.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Address, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Data.toDomain(doc.ID, customerID))
	}
	return out, nil
}

// Get loads one address of the customer.
func (r *AddressRepository) Get(ctx context.Context, customerID string, addressID string) (domain.Address, error) {
	coll, err := r.collection(customerID)
	if err != nil {
		return domain.Address{}, err
	}
	doc, err := coll.Get(ctx, strings.TrimSpace(addressID))
	if err != nil {
		return domain.Address{}, err
	}
	return doc.Data.toDomain(doc.ID, customerID), nil
}

// Create counts the customer's addresses and stores the new one in the same transaction, so
// concurrent adds cannot push the customer past limit.
func (r *AddressRepository) Create(ctx context.Context, addr domain.Address, limit int) (domain.Address, error) {
	coll, err := r.collection(addr.CustomerID)
	if err != nil {
		return domain.Address{}, err
	}
	if strings.TrimSpace(addr.ID) == "" {
		return domain.Address{}, errors.New("address repository: address id is required")
	}

	var limitErr error
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		limitErr = nil
		if limit > 0 {
			existing, err := coll.QueryTx(ctx, tx, func(q firestore.Query) firestore.Query {
				return q.Select().Limit(limit)
			})
			if err != nil {
				return err
			}
			if len(existing) >= limit {
				limitErr = repositories.ErrAddressLimitReached
				return limitErr
			}
		}
		ref, err := coll.Doc(ctx, addr.ID)
		if err != nil {
			return err
		}
		return tx.Create(ref, encodeAddress(addr))
	})
	if limitErr != nil {
		return domain.Address{}, limitErr
	}
	if err != nil {
		return domain.Address{}, pfirestore.WrapError("addresses.create", err)
	}
	return addr, nil
}

// Update overwrites an existing address. A missing address is reported as not found.
func (r *AddressRepository) Update(ctx context.Context, addr domain.Address) (domain.Address, error) {
	coll, err := r.collection(addr.CustomerID)
	if err != nil {
		return domain.Address{}, err
	}
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := coll.Doc(ctx, addr.ID)
		if err != nil {
			return err
		}
		if _, err := tx.Get(ref); err != nil {
			return err
		}
		return tx.Set(ref, encodeAddress(addr))
	})
	if err != nil {
		return domain.Address{}, pfirestore.WrapError("addresses.update", err)
	}
	return addr, nil
}

// Delete removes the address, failing with not found when it does not exist.
func (r *AddressRepository) Delete(ctx context.Context, customerID string, addressID string) error {
	coll, err := r.collection(customerID)
	if err != nil {
		return err
	}
	id := strings.TrimSpace(addressID)
	if id == "" {
		return pfirestore.NotFound("addresses.delete", "address id is required")
	}
	return coll.Delete(ctx, id, firestore.Exists)
}

func (r *AddressRepository) collection(customerID string) (*pfirestore.Collection[addressDocument], error) {
	id := strings.TrimSpace(customerID)
	if id == "" {
		return nil, errors.New("address repository: customer id is required")
	}
	return pfirestore.NewCollection[addressDocument](r.provider, fmt.Sprintf(addressCollectionPattern, id)), nil
}

type addressDocument struct {
	FullName     string    `firestore:"fullName"`
	Phone        string    `firestore:"phone"`
	AddressLine1 string    `firestore:"addressLine1"`
	AddressLine2 string    `firestore:"addressLine2,omitempty"`
	City         string    `firestore:"city"`
	State        string    `firestore:"state"`
	PinCode      string    `firestore:"pinCode"`
	CreatedAt    time.Time `firestore:"createdAt"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

func encodeAddress(addr domain.Address) addressDocument {
	return addressDocument{
		FullName:     addr.FullName,
		Phone:        addr.Phone,
		AddressLine1: addr.AddressLine1,
		AddressLine2: addr.AddressLine2,
		City:         addr.City,
		State:        addr.State,
		PinCode:      addr.PinCode,
		CreatedAt:    addr.CreatedAt.UTC(),
		UpdatedAt:    addr.UpdatedAt.UTC(),
	}
}

func (d addressDocument) toDomain(id, customerID string) domain.Address {
	return domain.Address{
		ID:           id,
		CustomerID:   customerID,
		FullName:     d.FullName,
		Phone:        d.Phone,
		AddressLine1: d.AddressLine1,
		AddressLine2: d.AddressLine2,
		City:         d.City,
		State:        d.State,
		PinCode:      d.PinCode,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}
