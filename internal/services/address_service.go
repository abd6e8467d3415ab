package services

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/readify/api/internal/domain"
	"github.com/readify/api/internal/platform/textutil"
	"github.com/readify/api/internal/repositories"
)

const (
	addressIDPrefix = "adr_"
	// MaxAddressesPerCustomer bounds the address book size.
	MaxAddressesPerCustomer = 3
)

// AddressServiceDeps bundles collaborators required to construct the address service.
type AddressServiceDeps struct {
	Addresses   repositories.AddressRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type addressService struct {
	addresses repositories.AddressRepository
	clock     func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
}

var _ AddressService = (*addressService)(nil)

// NewAddressService constructs an AddressService.
func NewAddressService(deps AddressServiceDeps) (AddressService, error) {
	if deps.Addresses == nil {
		return nil, errors.New("address service: address repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	return &addressService{
		addresses: deps.Addresses,
		clock:     func() time.Time { return clock().UTC() },
		newID:     idGen,
		logger:    logger,
	}, nil
}

func (s *addressService) List(ctx context.Context, actor Actor) ([]Address, error) {
	if err := s.authorize(actor); err != nil {
		return nil, err
	}
	addresses, err := s.addresses.List(ctx, actor.ID)
	if err != nil {
		return nil, mapRepositoryError("address", err)
	}
	sortAddressesNewestFirst(addresses)
	if addresses == nil {
		addresses = []Address{}
	}
	return addresses, nil
}

func (s *addressService) Add(ctx context.Context, actor Actor, input ShippingAddress) (Address, error) {
	if err := s.authorize(actor); err != nil {
		return Address{}, err
	}
	cleaned := cleanShippingAddress(input)
	if err := validateSavedAddress(cleaned); err != nil {
		return Address{}, err
	}

	now := s.clock()
	addr := Address{
		ID:           addressIDPrefix + s.newID(),
		CustomerID:   actor.ID,
		FullName:     cleaned.FullName,
		Phone:        cleaned.Phone,
		AddressLine1: cleaned.AddressLine1,
		AddressLine2: cleaned.AddressLine2,
		City:         cleaned.City,
		State:        cleaned.State,
		PinCode:      cleaned.PinCode,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	created, err := s.addresses.Create(ctx, addr, MaxAddressesPerCustomer)
	if errors.Is(err, repositories.ErrAddressLimitReached) {
		return Address{}, &Error{
			Kind:    KindLimitExceeded,
			Message: "you can save at most 3 addresses",
			Err:     err,
		}
	}
	if err != nil {
		return Address{}, mapRepositoryError("address", err)
	}
	s.logger(ctx, "address.created", map[string]any{"customerId": actor.ID, "addressId": created.ID})
	return created, nil
}

func (s *addressService) Update(ctx context.Context, actor Actor, addressID string, patch AddressPatch) (Address, error) {
	if err := s.authorize(actor); err != nil {
		return Address{}, err
	}
	addressID = strings.TrimSpace(addressID)
	if addressID == "" {
		return Address{}, validationError("address id is required")
	}
	if patch.Empty() {
		return Address{}, validationError("no address fields to update")
	}
	patch = cleanAddressPatch(patch)

	current, err := s.addresses.Get(ctx, actor.ID, addressID)
	if err != nil {
		return Address{}, mapRepositoryError("address", err)
	}
	merged := patch.Apply(current)
	if err := validateSavedAddress(merged.Snapshot()); err != nil {
		return Address{}, err
	}
	merged.ID = current.ID
	merged.CustomerID = actor.ID
	merged.CreatedAt = current.CreatedAt
	merged.UpdatedAt = s.clock()

	updated, err := s.addresses.Update(ctx, merged)
	if err != nil {
		return Address{}, mapRepositoryError("address", err)
	}
	return updated, nil
}

func (s *addressService) Delete(ctx context.Context, actor Actor, addressID string) error {
	if err := s.authorize(actor); err != nil {
		return err
	}
	addressID = strings.TrimSpace(addressID)
	if addressID == "" {
		return validationError("address id is required")
	}
	if err := s.addresses.Delete(ctx, actor.ID, addressID); err != nil {
		return mapRepositoryError("address", err)
	}
	s.logger(ctx, "address.deleted", map[string]any{"customerId": actor.ID, "addressId": addressID})
	return nil
}

func (s *addressService) authorize(actor Actor) error {
	if actor.Role != domain.RoleCustomer || !CanPerform(actor, ActionAddressManage, Resource{OwnerID: actor.ID}) {
		return authorizationError("only customers can manage addresses")
	}
	return nil
}

// validateSavedAddress enforces the fields an address book entry needs. Orders require more.
func validateSavedAddress(addr ShippingAddress) error {
	switch {
	case addr.FullName == "":
		return validationError("fullName is required")
	case addr.Phone == "":
		return validationError("phone is required")
	case addr.AddressLine1 == "":
		return validationError("addressLine1 is required")
	}
	return nil
}

func cleanAddressPatch(patch AddressPatch) AddressPatch {
	return AddressPatch{
		FullName:     textutil.CleanPointer(patch.FullName),
		Phone:        textutil.CleanPointer(patch.Phone),
		AddressLine1: textutil.CleanPointer(patch.AddressLine1),
		AddressLine2: textutil.CleanPointer(patch.AddressLine2),
		City:         textutil.CleanPointer(patch.City),
		State:        textutil.CleanPointer(patch.State),
		PinCode:      textutil.CleanPointer(patch.PinCode),
	}
}

func sortAddressesNewestFirst(addresses []Address) {
	slices.SortStableFunc(addresses, func(a, b Address) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
