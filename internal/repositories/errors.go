package repositories

import "errors"

// ErrAddressLimitReached is returned by AddressRepository.Create when the customer is at the limit.
var ErrAddressLimitReached = errors.New("repositories: address limit reached")
