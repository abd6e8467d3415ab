package domain

import (
	"math"
	"time"
)

// Role identifies the kind of principal acting on the API.
type Role string

const (
	// RoleCustomer buys books and owns carts, wishlists, addresses and orders.
	RoleCustomer Role = "customer"
	// RoleSeller lists books and fulfils the order items referencing them.
	RoleSeller Role = "seller"
	// RoleAdmin operates the marketplace.
	RoleAdmin Role = "admin"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleSeller, RoleAdmin:
		return true
	default:
		return false
	}
}

// Actor is the authenticated principal performing an operation.
type Actor struct {
	ID   string
	Role Role
}

// PageRequest carries one-based page/limit paging inputs.
type PageRequest struct {
	Page  int
	Limit int
}

// Offset returns the zero-based index of the first row on the page. Pages too far out to address
// saturate at math.MaxInt.
func (p PageRequest) Offset() int {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit
}

// Page packages a slice of results with the totals needed to render pagination.
type Page[T any] struct {
	Items      []T
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

// Paginate slices rows according to the request and fills the page metadata.
func Paginate[T any](rows []T, req PageRequest) Page[T] {
	total := len(rows)
	page := Page[T]{Total: total, Page: req.Page, Limit: req.Limit}
	if req.Limit > 0 {
		page.TotalPages = total / req.Limit
		if total%req.Limit != 0 {
			page.TotalPages++
		}
	}
	start := req.Offset()
	if start >= total {
		page.Items = []T{}
		return page
	}
	end := total
	if req.Limit > 0 && start+req.Limit < total {
		end = start + req.Limit
	}
	page.Items = append([]T(nil), rows[start:end]...)
	return page
}

// Book is the catalog entry referenced by order items, carts and wishlists.
type Book struct {
	ID          string
	SellerID    string
	Title       string
	Author      string
	Genre       string
	Language    string
	Category    string
	Description string
	Excerpt     string
	PageCount   int
	// Price is in paise.
	Price       int64
	Images      []string
	PublishedAt *time.Time
	Deleted     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BookSummary is the trimmed book view joined into list responses.
type BookSummary struct {
	ID          string
	SellerID    string
	Title       string
	Author      string
	Genre       string
	Language    string
	Category    string
	Description string
	Excerpt     string
	PageCount   int
	Price       int64
	Images      []string
	PublishedAt *time.Time
}

// PaymentMethod enumerates the accepted ways to pay for an order.
type PaymentMethod string

const (
	PaymentMethodUPI        PaymentMethod = "upi"
	PaymentMethodCard       PaymentMethod = "card"
	PaymentMethodNetBanking PaymentMethod = "netbanking"
	PaymentMethodCOD        PaymentMethod = "cod"
)

// Valid reports whether the payment method is supported.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodUPI, PaymentMethodCard, PaymentMethodNetBanking, PaymentMethodCOD:
		return true
	default:
		return false
	}
}

// PaymentStatus records whether an order has been paid for.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// ShippingAddress is the address payload embedded into orders as a snapshot.
type ShippingAddress struct {
	FullName        string
	Phone           string
	AddressLine1    string
	AddressLine2    string
	City            string
	State           string
	PinCode         string
	SourceAddressID string
}

// Address is a saved address in a customer's address book.
type Address struct {
	ID           string
	CustomerID   string
	FullName     string
	Phone        string
	AddressLine1 string
	AddressLine2 string
	City         string
	State        string
	PinCode      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Snapshot copies the address into an order-embeddable value.
func (a Address) Snapshot() ShippingAddress {
	return ShippingAddress{
		FullName:        a.FullName,
		Phone:           a.Phone,
		AddressLine1:    a.AddressLine1,
		AddressLine2:    a.AddressLine2,
		City:            a.City,
		State:           a.State,
		PinCode:         a.PinCode,
		SourceAddressID: a.ID,
	}
}

// AddressPatch lists the fields an address update may change. Nil fields are left untouched.
type AddressPatch struct {
	FullName     *string
	Phone        *string
	AddressLine1 *string
	AddressLine2 *string
	City         *string
	State        *string
	PinCode      *string
}

// Empty reports whether the patch changes nothing.
func (p AddressPatch) Empty() bool {
	return p.FullName == nil && p.Phone == nil && p.AddressLine1 == nil && p.AddressLine2 == nil &&
		p.City == nil && p.State == nil && p.PinCode == nil
}

// Apply merges the patch into a copy of the address.
func (p AddressPatch) Apply(addr Address) Address {
	if p.FullName != nil {
		addr.FullName = *p.FullName
	}
	if p.Phone != nil {
		addr.Phone = *p.Phone
	}
	if p.AddressLine1 != nil {
		addr.AddressLine1 = *p.AddressLine1
	}
	if p.AddressLine2 != nil {
		addr.AddressLine2 = *p.AddressLine2
	}
	if p.City != nil {
		addr.City = *p.City
	}
	if p.State != nil {
		addr.State = *p.State
	}
	if p.PinCode != nil {
		addr.PinCode = *p.PinCode
	}
	return addr
}

// OrderItem is one book line inside an order with its own fulfilment lifecycle.
type OrderItem struct {
	ID           string
	BookID       string
	SellerID     string
	Quantity     int
	UnitPrice    int64
	Status       ItemStatus
	OrderedAt    time.Time
	DispatchedAt *time.Time
	DeliveredAt  *time.Time
	CancelledAt  *time.Time
}

// Amount returns quantity × unit price in paise.
func (i OrderItem) Amount() int64 {
	return int64(i.Quantity) * i.UnitPrice
}

// Order is a customer's purchase record.
type Order struct {
	ID            string
	OrderNumber   string
	CustomerID    string
	Items         []OrderItem
	Address       ShippingAddress
	PaymentMethod PaymentMethod
	PaymentStatus PaymentStatus
	TotalQuantity int
	TotalAmount   int64
	Status        OrderStatus
	SellerIDs     []string
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CancelledAt   *time.Time
}

// ItemIndex returns the position of the item with the given id or -1.
func (o Order) ItemIndex(itemID string) int {
	for i, item := range o.Items {
		if item.ID == itemID {
			return i
		}
	}
	return -1
}

// ItemStatuses returns the status of every item in order.
func (o Order) ItemStatuses() []ItemStatus {
	statuses := make([]ItemStatus, len(o.Items))
	for i, item := range o.Items {
		statuses[i] = item.Status
	}
	return statuses
}

// ForSeller returns a copy of the order restricted to the seller's items. The boolean is false when
// no item belongs to the seller.
func (o Order) ForSeller(sellerID string) (Order, bool) {
	items := make([]OrderItem, 0, len(o.Items))
	for _, item := range o.Items {
		if item.SellerID == sellerID {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return Order{}, false
	}
	filtered := o
	filtered.Items = items
	filtered.SellerIDs = []string{sellerID}
	return filtered, true
}

// CustomerOrderItem is a flattened order item row for the customer's purchase history.
type CustomerOrderItem struct {
	OrderID       string
	OrderNumber   string
	OrderStatus   OrderStatus
	PaymentMethod PaymentMethod
	PaymentStatus PaymentStatus
	Address       ShippingAddress
	Item          OrderItem
	Book          *BookSummary
	CreatedAt     time.Time
}

// SellerStats aggregates a seller's order items and revenue.
type SellerStats struct {
	SellerID       string
	Orders         int
	Items          int
	Units          int
	ItemsByStatus  map[ItemStatus]int
	Revenue        int64
	PendingRevenue int64
}

// ListKind distinguishes the two per-customer book collections.
type ListKind string

const (
	ListKindCart     ListKind = "cart"
	ListKindWishlist ListKind = "wishlist"
)

// TracksQuantity reports whether items of this list carry a quantity.
func (k ListKind) TracksQuantity() bool {
	return k == ListKindCart
}

// CustomerListItem is a single book entry inside a cart or wishlist.
type CustomerListItem struct {
	BookID   string
	Quantity int
	AddedAt  time.Time
}

// CustomerList is a customer's cart or wishlist. Items are unique by book id.
type CustomerList struct {
	Kind       ListKind
	CustomerID string
	Items      []CustomerListItem
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IndexOf returns the position of the book in the list or -1.
func (l CustomerList) IndexOf(bookID string) int {
	for i, item := range l.Items {
		if item.BookID == bookID {
			return i
		}
	}
	return -1
}

// CustomerListEntry is a list item joined with its book summary.
type CustomerListEntry struct {
	Item CustomerListItem
	Book *BookSummary
}

// SystemHealthStatus represents the aggregated health state of the system.
type SystemHealthStatus string

const (
	HealthStatusOK       SystemHealthStatus = "ok"
	HealthStatusDegraded SystemHealthStatus = "degraded"
	HealthStatusError    SystemHealthStatus = "error"
)

// SystemHealthCheck captures the outcome of a single dependency probe.
type SystemHealthCheck struct {
	Status    SystemHealthStatus
	Detail    string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport is the readiness report returned by /readyz.
type SystemHealthReport struct {
	Status      SystemHealthStatus
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}
