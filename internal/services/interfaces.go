package services

import (
	"context"
	"time"

	domain "github.com/readify/api/internal/domain"
	"github.com/readify/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Actor              = domain.Actor
	PageRequest        = domain.PageRequest
	Order              = domain.Order
	OrderItem          = domain.OrderItem
	ShippingAddress    = domain.ShippingAddress
	CustomerOrderItem  = domain.CustomerOrderItem
	SellerStats        = domain.SellerStats
	Address            = domain.Address
	AddressPatch       = domain.AddressPatch
	CustomerList       = domain.CustomerList
	CustomerListEntry  = domain.CustomerListEntry
	BookSummary        = domain.BookSummary
	SystemHealthReport = domain.SystemHealthReport
)

// OrderService owns the order lifecycle: creation, per-item transitions and the customer and
// seller views over orders.
type OrderService interface {
	Create(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	TransitionItem(ctx context.Context, cmd TransitionItemCommand) (Order, error)
	Get(ctx context.Context, actor Actor, orderID string) (Order, error)
	ListForCustomer(ctx context.Context, actor Actor, page PageRequest) (domain.Page[CustomerOrderItem], error)
	ListForSeller(ctx context.Context, actor Actor) ([]Order, error)
	SellerOrderDetail(ctx context.Context, actor Actor, orderID string) (Order, error)
	SellerStats(ctx context.Context, actor Actor) (SellerStats, error)
}

// AddressService manages a customer's saved shipping addresses.
type AddressService interface {
	List(ctx context.Context, actor Actor) ([]Address, error)
	Add(ctx context.Context, actor Actor, addr ShippingAddress) (Address, error)
	Update(ctx context.Context, actor Actor, addressID string, patch AddressPatch) (Address, error)
	Delete(ctx context.Context, actor Actor, addressID string) error
}

// ListService manages one kind of per-customer book list (cart or wishlist).
type ListService interface {
	Kind() domain.ListKind
	List(ctx context.Context, actor Actor, page PageRequest) (domain.Page[CustomerListEntry], error)
	Add(ctx context.Context, actor Actor, bookID string) (CustomerList, error)
	Remove(ctx context.Context, actor Actor, bookID string) (CustomerList, error)
	// UpdateQuantity is only supported by lists that track quantity.
	UpdateQuantity(ctx context.Context, actor Actor, bookID string, quantity int) (CustomerList, error)
	Clear(ctx context.Context, actor Actor) (CustomerList, error)
}

// CatalogService builds the book summaries joined into order and list responses.
type CatalogService interface {
	// Summaries returns summaries keyed by book id. Missing or deleted books are omitted.
	Summaries(ctx context.Context, bookIDs []string) (map[string]BookSummary, error)
}

// SystemService exposes operational health reports.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// CoverURLResolver turns a stored book image reference into a loadable URL.
type CoverURLResolver interface {
	CoverURL(ctx context.Context, image string) (string, error)
}

// OrderEventPublisher publishes order domain events for downstream consumers such as the
// notification mailer.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        string
	OrderNumber    string
	CustomerID     string
	ItemID         string
	SellerIDs      []string
	Action         string
	PreviousStatus string
	CurrentStatus  string
	ActorID        string
	ActorRole      string
	OccurredAt     time.Time
	Metadata       map[string]any
}

// OrderItemInput is one requested line of a new order. A nil UnitPrice takes the catalog price.
type OrderItemInput struct {
	BookID    string
	Quantity  int
	UnitPrice *int64
}

// CreateOrderCommand places an order. Exactly one of Address and AddressID must be set.
type CreateOrderCommand struct {
	Actor         Actor
	Items         []OrderItemInput
	Address       *ShippingAddress
	AddressID     string
	PaymentMethod domain.PaymentMethod
}

// TransitionItemCommand applies an action to one item of an order.
type TransitionItemCommand struct {
	Actor   Actor
	OrderID string
	ItemID  string
	Action  domain.ItemAction
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

var _ repositories.UnitOfWork = noopUnitOfWork{}

func noopLogger(context.Context, string, map[string]any) {}
