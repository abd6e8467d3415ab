package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/readify/api/internal/domain"
	pfirestore "github.com/readify/api/internal/platform/firestore"
	"github.com/readify/api/internal/repositories"
)

const ordersCollection = "orders"

// OrderRepository persists orders in Firestore.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.Collection[orderDocument]
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewCollection[orderDocument](provider, ordersCollection),
	}, nil
}

// Insert stores a new order. An existing document with the same id is reported as a conflict.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order repository: order id is required")
	}
	ref, err := r.orders.Doc(ctx, order.ID)
	if err != nil {
		return err
	}
	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		if err := tx.Create(ref, encodeOrder(order)); err != nil {
			return pfirestore.WrapError("orders.insert", err)
		}
		return nil
	}
	if _, err := ref.Create(ctx, encodeOrder(order)); err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// Update replaces the order when the stored version equals expectedVersion.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order, expectedVersion int64) error {
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order repository: order id is required")
	}
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.orders.Doc(ctx, order.ID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		current, err := pfirestore.Decode[orderDocument](snap)
		if err != nil {
			return err
		}
		if current.Data.Version != expectedVersion {
			return pfirestore.Conflict("orders.update", "order %s is at version %d, expected %d", order.ID, current.Data.Version, expectedVersion)
		}
		return tx.Set(ref, encodeOrder(order))
	})
	if err != nil {
		return pfirestore.WrapError("orders.update", err)
	}
	return nil
}

// FindByID loads a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.orders.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// ListByCustomer returns the customer's orders, newest first.
func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	return r.list(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("customerId", "==", customerID).OrderBy("createdAt", firestore.Desc)
	})
}

// ListBySeller returns orders containing at least one item of the seller, newest first. The
// sellerIds index is written at creation time so no full scan is needed.
func (r *OrderRepository) ListBySeller(ctx context.Context, sellerID string) ([]domain.Order, error) {
	return r.list(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("sellerIds", "array-contains", sellerID).OrderBy("createdAt", firestore.Desc)
	})
}

func (r *OrderRepository) list(ctx context.Context, build pfirestore.QueryBuilder) ([]domain.Order, error) {
	docs, err := r.orders.Query(ctx, build)
	if err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, doc.Data.toDomain(doc.ID))
	}
	return orders, nil
}

type orderDocument struct {
	OrderNumber   string              `firestore:"orderNumber"`
	CustomerID    string              `firestore:"customerId"`
	Items         []orderItemDocument `firestore:"items"`
	Address       shippingDocument    `firestore:"address"`
	PaymentMethod string              `firestore:"paymentMethod"`
	PaymentStatus string              `firestore:"paymentStatus"`
	TotalQuantity int                 `firestore:"totalQuantity"`
	TotalAmount   int64               `firestore:"totalAmount"`
	Status        string              `firestore:"status"`
	SellerIDs     []string            `firestore:"sellerIds"`
	Version       int64               `firestore:"version"`
	CreatedAt     time.Time           `firestore:"createdAt"`
	UpdatedAt     time.Time           `firestore:"updatedAt"`
	CancelledAt   *time.Time          `firestore:"cancelledAt,omitempty"`
}

type orderItemDocument struct {
	ID           string     `firestore:"id"`
	BookID       string     `firestore:"bookId"`
	SellerID     string     `firestore:"sellerId"`
	Quantity     int        `firestore:"quantity"`
	UnitPrice    int64      `firestore:"unitPrice"`
	Status       string     `firestore:"status"`
	OrderedAt    time.Time  `firestore:"orderedAt"`
	DispatchedAt *time.Time `firestore:"dispatchedAt,omitempty"`
	DeliveredAt  *time.Time `firestore:"deliveredAt,omitempty"`
	CancelledAt  *time.Time `firestore:"cancelledAt,omitempty"`
}

type shippingDocument struct {
	FullName        string `firestore:"fullName"`
	Phone           string `firestore:"phone"`
	AddressLine1    string `firestore:"addressLine1"`
	AddressLine2    string `firestore:"addressLine2,omitempty"`
	City            string `firestore:"city"`
	State           string `firestore:"state"`
	PinCode         string `firestore:"pinCode"`
	SourceAddressID string `firestore:"sourceAddressId,omitempty"`
}

func encodeOrder(order domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument{
			ID:           item.ID,
			BookID:       item.BookID,
			SellerID:     item.SellerID,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			Status:       string(item.Status),
			OrderedAt:    item.OrderedAt.UTC(),
			DispatchedAt: utcPtr(item.DispatchedAt),
			DeliveredAt:  utcPtr(item.DeliveredAt),
			CancelledAt:  utcPtr(item.CancelledAt),
		})
	}
	a := order.Address
	return orderDocument{
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		Items:       items,
		Address: shippingDocument{
			FullName:        a.FullName,
			Phone:           a.Phone,
			AddressLine1:    a.AddressLine1,
			AddressLine2:    a.AddressLine2,
			City:            a.City,
			State:           a.State,
			PinCode:         a.PinCode,
			SourceAddressID: a.SourceAddressID,
		},
		PaymentMethod: string(order.PaymentMethod),
		PaymentStatus: string(order.PaymentStatus),
		TotalQuantity: order.TotalQuantity,
		TotalAmount:   order.TotalAmount,
		Status:        string(order.Status),
		SellerIDs:     append([]string(nil), order.SellerIDs...),
		Version:       order.Version,
		CreatedAt:     order.CreatedAt.UTC(),
		UpdatedAt:     order.UpdatedAt.UTC(),
		CancelledAt:   utcPtr(order.CancelledAt),
	}
}

func (d orderDocument) toDomain(id string) domain.Order {
	items := make([]domain.OrderItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, domain.OrderItem{
			ID:           item.ID,
			BookID:       item.BookID,
			SellerID:     item.SellerID,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			Status:       domain.ItemStatus(item.Status),
			OrderedAt:    item.OrderedAt,
			DispatchedAt: item.DispatchedAt,
			DeliveredAt:  item.DeliveredAt,
			CancelledAt:  item.CancelledAt,
		})
	}
	return domain.Order{
		ID:          id,
		OrderNumber: d.OrderNumber,
		CustomerID:  d.CustomerID,
		Items:       items,
		Address: domain.ShippingAddress{
			FullName:        d.Address.FullName,
			Phone:           d.Address.Phone,
			AddressLine1:    d.Address.AddressLine1,
			AddressLine2:    d.Address.AddressLine2,
			City:            d.Address.City,
			State:           d.Address.State,
			PinCode:         d.Address.PinCode,
			SourceAddressID: d.Address.SourceAddressID,
		},
		PaymentMethod: domain.PaymentMethod(d.PaymentMethod),
		PaymentStatus: domain.PaymentStatus(d.PaymentStatus),
		TotalQuantity: d.TotalQuantity,
		TotalAmount:   d.TotalAmount,
		Status:        domain.OrderStatus(d.Status),
		SellerIDs:     d.SellerIDs,
		Version:       d.Version,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
		CancelledAt:   d.CancelledAt,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
