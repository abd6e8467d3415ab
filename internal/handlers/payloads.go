package handlers

import (
	"math"
	"slices"

	domain "github.com/readify/api/internal/domain"
	"github.com/readify/api/internal/services"
)

type addressPayload struct {
	ID           string `json:"id"`
	FullName     string `json:"fullName"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	PinCode      string `json:"pinCode,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
}

type shippingAddressPayload struct {
	FullName        string `json:"fullName"`
	Phone           string `json:"phone"`
	AddressLine1    string `json:"addressLine1"`
	AddressLine2    string `json:"addressLine2,omitempty"`
	City            string `json:"city"`
	State           string `json:"state"`
	PinCode         string `json:"pinCode"`
	SourceAddressID string `json:"sourceAddressId,omitempty"`
}

type orderItemPayload struct {
	ID           string  `json:"id"`
	BookID       string  `json:"bookId"`
	SellerID     string  `json:"sellerId"`
	Quantity     int     `json:"quantity"`
	UnitPrice    float64 `json:"unitPrice"`
	Amount       float64 `json:"amount"`
	Status       string  `json:"status"`
	OrderedAt    string  `json:"orderedAt"`
	DispatchedAt *string `json:"dispatchedAt,omitempty"`
	DeliveredAt  *string `json:"deliveredAt,omitempty"`
	CancelledAt  *string `json:"cancelledAt,omitempty"`
}

type orderPayload struct {
	ID            string                 `json:"id"`
	OrderNumber   string                 `json:"orderNumber"`
	CustomerID    string                 `json:"customerId"`
	Status        string                 `json:"status"`
	PaymentMethod string                 `json:"paymentMethod"`
	PaymentStatus string                 `json:"paymentStatus"`
	TotalQuantity int                    `json:"totalQuantity"`
	TotalAmount   float64                `json:"totalAmount"`
	Address       shippingAddressPayload `json:"address"`
	Items         []orderItemPayload     `json:"items"`
	CreatedAt     string                 `json:"createdAt"`
	UpdatedAt     string                 `json:"updatedAt"`
	CancelledAt   *string                `json:"cancelledAt,omitempty"`
}

type customerOrderItemPayload struct {
	OrderID       string                 `json:"orderId"`
	OrderNumber   string                 `json:"orderNumber"`
	OrderStatus   string                 `json:"orderStatus"`
	PaymentMethod string                 `json:"paymentMethod"`
	PaymentStatus string                 `json:"paymentStatus"`
	Address       shippingAddressPayload `json:"address"`
	Item          orderItemPayload       `json:"item"`
	Book          *bookSummaryPayload    `json:"book,omitempty"`
	CreatedAt     string                 `json:"createdAt"`
}

type sellerStatsPayload struct {
	SellerID       string         `json:"sellerId"`
	Orders         int            `json:"orders"`
	Items          int            `json:"items"`
	Units          int            `json:"units"`
	ItemsByStatus  map[string]int `json:"itemsByStatus"`
	Revenue        float64        `json:"revenue"`
	PendingRevenue float64        `json:"pendingRevenue"`
}

type bookSummaryPayload struct {
	ID          string   `json:"id"`
	SellerID    string   `json:"sellerId,omitempty"`
	Title       string   `json:"title"`
	Author      string   `json:"author,omitempty"`
	Genre       string   `json:"genre,omitempty"`
	Language    string   `json:"language,omitempty"`
	Category    string   `json:"category,omitempty"`
	Description string   `json:"description,omitempty"`
	Excerpt     string   `json:"excerpt,omitempty"`
	PageCount   int      `json:"pageCount,omitempty"`
	Price       float64  `json:"price"`
	Images      []string `json:"images"`
	PublishedAt *string  `json:"publishedAt,omitempty"`
}

type listItemPayload struct {
	BookID   string              `json:"bookId"`
	Quantity int                 `json:"quantity,omitempty"`
	AddedAt  string              `json:"addedAt"`
	Book     *bookSummaryPayload `json:"book,omitempty"`
}

type listPayload struct {
	Kind      string            `json:"kind"`
	Items     []listItemPayload `json:"items"`
	UpdatedAt string            `json:"updatedAt,omitempty"`
}

func buildAddressPayload(addr services.Address) addressPayload {
	return addressPayload{
		ID:           addr.ID,
		FullName:     addr.FullName,
		Phone:        addr.Phone,
		AddressLine1: addr.AddressLine1,
		AddressLine2: addr.AddressLine2,
		City:         addr.City,
		State:        addr.State,
		PinCode:      addr.PinCode,
		CreatedAt:    formatTime(addr.CreatedAt),
		UpdatedAt:    formatTime(addr.UpdatedAt),
	}
}

func buildShippingAddressPayload(addr services.ShippingAddress) shippingAddressPayload {
	return shippingAddressPayload{
		FullName:        addr.FullName,
		Phone:           addr.Phone,
		AddressLine1:    addr.AddressLine1,
		AddressLine2:    addr.AddressLine2,
		City:            addr.City,
		State:           addr.State,
		PinCode:         addr.PinCode,
		SourceAddressID: addr.SourceAddressID,
	}
}

func buildOrderItemPayload(item services.OrderItem) orderItemPayload {
	return orderItemPayload{
		ID:           item.ID,
		BookID:       item.BookID,
		SellerID:     item.SellerID,
		Quantity:     item.Quantity,
		UnitPrice:    rupees(item.UnitPrice),
		Amount:       rupees(item.Amount()),
		Status:       string(item.Status),
		OrderedAt:    formatTime(item.OrderedAt),
		DispatchedAt: formatTimePtr(item.DispatchedAt),
		DeliveredAt:  formatTimePtr(item.DeliveredAt),
		CancelledAt:  formatTimePtr(item.CancelledAt),
	}
}

func buildOrderPayload(order services.Order) orderPayload {
	items := make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, buildOrderItemPayload(item))
	}
	return orderPayload{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerID:    order.CustomerID,
		Status:        string(order.Status),
		PaymentMethod: string(order.PaymentMethod),
		PaymentStatus: string(order.PaymentStatus),
		TotalQuantity: order.TotalQuantity,
		TotalAmount:   rupees(order.TotalAmount),
		Address:       buildShippingAddressPayload(order.Address),
		Items:         items,
		CreatedAt:     formatTime(order.CreatedAt),
		UpdatedAt:     formatTime(order.UpdatedAt),
		CancelledAt:   formatTimePtr(order.CancelledAt),
	}
}

func buildCustomerOrderItemPayload(row services.CustomerOrderItem) customerOrderItemPayload {
	return customerOrderItemPayload{
		OrderID:       row.OrderID,
		OrderNumber:   row.OrderNumber,
		OrderStatus:   string(row.OrderStatus),
		PaymentMethod: string(row.PaymentMethod),
		PaymentStatus: string(row.PaymentStatus),
		Address:       buildShippingAddressPayload(row.Address),
		Item:          buildOrderItemPayload(row.Item),
		Book:          buildBookSummaryPayload(row.Book),
		CreatedAt:     formatTime(row.CreatedAt),
	}
}

func buildSellerStatsPayload(stats services.SellerStats) sellerStatsPayload {
	byStatus := make(map[string]int, len(stats.ItemsByStatus))
	for status, count := range stats.ItemsByStatus {
		byStatus[string(status)] = count
	}
	return sellerStatsPayload{
		SellerID:       stats.SellerID,
		Orders:         stats.Orders,
		Items:          stats.Items,
		Units:          stats.Units,
		ItemsByStatus:  byStatus,
		Revenue:        rupees(stats.Revenue),
		PendingRevenue: rupees(stats.PendingRevenue),
	}
}

func buildBookSummaryPayload(book *services.BookSummary) *bookSummaryPayload {
	if book == nil {
		return nil
	}
	images := slices.Clone(book.Images)
	if images == nil {
		images = []string{}
	}
	return &bookSummaryPayload{
		ID:          book.ID,
		SellerID:    book.SellerID,
		Title:       book.Title,
		Author:      book.Author,
		Genre:       book.Genre,
		Language:    book.Language,
		Category:    book.Category,
		Description: book.Description,
		Excerpt:     book.Excerpt,
		PageCount:   book.PageCount,
		Price:       rupees(book.Price),
		Images:      images,
		PublishedAt: formatTimePtr(book.PublishedAt),
	}
}

func buildListPayload(list services.CustomerList) listPayload {
	items := make([]listItemPayload, 0, len(list.Items))
	for _, item := range list.Items {
		items = append(items, buildListItemPayload(domain.CustomerListEntry{Item: item}))
	}
	return listPayload{
		Kind:      string(list.Kind),
		Items:     items,
		UpdatedAt: formatTime(list.UpdatedAt),
	}
}

func buildListItemPayload(entry services.CustomerListEntry) listItemPayload {
	return listItemPayload{
		BookID:   entry.Item.BookID,
		Quantity: entry.Item.Quantity,
		AddedAt:  formatTime(entry.Item.AddedAt),
		Book:     buildBookSummaryPayload(entry.Book),
	}
}

const paisePerRupee = 100

// paise converts a rupee amount from a request body to the stored minor unit.
func paise(amount float64) int64 {
	return int64(math.Round(amount * paisePerRupee))
}

func paisePtr(amount *float64) *int64 {
	if amount == nil {
		return nil
	}
	v := paise(*amount)
	return &v
}

// rupees renders a stored minor unit amount for JSON responses.
func rupees(amount int64) float64 {
	return float64(amount) / paisePerRupee
}
