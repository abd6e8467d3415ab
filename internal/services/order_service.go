package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	domain "github.com/readify/api/internal/domain"
	"github.com/readify/api/internal/platform/textutil"
	"github.com/readify/api/internal/repositories"
)

const (
	orderEventCreated           = "order.created"
	orderEventItemTransitioned  = "order.item.transitioned"
	orderIDPrefix               = "ord_"
	orderItemIDPrefix           = "itm_"
	orderNumberCounterPrefix    = "orders"
	maxTransitionAttempts       = 3
	serviceMetricNamespace      = "github.com/readify/api/internal/services"
	transitionResultOK          = "ok"
	transitionResultForbidden   = "forbidden"
	transitionResultInvalid     = "invalid"
	transitionResultConflict    = "conflict"
	transitionResultNotFound    = "not_found"
	transitionResultUnavailable = "error"
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Books       repositories.BookRepository
	Addresses   repositories.AddressRepository
	Counters    repositories.CounterRepository
	Catalog     CatalogService
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Events      OrderEventPublisher
	Meter       metric.Meter
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders      repositories.OrderRepository
	books       repositories.BookRepository
	addresses   repositories.AddressRepository
	counters    repositories.CounterRepository
	catalog     CatalogService
	unitOfWork  repositories.UnitOfWork
	clock       func() time.Time
	newID       func() string
	events      OrderEventPublisher
	transitions metric.Int64Counter
	logger      func(context.Context, string, map[string]any)
}

var _ OrderService = (*orderService)(nil)

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Books == nil {
		return nil, errors.New("order service: book repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}

	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(serviceMetricNamespace)
	}
	transitions, err := meter.Int64Counter(
		"orders.item.transitions",
		metric.WithDescription("Count of order item transition attempts by action and result"),
	)
	if err != nil {
		logger(context.Background(), "order.metric.register.failed", map[string]any{"error": err.Error()})
		transitions, _ = noop.NewMeterProvider().Meter(serviceMetricNamespace).Int64Counter("orders.item.transitions")
	}

	return &orderService{
		orders:     deps.Orders,
		books:      deps.Books,
		addresses:  deps.Addresses,
		counters:   deps.Counters,
		catalog:    deps.Catalog,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:       idGen,
		events:      deps.Events,
		transitions: transitions,
		logger:      logger,
	}, nil
}

func (s *orderService) Create(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	actor := cmd.Actor
	if actor.Role != domain.RoleCustomer || !CanPerform(actor, ActionOrderCreate, Resource{OwnerID: actor.ID}) {
		return Order{}, authorizationError("only customers can place orders")
	}

	if len(cmd.Items) == 0 {
		return Order{}, validationError("order must contain at least one item")
	}
	bookIDs := make([]string, 0, len(cmd.Items))
	for i, item := range cmd.Items {
		bookID := strings.TrimSpace(item.BookID)
		if bookID == "" {
			return Order{}, validationError("items[%d]: bookId is required", i)
		}
		if item.Quantity < 1 {
			return Order{}, validationError("items[%d]: quantity must be at least 1", i)
		}
		if item.UnitPrice != nil && *item.UnitPrice < 0 {
			return Order{}, validationError("items[%d]: unitPrice must not be negative", i)
		}
		bookIDs = append(bookIDs, bookID)
	}

	method := cmd.PaymentMethod
	if method == "" {
		method = domain.PaymentMethodCOD
	}
	if !method.Valid() {
		return Order{}, validationError("unsupported payment method %q", cmd.PaymentMethod)
	}

	address, err := s.resolveAddress(ctx, actor, cmd)
	if err != nil {
		return Order{}, err
	}

	books, err := s.books.GetMany(ctx, uniqueStrings(bookIDs))
	if err != nil {
		return Order{}, mapRepositoryError("book", err)
	}

	now := s.now()
	order := Order{
		ID:            s.nextOrderID(),
		CustomerID:    actor.ID,
		Items:         make([]OrderItem, 0, len(cmd.Items)),
		Address:       address,
		PaymentMethod: method,
		PaymentStatus: initialPaymentStatus(method),
		Status:        domain.OrderStatusOrdered,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for i, input := range cmd.Items {
		book, ok := books[bookIDs[i]]
		if !ok || book.Deleted {
			return Order{}, notFoundError("book %s not found", bookIDs[i])
		}
		price := book.Price
		if input.UnitPrice != nil {
			price = *input.UnitPrice
		}
		item := OrderItem{
			ID:        s.nextItemID(),
			BookID:    bookIDs[i],
			SellerID:  book.SellerID,
			Quantity:  input.Quantity,
			UnitPrice: price,
			Status:    domain.ItemStatusOrdered,
			OrderedAt: now,
		}
		order.Items = append(order.Items, item)
		order.TotalQuantity += item.Quantity
		order.TotalAmount += item.Amount()
		if item.SellerID != "" && !slices.Contains(order.SellerIDs, item.SellerID) {
			order.SellerIDs = append(order.SellerIDs, item.SellerID)
		}
	}

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		number, err := s.generateOrderNumber(txCtx, now)
		if err != nil {
			return mapRepositoryError("order counter", err)
		}
		order.OrderNumber = number
		if err := s.orders.Insert(txCtx, order); err != nil {
			return mapRepositoryError("order", err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.logger(ctx, "order.created", map[string]any{
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
		"customerId":  order.CustomerID,
		"items":       len(order.Items),
		"totalAmount": order.TotalAmount,
	})
	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerID:    order.CustomerID,
		SellerIDs:     slices.Clone(order.SellerIDs),
		CurrentStatus: string(order.Status),
		ActorID:       actor.ID,
		ActorRole:     string(actor.Role),
		OccurredAt:    now,
		Metadata: map[string]any{
			"totalAmount":   order.TotalAmount,
			"totalQuantity": order.TotalQuantity,
			"paymentMethod": string(order.PaymentMethod),
		},
	})
	return order, nil
}

func (s *orderService) resolveAddress(ctx context.Context, actor Actor, cmd CreateOrderCommand) (ShippingAddress, error) {
	addressID := strings.TrimSpace(cmd.AddressID)
	switch {
	case cmd.Address != nil && addressID != "":
		return ShippingAddress{}, validationError("provide either address or addressId, not both")
	case addressID != "":
		if s.addresses == nil {
			return ShippingAddress{}, validationError("saved addresses are not available")
		}
		saved, err := s.addresses.Get(ctx, actor.ID, addressID)
		if err != nil {
			return ShippingAddress{}, mapRepositoryError("address", err)
		}
		snapshot := saved.Snapshot()
		if err := validateOrderAddress(snapshot); err != nil {
			return ShippingAddress{}, err
		}
		return snapshot, nil
	case cmd.Address != nil:
		snapshot := cleanShippingAddress(*cmd.Address)
		snapshot.SourceAddressID = ""
		if err := validateOrderAddress(snapshot); err != nil {
			return ShippingAddress{}, err
		}
		return snapshot, nil
	default:
		return ShippingAddress{}, validationError("address is required")
	}
}

func (s *orderService) TransitionItem(ctx context.Context, cmd TransitionItemCommand) (Order, error) {
	actor := cmd.Actor
	action := domain.ItemAction(strings.ToLower(strings.TrimSpace(string(cmd.Action))))
	if !action.Valid() {
		return Order{}, validationError("unsupported action %q", cmd.Action)
	}
	if actor.Role != domain.RoleCustomer && actor.Role != domain.RoleSeller {
		s.recordTransition(ctx, action, transitionResultForbidden)
		return Order{}, authorizationError("role %q cannot change order items", actor.Role)
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	itemID := strings.TrimSpace(cmd.ItemID)
	if orderID == "" || itemID == "" {
		return Order{}, validationError("order id and item id are required")
	}

	for attempt := 1; ; attempt++ {
		current, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			s.recordTransition(ctx, action, transitionResultFor(err))
			return Order{}, mapRepositoryError("order", err)
		}

		updated, previous, err := s.applyTransition(current, actor, itemID, action)
		if err != nil {
			s.recordTransition(ctx, action, transitionResultFor(err))
			return Order{}, err
		}

		err = s.orders.Update(ctx, updated, current.Version)
		if err == nil {
			s.recordTransition(ctx, action, transitionResultOK)
			s.afterTransition(ctx, actor, updated, itemID, action, previous)
			return updated, nil
		}
		if !isRepositoryConflict(err) {
			s.recordTransition(ctx, action, transitionResultUnavailable)
			return Order{}, mapRepositoryError("order", err)
		}
		if attempt >= maxTransitionAttempts {
			s.recordTransition(ctx, action, transitionResultConflict)
			s.logger(ctx, "order.item.transition.conflict", map[string]any{
				"orderId":  orderID,
				"itemId":   itemID,
				"action":   string(action),
				"attempts": attempt,
			})
			return Order{}, &Error{Kind: KindConflict, Message: "order was modified concurrently, retry the request", Err: err}
		}
	}
}

// applyTransition evaluates the action against a freshly loaded order and returns the updated copy
// along with the previous order status.
func (s *orderService) applyTransition(order Order, actor Actor, itemID string, action domain.ItemAction) (Order, domain.OrderStatus, error) {
	idx := order.ItemIndex(itemID)
	if idx < 0 {
		return Order{}, "", notFoundError("order item %s not found", itemID)
	}
	item := order.Items[idx]

	resource := Resource{OwnerID: order.CustomerID, SellerIDs: []string{item.SellerID}}
	if !CanPerform(actor, itemAction(action), resource) {
		return Order{}, "", authorizationError("not allowed to %s this item", action)
	}

	next, ok := domain.NextItemStatus(item.Status, action)
	if !ok {
		return Order{}, "", newError(KindInvalidTransition, "cannot %s an item that is %s", action, item.Status)
	}

	now := s.now()
	updated := order
	updated.Items = slices.Clone(order.Items)
	updated.SellerIDs = slices.Clone(order.SellerIDs)
	updated.Items[idx] = domain.ApplyItemTransition(item, next, now)
	updated.Status = domain.DeriveOrderStatus(updated.ItemStatuses())
	updated.Version = order.Version + 1
	updated.UpdatedAt = now
	if updated.Status == domain.OrderStatusCancelled && updated.CancelledAt == nil {
		cancelledAt := now
		updated.CancelledAt = &cancelledAt
	}
	return updated, order.Status, nil
}

func (s *orderService) afterTransition(ctx context.Context, actor Actor, order Order, itemID string, action domain.ItemAction, previous domain.OrderStatus) {
	item := order.Items[order.ItemIndex(itemID)]
	s.logger(ctx, "order.item.transitioned", map[string]any{
		"orderId":     order.ID,
		"itemId":      itemID,
		"action":      string(action),
		"itemStatus":  string(item.Status),
		"orderStatus": string(order.Status),
		"actorId":     actor.ID,
		"actorRole":   string(actor.Role),
	})
	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventItemTransitioned,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		CustomerID:     order.CustomerID,
		ItemID:         itemID,
		SellerIDs:      []string{item.SellerID},
		Action:         string(action),
		PreviousStatus: string(previous),
		CurrentStatus:  string(order.Status),
		ActorID:        actor.ID,
		ActorRole:      string(actor.Role),
		OccurredAt:     order.UpdatedAt,
		Metadata: map[string]any{
			"itemStatus": string(item.Status),
			"bookId":     item.BookID,
		},
	})
}

func (s *orderService) Get(ctx context.Context, actor Actor, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, validationError("order id is required")
	}
	if !CanPerform(actor, ActionOrderView, Resource{}) {
		return Order{}, authorizationError("not allowed to view orders")
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, mapRepositoryError("order", err)
	}
	if !CanPerform(actor, ActionOrderView, Resource{OwnerID: order.CustomerID}) {
		return Order{}, authorizationError("not allowed to view this order")
	}
	return order, nil
}

func (s *orderService) ListForCustomer(ctx context.Context, actor Actor, page PageRequest) (domain.Page[CustomerOrderItem], error) {
	if actor.Role != domain.RoleCustomer || !CanPerform(actor, ActionOrderView, Resource{OwnerID: actor.ID}) {
		return domain.Page[CustomerOrderItem]{}, authorizationError("only customers have order history")
	}
	orders, err := s.orders.ListByCustomer(ctx, actor.ID)
	if err != nil {
		return domain.Page[CustomerOrderItem]{}, mapRepositoryError("order", err)
	}
	sortOrdersNewestFirst(orders)

	rows := make([]CustomerOrderItem, 0, len(orders))
	for _, order := range orders {
		for _, item := range order.Items {
			rows = append(rows, CustomerOrderItem{
				OrderID:       order.ID,
				OrderNumber:   order.OrderNumber,
				OrderStatus:   order.Status,
				PaymentMethod: order.PaymentMethod,
				PaymentStatus: order.PaymentStatus,
				Address:       order.Address,
				Item:          item,
				CreatedAt:     order.CreatedAt,
			})
		}
	}

	result := domain.Paginate(rows, page)
	if s.catalog == nil || len(result.Items) == 0 {
		return result, nil
	}
	ids := make([]string, 0, len(result.Items))
	for _, row := range result.Items {
		ids = append(ids, row.Item.BookID)
	}
	summaries, err := s.catalog.Summaries(ctx, uniqueStrings(ids))
	if err != nil {
		return domain.Page[CustomerOrderItem]{}, err
	}
	for i := range result.Items {
		if summary, ok := summaries[result.Items[i].Item.BookID]; ok {
			result.Items[i].Book = &summary
		}
	}
	return result, nil
}

func (s *orderService) ListForSeller(ctx context.Context, actor Actor) ([]Order, error) {
	if !CanPerform(actor, ActionSellerView, Resource{}) {
		return nil, authorizationError("only sellers can list seller orders")
	}
	orders, err := s.orders.ListBySeller(ctx, actor.ID)
	if err != nil {
		return nil, mapRepositoryError("order", err)
	}
	sortOrdersNewestFirst(orders)

	filtered := make([]Order, 0, len(orders))
	for _, order := range orders {
		if scoped, ok := order.ForSeller(actor.ID); ok {
			filtered = append(filtered, scoped)
		}
	}
	return filtered, nil
}

func (s *orderService) SellerOrderDetail(ctx context.Context, actor Actor, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, validationError("order id is required")
	}
	if !CanPerform(actor, ActionSellerView, Resource{}) {
		return Order{}, authorizationError("only sellers can view seller orders")
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, mapRepositoryError("order", err)
	}
	scoped, ok := order.ForSeller(actor.ID)
	if !ok {
		return Order{}, authorizationError("order has no items sold by you")
	}
	return scoped, nil
}

func (s *orderService) SellerStats(ctx context.Context, actor Actor) (SellerStats, error) {
	if !CanPerform(actor, ActionSellerView, Resource{}) {
		return SellerStats{}, authorizationError("only sellers have seller statistics")
	}
	orders, err := s.orders.ListBySeller(ctx, actor.ID)
	if err != nil {
		return SellerStats{}, mapRepositoryError("order", err)
	}

	stats := SellerStats{
		SellerID:      actor.ID,
		ItemsByStatus: map[domain.ItemStatus]int{},
	}
	for _, order := range orders {
		scoped, ok := order.ForSeller(actor.ID)
		if !ok {
			continue
		}
		stats.Orders++
		for _, item := range scoped.Items {
			stats.Items++
			stats.Units += item.Quantity
			stats.ItemsByStatus[item.Status]++
			switch item.Status {
			case domain.ItemStatusDelivered:
				stats.Revenue += item.Amount()
			case domain.ItemStatusOrdered, domain.ItemStatusDispatched:
				stats.PendingRevenue += item.Amount()
			}
		}
	}
	return stats, nil
}

func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	counterID := fmt.Sprintf("%s:%04d", orderNumberCounterPrefix, now.Year())
	seq, err := s.counters.Next(ctx, counterID, 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("RF-%04d-%06d", now.Year(), seq), nil
}

func (s *orderService) recordTransition(ctx context.Context, action domain.ItemAction, result string) {
	s.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", string(action)),
		attribute.String("result", result),
	))
}

func transitionResultFor(err error) string {
	switch KindOf(mapRepositoryError("order", err)) {
	case KindAuthorization:
		return transitionResultForbidden
	case KindInvalidTransition:
		return transitionResultInvalid
	case KindNotFound:
		return transitionResultNotFound
	default:
		return transitionResultUnavailable
	}
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) nextOrderID() string {
	return orderIDPrefix + s.newID()
}

func (s *orderService) nextItemID() string {
	return orderItemIDPrefix + s.newID()
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if event.Metadata != nil {
		event.Metadata = maps.Clone(event.Metadata)
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": event.CurrentStatus,
		})
	}
}

// initialPaymentStatus: cash on delivery is collected later; every other method is prepaid.
func initialPaymentStatus(method domain.PaymentMethod) domain.PaymentStatus {
	if method == domain.PaymentMethodCOD {
		return domain.PaymentStatusPending
	}
	return domain.PaymentStatusPaid
}

func validateOrderAddress(addr ShippingAddress) error {
	missing := make([]string, 0, 6)
	for _, field := range []struct {
		name  string
		value string
	}{
		{"fullName", addr.FullName},
		{"phone", addr.Phone},
		{"addressLine1", addr.AddressLine1},
		{"city", addr.City},
		{"state", addr.State},
		{"pinCode", addr.PinCode},
	} {
		if field.value == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return validationError("address is incomplete: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

func cleanShippingAddress(addr ShippingAddress) ShippingAddress {
	return ShippingAddress{
		FullName:        textutil.CleanLine(addr.FullName),
		Phone:           textutil.CleanLine(addr.Phone),
		AddressLine1:    textutil.CleanLine(addr.AddressLine1),
		AddressLine2:    textutil.CleanLine(addr.AddressLine2),
		City:            textutil.CleanLine(addr.City),
		State:           textutil.CleanLine(addr.State),
		PinCode:         textutil.CleanLine(addr.PinCode),
		SourceAddressID: addr.SourceAddressID,
	}
}

func sortOrdersNewestFirst(orders []Order) {
	slices.SortStableFunc(orders, func(a, b Order) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
