package domain

import "time"

// ItemStatus is the fulfilment state of a single order item.
type ItemStatus string

const (
	ItemStatusOrdered    ItemStatus = "ordered"
	ItemStatusDispatched ItemStatus = "dispatched"
	ItemStatusDelivered  ItemStatus = "delivered"
	ItemStatusCancelled  ItemStatus = "cancelled"
)

// Terminal reports whether no further transition is possible from the status.
func (s ItemStatus) Terminal() bool {
	return s == ItemStatusDelivered || s == ItemStatusCancelled
}

// ItemAction is a requested change to an order item.
type ItemAction string

const (
	ItemActionCancel   ItemAction = "cancel"
	ItemActionDispatch ItemAction = "dispatch"
	ItemActionDeliver  ItemAction = "deliver"
)

// Valid reports whether the action is known.
func (a ItemAction) Valid() bool {
	switch a {
	case ItemActionCancel, ItemActionDispatch, ItemActionDeliver:
		return true
	default:
		return false
	}
}

// OrderStatus is the order-level status derived from its items.
type OrderStatus string

const (
	OrderStatusOrdered             OrderStatus = "ordered"
	OrderStatusDispatched          OrderStatus = "dispatched"
	OrderStatusDelivered           OrderStatus = "delivered"
	OrderStatusCancelled           OrderStatus = "cancelled"
	OrderStatusPartiallyCancelled  OrderStatus = "partially_cancelled"
	OrderStatusPartiallyDispatched OrderStatus = "partially_dispatched"
	OrderStatusPartiallyDelivered  OrderStatus = "partially_delivered"
)

type itemTransitionKey struct {
	from   ItemStatus
	action ItemAction
}

// itemTransitions lists every allowed (status, action) pair. Anything absent is invalid.
var itemTransitions = map[itemTransitionKey]ItemStatus{
	{ItemStatusOrdered, ItemActionCancel}:     ItemStatusCancelled,
	{ItemStatusOrdered, ItemActionDispatch}:   ItemStatusDispatched,
	{ItemStatusDispatched, ItemActionDeliver}: ItemStatusDelivered,
}

// NextItemStatus returns the status reached by applying action to an item in status from.
func NextItemStatus(from ItemStatus, action ItemAction) (ItemStatus, bool) {
	next, ok := itemTransitions[itemTransitionKey{from: from, action: action}]
	return next, ok
}

// ApplyItemTransition moves the item to next and stamps the matching timestamp.
func ApplyItemTransition(item OrderItem, next ItemStatus, at time.Time) OrderItem {
	item.Status = next
	ts := at
	switch next {
	case ItemStatusDispatched:
		item.DispatchedAt = &ts
	case ItemStatusDelivered:
		item.DeliveredAt = &ts
	case ItemStatusCancelled:
		item.CancelledAt = &ts
	}
	return item
}

type orderStatusRule struct {
	status OrderStatus
	match  func(counts map[ItemStatus]int, total int) bool
}

// orderStatusRules are evaluated in order; the first match wins.
var orderStatusRules = []orderStatusRule{
	{OrderStatusCancelled, func(c map[ItemStatus]int, n int) bool { return c[ItemStatusCancelled] == n }},
	{OrderStatusDelivered, func(c map[ItemStatus]int, n int) bool { return c[ItemStatusDelivered] == n }},
	{OrderStatusDispatched, func(c map[ItemStatus]int, n int) bool {
		return c[ItemStatusDispatched]+c[ItemStatusDelivered] == n
	}},
	{OrderStatusPartiallyCancelled, func(c map[ItemStatus]int, _ int) bool { return c[ItemStatusCancelled] > 0 }},
	{OrderStatusPartiallyDispatched, func(c map[ItemStatus]int, _ int) bool { return c[ItemStatusDispatched] > 0 }},
	{OrderStatusPartiallyDelivered, func(c map[ItemStatus]int, _ int) bool { return c[ItemStatusDelivered] > 0 }},
}

// DeriveOrderStatus computes the order status from the multiset of item statuses.
func DeriveOrderStatus(statuses []ItemStatus) OrderStatus {
	if len(statuses) == 0 {
		return OrderStatusOrdered
	}
	counts := make(map[ItemStatus]int, 4)
	for _, s := range statuses {
		counts[s]++
	}
	for _, rule := range orderStatusRules {
		if rule.match(counts, len(statuses)) {
			return rule.status
		}
	}
	return OrderStatusOrdered
}
