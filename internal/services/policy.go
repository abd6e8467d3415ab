package services

import (
	"slices"

	domain "github.com/readify/api/internal/domain"
)

// Action names a capability checked by CanPerform.
type Action string

const (
	ActionOrderCreate   Action = "order.create"
	ActionOrderView     Action = "order.view"
	ActionItemCancel    Action = "order.item.cancel"
	ActionItemDispatch  Action = "order.item.dispatch"
	ActionItemDeliver   Action = "order.item.deliver"
	ActionSellerView    Action = "order.seller.view"
	ActionAddressManage Action = "address.manage"
	ActionListManage    Action = "list.manage"
)

// Resource describes what an action targets. OwnerID is the owning customer; SellerIDs are the
// sellers with items in scope. Empty fields mean the check is about the role only.
type Resource struct {
	OwnerID   string
	SellerIDs []string
}

func (r Resource) ownedBy(id string) bool {
	return r.OwnerID == "" || r.OwnerID == id
}

func (r Resource) sellsTo(id string) bool {
	return len(r.SellerIDs) == 0 || slices.Contains(r.SellerIDs, id)
}

// CanPerform is the single capability check used by every service operation.
func CanPerform(actor domain.Actor, action Action, resource Resource) bool {
	if actor.ID == "" || !actor.Role.Valid() {
		return false
	}
	switch actor.Role {
	case domain.RoleCustomer:
		switch action {
		case ActionOrderCreate, ActionOrderView, ActionItemCancel, ActionAddressManage, ActionListManage:
			return resource.ownedBy(actor.ID)
		}
	case domain.RoleSeller:
		switch action {
		case ActionItemCancel, ActionItemDispatch, ActionItemDeliver, ActionSellerView:
			return resource.sellsTo(actor.ID)
		}
	case domain.RoleAdmin:
		return action == ActionOrderView
	}
	return false
}

func itemAction(action domain.ItemAction) Action {
	switch action {
	case domain.ItemActionCancel:
		return ActionItemCancel
	case domain.ItemActionDispatch:
		return ActionItemDispatch
	case domain.ItemActionDeliver:
		return ActionItemDeliver
	default:
		return ""
	}
}
