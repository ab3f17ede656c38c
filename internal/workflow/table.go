// Package workflow defines the authoritative status-transition table for
// procurement entities. Every mutating service consults this table before
// touching persistence, so role gating and status preconditions live in one
// place instead of per-handler conditionals.
package workflow

import "errors"

// Entity identifies a workflow-managed aggregate.
type Entity string

const (
	EntityRequest       Entity = "request"
	EntityPurchaseOrder Entity = "purchase_order"
)

// Role enumerates the application roles.
type Role string

const (
	RoleSupervisor         Role = "supervisor"
	RoleEngineer           Role = "engineer"
	RoleProcurementManager Role = "procurement_manager"
	RolePrinter            Role = "printer"
	RoleDeliveryTracker    Role = "delivery_tracker"
	RoleGeneralManager     Role = "general_manager"
	RoleAdmin              Role = "admin"
)

// IsValid reports whether the role is a known application role.
func (r Role) IsValid() bool {
	switch r {
	case RoleSupervisor, RoleEngineer, RoleProcurementManager, RolePrinter,
		RoleDeliveryTracker, RoleGeneralManager, RoleAdmin:
		return true
	default:
		return false
	}
}

// Status is a lifecycle state of a Request or PurchaseOrder.
type Status string

// Request lifecycle.
const (
	RequestPendingEngineer     Status = "pending_engineer"
	RequestApprovedByEngineer  Status = "approved_by_engineer"
	RequestRejectedByEngineer  Status = "rejected_by_engineer"
	RequestPartiallyOrdered    Status = "partially_ordered"
	RequestPurchaseOrderIssued Status = "purchase_order_issued"
)

// Purchase order lifecycle.
const (
	OrderPendingApproval    Status = "pending_approval"
	OrderApproved           Status = "approved"
	OrderRejected           Status = "rejected"
	OrderPrinted            Status = "printed"
	OrderShipped            Status = "shipped"
	OrderPartiallyDelivered Status = "partially_delivered"
	OrderDelivered          Status = "delivered"
)

// Action is a workflow operation invoked by a role.
type Action string

const (
	// Request actions.
	ActionApprove    Action = "approve"
	ActionReject     Action = "reject"
	ActionEdit       Action = "edit"
	ActionIssueOrder Action = "issue_order"

	// Purchase order actions.
	ActionGMApprove      Action = "gm_approve"
	ActionGMReject       Action = "gm_reject"
	ActionPrint          Action = "print"
	ActionShip           Action = "ship"
	ActionConfirmReceipt Action = "confirm_receipt"
)

var (
	// ErrInvalidTransition occurs when the entity status does not permit the action.
	ErrInvalidTransition = errors.New("workflow: action not permitted in current status")
	// ErrRoleNotAllowed occurs when the acting role may not perform the action.
	ErrRoleNotAllowed = errors.New("workflow: role not permitted to perform action")
)

// Rule describes a single legal transition. Outcomes lists the statuses the
// action may land in; the first entry is the default, further entries are
// data-dependent (e.g. partial vs. full delivery).
type Rule struct {
	Entity   Entity
	From     Status
	Action   Action
	Roles    []Role
	Outcomes []Status
}

// Allows reports whether the role may perform this rule's action.
func (r Rule) Allows(role Role) bool {
	for _, allowed := range r.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}

// DefaultOutcome returns the primary target status.
func (r Rule) DefaultOutcome() Status {
	return r.Outcomes[0]
}

// table is the complete transition table. A rule whose sole outcome equals its
// From status is an explicit no-op (idempotent action, e.g. re-printing).
var table = []Rule{
	// Requests.
	{EntityRequest, RequestPendingEngineer, ActionApprove,
		[]Role{RoleEngineer}, []Status{RequestApprovedByEngineer}},
	{EntityRequest, RequestPendingEngineer, ActionReject,
		[]Role{RoleEngineer}, []Status{RequestRejectedByEngineer}},
	{EntityRequest, RequestPendingEngineer, ActionEdit,
		[]Role{RoleSupervisor}, []Status{RequestPendingEngineer}},
	{EntityRequest, RequestApprovedByEngineer, ActionIssueOrder,
		[]Role{RoleProcurementManager}, []Status{RequestPurchaseOrderIssued, RequestPartiallyOrdered}},
	{EntityRequest, RequestPartiallyOrdered, ActionIssueOrder,
		[]Role{RoleProcurementManager}, []Status{RequestPurchaseOrderIssued, RequestPartiallyOrdered}},

	// Purchase orders.
	{EntityPurchaseOrder, OrderPendingApproval, ActionGMApprove,
		[]Role{RoleGeneralManager}, []Status{OrderApproved}},
	{EntityPurchaseOrder, OrderPendingApproval, ActionGMReject,
		[]Role{RoleGeneralManager}, []Status{OrderRejected}},
	{EntityPurchaseOrder, OrderApproved, ActionPrint,
		[]Role{RolePrinter}, []Status{OrderPrinted}},
	{EntityPurchaseOrder, OrderPrinted, ActionPrint,
		[]Role{RolePrinter}, []Status{OrderPrinted}},
	{EntityPurchaseOrder, OrderPrinted, ActionShip,
		[]Role{RoleProcurementManager, RoleDeliveryTracker}, []Status{OrderShipped}},
	{EntityPurchaseOrder, OrderPrinted, ActionConfirmReceipt,
		[]Role{RoleDeliveryTracker, RoleSupervisor}, []Status{OrderDelivered, OrderPartiallyDelivered}},
	{EntityPurchaseOrder, OrderShipped, ActionConfirmReceipt,
		[]Role{RoleDeliveryTracker, RoleSupervisor}, []Status{OrderDelivered, OrderPartiallyDelivered}},
	{EntityPurchaseOrder, OrderPartiallyDelivered, ActionConfirmReceipt,
		[]Role{RoleDeliveryTracker, RoleSupervisor}, []Status{OrderDelivered, OrderPartiallyDelivered}},
}

// Resolve returns the rule for the given entity, status, action and role.
// ErrInvalidTransition is returned when no rule matches the status/action
// pair; ErrRoleNotAllowed when a rule exists but the role may not use it.
func Resolve(entity Entity, from Status, action Action, role Role) (Rule, error) {
	matched := false
	for _, rule := range table {
		if rule.Entity != entity || rule.From != from || rule.Action != action {
			continue
		}
		matched = true
		if rule.Allows(role) {
			return rule, nil
		}
	}
	if matched {
		return Rule{}, ErrRoleNotAllowed
	}
	return Rule{}, ErrInvalidTransition
}

// Can reports whether the role may perform the action from the given status.
func Can(entity Entity, from Status, action Action, role Role) bool {
	_, err := Resolve(entity, from, action, role)
	return err == nil
}

// ActionsFor lists actions the role may currently perform on the entity.
// Dashboards use this to expose only actionable buttons.
func ActionsFor(entity Entity, from Status, role Role) []Action {
	var actions []Action
	seen := make(map[Action]struct{})
	for _, rule := range table {
		if rule.Entity != entity || rule.From != from || !rule.Allows(role) {
			continue
		}
		if _, ok := seen[rule.Action]; ok {
			continue
		}
		seen[rule.Action] = struct{}{}
		actions = append(actions, rule.Action)
	}
	return actions
}

// RequestTerminal reports whether a request status admits no further actions.
func RequestTerminal(s Status) bool {
	return s == RequestRejectedByEngineer || s == RequestPurchaseOrderIssued
}

// OrderTerminal reports whether an order status admits no further actions.
func OrderTerminal(s Status) bool {
	return s == OrderRejected || s == OrderDelivered
}
