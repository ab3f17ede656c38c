package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveRequestTransitions(t *testing.T) {
	rule, err := Resolve(EntityRequest, RequestPendingEngineer, ActionApprove, RoleEngineer)
	require.NoError(t, err)
	require.Equal(t, RequestApprovedByEngineer, rule.DefaultOutcome())

	rule, err = Resolve(EntityRequest, RequestPendingEngineer, ActionReject, RoleEngineer)
	require.NoError(t, err)
	require.Equal(t, RequestRejectedByEngineer, rule.DefaultOutcome())

	// Editing is supervisor-only and allowed only while pending.
	_, err = Resolve(EntityRequest, RequestPendingEngineer, ActionEdit, RoleSupervisor)
	require.NoError(t, err)
	_, err = Resolve(EntityRequest, RequestApprovedByEngineer, ActionEdit, RoleSupervisor)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestResolveRoleGate(t *testing.T) {
	_, err := Resolve(EntityRequest, RequestPendingEngineer, ActionApprove, RoleSupervisor)
	require.ErrorIs(t, err, ErrRoleNotAllowed)

	_, err = Resolve(EntityPurchaseOrder, OrderPendingApproval, ActionGMApprove, RoleProcurementManager)
	require.ErrorIs(t, err, ErrRoleNotAllowed)

	_, err = Resolve(EntityPurchaseOrder, OrderApproved, ActionPrint, RoleDeliveryTracker)
	require.ErrorIs(t, err, ErrRoleNotAllowed)
}

func TestTerminalStatuses(t *testing.T) {
	require.True(t, RequestTerminal(RequestRejectedByEngineer))
	require.True(t, RequestTerminal(RequestPurchaseOrderIssued))
	require.False(t, RequestTerminal(RequestPendingEngineer))

	require.True(t, OrderTerminal(OrderRejected))
	require.True(t, OrderTerminal(OrderDelivered))
	require.False(t, OrderTerminal(OrderShipped))

	// No actions exist out of a rejected order.
	for _, action := range []Action{ActionPrint, ActionShip, ActionConfirmReceipt, ActionGMApprove} {
		_, err := Resolve(EntityPurchaseOrder, OrderRejected, action, RoleGeneralManager)
		require.ErrorIs(t, err, ErrInvalidTransition)
	}
}

func TestPrintIsIdempotent(t *testing.T) {
	rule, err := Resolve(EntityPurchaseOrder, OrderPrinted, ActionPrint, RolePrinter)
	require.NoError(t, err)
	require.Equal(t, OrderPrinted, rule.DefaultOutcome())
}

func TestConfirmReceiptRoles(t *testing.T) {
	for _, role := range []Role{RoleDeliveryTracker, RoleSupervisor} {
		rule, err := Resolve(EntityPurchaseOrder, OrderShipped, ActionConfirmReceipt, role)
		require.NoError(t, err)
		require.ElementsMatch(t, []Status{OrderDelivered, OrderPartiallyDelivered}, rule.Outcomes)
	}
}

func TestActionsFor(t *testing.T) {
	actions := ActionsFor(EntityPurchaseOrder, OrderPrinted, RoleDeliveryTracker)
	require.ElementsMatch(t, []Action{ActionShip, ActionConfirmReceipt}, actions)

	require.Empty(t, ActionsFor(EntityPurchaseOrder, OrderDelivered, RoleDeliveryTracker))
	require.Empty(t, ActionsFor(EntityRequest, RequestRejectedByEngineer, RoleEngineer))
}
