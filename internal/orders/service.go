package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/procureflow/procureflow/internal/requests"
	"github.com/procureflow/procureflow/internal/shared"
	"github.com/procureflow/procureflow/internal/workflow"
)

// approvalModule is the module name recorded in the approvals table.
const approvalModule = "purchase_orders"

// RequestPort is the slice of the requests module the orders module needs:
// loading a request and marking quantities as covered by an order.
type RequestPort interface {
	Get(ctx context.Context, actor shared.Principal, id int64) (*requests.Request, error)
	RecordOrdered(ctx context.Context, actor shared.Principal, id int64, ordered map[int64]float64) (*requests.Request, error)
}

// ApprovalLimitPort reads the configured auto-approval boundary.
type ApprovalLimitPort interface {
	ApprovalLimit(ctx context.Context) (float64, error)
}

// ApprovalLogPort persists and reads the approval trail. Satisfied by
// shared.ApprovalRecorder.
type ApprovalLogPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
	List(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error)
	EnsureSubmit(ctx context.Context, module string, ref uuid.UUID, actorID int64, note string) error
}

// IdempotencyPort guards once-only actions. Satisfied by
// shared.IdempotencyStore.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service implements purchase order business rules.
type Service struct {
	repo        RepositoryPort
	reqs        RequestPort
	limits      ApprovalLimitPort
	approvals   ApprovalLogPort
	idem        IdempotencyPort
	audit       *shared.AuditLogger
	transitions workflow.TransitionRecorder
	logger      *slog.Logger
}

// NewService constructs a Service. approvals, idem, audit and transitions may
// be nil in tests.
func NewService(repo RepositoryPort, reqs RequestPort, limits ApprovalLimitPort,
	approvals ApprovalLogPort, idem IdempotencyPort,
	audit *shared.AuditLogger, transitions workflow.TransitionRecorder,
	logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, reqs: reqs, limits: limits, approvals: approvals,
		idem: idem, audit: audit, transitions: transitions, logger: logger}
}

func (s *Service) recordTransition(action workflow.Action) {
	if s.transitions != nil {
		s.transitions.RecordTransition(workflow.EntityPurchaseOrder, action)
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, orderID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "purchase_order",
		EntityID: strconv.FormatInt(orderID, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Error("record audit", slog.Any("error", err))
	}
}

func (s *Service) recordApproval(ctx context.Context, log shared.ApprovalLog) {
	if s.approvals == nil {
		return
	}
	if err := s.approvals.Record(ctx, log); err != nil {
		s.logger.Error("record approval", slog.Any("error", err))
	}
}

func newOrderNumber() string {
	return fmt.Sprintf("PO-%s-%s", time.Now().Format("20060102"),
		strings.ToUpper(uuid.NewString()[:8]))
}

// Create issues a purchase order against an engineer-approved request. The
// order auto-approves when its total is within the approval limit, otherwise
// it waits for the general manager. The covered quantities are recorded on
// the request, which closes once fully covered.
func (s *Service) Create(ctx context.Context, actor shared.Principal, in CreateOrderInput) (*PurchaseOrder, error) {
	req, err := s.reqs.Get(ctx, actor, in.RequestID)
	if err != nil {
		return nil, mapRequestErr(err)
	}
	if _, err := workflow.Resolve(workflow.EntityRequest, req.Status, workflow.ActionIssueOrder, actor.Role); err != nil {
		return nil, mapWorkflowErr(err)
	}

	byID := make(map[int64]requests.Item, len(req.Items))
	for _, item := range req.Items {
		byID[item.ID] = item
	}
	ordered := make(map[int64]float64, len(in.Items))
	items := make([]Item, 0, len(in.Items))
	var total float64
	for _, line := range in.Items {
		reqItem, ok := byID[line.RequestItemID]
		if !ok {
			return nil, fmt.Errorf("%w: item %d not on request", ErrValidation, line.RequestItemID)
		}
		if _, dup := ordered[line.RequestItemID]; dup {
			return nil, fmt.Errorf("%w: item %d listed twice", ErrValidation, line.RequestItemID)
		}
		if line.Quantity > reqItem.Remaining() {
			return nil, fmt.Errorf("%w: ordered quantity exceeds the remaining quantity", ErrValidation)
		}
		lineTotal := line.Quantity * line.UnitPrice
		items = append(items, Item{
			RequestItemID: line.RequestItemID,
			Name:          reqItem.Name,
			Quantity:      line.Quantity,
			Unit:          reqItem.Unit,
			UnitPrice:     line.UnitPrice,
			TotalPrice:    lineTotal,
		})
		ordered[line.RequestItemID] = line.Quantity
		total += lineTotal
	}

	limit, err := s.limits.ApprovalLimit(ctx)
	if err != nil {
		return nil, err
	}
	o := &PurchaseOrder{
		Ref:          uuid.New(),
		OrderNumber:  newOrderNumber(),
		RequestID:    req.ID,
		ProjectID:    req.ProjectID,
		SupplierName: in.SupplierName,
		Items:        items,
		TotalAmount:  total,
		Notes:        in.Notes,
		ManagerID:    actor.UserID,
		Status:       workflow.OrderPendingApproval,
	}
	// The boundary is inclusive: a total exactly at the limit auto-approves.
	if total <= limit {
		now := time.Now()
		o.Status = workflow.OrderApproved
		o.ApprovedAt = &now
	}

	if err := s.repo.Create(ctx, o); err != nil {
		return nil, err
	}
	// The request-side coverage lives in another transaction. If it cannot be
	// recorded, unwind the order so a retry does not over-order.
	if _, err := s.reqs.RecordOrdered(ctx, actor, req.ID, ordered); err != nil {
		s.logger.Error("record ordered quantities", slog.Int64("order_id", o.ID), slog.Any("error", err))
		if delErr := s.repo.Delete(ctx, o.ID); delErr != nil {
			s.logger.Error("unwind order after coverage failure",
				slog.Int64("order_id", o.ID), slog.Any("error", delErr))
		}
		return nil, mapRequestErr(err)
	}

	if s.approvals != nil {
		if err := s.approvals.EnsureSubmit(ctx, approvalModule, o.Ref, actor.UserID, o.OrderNumber); err != nil {
			s.logger.Error("record approval submit", slog.Any("error", err))
		}
	}
	if o.Status == workflow.OrderApproved {
		s.recordApproval(ctx, shared.ApprovalLog{
			Module: approvalModule, RefID: o.Ref, ActorID: actor.UserID,
			Action: shared.ApprovalApprove, Note: "within approval limit",
		})
	}
	s.recordAudit(ctx, actor.UserID, "order.create", o.ID, map[string]any{
		"number": o.OrderNumber, "status": string(o.Status), "total": total,
	})
	return s.repo.Get(ctx, o.ID)
}

// Get loads an order with supervisor ownership enforced.
func (s *Service) Get(ctx context.Context, actor shared.Principal, id int64) (*PurchaseOrder, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == workflow.RoleSupervisor {
		req, err := s.reqs.Get(ctx, actor, o.RequestID)
		if err != nil || req.SupervisorID != actor.UserID {
			return nil, fmt.Errorf("%w: order belongs to another supervisor's request", ErrForbidden)
		}
	}
	return o, nil
}

// List returns orders scoped to the acting role.
func (s *Service) List(ctx context.Context, actor shared.Principal, filters ListFilters) ([]PurchaseOrder, int, error) {
	scope, err := scopeFor(actor)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, filters, scope)
}

func scopeFor(actor shared.Principal) (Scope, error) {
	switch actor.Role {
	case workflow.RoleProcurementManager, workflow.RoleGeneralManager, workflow.RoleAdmin:
		return Scope{}, nil
	case workflow.RoleSupervisor:
		return Scope{SupervisorID: actor.UserID}, nil
	case workflow.RolePrinter:
		return Scope{Statuses: []workflow.Status{workflow.OrderApproved, workflow.OrderPrinted}}, nil
	case workflow.RoleDeliveryTracker:
		return Scope{Statuses: []workflow.Status{
			workflow.OrderPrinted, workflow.OrderShipped,
			workflow.OrderPartiallyDelivered, workflow.OrderDelivered,
		}}, nil
	default:
		return Scope{}, fmt.Errorf("%w: role may not list orders", ErrForbidden)
	}
}

// PendingDelivery lists orders on their way: printed, shipped or partially
// delivered. Supervisors only see orders raised from their own requests.
func (s *Service) PendingDelivery(ctx context.Context, actor shared.Principal, filters ListFilters) ([]PurchaseOrder, int, error) {
	scope := Scope{Statuses: []workflow.Status{
		workflow.OrderPrinted, workflow.OrderShipped, workflow.OrderPartiallyDelivered,
	}}
	if actor.Role == workflow.RoleSupervisor {
		scope.SupervisorID = actor.UserID
	}
	filters.Status = ""
	return s.repo.List(ctx, filters, scope)
}

// PendingApprovals lists orders waiting for the general manager.
func (s *Service) PendingApprovals(ctx context.Context, filters ListFilters) ([]PurchaseOrder, int, error) {
	filters.Status = workflow.OrderPendingApproval
	return s.repo.List(ctx, filters, Scope{})
}

// GMApprove records the general manager approval.
func (s *Service) GMApprove(ctx context.Context, actor shared.Principal, id int64) (*PurchaseOrder, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rule, err := workflow.Resolve(workflow.EntityPurchaseOrder, o.Status, workflow.ActionGMApprove, actor.Role)
	if err != nil {
		return nil, mapWorkflowErr(err)
	}
	now := time.Now()
	if err := s.repo.SetDecision(ctx, id, rule.DefaultOutcome(), &now, nil); err != nil {
		return nil, err
	}
	s.recordTransition(workflow.ActionGMApprove)
	s.recordApproval(ctx, shared.ApprovalLog{
		Module: approvalModule, RefID: o.Ref, ActorID: actor.UserID, Action: shared.ApprovalApprove,
	})
	s.recordAudit(ctx, actor.UserID, "order.gm_approve", id, nil)
	return s.repo.Get(ctx, id)
}

// GMReject records the general manager rejection. The reason is optional.
func (s *Service) GMReject(ctx context.Context, actor shared.Principal, id int64, reason string) (*PurchaseOrder, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rule, err := workflow.Resolve(workflow.EntityPurchaseOrder, o.Status, workflow.ActionGMReject, actor.Role)
	if err != nil {
		return nil, mapWorkflowErr(err)
	}
	var reasonPtr *string
	if reason = strings.TrimSpace(reason); reason != "" {
		reasonPtr = &reason
	}
	if err := s.repo.SetDecision(ctx, id, rule.DefaultOutcome(), nil, reasonPtr); err != nil {
		return nil, err
	}
	s.recordTransition(workflow.ActionGMReject)
	s.recordApproval(ctx, shared.ApprovalLog{
		Module: approvalModule, RefID: o.Ref, ActorID: actor.UserID,
		Action: shared.ApprovalReject, Note: reason,
	})
	s.recordAudit(ctx, actor.UserID, "order.gm_reject", id, nil)
	return s.repo.Get(ctx, id)
}

// Print marks an approved order as printed. Re-printing an already-printed
// order is a no-op: the status and the original printed_at are preserved.
func (s *Service) Print(ctx context.Context, actor shared.Principal, id int64) (*PurchaseOrder, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := workflow.Resolve(workflow.EntityPurchaseOrder, o.Status, workflow.ActionPrint, actor.Role); err != nil {
		return nil, mapWorkflowErr(err)
	}
	if o.Status == workflow.OrderPrinted {
		return o, nil
	}
	idemKey := fmt.Sprintf("po-print-%d", id)
	if s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, idemKey, approvalModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return o, nil
			}
			return nil, err
		}
	}
	if err := s.repo.SetPrinted(ctx, id, time.Now()); err != nil {
		// Release the key so the print can be retried.
		if s.idem != nil {
			if delErr := s.idem.Delete(ctx, idemKey); delErr != nil {
				s.logger.Error("release print key", slog.String("key", idemKey), slog.Any("error", delErr))
			}
		}
		return nil, err
	}
	s.recordTransition(workflow.ActionPrint)
	s.recordAudit(ctx, actor.UserID, "order.print", id, nil)
	return s.repo.Get(ctx, id)
}

// Ship marks a printed order as dispatched to the site.
func (s *Service) Ship(ctx context.Context, actor shared.Principal, id int64, notes string) (*PurchaseOrder, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := workflow.Resolve(workflow.EntityPurchaseOrder, o.Status, workflow.ActionShip, actor.Role); err != nil {
		return nil, mapWorkflowErr(err)
	}
	var notesPtr *string
	if notes = strings.TrimSpace(notes); notes != "" {
		notesPtr = &notes
	}
	if err := s.repo.SetShipped(ctx, id, notesPtr); err != nil {
		return nil, err
	}
	s.recordTransition(workflow.ActionShip)
	s.recordAudit(ctx, actor.UserID, "order.ship", id, nil)
	return s.repo.Get(ctx, id)
}

// ConfirmReceipt records delivered quantities. Quantities are clamped so a
// line never exceeds its ordered quantity; the order becomes delivered only
// when every line is complete, partially delivered otherwise. Supervisors may
// only confirm receipt on orders raised from their own requests.
func (s *Service) ConfirmReceipt(ctx context.Context, actor shared.Principal, id int64, in ConfirmReceiptInput) (*PurchaseOrder, error) {
	receipt := strings.TrimSpace(in.SupplierReceiptNumber)
	if receipt == "" {
		return nil, fmt.Errorf("%w: supplier receipt number is required", ErrValidation)
	}
	o, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if _, err := workflow.Resolve(workflow.EntityPurchaseOrder, o.Status, workflow.ActionConfirmReceipt, actor.Role); err != nil {
		return nil, mapWorkflowErr(err)
	}

	byID := make(map[int64]*Item, len(o.Items))
	for i := range o.Items {
		byID[o.Items[i].ID] = &o.Items[i]
	}
	for _, line := range in.Items {
		item, ok := byID[line.ItemID]
		if !ok {
			return nil, fmt.Errorf("%w: item %d not on order", ErrValidation, line.ItemID)
		}
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: delivered quantity must be positive", ErrValidation)
		}
		item.DeliveredQuantity += line.Quantity
		if item.DeliveredQuantity > item.Quantity {
			item.DeliveredQuantity = item.Quantity
		}
	}

	o.Status = o.DeliveryStatus()
	o.SupplierReceiptNumber = &receipt
	if notes := strings.TrimSpace(in.DeliveryNotes); notes != "" {
		o.DeliveryNotes = &notes
	}
	if err := s.repo.RecordDelivery(ctx, o); err != nil {
		return nil, err
	}
	s.recordTransition(workflow.ActionConfirmReceipt)
	s.recordAudit(ctx, actor.UserID, "order.confirm_receipt", id, map[string]any{
		"receipt": receipt, "status": string(o.Status),
	})
	return s.repo.Get(ctx, id)
}

// ApprovalTrail returns the recorded approval history of an order, oldest
// first. Visibility follows Get.
func (s *Service) ApprovalTrail(ctx context.Context, actor shared.Principal, id int64) ([]shared.ApprovalLog, error) {
	o, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if s.approvals == nil {
		return []shared.ApprovalLog{}, nil
	}
	return s.approvals.List(ctx, approvalModule, o.Ref)
}

func mapWorkflowErr(err error) error {
	switch err {
	case workflow.ErrRoleNotAllowed:
		return fmt.Errorf("%w: %s", ErrForbidden, err)
	case workflow.ErrInvalidTransition:
		return fmt.Errorf("%w: %s", ErrInvalidState, err)
	default:
		return err
	}
}

// mapRequestErr translates request module sentinels into this module's.
func mapRequestErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, requests.ErrNotFound):
		return fmt.Errorf("%w: request not found", ErrNotFound)
	case errors.Is(err, requests.ErrForbidden):
		return fmt.Errorf("%w: %s", ErrForbidden, err)
	case errors.Is(err, requests.ErrInvalidState):
		return fmt.Errorf("%w: %s", ErrInvalidState, err)
	case errors.Is(err, requests.ErrValidation):
		return fmt.Errorf("%w: %s", ErrValidation, err)
	default:
		return err
	}
}
