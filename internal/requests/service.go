package requests

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/procureflow/procureflow/internal/shared"
	"github.com/procureflow/procureflow/internal/workflow"
)

// Service implements material request business rules.
type Service struct {
	repo        RepositoryPort
	audit       *shared.AuditLogger
	transitions workflow.TransitionRecorder
	logger      *slog.Logger
}

// NewService constructs a Service. audit and transitions may be nil.
func NewService(repo RepositoryPort, audit *shared.AuditLogger,
	transitions workflow.TransitionRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, transitions: transitions, logger: logger}
}

func (s *Service) recordTransition(action workflow.Action) {
	if s.transitions != nil {
		s.transitions.RecordTransition(workflow.EntityRequest, action)
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, requestID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "material_request",
		EntityID: strconv.FormatInt(requestID, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Error("record audit", slog.Any("error", err))
	}
}

func newRequestNumber() string {
	return fmt.Sprintf("MR-%s-%s", time.Now().Format("20060102"),
		strings.ToUpper(uuid.NewString()[:8]))
}

// Create registers a new material request on behalf of a supervisor.
func (s *Service) Create(ctx context.Context, actor shared.Principal, in CreateRequestInput) (*Request, error) {
	if actor.Role != workflow.RoleSupervisor {
		return nil, fmt.Errorf("%w: only supervisors create requests", ErrForbidden)
	}
	req := &Request{
		RequestNumber:        newRequestNumber(),
		ProjectID:            in.ProjectID,
		Reason:               in.Reason,
		SupervisorID:         actor.UserID,
		EngineerID:           in.EngineerID,
		ExpectedDeliveryDate: in.ExpectedDeliveryDate,
		Status:               workflow.RequestPendingEngineer,
		Items:                buildItems(in.Items),
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor.UserID, "request.create", req.ID, map[string]any{"number": req.RequestNumber})
	return req, nil
}

func buildItems(inputs []ItemInput) []Item {
	items := make([]Item, 0, len(inputs))
	for _, in := range inputs {
		items = append(items, Item{
			Name:           in.Name,
			Quantity:       in.Quantity,
			Unit:           in.Unit,
			EstimatedPrice: in.EstimatedPrice,
		})
	}
	return items
}

// Get loads a single request, enforcing ownership for supervisors and
// assignment for engineers.
func (s *Service) Get(ctx context.Context, actor shared.Principal, id int64) (*Request, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch actor.Role {
	case workflow.RoleSupervisor:
		if req.SupervisorID != actor.UserID {
			return nil, fmt.Errorf("%w: request belongs to another supervisor", ErrForbidden)
		}
	case workflow.RoleEngineer:
		if req.EngineerID != actor.UserID {
			return nil, fmt.Errorf("%w: request is assigned to another engineer", ErrForbidden)
		}
	}
	return req, nil
}

// List returns requests scoped to the acting role: supervisors see their own,
// engineers see their assignments, procurement managers see the approval
// backlog, managers and admins see everything.
func (s *Service) List(ctx context.Context, actor shared.Principal, filters ListFilters) ([]Request, int, error) {
	var scope Scope
	switch actor.Role {
	case workflow.RoleSupervisor:
		scope.SupervisorID = actor.UserID
	case workflow.RoleEngineer:
		scope.EngineerID = actor.UserID
	case workflow.RoleProcurementManager:
		if filters.Status == "" {
			scope.Statuses = []workflow.Status{
				workflow.RequestApprovedByEngineer,
				workflow.RequestPartiallyOrdered,
			}
		}
	case workflow.RoleGeneralManager, workflow.RoleAdmin:
		// Unrestricted.
	default:
		return nil, 0, fmt.Errorf("%w: role may not list requests", ErrForbidden)
	}
	return s.repo.List(ctx, filters, scope)
}

// Update replaces a pending request. Only the supervisor who created it may
// edit, and only while the assigned engineer has not acted.
func (s *Service) Update(ctx context.Context, actor shared.Principal, id int64, in EditRequestInput) (*Request, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := workflow.Resolve(workflow.EntityRequest, req.Status, workflow.ActionEdit, actor.Role); err != nil {
		return nil, mapWorkflowErr(err)
	}
	if req.SupervisorID != actor.UserID {
		return nil, fmt.Errorf("%w: request belongs to another supervisor", ErrForbidden)
	}
	req.ProjectID = in.ProjectID
	req.Reason = in.Reason
	req.EngineerID = in.EngineerID
	req.ExpectedDeliveryDate = in.ExpectedDeliveryDate
	req.Items = buildItems(in.Items)
	if err := s.repo.Replace(ctx, req); err != nil {
		return nil, err
	}
	s.recordTransition(workflow.ActionEdit)
	s.recordAudit(ctx, actor.UserID, "request.update", req.ID, nil)
	return s.repo.Get(ctx, id)
}

// Approve lets the assigned engineer approve a pending request.
func (s *Service) Approve(ctx context.Context, actor shared.Principal, id int64) (*Request, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rule, err := workflow.Resolve(workflow.EntityRequest, req.Status, workflow.ActionApprove, actor.Role)
	if err != nil {
		return nil, mapWorkflowErr(err)
	}
	if req.EngineerID != actor.UserID {
		return nil, fmt.Errorf("%w: request is assigned to another engineer", ErrForbidden)
	}
	if err := s.repo.UpdateStatus(ctx, id, rule.DefaultOutcome(), nil); err != nil {
		return nil, err
	}
	s.recordTransition(workflow.ActionApprove)
	s.recordAudit(ctx, actor.UserID, "request.approve", id, nil)
	return s.repo.Get(ctx, id)
}

// Reject lets the assigned engineer reject a pending request. The reason is
// mandatory and shown to the supervisor.
func (s *Service) Reject(ctx context.Context, actor shared.Principal, id int64, reason string) (*Request, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", ErrValidation)
	}
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rule, err := workflow.Resolve(workflow.EntityRequest, req.Status, workflow.ActionReject, actor.Role)
	if err != nil {
		return nil, mapWorkflowErr(err)
	}
	if req.EngineerID != actor.UserID {
		return nil, fmt.Errorf("%w: request is assigned to another engineer", ErrForbidden)
	}
	if err := s.repo.UpdateStatus(ctx, id, rule.DefaultOutcome(), &reason); err != nil {
		return nil, err
	}
	s.recordTransition(workflow.ActionReject)
	s.recordAudit(ctx, actor.UserID, "request.reject", id, map[string]any{"reason": reason})
	return s.repo.Get(ctx, id)
}

// RecordOrdered marks quantities as covered by a purchase order and moves the
// request forward. The request closes once every line is fully covered,
// otherwise it stays open as partially ordered. Called by the orders module
// when issuing a purchase order.
func (s *Service) RecordOrdered(ctx context.Context, actor shared.Principal, id int64, ordered map[int64]float64) (*Request, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rule, err := workflow.Resolve(workflow.EntityRequest, req.Status, workflow.ActionIssueOrder, actor.Role)
	if err != nil {
		return nil, mapWorkflowErr(err)
	}
	if len(ordered) == 0 {
		return nil, fmt.Errorf("%w: at least one item quantity is required", ErrValidation)
	}

	byID := make(map[int64]*Item, len(req.Items))
	for i := range req.Items {
		byID[req.Items[i].ID] = &req.Items[i]
	}
	for itemID, qty := range ordered {
		item, ok := byID[itemID]
		if !ok {
			return nil, fmt.Errorf("%w: item %d not on request", ErrValidation, itemID)
		}
		if qty <= 0 {
			return nil, fmt.Errorf("%w: ordered quantity must be positive", ErrValidation)
		}
		if qty > item.Remaining() {
			return nil, fmt.Errorf("%w: ordered quantity exceeds the remaining quantity", ErrValidation)
		}
		item.OrderedQuantity += qty
	}

	next := rule.Outcomes[1] // partially ordered
	if req.FullyOrdered() {
		next = rule.DefaultOutcome()
	}
	if err := s.repo.RecordOrdered(ctx, id, ordered, next); err != nil {
		return nil, err
	}
	s.recordTransition(workflow.ActionIssueOrder)
	s.recordAudit(ctx, actor.UserID, "request.order_issued", id, map[string]any{"status": string(next)})
	return s.repo.Get(ctx, id)
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
