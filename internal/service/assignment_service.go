package service

import (
	"context"

	"github.com/pesio-ai/be-approval-workflows/internal/assignment"
	"github.com/pesio-ai/be-approval-workflows/internal/errors"
	"github.com/pesio-ai/be-approval-workflows/internal/logger"
	"github.com/pesio-ai/be-approval-workflows/internal/workflow"
)

// ApproverAdminStore extends the assignment read surface with the writes
// approver administration needs.
type ApproverAdminStore interface {
	AssignmentStore
	GetApprover(ctx context.Context, id int64) (*assignment.Approver, error)
	// FindApprover returns the approver row matching the variant exactly,
	// active or not, or nil when absent.
	FindApprover(ctx context.Context, assignmentID, approvalLevelID int64, kind assignment.ApproverKind, identifier int64) (*assignment.Approver, error)
	// ListInheritedApprovers returns the active materialized inherited rows
	// of a pairing.
	ListInheritedApprovers(ctx context.Context, assignmentID, approvalLevelID int64) ([]*assignment.Approver, error)
	InsertApprover(ctx context.Context, a *assignment.Approver) error
	UpdateApprover(ctx context.Context, a *assignment.Approver) error
	UpdateAssignmentStatus(ctx context.Context, id int64, status workflow.Status) error
}

// AssignmentService administers assignments and their approvers, keeping
// materialized inherited approver rows consistent as direct approvers come
// and go.
type AssignmentService struct {
	store     ApproverAdminStore
	workflows WorkflowStore
	hierarchy assignment.HierarchyWalker
	log       *logger.Logger
}

// NewAssignmentService creates a new AssignmentService.
func NewAssignmentService(
	store ApproverAdminStore,
	workflows WorkflowStore,
	hierarchy assignment.HierarchyWalker,
	log *logger.Logger,
) *AssignmentService {
	return &AssignmentService{
		store:     store,
		workflows: workflows,
		hierarchy: hierarchy,
		log:       log,
	}
}

// ── Approver administration ───────────────────────────────────────────────────

// CreateApprover adds a direct approver to a pairing of assignment and
// approval level, then refreshes inherited approver rows on the pairing and
// every descendant scope inheriting through it.
func (s *AssignmentService) CreateApprover(ctx context.Context, assignmentID, approvalLevelID int64, kind assignment.ApproverKind, identifier int64) (*assignment.Approver, error) {
	asg, err := s.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	level, err := s.workflows.GetApprovalLevel(ctx, approvalLevelID)
	if err != nil {
		return nil, err
	}

	approver, err := s.store.FindApprover(ctx, assignmentID, approvalLevelID, kind, identifier)
	if err != nil {
		return nil, err
	}
	if approver != nil && approver.Active && !approver.IsInherited() {
		return nil, errors.New(errors.ErrCodeConflict, "approver already exists for this assignment and level")
	}

	if approver != nil {
		approver.Active = true
		approver.AncestorID = 0
		if err := s.store.UpdateApprover(ctx, approver); err != nil {
			return nil, err
		}
	} else {
		approver = &assignment.Approver{
			AssignmentID:    assignmentID,
			ApprovalLevelID: approvalLevelID,
			Kind:            kind,
			Identifier:      identifier,
			Active:          true,
		}
		if err := s.store.InsertApprover(ctx, approver); err != nil {
			return nil, err
		}
	}

	if err := s.refreshInheritance(ctx, asg, level); err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("assignment_id", assignmentID).
		Int64("approval_level_id", approvalLevelID).
		Str("kind", string(kind)).
		Int64("identifier", identifier).
		Msg("Approver created")
	return approver, nil
}

// DeactivateApprover retires a direct approver and refreshes inheritance:
// the pairing and its descendants fall back to the nearest ancestor with
// approvers.
func (s *AssignmentService) DeactivateApprover(ctx context.Context, approverID int64) error {
	approver, err := s.store.GetApprover(ctx, approverID)
	if err != nil {
		return err
	}
	if !approver.Active {
		return nil
	}
	if approver.IsInherited() {
		return errors.New(errors.ErrCodeConflict, "inherited approvers cannot be deactivated directly")
	}

	approver.Active = false
	if err := s.store.UpdateApprover(ctx, approver); err != nil {
		return err
	}

	asg, err := s.store.GetAssignment(ctx, approver.AssignmentID)
	if err != nil {
		return err
	}
	level, err := s.workflows.GetApprovalLevel(ctx, approver.ApprovalLevelID)
	if err != nil {
		return err
	}
	if err := s.refreshInheritance(ctx, asg, level); err != nil {
		return err
	}

	s.log.Info().
		Int64("approver_id", approverID).
		Int64("assignment_id", approver.AssignmentID).
		Msg("Approver deactivated")
	return nil
}

// refreshInheritance synchronizes the materialized inherited rows of a
// pairing and of every descendant scope inheriting through it.
func (s *AssignmentService) refreshInheritance(ctx context.Context, asg *assignment.Assignment, level *workflow.ApprovalLevel) error {
	pairing := assignment.NewApprovalLevelAssignment(s.store, s.hierarchy, asg, level)
	if err := s.syncPairing(ctx, pairing); err != nil {
		return err
	}
	descendants, err := pairing.Descendants(ctx)
	if err != nil {
		return err
	}
	for _, d := range descendants {
		if err := s.syncPairing(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// syncPairing rewrites a pairing's materialized inherited rows: pairings
// with direct approvers (and the default assignment) carry none, the rest
// mirror their inheritance source.
func (s *AssignmentService) syncPairing(ctx context.Context, p *assignment.ApprovalLevelAssignment) error {
	asg := p.Assignment()
	level := p.Level()

	stale, err := s.store.ListInheritedApprovers(ctx, asg.ID, level.ID)
	if err != nil {
		return err
	}
	for _, row := range stale {
		row.Active = false
		if err := s.store.UpdateApprover(ctx, row); err != nil {
			return err
		}
	}

	direct, err := p.Approvers(ctx)
	if err != nil {
		return err
	}
	if len(direct) > 0 || asg.IsDefault {
		return nil
	}

	source, err := p.InheritedFrom(ctx)
	if err != nil || source == nil {
		return err
	}
	origin, err := source.Approvers(ctx)
	if err != nil {
		return err
	}
	for _, o := range origin {
		if o.ApprovalLevelID != level.ID || o.AssignmentID == asg.ID {
			return errors.New(errors.ErrCodeConflict, "ancestor/descendant approver mismatch")
		}
		existing, err := s.store.FindApprover(ctx, asg.ID, level.ID, o.Kind, o.Identifier)
		if err != nil {
			return err
		}
		if existing != nil {
			existing.Active = true
			existing.AncestorID = o.ID
			if err := s.store.UpdateApprover(ctx, existing); err != nil {
				return err
			}
			continue
		}
		materialized := &assignment.Approver{
			AssignmentID:    asg.ID,
			ApprovalLevelID: level.ID,
			Kind:            o.Kind,
			Identifier:      o.Identifier,
			Active:          true,
			AncestorID:      o.ID,
		}
		if err := s.store.InsertApprover(ctx, materialized); err != nil {
			return err
		}
	}
	return nil
}

// ── Assignment lifecycle ──────────────────────────────────────────────────────

// ArchiveAssignment retires an override assignment. The default assignment
// anchors the inheritance tree and cannot be archived.
func (s *AssignmentService) ArchiveAssignment(ctx context.Context, assignmentID int64) error {
	asg, err := s.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return err
	}
	if asg.IsDefault {
		return errors.New(errors.ErrCodeConflict, "the default assignment cannot be archived")
	}
	if err := s.store.UpdateAssignmentStatus(ctx, assignmentID, workflow.StatusArchived); err != nil {
		return err
	}

	s.log.Info().Int64("assignment_id", assignmentID).Msg("Assignment archived")
	return nil
}

// ── Inheritance diagnostics ───────────────────────────────────────────────────

// OverrideInheritance describes where one override's approvers at a level
// come from.
type OverrideInheritance struct {
	Assignment              *assignment.Assignment
	Approvers               []*assignment.Approver
	InheritedFromAssignment int64 // 0 when the approvers are the pairing's own, or none exist
}

// ListOverrideInheritance reports, for every override of a workflow, the
// approvers acting at a level and which ancestor they are inherited from.
// With activemode enabled draft assignments are skipped while walking, as
// a running workflow would.
func (s *AssignmentService) ListOverrideInheritance(ctx context.Context, workflowID, approvalLevelID int64, activemode bool) ([]*OverrideInheritance, error) {
	level, err := s.workflows.GetApprovalLevel(ctx, approvalLevelID)
	if err != nil {
		return nil, err
	}
	overrides, err := s.store.ListOverrides(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	out := make([]*OverrideInheritance, 0, len(overrides))
	for _, o := range overrides {
		pairing := assignment.NewApprovalLevelAssignment(s.store, s.hierarchy, o, level)
		pairing.SetActivemode(activemode)

		approvers, err := pairing.ApproversWithInheritance(ctx)
		if err != nil {
			return nil, err
		}
		entry := &OverrideInheritance{Assignment: o, Approvers: approvers}

		source, err := pairing.InheritedFrom(ctx)
		if err != nil {
			return nil, err
		}
		if source != nil {
			entry.InheritedFromAssignment = source.Assignment().ID
		}
		out = append(out, entry)
	}
	return out, nil
}
