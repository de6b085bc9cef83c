package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-approval-workflows/internal/assignment"
	"github.com/pesio-ai/be-approval-workflows/internal/database"
	"github.com/pesio-ai/be-approval-workflows/internal/errors"
	"github.com/pesio-ai/be-approval-workflows/internal/workflow"
)

// AssignmentRepository persists assignments and their approver rows. It is
// the read surface of the inheritance resolver and the write surface of
// approver administration.
type AssignmentRepository struct {
	db *database.DB
}

// NewAssignmentRepository creates a new AssignmentRepository.
func NewAssignmentRepository(db *database.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

const assignmentColumns = `
	id, workflow_id, type, identifier, name, id_number, is_default, status,
	created_at, updated_at
`

// GetAssignment retrieves an assignment by id.
func (r *AssignmentRepository) GetAssignment(ctx context.Context, id int64) (*assignment.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE id = $1`

	a, err := r.scanAssignment(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("assignment", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get assignment")
	}
	return a, nil
}

// DefaultAssignment retrieves the workflow's default assignment.
func (r *AssignmentRepository) DefaultAssignment(ctx context.Context, workflowID int64) (*assignment.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE workflow_id = $1 AND is_default`

	a, err := r.scanAssignment(r.db.QueryRow(ctx, query, workflowID))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("default assignment", workflowID)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get default assignment")
	}
	return a, nil
}

// AssignmentByTarget retrieves the override covering a scope, or nil when
// the scope has none.
func (r *AssignmentRepository) AssignmentByTarget(ctx context.Context, workflowID int64, t assignment.Type, identifier int64) (*assignment.Assignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM assignments
		WHERE workflow_id = $1 AND type = $2 AND identifier = $3 AND NOT is_default
	`

	a, err := r.scanAssignment(r.db.QueryRow(ctx, query, workflowID, t, identifier))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get assignment by target")
	}
	return a, nil
}

// ListOverrides retrieves every non-default assignment of a workflow,
// regardless of status.
func (r *AssignmentRepository) ListOverrides(ctx context.Context, workflowID int64) ([]*assignment.Assignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM assignments
		WHERE workflow_id = $1 AND NOT is_default
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query, workflowID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list assignment overrides")
	}
	defer rows.Close()

	out := make([]*assignment.Assignment, 0)
	for rows.Next() {
		a, err := r.scanAssignment(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan assignment")
		}
		out = append(out, a)
	}
	return out, nil
}

// CreateAssignment inserts an assignment.
func (r *AssignmentRepository) CreateAssignment(ctx context.Context, a *assignment.Assignment) error {
	query := `
		INSERT INTO assignments (workflow_id, type, identifier, name, id_number, is_default, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		a.WorkflowID,
		a.Type,
		a.Identifier,
		a.Name,
		a.IDNumber,
		a.IsDefault,
		a.Status,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create assignment")
	}
	return nil
}

// UpdateAssignmentStatus sets an assignment's lifecycle status.
func (r *AssignmentRepository) UpdateAssignmentStatus(ctx context.Context, id int64, status workflow.Status) error {
	query := `
		UPDATE assignments
		SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id
	`

	var returnedID int64
	err := r.db.QueryRow(ctx, query, id, status).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.NotFound("assignment", id)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update assignment status")
	}
	return nil
}

// ── Approvers ─────────────────────────────────────────────────────────────────

const approverColumns = `
	id, assignment_id, approval_level_id, kind, identifier, active, ancestor_id,
	created_at, updated_at
`

// GetApprover retrieves an approver row by id.
func (r *AssignmentRepository) GetApprover(ctx context.Context, id int64) (*assignment.Approver, error) {
	query := `SELECT ` + approverColumns + ` FROM approvers WHERE id = $1`

	a, err := r.scanApprover(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("approver", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get approver")
	}
	return a, nil
}

// FindApprover retrieves the row matching the variant exactly, active or
// not, or nil when absent.
func (r *AssignmentRepository) FindApprover(ctx context.Context, assignmentID, approvalLevelID int64, kind assignment.ApproverKind, identifier int64) (*assignment.Approver, error) {
	query := `
		SELECT ` + approverColumns + `
		FROM approvers
		WHERE assignment_id = $1 AND approval_level_id = $2 AND kind = $3 AND identifier = $4
	`

	a, err := r.scanApprover(r.db.QueryRow(ctx, query, assignmentID, approvalLevelID, kind, identifier))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to find approver")
	}
	return a, nil
}

// ListApprovers retrieves the active approvers of an assignment at a level,
// optionally including materialized inherited copies.
func (r *AssignmentRepository) ListApprovers(ctx context.Context, assignmentID, approvalLevelID int64, includeInherited bool) ([]*assignment.Approver, error) {
	query := `
		SELECT ` + approverColumns + `
		FROM approvers
		WHERE assignment_id = $1 AND approval_level_id = $2 AND active
	`
	if !includeInherited {
		query += ` AND ancestor_id = 0`
	}
	query += ` ORDER BY id`

	rows, err := r.db.Query(ctx, query, assignmentID, approvalLevelID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list approvers")
	}
	defer rows.Close()

	out := make([]*assignment.Approver, 0)
	for rows.Next() {
		a, err := r.scanApprover(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan approver")
		}
		out = append(out, a)
	}
	return out, nil
}

// ListInheritedApprovers retrieves the active materialized inherited rows of
// a pairing.
func (r *AssignmentRepository) ListInheritedApprovers(ctx context.Context, assignmentID, approvalLevelID int64) ([]*assignment.Approver, error) {
	query := `
		SELECT ` + approverColumns + `
		FROM approvers
		WHERE assignment_id = $1 AND approval_level_id = $2 AND active AND ancestor_id <> 0
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query, assignmentID, approvalLevelID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list inherited approvers")
	}
	defer rows.Close()

	out := make([]*assignment.Approver, 0)
	for rows.Next() {
		a, err := r.scanApprover(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan approver")
		}
		out = append(out, a)
	}
	return out, nil
}

// InsertApprover inserts an approver row.
func (r *AssignmentRepository) InsertApprover(ctx context.Context, a *assignment.Approver) error {
	query := `
		INSERT INTO approvers (assignment_id, approval_level_id, kind, identifier, active, ancestor_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		a.AssignmentID,
		a.ApprovalLevelID,
		a.Kind,
		a.Identifier,
		a.Active,
		a.AncestorID,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to insert approver")
	}
	return nil
}

// UpdateApprover rewrites an approver row's mutable columns.
func (r *AssignmentRepository) UpdateApprover(ctx context.Context, a *assignment.Approver) error {
	query := `
		UPDATE approvers
		SET active = $2, ancestor_id = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING id
	`

	var returnedID int64
	err := r.db.QueryRow(ctx, query, a.ID, a.Active, a.AncestorID).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.NotFound("approver", a.ID)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update approver")
	}
	return nil
}

// ── scan helpers ──────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *AssignmentRepository) scanAssignment(row rowScanner) (*assignment.Assignment, error) {
	a := &assignment.Assignment{}
	err := row.Scan(
		&a.ID,
		&a.WorkflowID,
		&a.Type,
		&a.Identifier,
		&a.Name,
		&a.IDNumber,
		&a.IsDefault,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *AssignmentRepository) scanApprover(row rowScanner) (*assignment.Approver, error) {
	a := &assignment.Approver{}
	err := row.Scan(
		&a.ID,
		&a.AssignmentID,
		&a.ApprovalLevelID,
		&a.Kind,
		&a.Identifier,
		&a.Active,
		&a.AncestorID,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}
