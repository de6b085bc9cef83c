// Package repository persists workflows, assignments and applications with
// raw SQL over pgx. Composite writes run in a single transaction through
// database.InTransaction.
package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-approval-workflows/internal/database"
	"github.com/pesio-ai/be-approval-workflows/internal/errors"
	"github.com/pesio-ai/be-approval-workflows/internal/workflow"
)

// WorkflowRepository loads workflow definitions: the workflow row and the
// full stage graph of a version (stages, approval levels, formviews).
type WorkflowRepository struct {
	db *database.DB
}

// NewWorkflowRepository creates a new WorkflowRepository.
func NewWorkflowRepository(db *database.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// GetWorkflow retrieves a workflow with its type name.
func (r *WorkflowRepository) GetWorkflow(ctx context.Context, id int64) (*workflow.Workflow, error) {
	query := `
		SELECT w.id, w.workflow_type_id, wt.name, w.name, w.id_number,
		       w.default_assignment_id, w.active, w.created_at, w.updated_at
		FROM workflows w
		JOIN workflow_types wt ON wt.id = w.workflow_type_id
		WHERE w.id = $1
	`

	wf := &workflow.Workflow{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&wf.ID,
		&wf.WorkflowTypeID,
		&wf.WorkflowTypeName,
		&wf.Name,
		&wf.IDNumber,
		&wf.DefaultAssignmentID,
		&wf.Active,
		&wf.CreatedAt,
		&wf.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("workflow", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get workflow")
	}
	return wf, nil
}

// GetWorkflowByTypeName resolves the single active workflow of a named type.
// More than one match fails loudly rather than picking arbitrarily.
func (r *WorkflowRepository) GetWorkflowByTypeName(ctx context.Context, typeName string) (*workflow.Workflow, error) {
	query := `
		SELECT w.id, w.workflow_type_id, wt.name, w.name, w.id_number,
		       w.default_assignment_id, w.active, w.created_at, w.updated_at
		FROM workflows w
		JOIN workflow_types wt ON wt.id = w.workflow_type_id
		WHERE wt.name = $1 AND w.active
	`

	rows, err := r.db.Query(ctx, query, typeName)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to query workflows by type name")
	}
	defer rows.Close()

	var matches []*workflow.Workflow
	for rows.Next() {
		wf := &workflow.Workflow{}
		err := rows.Scan(
			&wf.ID,
			&wf.WorkflowTypeID,
			&wf.WorkflowTypeName,
			&wf.Name,
			&wf.IDNumber,
			&wf.DefaultAssignmentID,
			&wf.Active,
			&wf.CreatedAt,
			&wf.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan workflow")
		}
		matches = append(matches, wf)
	}

	switch len(matches) {
	case 0:
		return nil, errors.NotFound("workflow", typeName)
	case 1:
		return matches[0], nil
	default:
		return nil, errors.Newf(errors.ErrCodeAmbiguous, "multiple active workflows match type %q", typeName)
	}
}

// GetVersion retrieves a workflow version with its complete stage graph.
func (r *WorkflowRepository) GetVersion(ctx context.Context, id int64) (*workflow.WorkflowVersion, error) {
	query := `
		SELECT id, workflow_id, status, created_at, updated_at
		FROM workflow_versions
		WHERE id = $1
	`

	v := &workflow.WorkflowVersion{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&v.ID,
		&v.WorkflowID,
		&v.Status,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("workflow_version", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get workflow version")
	}

	if err := r.loadStages(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// GetLatestVersion retrieves the most recently created version of a workflow.
func (r *WorkflowRepository) GetLatestVersion(ctx context.Context, workflowID int64) (*workflow.WorkflowVersion, error) {
	query := `
		SELECT id
		FROM workflow_versions
		WHERE workflow_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var id int64
	err := r.db.QueryRow(ctx, query, workflowID).Scan(&id)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("workflow_version", workflowID)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get latest workflow version")
	}
	return r.GetVersion(ctx, id)
}

// GetApprovalLevel retrieves a single approval level.
func (r *WorkflowRepository) GetApprovalLevel(ctx context.Context, id int64) (*workflow.ApprovalLevel, error) {
	query := `
		SELECT id, stage_id, name, ordinal, active
		FROM approval_levels
		WHERE id = $1
	`

	level := &workflow.ApprovalLevel{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&level.ID,
		&level.StageID,
		&level.Name,
		&level.Ordinal,
		&level.Active,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("approval_level", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get approval level")
	}
	return level, nil
}

// ── Stage graph assembly ──────────────────────────────────────────────────────

func (r *WorkflowRepository) loadStages(ctx context.Context, v *workflow.WorkflowVersion) error {
	stageQuery := `
		SELECT id, workflow_version_id, name, type, ordinal, active
		FROM workflow_stages
		WHERE workflow_version_id = $1 AND active
		ORDER BY ordinal
	`

	rows, err := r.db.Query(ctx, stageQuery, v.ID)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to get workflow stages")
	}
	defer rows.Close()

	byID := map[int64]*workflow.Stage{}
	for rows.Next() {
		s := &workflow.Stage{}
		err := rows.Scan(&s.ID, &s.WorkflowVersionID, &s.Name, &s.Type, &s.Ordinal, &s.Active)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to scan workflow stage")
		}
		v.Stages = append(v.Stages, s)
		byID[s.ID] = s
	}
	rows.Close()
	if len(v.Stages) == 0 {
		return nil
	}

	levelQuery := `
		SELECT l.id, l.stage_id, l.name, l.ordinal, l.active
		FROM approval_levels l
		JOIN workflow_stages s ON s.id = l.stage_id
		WHERE s.workflow_version_id = $1 AND l.active
		ORDER BY l.ordinal
	`

	levelRows, err := r.db.Query(ctx, levelQuery, v.ID)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to get approval levels")
	}
	defer levelRows.Close()

	for levelRows.Next() {
		l := &workflow.ApprovalLevel{}
		err := levelRows.Scan(&l.ID, &l.StageID, &l.Name, &l.Ordinal, &l.Active)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to scan approval level")
		}
		if s, ok := byID[l.StageID]; ok {
			s.ApprovalLevels = append(s.ApprovalLevels, l)
		}
	}
	levelRows.Close()

	formviewQuery := `
		SELECT f.id, f.stage_id, f.field_key, f.visibility, f.default_value, f.active
		FROM formviews f
		JOIN workflow_stages s ON s.id = f.stage_id
		WHERE s.workflow_version_id = $1 AND f.active
		ORDER BY f.id
	`

	fvRows, err := r.db.Query(ctx, formviewQuery, v.ID)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to get formviews")
	}
	defer fvRows.Close()

	for fvRows.Next() {
		fv := &workflow.Formview{}
		err := fvRows.Scan(&fv.ID, &fv.StageID, &fv.FieldKey, &fv.Visibility, &fv.DefaultValue, &fv.Active)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to scan formview")
		}
		if s, ok := byID[fv.StageID]; ok {
			s.Formviews = append(s.Formviews, fv)
		}
	}
	return nil
}
