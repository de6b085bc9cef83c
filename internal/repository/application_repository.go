package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-approval-workflows/internal/application"
	"github.com/pesio-ai/be-approval-workflows/internal/database"
	"github.com/pesio-ai/be-approval-workflows/internal/errors"
)

// ApplicationRepository persists applications with their actions,
// submissions and activity trail. Every transition is applied in one
// transaction with a guarded state write; a stale expected state surfaces as
// a CONFLICT error.
type ApplicationRepository struct {
	db *database.DB
}

// NewApplicationRepository creates a new ApplicationRepository.
func NewApplicationRepository(db *database.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

const applicationColumns = `
	id, title, id_number, user_id, applicant_name, creator_id, owner_id,
	workflow_version_id, assignment_id, stage_id, approval_level_id, is_draft,
	submitter_id, submitted_at, completed_at, created_at, updated_at
`

// GetApplication retrieves an application by id.
func (r *ApplicationRepository) GetApplication(ctx context.Context, id int64) (*application.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`

	app, err := r.scanApplication(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("application", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get application")
	}
	return app, nil
}

// ListActions retrieves an application's actions, oldest first.
func (r *ApplicationRepository) ListActions(ctx context.Context, applicationID int64) ([]*application.Action, error) {
	query := `
		SELECT id, application_id, user_id, code, stage_id, approval_level_id, superseded, created_at
		FROM application_actions
		WHERE application_id = $1
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query, applicationID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list application actions")
	}
	defer rows.Close()

	out := make([]*application.Action, 0)
	for rows.Next() {
		a := &application.Action{}
		err := rows.Scan(&a.ID, &a.ApplicationID, &a.UserID, &a.Code, &a.StageID, &a.ApprovalLevelID, &a.Superseded, &a.CreatedAt)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan application action")
		}
		out = append(out, a)
	}
	return out, nil
}

// ListSubmissions retrieves an application's submissions, oldest first.
func (r *ApplicationRepository) ListSubmissions(ctx context.Context, applicationID int64) ([]*application.Submission, error) {
	query := `
		SELECT id, application_id, user_id, stage_id, form_data, superseded, submitted_at, created_at, updated_at
		FROM application_submissions
		WHERE application_id = $1
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query, applicationID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list application submissions")
	}
	defer rows.Close()

	out := make([]*application.Submission, 0)
	for rows.Next() {
		s := &application.Submission{}
		err := rows.Scan(&s.ID, &s.ApplicationID, &s.UserID, &s.StageID, &s.FormData, &s.Superseded, &s.SubmittedAt, &s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan application submission")
		}
		out = append(out, s)
	}
	return out, nil
}

// ListActivities retrieves an application's audit trail, oldest first. A
// source link whose application was deleted comes back as the deleted-source
// sentinel rather than a dangling id.
func (r *ApplicationRepository) ListActivities(ctx context.Context, applicationID int64) ([]*application.ActivityRecord, error) {
	query := `
		SELECT act.id, act.application_id, act.actor_id, act.stage_id,
		       act.approval_level_id, act.activity,
		       CASE
		           WHEN act.source_application_id IS NULL THEN 0
		           WHEN src.id IS NULL THEN $2
		           ELSE act.source_application_id
		       END,
		       act.created_at
		FROM application_activities act
		LEFT JOIN applications src ON src.id = act.source_application_id
		WHERE act.application_id = $1
		ORDER BY act.id
	`

	rows, err := r.db.Query(ctx, query, applicationID, application.SourceDeleted)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list application activities")
	}
	defer rows.Close()

	out := make([]*application.ActivityRecord, 0)
	for rows.Next() {
		a := &application.ActivityRecord{}
		err := rows.Scan(&a.ID, &a.ApplicationID, &a.ActorID, &a.StageID, &a.ApprovalLevelID, &a.Activity, &a.SourceApplicationID, &a.CreatedAt)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan application activity")
		}
		out = append(out, a)
	}
	return out, nil
}

// CreateApplication inserts an application and its opening activities in one
// transaction.
func (r *ApplicationRepository) CreateApplication(ctx context.Context, app *application.Application, activities []*application.ActivityRecord) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO applications
			    (title, id_number, user_id, applicant_name, creator_id, owner_id,
			     workflow_version_id, assignment_id, stage_id, approval_level_id,
			     is_draft, overall_progress)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id, created_at, updated_at
		`

		progress := application.ProgressInProgress
		if app.IsDraft {
			progress = application.ProgressDraft
		}
		err := tx.QueryRow(ctx, query,
			app.Title,
			app.IDNumber,
			app.UserID,
			app.ApplicantName,
			app.CreatorID,
			app.OwnerID,
			app.WorkflowVersionID,
			app.AssignmentID,
			app.StageID,
			app.ApprovalLevelID,
			app.IsDraft,
			progress,
		).Scan(&app.ID, &app.CreatedAt, &app.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to create application")
		}

		return insertActivities(ctx, tx, app.ID, activities)
	})
}

// SaveSubmission inserts a new submission or rewrites an existing draft.
func (r *ApplicationRepository) SaveSubmission(ctx context.Context, sub *application.Submission) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		return saveSubmission(ctx, tx, sub)
	})
}

// ApplyTransition applies one application mutation atomically. The state
// write is guarded by the expected state; when another writer got there
// first the transition fails with a CONFLICT.
func (r *ApplicationRepository) ApplyTransition(ctx context.Context, applicationID int64, t *application.Transition) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		stateQuery := `
			UPDATE applications
			SET stage_id = $2,
			    approval_level_id = $3,
			    is_draft = $4,
			    overall_progress = $5,
			    updated_at = NOW()
			WHERE id = $1
			  AND stage_id = $6 AND approval_level_id = $7 AND is_draft = $8
			RETURNING id
		`

		var returnedID int64
		err := tx.QueryRow(ctx, stateQuery,
			applicationID,
			t.Next.StageID(),
			t.Next.ApprovalLevelID(),
			t.Next.IsDraft(),
			progressFor(t),
			t.Expected.StageID(),
			t.Expected.ApprovalLevelID(),
			t.Expected.IsDraft(),
		).Scan(&returnedID)
		if err == pgx.ErrNoRows {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM applications WHERE id = $1)`, applicationID).Scan(&exists); err != nil {
				return errors.Wrap(err, errors.ErrCodeInternal, "failed to check application")
			}
			if !exists {
				return errors.NotFound("application", applicationID)
			}
			return errors.New(errors.ErrCodeConflict, "application state has changed")
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to update application state")
		}

		if t.SupersedePriorActions {
			_, err := tx.Exec(ctx, `
				UPDATE application_actions SET superseded = TRUE
				WHERE application_id = $1 AND NOT superseded
			`, applicationID)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeInternal, "failed to supersede prior actions")
			}
		}

		if t.Action != nil {
			actionQuery := `
				INSERT INTO application_actions
				    (application_id, user_id, code, stage_id, approval_level_id, superseded)
				VALUES ($1, $2, $3, $4, $5, FALSE)
				RETURNING id, created_at
			`
			err := tx.QueryRow(ctx, actionQuery,
				applicationID,
				t.Action.UserID,
				t.Action.Code,
				t.Action.StageID,
				t.Action.ApprovalLevelID,
			).Scan(&t.Action.ID, &t.Action.CreatedAt)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeInternal, "failed to insert application action")
			}
			t.Action.ApplicationID = applicationID
		}

		if err := insertActivities(ctx, tx, applicationID, t.Activities); err != nil {
			return err
		}

		if t.Submission != nil {
			t.Submission.ApplicationID = applicationID
			if err := saveSubmission(ctx, tx, t.Submission); err != nil {
				return err
			}
			if t.SupersedeStageSubmissions != 0 {
				_, err := tx.Exec(ctx, `
					UPDATE application_submissions SET superseded = TRUE
					WHERE application_id = $1 AND stage_id = $2 AND id <> $3
					  AND submitted_at IS NOT NULL AND NOT superseded
				`, applicationID, t.SupersedeStageSubmissions, t.Submission.ID)
				if err != nil {
					return errors.Wrap(err, errors.ErrCodeInternal, "failed to supersede stage submissions")
				}
			}
		}

		if t.MarkSubmittedBy != 0 {
			_, err := tx.Exec(ctx, `
				UPDATE applications SET submitter_id = $2, submitted_at = NOW()
				WHERE id = $1 AND submitted_at IS NULL
			`, applicationID, t.MarkSubmittedBy)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeInternal, "failed to mark application submitted")
			}
		}

		if t.MarkCompleted {
			_, err := tx.Exec(ctx, `
				UPDATE applications SET completed_at = NOW() WHERE id = $1
			`, applicationID)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeInternal, "failed to mark application completed")
			}
		}

		return nil
	})
}

// DeleteApplication removes an application with its submissions, actions
// and activities in one transaction.
func (r *ApplicationRepository) DeleteApplication(ctx context.Context, id int64) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		for _, table := range []string{"application_submissions", "application_actions", "application_activities"} {
			if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE application_id = $1`, id); err != nil {
				return errors.Wrap(err, errors.ErrCodeInternal, "failed to delete application records")
			}
		}

		tag, err := tx.Exec(ctx, `DELETE FROM applications WHERE id = $1`, id)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to delete application")
		}
		if tag.RowsAffected() == 0 {
			return errors.NotFound("application", id)
		}
		return nil
	})
}

// ── helpers ───────────────────────────────────────────────────────────────────

// progressFor projects the transition onto the denormalized dashboard
// progress column. The projection mirrors the model's derivation: the draft
// flag and the accompanying action decide, resubmissions reset to in
// progress.
func progressFor(t *application.Transition) application.OverallProgress {
	switch {
	case t.Next.IsDraft():
		return application.ProgressDraft
	case t.Action != nil && t.Action.Code == application.ActionReject:
		return application.ProgressRejected
	case t.Action != nil && t.Action.Code.IsWithdraw():
		return application.ProgressWithdrawn
	case t.Next.IsTerminal():
		return application.ProgressFinished
	default:
		return application.ProgressInProgress
	}
}

func saveSubmission(ctx context.Context, tx pgx.Tx, sub *application.Submission) error {
	if sub.ID == 0 {
		query := `
			INSERT INTO application_submissions
			    (application_id, user_id, stage_id, form_data, superseded, submitted_at)
			VALUES ($1, $2, $3, $4, FALSE, $5)
			RETURNING id, created_at, updated_at
		`
		err := tx.QueryRow(ctx, query,
			sub.ApplicationID,
			sub.UserID,
			sub.StageID,
			sub.FormData,
			sub.SubmittedAt,
		).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to insert submission")
		}
		return nil
	}

	query := `
		UPDATE application_submissions
		SET user_id = $2, form_data = $3, submitted_at = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING id
	`
	var returnedID int64
	err := tx.QueryRow(ctx, query, sub.ID, sub.UserID, sub.FormData, sub.SubmittedAt).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.NotFound("submission", sub.ID)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update submission")
	}
	return nil
}

func insertActivities(ctx context.Context, tx pgx.Tx, applicationID int64, activities []*application.ActivityRecord) error {
	query := `
		INSERT INTO application_activities
		    (application_id, actor_id, stage_id, approval_level_id, activity, source_application_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	for _, rec := range activities {
		rec.ApplicationID = applicationID
		var source *int64
		if rec.SourceApplicationID > 0 {
			source = &rec.SourceApplicationID
		}
		err := tx.QueryRow(ctx, query,
			applicationID,
			rec.ActorID,
			rec.StageID,
			rec.ApprovalLevelID,
			rec.Activity,
			source,
		).Scan(&rec.ID, &rec.CreatedAt)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to insert activity")
		}
	}
	return nil
}

func (r *ApplicationRepository) scanApplication(row rowScanner) (*application.Application, error) {
	app := &application.Application{}
	err := row.Scan(
		&app.ID,
		&app.Title,
		&app.IDNumber,
		&app.UserID,
		&app.ApplicantName,
		&app.CreatorID,
		&app.OwnerID,
		&app.WorkflowVersionID,
		&app.AssignmentID,
		&app.StageID,
		&app.ApprovalLevelID,
		&app.IsDraft,
		&app.SubmitterID,
		&app.SubmittedAt,
		&app.CompletedAt,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return app, nil
}
