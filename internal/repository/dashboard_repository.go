package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/pesio-ai/be-approval-workflows/internal/application"
	"github.com/pesio-ai/be-approval-workflows/internal/database"
	"github.com/pesio-ai/be-approval-workflows/internal/errors"
)

// DashboardSort names the orderings of the applications-for-others listing.
type DashboardSort string

const (
	SortNewestFirst      DashboardSort = "newest_first"
	SortOldestFirst      DashboardSort = "oldest_first"
	SortSubmitted        DashboardSort = "submitted"
	SortWorkflowTypeName DashboardSort = "workflow_type_name"
	SortApplicantName    DashboardSort = "applicant_name"
	SortTitle            DashboardSort = "title"
	SortIDNumber         DashboardSort = "id_number"
)

// DashboardVisibility carries the viewer's precomputed visibility: rows they
// own are always visible, the rest is granted per assignment or applicant
// context, with drafts gated by a separate capability family.
type DashboardVisibility struct {
	ViewerID int64

	// Non-draft rows.
	Assignments     []int64 // assignment contexts with the dashboard capability
	Applicants      []int64 // applicant user contexts with the dashboard capability
	SelfAssignments []int64 // assignment contexts where the viewer sees their own rows

	// Draft rows.
	DraftAssignments     []int64
	DraftApplicants      []int64
	DraftSelfAssignments []int64
}

// DashboardFilter narrows the listing. Zero values mean no filtering.
type DashboardFilter struct {
	ApplicationID    int64
	IDNumber         string
	WorkflowTypeName string
	OverallProgress  application.OverallProgress
	ApplicantName    string // substring, case-insensitive
}

// DashboardRow is one listing row with the joined workflow identity.
// SortKey is the row's position under the requested ordering, usable as a
// cursor anchor when a caller cuts a page short.
type DashboardRow struct {
	Application      *application.Application
	WorkflowID       int64
	WorkflowTypeName string
	OverallProgress  application.OverallProgress
	SortKey          string
}

// DashboardPage is one page of rows plus the cursor for the next one. An
// empty NextCursor means the listing is exhausted.
type DashboardPage struct {
	Rows       []*DashboardRow
	NextCursor string
}

// dashboardCursor is the keyset position: the sort key of the last row seen
// plus its id as tiebreaker.
type dashboardCursor struct {
	Key string `json:"k"`
	ID  int64  `json:"id"`
}

// EncodeCursor serializes a keyset position into an opaque page token.
func EncodeCursor(key string, id int64) string {
	raw, _ := json.Marshal(dashboardCursor{Key: key, ID: id})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses a page token produced by EncodeCursor.
func DecodeCursor(token string) (string, int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", 0, errors.InvalidInput("cursor", "malformed page token")
	}
	var c dashboardCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return "", 0, errors.InvalidInput("cursor", "malformed page token")
	}
	return c.Key, c.ID, nil
}

// DashboardRepository serves the applications-for-others listing with keyset
// pagination over a stable ordering.
type DashboardRepository struct {
	db *database.DB
}

// NewDashboardRepository creates a new DashboardRepository.
func NewDashboardRepository(db *database.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// sortSpec maps a sort to its SQL key expression and direction. Every key is
// text so cursors stay uniform; timestamps are rendered in a sortable form.
type sortSpec struct {
	keyExpr    string
	descending bool
}

func specFor(sort DashboardSort) (sortSpec, error) {
	switch sort {
	case SortNewestFirst, "":
		return sortSpec{keyExpr: `to_char(a.created_at AT TIME ZONE 'UTC', 'YYYYMMDDHH24MISSUS')`, descending: true}, nil
	case SortOldestFirst:
		return sortSpec{keyExpr: `to_char(a.created_at AT TIME ZONE 'UTC', 'YYYYMMDDHH24MISSUS')`}, nil
	case SortSubmitted:
		// Unsubmitted rows sort last under the descending order.
		return sortSpec{keyExpr: `COALESCE(to_char(a.submitted_at AT TIME ZONE 'UTC', 'YYYYMMDDHH24MISSUS'), '')`, descending: true}, nil
	case SortWorkflowTypeName:
		return sortSpec{keyExpr: `lower(wt.name)`}, nil
	case SortApplicantName:
		return sortSpec{keyExpr: `lower(a.applicant_name)`}, nil
	case SortTitle:
		return sortSpec{keyExpr: `lower(a.title)`}, nil
	case SortIDNumber:
		return sortSpec{keyExpr: `a.id_number`}, nil
	default:
		return sortSpec{}, errors.InvalidInput("sort", fmt.Sprintf("unknown sort %q", sort))
	}
}

// ListForOthers retrieves one page of the listing. Draft rows are only
// returned through the draft visibility grants or ownership; page N+1 never
// repeats or skips rows present when page N was fetched, absent concurrent
// mutation.
func (r *DashboardRepository) ListForOthers(ctx context.Context, vis DashboardVisibility, f DashboardFilter, sort DashboardSort, cursor string, limit int) (*DashboardPage, error) {
	spec, err := specFor(sort)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT a.id, a.title, a.id_number, a.user_id, a.applicant_name,
		       a.creator_id, a.owner_id, a.workflow_version_id, a.assignment_id,
		       a.stage_id, a.approval_level_id, a.is_draft,
		       a.submitter_id, a.submitted_at, a.completed_at,
		       a.created_at, a.updated_at,
		       w.id, wt.name, a.overall_progress,
		       ` + spec.keyExpr + ` AS sort_key
		FROM applications a
		JOIN workflow_versions v ON v.id = a.workflow_version_id
		JOIN workflows w ON w.id = v.workflow_id
		JOIN workflow_types wt ON wt.id = w.workflow_type_id
		WHERE (
		    a.owner_id = $1
		    OR (NOT a.is_draft AND (
		        a.assignment_id = ANY($2)
		        OR a.user_id = ANY($3)
		        OR (a.user_id = $1 AND a.assignment_id = ANY($4))
		    ))
		    OR (a.is_draft AND (
		        a.assignment_id = ANY($5)
		        OR a.user_id = ANY($6)
		        OR (a.user_id = $1 AND a.assignment_id = ANY($7))
		    ))
		)
	`

	args := []interface{}{
		vis.ViewerID,
		vis.Assignments,
		vis.Applicants,
		vis.SelfAssignments,
		vis.DraftAssignments,
		vis.DraftApplicants,
		vis.DraftSelfAssignments,
	}
	argCount := 8

	if f.ApplicationID != 0 {
		query += fmt.Sprintf(" AND a.id = $%d", argCount)
		args = append(args, f.ApplicationID)
		argCount++
	}
	if f.IDNumber != "" {
		query += fmt.Sprintf(" AND a.id_number = $%d", argCount)
		args = append(args, f.IDNumber)
		argCount++
	}
	if f.WorkflowTypeName != "" {
		query += fmt.Sprintf(" AND wt.name = $%d", argCount)
		args = append(args, f.WorkflowTypeName)
		argCount++
	}
	if f.OverallProgress != "" {
		query += fmt.Sprintf(" AND a.overall_progress = $%d", argCount)
		args = append(args, f.OverallProgress)
		argCount++
	}
	if f.ApplicantName != "" {
		query += fmt.Sprintf(" AND a.applicant_name ILIKE '%%' || $%d || '%%'", argCount)
		args = append(args, f.ApplicantName)
		argCount++
	}

	if cursor != "" {
		key, id, err := DecodeCursor(cursor)
		if err != nil {
			return nil, err
		}
		cmp := ">"
		if spec.descending {
			cmp = "<"
		}
		query += fmt.Sprintf(
			" AND (%s %s $%d OR (%s = $%d AND a.id %s $%d))",
			spec.keyExpr, cmp, argCount, spec.keyExpr, argCount, cmp, argCount+1,
		)
		args = append(args, key, id)
		argCount += 2
	}

	dir := "ASC"
	if spec.descending {
		dir = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY sort_key %s, a.id %s", dir, dir)
	query += fmt.Sprintf(" LIMIT $%d", argCount)
	args = append(args, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list applications for others")
	}
	defer rows.Close()

	page := &DashboardPage{Rows: make([]*DashboardRow, 0, limit)}
	for rows.Next() {
		app := &application.Application{}
		row := &DashboardRow{Application: app}
		err := rows.Scan(
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
			&row.WorkflowID,
			&row.WorkflowTypeName,
			&row.OverallProgress,
			&row.SortKey,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan dashboard row")
		}
		page.Rows = append(page.Rows, row)
	}

	if len(page.Rows) == limit {
		last := page.Rows[len(page.Rows)-1]
		page.NextCursor = EncodeCursor(last.SortKey, last.Application.ID)
	}
	return page, nil
}
