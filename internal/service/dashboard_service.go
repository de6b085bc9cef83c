package service

import (
	"context"

	"github.com/pesio-ai/be-approval-workflows/internal/application"
	"github.com/pesio-ai/be-approval-workflows/internal/interactor"
	"github.com/pesio-ai/be-approval-workflows/internal/logger"
	"github.com/pesio-ai/be-approval-workflows/internal/repository"
)

// CapabilityMapBuilder precomputes a user's full capability map, used to
// derive dashboard visibility in bulk instead of per-row checks.
type CapabilityMapBuilder interface {
	MapFor(ctx context.Context, userID int64) (*interactor.CapabilityMap, error)
}

// DashboardStore serves pages of the applications-for-others listing.
type DashboardStore interface {
	ListForOthers(ctx context.Context, vis repository.DashboardVisibility, f repository.DashboardFilter, sort repository.DashboardSort, cursor string, limit int) (*repository.DashboardPage, error)
}

// DashboardService answers the applications-for-others listing: visibility
// from the viewer's capability map, filters and sorts pushed to storage, and
// the per-viewer progress derivation applied on top.
type DashboardService struct {
	store DashboardStore
	apps  *ApplicationService
	maps  CapabilityMapBuilder
	log   *logger.Logger
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(store DashboardStore, apps *ApplicationService, maps CapabilityMapBuilder, log *logger.Logger) *DashboardService {
	return &DashboardService{store: store, apps: apps, maps: maps, log: log}
}

// DashboardQuery carries the listing parameters of one request.
type DashboardQuery struct {
	ApplicationID    int64
	IDNumber         string
	WorkflowTypeName string
	ApplicantName    string
	OverallProgress  application.OverallProgress
	YourProgress     application.YourProgress
	Sort             repository.DashboardSort
	Cursor           string
	Limit            int
}

// DashboardEntry is one listing row with the viewer's progress attached.
type DashboardEntry struct {
	Row          *repository.DashboardRow
	YourProgress application.YourProgress
}

// DashboardResult is one page of entries. An empty NextCursor means the
// listing is exhausted.
type DashboardResult struct {
	Entries    []*DashboardEntry
	NextCursor string
}

const (
	defaultDashboardLimit = 20
	maxDashboardLimit     = 100

	// The your-progress filter is applied after the storage query, so a
	// sparse match may need several pages. The scan is bounded; callers
	// continue from NextCursor.
	maxDashboardPages = 10
)

// ListForOthers retrieves one page of the listing for a viewer. Draft rows
// appear only for owners and holders of the draft dashboard capabilities.
func (s *DashboardService) ListForOthers(ctx context.Context, viewerID int64, q DashboardQuery) (*DashboardResult, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultDashboardLimit
	}
	if limit > maxDashboardLimit {
		limit = maxDashboardLimit
	}

	capMap, err := s.maps.MapFor(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	vis := dashboardVisibility(capMap, viewerID)
	filter := repository.DashboardFilter{
		ApplicationID:    q.ApplicationID,
		IDNumber:         q.IDNumber,
		WorkflowTypeName: q.WorkflowTypeName,
		OverallProgress:  q.OverallProgress,
		ApplicantName:    q.ApplicantName,
	}

	out := &DashboardResult{Entries: make([]*DashboardEntry, 0, limit)}
	cursor := q.Cursor
	for pages := 0; pages < maxDashboardPages; pages++ {
		page, err := s.store.ListForOthers(ctx, vis, filter, q.Sort, cursor, limit)
		if err != nil {
			return nil, err
		}

		for _, row := range page.Rows {
			yours, err := s.yourProgressFor(ctx, row.Application.ID, viewerID)
			if err != nil {
				return nil, err
			}
			if q.YourProgress != "" && yours != q.YourProgress {
				continue
			}
			out.Entries = append(out.Entries, &DashboardEntry{Row: row, YourProgress: yours})
			if len(out.Entries) == limit {
				out.NextCursor = repository.EncodeCursor(row.SortKey, row.Application.ID)
				return out, nil
			}
		}

		if page.NextCursor == "" {
			return out, nil
		}
		cursor = page.NextCursor
	}

	out.NextCursor = cursor
	return out, nil
}

func (s *DashboardService) yourProgressFor(ctx context.Context, applicationID, viewerID int64) (application.YourProgress, error) {
	m, err := s.apps.GetApplication(ctx, applicationID)
	if err != nil {
		return "", err
	}
	return m.YourProgress(ctx, s.apps.approverDeps(), viewerID)
}

// dashboardVisibility translates the viewer's capability map into the
// listing's visibility sets. The applicant variant only covers the viewer's
// own rows; the draft family is consulted separately, drafts are never shown
// through the plain dashboard grants.
func dashboardVisibility(m *interactor.CapabilityMap, viewerID int64) repository.DashboardVisibility {
	vis := repository.DashboardVisibility{ViewerID: viewerID}

	collect := func(base string) (assignments, applicants, self []int64) {
		for _, c := range m.Contexts(base + "_any") {
			if c.Type == interactor.ContextAssignment {
				assignments = append(assignments, c.ID)
			}
		}
		for _, c := range m.Contexts(base + "_user") {
			if c.Type == interactor.ContextUser {
				applicants = append(applicants, c.ID)
			}
		}
		for _, c := range m.Contexts(base + "_applicant") {
			if c.Type == interactor.ContextAssignment {
				self = append(self, c.ID)
			}
		}
		return
	}

	vis.Assignments, vis.Applicants, vis.SelfAssignments = collect(interactor.CapViewInDashboard)
	vis.DraftAssignments, vis.DraftApplicants, vis.DraftSelfAssignments = collect(interactor.CapViewDraftInDashboard)
	return vis
}
