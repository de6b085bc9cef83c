package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-approval-workflows/internal/application"
	"github.com/pesio-ai/be-approval-workflows/internal/assignment"
	"github.com/pesio-ai/be-approval-workflows/internal/errors"
	"github.com/pesio-ai/be-approval-workflows/internal/interactor"
	"github.com/pesio-ai/be-approval-workflows/internal/logger"
	"github.com/pesio-ai/be-approval-workflows/internal/workflow"
)

// ── In-memory fakes ───────────────────────────────────────────────────────────

type memStore struct {
	nextID      int64
	apps        map[int64]*application.Application
	actions     map[int64][]*application.Action
	submissions map[int64][]*application.Submission
	activities  map[int64][]*application.ActivityRecord
	assignments map[int64]*assignment.Assignment
	approvers   []*assignment.Approver
}

func newMemStore() *memStore {
	return &memStore{
		nextID:      1000,
		apps:        map[int64]*application.Application{},
		actions:     map[int64][]*application.Action{},
		submissions: map[int64][]*application.Submission{},
		activities:  map[int64][]*application.ActivityRecord{},
		assignments: map[int64]*assignment.Assignment{},
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) GetApplication(ctx context.Context, id int64) (*application.Application, error) {
	app, ok := s.apps[id]
	if !ok {
		return nil, errors.NotFound("application", id)
	}
	cp := *app
	return &cp, nil
}

func (s *memStore) ListActions(ctx context.Context, applicationID int64) ([]*application.Action, error) {
	return append([]*application.Action{}, s.actions[applicationID]...), nil
}

func (s *memStore) ListSubmissions(ctx context.Context, applicationID int64) ([]*application.Submission, error) {
	return append([]*application.Submission{}, s.submissions[applicationID]...), nil
}

func (s *memStore) ListActivities(ctx context.Context, applicationID int64) ([]*application.ActivityRecord, error) {
	out := make([]*application.ActivityRecord, 0, len(s.activities[applicationID]))
	for _, a := range s.activities[applicationID] {
		rec := *a
		if rec.SourceApplicationID > 0 {
			if _, ok := s.apps[rec.SourceApplicationID]; !ok {
				rec.SourceApplicationID = application.SourceDeleted
			}
		}
		out = append(out, &rec)
	}
	return out, nil
}

func (s *memStore) CreateApplication(ctx context.Context, app *application.Application, activities []*application.ActivityRecord) error {
	app.ID = s.id()
	app.CreatedAt = time.Now()
	cp := *app
	s.apps[app.ID] = &cp
	for _, a := range activities {
		rec := *a
		rec.ID = s.id()
		rec.ApplicationID = app.ID
		s.activities[app.ID] = append(s.activities[app.ID], &rec)
	}
	return nil
}

func (s *memStore) SaveSubmission(ctx context.Context, sub *application.Submission) error {
	if sub.ID == 0 {
		sub.ID = s.id()
		cp := *sub
		s.submissions[sub.ApplicationID] = append(s.submissions[sub.ApplicationID], &cp)
		return nil
	}
	for i, existing := range s.submissions[sub.ApplicationID] {
		if existing.ID == sub.ID {
			cp := *sub
			s.submissions[sub.ApplicationID][i] = &cp
			return nil
		}
	}
	return errors.NotFound("submission", sub.ID)
}

func (s *memStore) ApplyTransition(ctx context.Context, applicationID int64, t *application.Transition) error {
	app, ok := s.apps[applicationID]
	if !ok {
		return errors.NotFound("application", applicationID)
	}
	if app.StageID != t.Expected.StageID() ||
		app.IsDraft != t.Expected.IsDraft() ||
		app.ApprovalLevelID != t.Expected.ApprovalLevelID() {
		return errors.New(errors.ErrCodeConflict, "application state has changed")
	}

	app.StageID = t.Next.StageID()
	app.ApprovalLevelID = t.Next.ApprovalLevelID()
	app.IsDraft = t.Next.IsDraft()

	if t.SupersedePriorActions {
		for _, a := range s.actions[applicationID] {
			a.Superseded = true
		}
	}
	if t.Action != nil {
		a := *t.Action
		a.ID = s.id()
		a.ApplicationID = applicationID
		a.CreatedAt = time.Now()
		s.actions[applicationID] = append(s.actions[applicationID], &a)
	}
	for _, rec := range t.Activities {
		cp := *rec
		cp.ID = s.id()
		cp.ApplicationID = applicationID
		s.activities[applicationID] = append(s.activities[applicationID], &cp)
	}
	if t.Submission != nil {
		t.Submission.ApplicationID = applicationID
		if err := s.SaveSubmission(ctx, t.Submission); err != nil {
			return err
		}
		if t.SupersedeStageSubmissions != 0 {
			for _, sub := range s.submissions[applicationID] {
				if sub.StageID == t.SupersedeStageSubmissions && sub.ID != t.Submission.ID && sub.IsPublished() {
					sub.Superseded = true
				}
			}
		}
	}
	if t.MarkSubmittedBy != 0 {
		now := time.Now()
		app.SubmitterID = t.MarkSubmittedBy
		app.SubmittedAt = &now
	}
	if t.MarkCompleted {
		now := time.Now()
		app.CompletedAt = &now
	}
	return nil
}

func (s *memStore) DeleteApplication(ctx context.Context, id int64) error {
	if _, ok := s.apps[id]; !ok {
		return errors.NotFound("application", id)
	}
	delete(s.apps, id)
	delete(s.actions, id)
	delete(s.submissions, id)
	delete(s.activities, id)
	return nil
}

func (s *memStore) GetAssignment(ctx context.Context, id int64) (*assignment.Assignment, error) {
	asg, ok := s.assignments[id]
	if !ok {
		return nil, errors.NotFound("assignment", id)
	}
	return asg, nil
}

func (s *memStore) DefaultAssignment(ctx context.Context, workflowID int64) (*assignment.Assignment, error) {
	for _, a := range s.assignments {
		if a.WorkflowID == workflowID && a.IsDefault {
			return a, nil
		}
	}
	return nil, errors.NotFound("default assignment", workflowID)
}

func (s *memStore) AssignmentByTarget(ctx context.Context, workflowID int64, t assignment.Type, identifier int64) (*assignment.Assignment, error) {
	for _, a := range s.assignments {
		if a.WorkflowID == workflowID && a.Type == t && a.Identifier == identifier && !a.IsDefault {
			return a, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListOverrides(ctx context.Context, workflowID int64) ([]*assignment.Assignment, error) {
	var out []*assignment.Assignment
	for _, a := range s.assignments {
		if a.WorkflowID == workflowID && !a.IsDefault {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memStore) ListApprovers(ctx context.Context, assignmentID, approvalLevelID int64, includeInherited bool) ([]*assignment.Approver, error) {
	var out []*assignment.Approver
	for _, a := range s.approvers {
		if a.AssignmentID != assignmentID || a.ApprovalLevelID != approvalLevelID || !a.Active {
			continue
		}
		if a.IsInherited() && !includeInherited {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

type memWorkflows struct {
	workflows map[int64]*workflow.Workflow
	versions  map[int64]*workflow.WorkflowVersion
	latest    map[int64]int64
}

func (w *memWorkflows) GetWorkflow(ctx context.Context, id int64) (*workflow.Workflow, error) {
	wf, ok := w.workflows[id]
	if !ok {
		return nil, errors.NotFound("workflow", id)
	}
	return wf, nil
}

func (w *memWorkflows) GetWorkflowByTypeName(ctx context.Context, typeName string) (*workflow.Workflow, error) {
	var matches []*workflow.Workflow
	for _, wf := range w.workflows {
		if wf.Active && wf.WorkflowTypeName == typeName {
			matches = append(matches, wf)
		}
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

func (w *memWorkflows) GetVersion(ctx context.Context, id int64) (*workflow.WorkflowVersion, error) {
	v, ok := w.versions[id]
	if !ok {
		return nil, errors.NotFound("workflow version", id)
	}
	return v, nil
}

func (w *memWorkflows) GetLatestVersion(ctx context.Context, workflowID int64) (*workflow.WorkflowVersion, error) {
	return w.GetVersion(ctx, w.latest[workflowID])
}

func (w *memWorkflows) GetApprovalLevel(ctx context.Context, id int64) (*workflow.ApprovalLevel, error) {
	for _, v := range w.versions {
		for _, stage := range v.Stages {
			for _, level := range stage.ApprovalLevels {
				if level.ID == id {
					return level, nil
				}
			}
		}
	}
	return nil, errors.NotFound("approval level", id)
}

type flatHierarchy struct{}

func (flatHierarchy) Ancestors(ctx context.Context, t assignment.Type, id int64) ([]int64, error) {
	return nil, nil
}

func (flatHierarchy) Children(ctx context.Context, t assignment.Type, id int64) ([]int64, error) {
	return nil, nil
}

type noRelationships struct{}

func (noRelationships) ResolveRelationship(ctx context.Context, relationshipID, subjectUserID int64) ([]int64, error) {
	return nil, nil
}

type grantKey struct {
	capability string
	ctx        interactor.Context
	userID     int64
}

// grantProvider is both the CapabilityProvider and the CapabilityResolver of
// the fixture: every user resolves to the same grant table.
type grantProvider struct {
	grants map[grantKey]bool
}

func (p *grantProvider) HasCapability(capability string, c interactor.Context, userID int64) bool {
	return p.grants[grantKey{capability, c, userID}]
}

func (p *grantProvider) ProviderFor(ctx context.Context, userID int64) (interactor.CapabilityProvider, error) {
	return p, nil
}

func (p *grantProvider) grant(capability string, c interactor.Context, userID int64) {
	p.grants[grantKey{capability, c, userID}] = true
}

type capturePublisher struct {
	events []string
}

func (p *capturePublisher) PublishApplicationEvent(ctx context.Context, event string, app *application.Application) error {
	p.events = append(p.events, event)
	return nil
}

// ── Fixture ───────────────────────────────────────────────────────────────────

const (
	fixtureWorkflowID   = int64(1)
	fixtureAssignmentID = int64(100)
	applicantID         = int64(42)
	approver1ID         = int64(501)
	approver2ID         = int64(502)
	outsiderID          = int64(999)
)

func fixtureVersion() *workflow.WorkflowVersion {
	form := &workflow.Stage{
		ID:      10,
		Name:    "Request",
		Type:    workflow.StageFormSubmission,
		Ordinal: 1,
		Active:  true,
		Formviews: []*workflow.Formview{
			{ID: 1, StageID: 10, FieldKey: "reason", Visibility: workflow.FormviewEditableRequired, Active: true},
		},
	}
	approvals := &workflow.Stage{
		ID:      20,
		Name:    "Sign-off",
		Type:    workflow.StageApprovals,
		Ordinal: 2,
		Active:  true,
		ApprovalLevels: []*workflow.ApprovalLevel{
			{ID: 21, StageID: 20, Name: "Level 1", Ordinal: 1, Active: true},
			{ID: 22, StageID: 20, Name: "Level 2", Ordinal: 2, Active: true},
		},
		Formviews: []*workflow.Formview{
			{ID: 2, StageID: 20, FieldKey: "reason", Visibility: workflow.FormviewEditable, Active: true},
		},
	}
	waiting := &workflow.Stage{ID: 30, Name: "Processing", Type: workflow.StageWaiting, Ordinal: 3, Active: true}
	finished := &workflow.Stage{ID: 40, Name: "Done", Type: workflow.StageFinished, Ordinal: 4, Active: true}

	return &workflow.WorkflowVersion{
		ID:         1,
		WorkflowID: fixtureWorkflowID,
		Status:     workflow.StatusActive,
		Stages:     []*workflow.Stage{form, approvals, waiting, finished},
	}
}

type fixture struct {
	store     *memStore
	workflows *memWorkflows
	caps      *grantProvider
	publisher *capturePublisher
	version   *workflow.WorkflowVersion
	svc       *ApplicationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := newMemStore()
	version := fixtureVersion()
	wf := &workflow.Workflow{
		ID:                  fixtureWorkflowID,
		WorkflowTypeID:      5,
		WorkflowTypeName:    "Leave Request",
		Name:                "Leave Request",
		DefaultAssignmentID: fixtureAssignmentID,
		Active:              true,
	}
	workflows := &memWorkflows{
		workflows: map[int64]*workflow.Workflow{wf.ID: wf},
		versions:  map[int64]*workflow.WorkflowVersion{version.ID: version},
		latest:    map[int64]int64{wf.ID: version.ID},
	}

	store.assignments[fixtureAssignmentID] = &assignment.Assignment{
		ID:         fixtureAssignmentID,
		WorkflowID: fixtureWorkflowID,
		Type:       assignment.TypeOrganisation,
		Identifier: 1,
		IsDefault:  true,
		Status:     workflow.StatusActive,
	}
	store.approvers = []*assignment.Approver{
		{ID: 1, AssignmentID: fixtureAssignmentID, ApprovalLevelID: 21, Kind: assignment.ApproverKindUser, Identifier: approver1ID, Active: true},
		{ID: 2, AssignmentID: fixtureAssignmentID, ApprovalLevelID: 22, Kind: assignment.ApproverKindUser, Identifier: approver2ID, Active: true},
	}

	caps := &grantProvider{grants: map[grantKey]bool{}}
	asgCtx := interactor.Context{Type: interactor.ContextAssignment, ID: fixtureAssignmentID}
	for _, c := range []string{
		interactor.CapCreate, interactor.CapViewDraft, interactor.CapView,
		interactor.CapEditDraft, interactor.CapEditUnsubmitted, interactor.CapDeleteDraft,
		interactor.CapWithdrawUnsubmitted, interactor.CapWithdrawInApprovals,
	} {
		caps.grant(c+"_applicant", asgCtx, applicantID)
	}
	for _, u := range []int64{approver1ID, approver2ID} {
		caps.grant(interactor.CapApprove+"_any", asgCtx, u)
		caps.grant(interactor.CapView+"_any", asgCtx, u)
	}

	publisher := &capturePublisher{}
	svc := NewApplicationService(store, workflows, store, flatHierarchy{}, noRelationships{}, caps, publisher, logger.Nop())

	return &fixture{
		store:     store,
		workflows: workflows,
		caps:      caps,
		publisher: publisher,
		version:   version,
		svc:       svc,
	}
}

func (f *fixture) create(t *testing.T) *application.Model {
	t.Helper()
	m, err := f.svc.Create(context.Background(), CreateApplicationInput{
		AssignmentID: fixtureAssignmentID,
		ApplicantID:  applicantID,
		Title:        "Trip to Oslo",
	}, applicantID)
	require.NoError(t, err)
	return m
}

func (f *fixture) submit(t *testing.T, id int64, formData string) *application.Model {
	t.Helper()
	m, err := f.svc.Submit(context.Background(), id, applicantID, formData)
	require.NoError(t, err)
	return m
}

func (f *fixture) approve(t *testing.T, id, actorID int64) *application.Model {
	t.Helper()
	m, err := f.svc.Approve(context.Background(), id, actorID)
	require.NoError(t, err)
	return m
}

func (f *fixture) get(t *testing.T, id int64) *application.Model {
	t.Helper()
	m, err := f.svc.GetApplication(context.Background(), id)
	require.NoError(t, err)
	return m
}

// ── Creation ──────────────────────────────────────────────────────────────────

func TestCreateOpensDraft(t *testing.T) {
	f := newFixture(t)
	m := f.create(t)

	assert.True(t, m.Application.IsDraft)
	assert.Equal(t, int64(10), m.Application.StageID)
	assert.Equal(t, applicantID, m.Application.UserID)
	assert.Equal(t, applicantID, m.Application.CreatorID)
	assert.Equal(t, applicantID, m.Application.OwnerID)
	assert.Contains(t, m.Application.IDNumber, "LEAVEREQUEST")
	assert.Equal(t, []string{"application.created"}, f.publisher.events)

	acts := f.store.activities[m.Application.ID]
	require.Len(t, acts, 2)
	assert.Equal(t, workflow.ActivityCreation, acts[0].Activity)
	assert.Equal(t, workflow.ActivityStageStarted, acts[1].Activity)
}

func TestListActivities(t *testing.T) {
	f := newFixture(t)
	m := f.create(t)

	acts, err := f.svc.ListActivities(context.Background(), m.Application.ID)
	require.NoError(t, err)
	require.Len(t, acts, 2)
	assert.Equal(t, workflow.ActivityCreation, acts[0].Activity)
	assert.Equal(t, workflow.ActivityStageStarted, acts[1].Activity)

	_, err = f.svc.ListActivities(context.Background(), 9999)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound))
}

func TestCreateForbiddenWithoutCapability(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), CreateApplicationInput{
		AssignmentID: fixtureAssignmentID,
		ApplicantID:  applicantID,
	}, outsiderID)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeForbidden))
}

func TestCreateRequiresActiveVersion(t *testing.T) {
	f := newFixture(t)
	f.version.Status = workflow.StatusDraft

	_, err := f.svc.Create(context.Background(), CreateApplicationInput{
		AssignmentID: fixtureAssignmentID,
		ApplicantID:  applicantID,
	}, applicantID)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConflict))
}

func TestCreateRequiresActiveAssignment(t *testing.T) {
	f := newFixture(t)
	f.store.assignments[fixtureAssignmentID].Status = workflow.StatusArchived

	_, err := f.svc.Create(context.Background(), CreateApplicationInput{
		AssignmentID: fixtureAssignmentID,
		ApplicantID:  applicantID,
	}, applicantID)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConflict))
}

func TestCreateForWorkflowTypeUsesDefaultAssignment(t *testing.T) {
	f := newFixture(t)

	m, err := f.svc.CreateForWorkflowType(context.Background(), "Leave Request", CreateApplicationInput{
		ApplicantID: applicantID,
		Title:       "Trip to Oslo",
	}, applicantID)
	require.NoError(t, err)
	assert.Equal(t, int64(fixtureAssignmentID), m.Application.AssignmentID)
}

func TestCreateForAmbiguousWorkflowType(t *testing.T) {
	f := newFixture(t)
	f.workflows.workflows[2] = &workflow.Workflow{
		ID:               2,
		WorkflowTypeID:   5,
		WorkflowTypeName: "Leave Request",
		Name:             "Leave Request (new)",
		Active:           true,
	}

	_, err := f.svc.CreateForWorkflowType(context.Background(), "Leave Request", CreateApplicationInput{
		ApplicantID: applicantID,
	}, applicantID)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeAmbiguous))
}

// ── Editing and submitting ────────────────────────────────────────────────────

func TestSaveFormDataKeepsDraft(t *testing.T) {
	f := newFixture(t)
	m := f.create(t)

	m, err := f.svc.SaveFormData(context.Background(), m.Application.ID, applicantID, `{"reason":"conference"}`)
	require.NoError(t, err)
	assert.True(t, m.Application.IsDraft)

	sub := m.LastSubmissionForStage(10)
	require.NotNil(t, sub)
	assert.False(t, sub.IsPublished())
	assert.Equal(t, `{"reason":"conference"}`, sub.FormData)
}

func TestSubmitAdvancesToFirstApprovalLevel(t *testing.T) {
	f := newFixture(t)
	m := f.create(t)
	_, err := f.svc.SaveFormData(context.Background(), m.Application.ID, applicantID, `{"reason":"conference"}`)
	require.NoError(t, err)

	m = f.submit(t, m.Application.ID, "")

	assert.False(t, m.Application.IsDraft)
	assert.Equal(t, int64(20), m.Application.StageID)
	assert.Equal(t, int64(21), m.Application.ApprovalLevelID)
	assert.Equal(t, applicantID, m.Application.SubmitterID)
	require.NotNil(t, m.Application.SubmittedAt)
	assert.Equal(t, application.ProgressInProgress, m.OverallProgress())

	// The saved draft was published with its form data intact.
	pub := m.LastPublishedSubmission()
	require.NotNil(t, pub)
	assert.Equal(t, `{"reason":"conference"}`, pub.FormData)

	require.Len(t, m.Actions, 1)
	assert.Equal(t, application.ActionSubmit, m.Actions[0].Code)
	assert.Contains(t, f.publisher.events, "application.submitted")
}

func TestSubmitOutsideFormStageConflicts(t *testing.T) {
	f := newFixture(t)
	m := f.create(t)
	m = f.submit(t, m.Application.ID, `{"reason":"x"}`)

	_, err := f.svc.Submit(context.Background(), m.Application.ID, applicantID, `{}`)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConflict))
}

// ── Approve / Reject ──────────────────────────────────────────────────────────

func TestApproveThroughLevels(t *testing.T) {
	f := newFixture(t)
	m := f.create(t)
	m = f.submit(t, m.Application.ID, `{"reason":"x"}`)

	m = f.approve(t, m.Application.ID, approver1ID)
	assert.Equal(t, int64(22), m.Application.ApprovalLevelID)

	m = f.approve(t, m.Application.ID, approver2ID)
	assert.Equal(t, int64(30), m.Application.StageID)
	assert.Zero(t, m.Application.ApprovalLevelID)
	assert.Nil(t, m.Application.CompletedAt)

	require.Len(t, m.Actions, 3)
	assert.Equal(t, application.ActionApprove, m.Actions[1].Code)
	assert.Equal(t, int64(21), m.Actions[1].ApprovalLevelID)
	assert.Equal(t, int64(22), m.Actions[2].ApprovalLevelID)
}

func TestApproveRequiresApprover(t *testing.T) {
	f := newFixture(t)
	m := f.create(t)
	m = f.submit(t, m.Application.ID, `{"reason":"x"}`)

	_, err := f.svc.Approve(context.Background(), m.Application.ID, applicantID)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeForbidden))

	// Holders of the unconditional approve capability may act at any level.
	_, err = f.svc.Approve(context.Background(), m.Application.ID, approver2ID)
	require.NoError(t, err)
}

func TestApproveOutsideApprovalsConflicts(t *testing.T) {
	f := newFixture(t)
	m := f.create(t)

	_, err := f.svc.Approve(context.Background(), m.Application.ID, approver1ID)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConflict))
}

func TestRejectReturnsToFormStage(t *testing.T) {
	f := newFixture(t)
	m := f.create(t)
	m = f.submit(t, m.Application.ID, `{"reason":"x"}`)

	m, err := f.svc.Reject(context.Background(), m.Application.ID, approver1ID)
	require.NoError(t, err)

	assert.Equal(t, int64(10), m.Application.StageID)
	assert.False(t, m.Application.IsDraft)
	assert.Equal(t, application.ProgressRejected, m.OverallProgress())
	assert.Contains(t, f.publisher.events, "application.rejected")
}

func TestResubmitAfterRejectionStartsFreshPass(t *testing.T) {
	f := newFixture(t)
	m := f.create(t)
	m = f.submit(t, m.Application.ID, `{"reason":"x"}`)
	_, err := f.svc.Reject(context.Background(), m.Application.ID, approver1ID)
	require.NoError(t, err)

	m = f.submit(t, m.Application.ID, `{"reason":"revised"}`)

	assert.Equal(t, int64(21), m.Application.ApprovalLevelID)
	assert.Equal(t, application.ProgressInProgress, m.OverallProgress())

	// Only the fresh submit action remains in play.
	var live int
	for _, a := range m.Actions {
		if !a.Superseded {
			live++
		}
	}
	assert.Equal(t, 1, live)

	// The earlier published submission was superseded by the new one.
	pub := m.LastPublishedSubmission()
	require.NotNil(t, pub)
	assert.Equal(t, `{"reason":"revised"}`, pub.FormData)
}

// ── Withdraw ──────────────────────────────────────────────────────────────────

func TestWithdrawDuringApprovals(t *testing.T) {
	f := newFixture(t)
	m := f.create(t)
	m = f.submit(t, m.Application.ID, `{"reason":"x"}`)

	m, err := f.svc.Withdraw(context.Background(), m.Application.ID, applicantID)
	require.NoError(t, err)

	// Withdrawal leaves the application where it was.
	assert.Equal(t, int64(20), m.Application.StageID)
	assert.Equal(t, int64(21), m.Application.ApprovalLevelID)
	assert.Equal(t, application.ProgressWithdrawn, m.OverallProgress())
	assert.Equal(t, application.ActionWithdrawInApprovals, m.LastAction().Code)
}

func TestWithdrawAfterRejection(t *testing.T) {
	f := newFixture(t)
	m := f.create(t)
	m = f.submit(t, m.Application.ID, `{"reason":"x"}`)
	_, err := f.svc.Reject(context.Background(), m.Application.ID, approver1ID)
	require.NoError(t, err)

	m, err = f.svc.Withdraw(context.Background(), m.Application.ID, applicantID)
	require.NoError(t, err)
	assert.Equal(t, application.ActionWithdrawBeforeSubmission, m.LastAction().Code)
	assert.Equal(t, application.ProgressWithdrawn, m.OverallProgress())
}

func TestWithdrawDraftForbidden(t *testing.T) {
	f := newFixture(t)
	m := f.create(t)

	_, err := f.svc.Withdraw(context.Background(), m.Application.ID, applicantID)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeForbidden))
}

// ── Editing during approvals ──────────────────────────────────────────────────

func TestEditDuringApprovalsResetsToFirstLevel(t *testing.T) {
	f := newFixture(t)
	asgCtx := interactor.Context{Type: interactor.ContextAssignment, ID: fixtureAssignmentID}
	f.caps.grant(interactor.CapEditInApprovals+"_applicant", asgCtx, applicantID)

	m := f.create(t)
	m = f.submit(t, m.Application.ID, `{"reason":"x"}`)
	m = f.approve(t, m.Application.ID, approver1ID)
	require.Equal(t, int64(22), m.Application.ApprovalLevelID)

	m, err := f.svc.SaveFormData(context.Background(), m.Application.ID, applicantID, `{"reason":"changed"}`)
	require.NoError(t, err)

	assert.Equal(t, int64(21), m.Application.ApprovalLevelID)
	for _, a := range m.Actions {
		assert.True(t, a.Superseded)
	}
}

func TestEditWithoutInvalidatingKeepsApprovals(t *testing.T) {
	f := newFixture(t)
	asgCtx := interactor.Context{Type: interactor.ContextAssignment, ID: fixtureAssignmentID}
	f.caps.grant(interactor.CapEditInApprovals+"_applicant", asgCtx, applicantID)
	f.caps.grant(interactor.CapEditWithoutInvalidate+"_applicant", asgCtx, applicantID)

	m := f.create(t)
	m = f.submit(t, m.Application.ID, `{"reason":"x"}`)
	m = f.approve(t, m.Application.ID, approver1ID)

	m, err := f.svc.SaveFormData(context.Background(), m.Application.ID, applicantID, `{"reason":"typo fix"}`)
	require.NoError(t, err)

	assert.Equal(t, int64(22), m.Application.ApprovalLevelID)
	for _, a := range m.Actions {
		assert.False(t, a.Superseded)
	}
}

// ── Clone / Delete ────────────────────────────────────────────────────────────

func TestCloneCarriesFormData(t *testing.T) {
	f := newFixture(t)
	m := f.create(t)
	m = f.submit(t, m.Application.ID, `{"reason":"original"}`)

	clone, err := f.svc.Clone(context.Background(), m.Application.ID, applicantID)
	require.NoError(t, err)

	assert.NotEqual(t, m.Application.ID, clone.Application.ID)
	assert.NotEqual(t, m.Application.IDNumber, clone.Application.IDNumber)
	assert.True(t, clone.Application.IsDraft)
	assert.Equal(t, int64(10), clone.Application.StageID)
	assert.Equal(t, applicantID, clone.Application.UserID)

	sub := clone.LastSubmissionForStage(10)
	require.NotNil(t, sub)
	assert.False(t, sub.IsPublished())
	assert.Equal(t, `{"reason":"original"}`, sub.FormData)
	assert.Contains(t, f.publisher.events, "application.cloned")
}

func TestCloneRecordsSourceApplication(t *testing.T) {
	f := newFixture(t)
	m := f.create(t)
	m = f.submit(t, m.Application.ID, `{"reason":"original"}`)

	clone, err := f.svc.Clone(context.Background(), m.Application.ID, applicantID)
	require.NoError(t, err)

	acts, err := f.svc.ListActivities(context.Background(), clone.Application.ID)
	require.NoError(t, err)
	require.NotEmpty(t, acts)
	assert.Equal(t, workflow.ActivityCreation, acts[0].Activity)
	assert.Equal(t, m.Application.ID, acts[0].SourceApplicationID)

	// Once the origin is gone the link degrades to the sentinel.
	require.NoError(t, f.svc.Delete(context.Background(), m.Application.ID, applicantID, true))
	acts, err = f.svc.ListActivities(context.Background(), clone.Application.ID)
	require.NoError(t, err)
	assert.Equal(t, application.SourceDeleted, acts[0].SourceApplicationID)
}

func TestCloneNeedsCreateCapability(t *testing.T) {
	f := newFixture(t)
	m := f.create(t)
	m = f.submit(t, m.Application.ID, `{"reason":"x"}`)

	// approver1 can view the application but holds no create grant.
	_, err := f.svc.Clone(context.Background(), m.Application.ID, approver1ID)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeForbidden))
}

func TestCloneOfDraft(t *testing.T) {
	f := newFixture(t)
	m := f.create(t)

	clone, err := f.svc.Clone(context.Background(), m.Application.ID, applicantID)
	require.NoError(t, err)
	assert.True(t, clone.Application.IsDraft)
	assert.NotEqual(t, m.Application.ID, clone.Application.ID)
}

func TestDeleteDraft(t *testing.T) {
	f := newFixture(t)
	m := f.create(t)

	require.NoError(t, f.svc.Delete(context.Background(), m.Application.ID, applicantID, false))

	_, err := f.svc.GetApplication(context.Background(), m.Application.ID)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound))
}

func TestDeleteSubmittedNeedsForce(t *testing.T) {
	f := newFixture(t)
	m := f.create(t)
	m = f.submit(t, m.Application.ID, `{"reason":"x"}`)

	err := f.svc.Delete(context.Background(), m.Application.ID, applicantID, false)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeForbidden))

	require.NoError(t, f.svc.Delete(context.Background(), m.Application.ID, applicantID, true))
}

// ── Queries ───────────────────────────────────────────────────────────────────

func TestGetApproverUsersFollowsCurrentLevel(t *testing.T) {
	f := newFixture(t)
	m := f.create(t)
	m = f.submit(t, m.Application.ID, `{"reason":"x"}`)

	users, err := f.svc.GetApproverUsers(context.Background(), m.Application.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{approver1ID}, users)

	f.approve(t, m.Application.ID, approver1ID)
	users, err = f.svc.GetApproverUsers(context.Background(), m.Application.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{approver2ID}, users)
}

func TestGetProgress(t *testing.T) {
	f := newFixture(t)
	m := f.create(t)

	p, err := f.svc.GetProgress(context.Background(), m.Application.ID, approver1ID)
	require.NoError(t, err)
	assert.Equal(t, application.ProgressDraft, p.Overall)
	assert.Equal(t, application.YourProgressNA, p.Yours)

	f.submit(t, m.Application.ID, `{"reason":"x"}`)
	p, err = f.svc.GetProgress(context.Background(), m.Application.ID, approver1ID)
	require.NoError(t, err)
	assert.Equal(t, application.ProgressInProgress, p.Overall)
	assert.Equal(t, application.YourProgressPending, p.Yours)

	f.approve(t, m.Application.ID, approver1ID)
	p, err = f.svc.GetProgress(context.Background(), m.Application.ID, approver1ID)
	require.NoError(t, err)
	assert.Equal(t, application.YourProgressApproved, p.Yours)

	p, err = f.svc.GetProgress(context.Background(), m.Application.ID, approver2ID)
	require.NoError(t, err)
	assert.Equal(t, application.YourProgressPending, p.Yours)
}

// ── Store guard ───────────────────────────────────────────────────────────────

func TestStaleTransitionConflicts(t *testing.T) {
	f := newFixture(t)
	m := f.create(t)
	m = f.submit(t, m.Application.ID, `{"reason":"x"}`)

	approvals := f.version.StageByID(20)
	stale := workflow.NewApprovalState(approvals, approvals.LastLevel())
	err := f.store.ApplyTransition(context.Background(), m.Application.ID, &application.Transition{
		Expected: stale,
		Next:     stale,
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConflict))
}
