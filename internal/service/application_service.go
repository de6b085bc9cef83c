// Package service orchestrates application and assignment operations:
// permission checks through interactors, state transitions through the
// stage state managers, and atomic persistence through the stores.
package service

import (
	"context"
	"time"

	"github.com/pesio-ai/be-approval-workflows/internal/application"
	"github.com/pesio-ai/be-approval-workflows/internal/assignment"
	"github.com/pesio-ai/be-approval-workflows/internal/errors"
	"github.com/pesio-ai/be-approval-workflows/internal/interactor"
	"github.com/pesio-ai/be-approval-workflows/internal/logger"
	"github.com/pesio-ai/be-approval-workflows/internal/workflow"
)

// ApplicationStore persists applications with their actions, submissions
// and activities. ApplyTransition is atomic; a stale Expected state fails
// with a CONFLICT error.
type ApplicationStore interface {
	GetApplication(ctx context.Context, id int64) (*application.Application, error)
	ListActions(ctx context.Context, applicationID int64) ([]*application.Action, error)
	ListSubmissions(ctx context.Context, applicationID int64) ([]*application.Submission, error)
	ListActivities(ctx context.Context, applicationID int64) ([]*application.ActivityRecord, error)
	CreateApplication(ctx context.Context, app *application.Application, activities []*application.ActivityRecord) error
	SaveSubmission(ctx context.Context, sub *application.Submission) error
	ApplyTransition(ctx context.Context, applicationID int64, t *application.Transition) error
	DeleteApplication(ctx context.Context, id int64) error
}

// WorkflowStore loads workflow definitions.
type WorkflowStore interface {
	GetWorkflow(ctx context.Context, id int64) (*workflow.Workflow, error)
	// GetWorkflowByTypeName resolves the single active workflow of a named
	// type; more than one match is an AMBIGUOUS error.
	GetWorkflowByTypeName(ctx context.Context, typeName string) (*workflow.Workflow, error)
	GetVersion(ctx context.Context, id int64) (*workflow.WorkflowVersion, error)
	GetLatestVersion(ctx context.Context, workflowID int64) (*workflow.WorkflowVersion, error)
	GetApprovalLevel(ctx context.Context, id int64) (*workflow.ApprovalLevel, error)
}

// AssignmentStore extends the resolver's read surface with id lookup.
type AssignmentStore interface {
	assignment.Store
	GetAssignment(ctx context.Context, id int64) (*assignment.Assignment, error)
}

// CapabilityResolver builds a capability provider for one user, typically a
// precomputed capability map.
type CapabilityResolver interface {
	ProviderFor(ctx context.Context, userID int64) (interactor.CapabilityProvider, error)
}

// NotificationPublisher emits lifecycle events. Publishing is best-effort;
// failures are logged, never surfaced.
type NotificationPublisher interface {
	PublishApplicationEvent(ctx context.Context, event string, app *application.Application) error
}

// ApplicationService runs the application lifecycle: create, edit, submit,
// approve, reject, withdraw, clone, delete.
type ApplicationService struct {
	applications  ApplicationStore
	workflows     WorkflowStore
	assignments   AssignmentStore
	hierarchy     assignment.HierarchyWalker
	relationships assignment.RelationshipResolver
	caps          CapabilityResolver
	publisher     NotificationPublisher
	log           *logger.Logger
}

// NewApplicationService creates a new ApplicationService.
func NewApplicationService(
	applications ApplicationStore,
	workflows WorkflowStore,
	assignments AssignmentStore,
	hierarchy assignment.HierarchyWalker,
	relationships assignment.RelationshipResolver,
	caps CapabilityResolver,
	publisher NotificationPublisher,
	log *logger.Logger,
) *ApplicationService {
	return &ApplicationService{
		applications:  applications,
		workflows:     workflows,
		assignments:   assignments,
		hierarchy:     hierarchy,
		relationships: relationships,
		caps:          caps,
		publisher:     publisher,
		log:           log,
	}
}

func (s *ApplicationService) approverDeps() application.ApproverDeps {
	return application.ApproverDeps{
		Assignments:   s.assignments,
		Hierarchy:     s.hierarchy,
		Relationships: s.relationships,
	}
}

// ── Loading ───────────────────────────────────────────────────────────────────

// GetApplication loads an application with everything its derived views
// need.
func (s *ApplicationService) GetApplication(ctx context.Context, id int64) (*application.Model, error) {
	app, err := s.applications.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	version, err := s.workflows.GetVersion(ctx, app.WorkflowVersionID)
	if err != nil {
		return nil, err
	}
	wf, err := s.workflows.GetWorkflow(ctx, version.WorkflowID)
	if err != nil {
		return nil, err
	}
	asg, err := s.assignments.GetAssignment(ctx, app.AssignmentID)
	if err != nil {
		return nil, err
	}
	actions, err := s.applications.ListActions(ctx, app.ID)
	if err != nil {
		return nil, err
	}
	submissions, err := s.applications.ListSubmissions(ctx, app.ID)
	if err != nil {
		return nil, err
	}
	return &application.Model{
		Application: app,
		Workflow:    wf,
		Version:     version,
		Assignment:  asg,
		Actions:     actions,
		Submissions: submissions,
	}, nil
}

// InteractorFor builds the permission interactor for an actor on an
// application.
func (s *ApplicationService) InteractorFor(ctx context.Context, m *application.Model, actorID int64) (*interactor.ApplicationInteractor, error) {
	provider, err := s.caps.ProviderFor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return interactor.NewApplicationInteractor(ctx, m, s.approverDeps(), provider, actorID)
}

// Progress bundles the two progress views of one application for one user.
type Progress struct {
	Overall application.OverallProgress
	Yours   application.YourProgress
}

// GetProgress computes the overall and per-user progress of an application.
func (s *ApplicationService) GetProgress(ctx context.Context, applicationID, userID int64) (*Progress, error) {
	m, err := s.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	yours, err := m.YourProgress(ctx, s.approverDeps(), userID)
	if err != nil {
		return nil, err
	}
	return &Progress{Overall: m.OverallProgress(), Yours: yours}, nil
}

// ListActivities retrieves the application's audit trail, oldest first.
func (s *ApplicationService) ListActivities(ctx context.Context, applicationID int64) ([]*application.ActivityRecord, error) {
	if _, err := s.applications.GetApplication(ctx, applicationID); err != nil {
		return nil, err
	}
	return s.applications.ListActivities(ctx, applicationID)
}

// ── Creation ──────────────────────────────────────────────────────────────────

// CreateApplicationInput carries the parameters for opening an application.
type CreateApplicationInput struct {
	AssignmentID  int64
	ApplicantID   int64
	ApplicantName string
	Title         string
}

// Create opens a new draft application under an assignment. The workflow's
// latest version must be active and must start with a form submission
// stage.
func (s *ApplicationService) Create(ctx context.Context, in CreateApplicationInput, actorID int64) (*application.Model, error) {
	asg, err := s.assignments.GetAssignment(ctx, in.AssignmentID)
	if err != nil {
		return nil, err
	}
	if asg.Status != workflow.StatusActive {
		return nil, errors.New(errors.ErrCodeConflict, "assignment is not active")
	}
	wf, err := s.workflows.GetWorkflow(ctx, asg.WorkflowID)
	if err != nil {
		return nil, err
	}
	version, err := s.workflows.GetLatestVersion(ctx, wf.ID)
	if err != nil {
		return nil, err
	}
	if !version.IsActive() {
		return nil, errors.New(errors.ErrCodeConflict, "workflow version must be active to create an application")
	}

	provider, err := s.caps.ProviderFor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !interactor.NewAssignmentInteractor(provider, asg.ID, in.ApplicantID, actorID).CanCreateApplication() {
		return nil, errors.Forbidden("create application")
	}

	first := version.FirstStage()
	if first == nil {
		return nil, errors.New(errors.ErrCodeConflict, "workflow version has no stages")
	}
	manager := workflow.StateManagerFor(version, first)
	state, err := manager.CreationState()
	if err != nil {
		return nil, err
	}

	title := in.Title
	if title == "" {
		title = wf.Name
	}
	now := time.Now()
	app := &application.Application{
		Title:             title,
		IDNumber:          application.GenerateIDNumber(wf.WorkflowTypeName, now),
		UserID:            in.ApplicantID,
		ApplicantName:     in.ApplicantName,
		CreatorID:         actorID,
		OwnerID:           actorID,
		WorkflowVersionID: version.ID,
		AssignmentID:      asg.ID,
		StageID:           state.StageID(),
		ApprovalLevelID:   state.ApprovalLevelID(),
		IsDraft:           state.IsDraft(),
	}

	var startLog workflow.ActivityLog
	startLog.Record(workflow.ActivityCreation, first.ID, 0)
	manager.OnApplicationStart(&startLog)

	if err := s.applications.CreateApplication(ctx, app, activityRecords(actorID, &startLog)); err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("application_id", app.ID).
		Int64("workflow_id", wf.ID).
		Int64("applicant_id", in.ApplicantID).
		Str("id_number", app.IDNumber).
		Msg("Application created")
	s.publishEvent(ctx, "application.created", app)

	return &application.Model{Application: app, Workflow: wf, Version: version, Assignment: asg}, nil
}

// CreateForWorkflowType opens a draft under the default assignment of the
// named workflow type.
func (s *ApplicationService) CreateForWorkflowType(ctx context.Context, typeName string, in CreateApplicationInput, actorID int64) (*application.Model, error) {
	wf, err := s.workflows.GetWorkflowByTypeName(ctx, typeName)
	if err != nil {
		return nil, err
	}
	def, err := s.assignments.DefaultAssignment(ctx, wf.ID)
	if err != nil {
		return nil, err
	}
	in.AssignmentID = def.ID
	return s.Create(ctx, in, actorID)
}

// ── Editing ───────────────────────────────────────────────────────────────────

// SaveFormData stores form data as the current stage's draft submission.
// Editing during approvals invalidates granted approvals unless the actor
// may edit without invalidating: the application returns to the stage's
// first level and earlier actions are superseded.
func (s *ApplicationService) SaveFormData(ctx context.Context, applicationID, actorID int64, formData string) (*application.Model, error) {
	m, err := s.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	it, err := s.InteractorFor(ctx, m, actorID)
	if err != nil {
		return nil, err
	}
	if !it.CanEdit() {
		return nil, errors.Forbidden("edit application")
	}

	state := m.CurrentState()
	t := &application.Transition{Expected: state, Next: state}

	if state.IsStageType(workflow.StageApprovals) && !it.CanEditWithoutInvalidating() {
		stage := m.CurrentStage()
		manager := workflow.StateManagerFor(m.Version, stage)
		reset := manager.InitialState()
		if !state.IsSameAs(reset) {
			var log workflow.ActivityLog
			manager.OnStateExit(&log, state, reset)
			manager.OnStateEntry(&log, state, reset)
			t.Next = reset
			t.Activities = activityRecords(actorID, &log)
		}
		t.SupersedePriorActions = true
	}

	sub := m.LastSubmissionForStage(state.StageID())
	if sub == nil || sub.IsPublished() {
		sub = &application.Submission{
			ApplicationID: m.Application.ID,
			UserID:        actorID,
			StageID:       state.StageID(),
		}
	}
	sub.UserID = actorID
	sub.FormData = formData
	t.Submission = sub

	if err := s.applications.ApplyTransition(ctx, m.Application.ID, t); err != nil {
		return nil, err
	}
	return s.GetApplication(ctx, applicationID)
}

// ── Submission ────────────────────────────────────────────────────────────────

// Submit publishes the current stage's form data and advances the
// application to the next stage. A resubmission after a rejection starts a
// fresh pass: earlier actions are superseded.
func (s *ApplicationService) Submit(ctx context.Context, applicationID, actorID int64, formData string) (*application.Model, error) {
	m, err := s.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	state := m.CurrentState()
	if !state.IsStageType(workflow.StageFormSubmission) {
		return nil, errors.New(errors.ErrCodeConflict, "application is not at a form submission stage")
	}
	it, err := s.InteractorFor(ctx, m, actorID)
	if err != nil {
		return nil, err
	}
	if !it.CanEdit() {
		return nil, errors.Forbidden("submit application")
	}

	stage := m.CurrentStage()
	manager := workflow.StateManagerFor(m.Version, stage)
	next, err := manager.NextState(state)
	if err != nil {
		return nil, err
	}

	var log workflow.ActivityLog
	log.Record(workflow.ActivitySubmitted, stage.ID, 0)
	manager.OnStateExit(&log, state, next)
	workflow.StateManagerForState(m.Version, next).OnStateEntry(&log, state, next)

	now := time.Now()
	sub := m.LastSubmissionForStage(stage.ID)
	if sub == nil || sub.IsPublished() {
		sub = &application.Submission{
			ApplicationID: m.Application.ID,
			StageID:       stage.ID,
		}
	}
	sub.UserID = actorID
	if formData != "" {
		sub.FormData = formData
	}
	sub.SubmittedAt = &now

	t := &application.Transition{
		Expected:                  state,
		Next:                      next,
		Action:                    &application.Action{UserID: actorID, Code: application.ActionSubmit, StageID: stage.ID},
		Activities:                activityRecords(actorID, &log),
		SupersedePriorActions:     len(m.Actions) > 0,
		Submission:                sub,
		SupersedeStageSubmissions: stage.ID,
		MarkCompleted:             next.IsTerminal(),
	}
	if m.Application.SubmittedAt == nil {
		t.MarkSubmittedBy = actorID
	}

	if err := s.applications.ApplyTransition(ctx, m.Application.ID, t); err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("application_id", m.Application.ID).
		Int64("stage_id", stage.ID).
		Int64("actor_id", actorID).
		Msg("Application submitted")
	s.publishEvent(ctx, "application.submitted", m.Application)

	return s.GetApplication(ctx, applicationID)
}

// ── Approve / Reject ──────────────────────────────────────────────────────────

// Approve records an approval at the current level and advances the
// application to the next level or stage.
func (s *ApplicationService) Approve(ctx context.Context, applicationID, actorID int64) (*application.Model, error) {
	m, state, err := s.loadForApproval(ctx, applicationID, actorID)
	if err != nil {
		return nil, err
	}

	stage := m.CurrentStage()
	manager := workflow.StateManagerFor(m.Version, stage)
	next, err := manager.NextState(state)
	if err != nil {
		return nil, err
	}

	var log workflow.ActivityLog
	log.Record(workflow.ActivityApproved, stage.ID, state.ApprovalLevelID())
	manager.OnStateExit(&log, state, next)
	workflow.StateManagerForState(m.Version, next).OnStateEntry(&log, state, next)

	t := &application.Transition{
		Expected: state,
		Next:     next,
		Action: &application.Action{
			UserID:          actorID,
			Code:            application.ActionApprove,
			StageID:         stage.ID,
			ApprovalLevelID: state.ApprovalLevelID(),
		},
		Activities:    activityRecords(actorID, &log),
		MarkCompleted: next.IsTerminal(),
	}
	if err := s.applications.ApplyTransition(ctx, m.Application.ID, t); err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("application_id", m.Application.ID).
		Int64("approval_level_id", state.ApprovalLevelID()).
		Int64("actor_id", actorID).
		Msg("Application approved at level")
	s.publishEvent(ctx, "application.approved", m.Application)
	if next.IsTerminal() {
		s.publishEvent(ctx, "application.completed", m.Application)
	}

	return s.GetApplication(ctx, applicationID)
}

// Reject records a rejection at the current level and returns the
// application to the preceding stage for rework.
func (s *ApplicationService) Reject(ctx context.Context, applicationID, actorID int64) (*application.Model, error) {
	m, state, err := s.loadForApproval(ctx, applicationID, actorID)
	if err != nil {
		return nil, err
	}

	stage := m.CurrentStage()
	manager := workflow.StateManagerFor(m.Version, stage)
	prev, err := manager.PreviousState(state)
	if err != nil {
		return nil, err
	}

	var log workflow.ActivityLog
	log.Record(workflow.ActivityRejected, stage.ID, state.ApprovalLevelID())
	manager.OnStateExit(&log, state, prev)
	workflow.StateManagerForState(m.Version, prev).OnStateEntry(&log, state, prev)

	t := &application.Transition{
		Expected: state,
		Next:     prev,
		Action: &application.Action{
			UserID:          actorID,
			Code:            application.ActionReject,
			StageID:         stage.ID,
			ApprovalLevelID: state.ApprovalLevelID(),
		},
		Activities: activityRecords(actorID, &log),
	}
	if err := s.applications.ApplyTransition(ctx, m.Application.ID, t); err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("application_id", m.Application.ID).
		Int64("approval_level_id", state.ApprovalLevelID()).
		Int64("actor_id", actorID).
		Msg("Application rejected at level")
	s.publishEvent(ctx, "application.rejected", m.Application)

	return s.GetApplication(ctx, applicationID)
}

func (s *ApplicationService) loadForApproval(ctx context.Context, applicationID, actorID int64) (*application.Model, workflow.State, error) {
	m, err := s.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, workflow.State{}, err
	}
	state := m.CurrentState()
	if !state.IsStageType(workflow.StageApprovals) {
		return nil, workflow.State{}, errors.New(errors.ErrCodeConflict, "application is not in an approvals stage")
	}
	it, err := s.InteractorFor(ctx, m, actorID)
	if err != nil {
		return nil, workflow.State{}, err
	}
	if !it.CanApprove() {
		return nil, workflow.State{}, errors.Forbidden("approve application")
	}
	return m, state, nil
}

// ── Withdraw ──────────────────────────────────────────────────────────────────

// Withdraw takes the application out of the running without moving it. The
// action code distinguishes withdrawing during approvals from withdrawing
// after a rejection sent the application back to its form stage.
func (s *ApplicationService) Withdraw(ctx context.Context, applicationID, actorID int64) (*application.Model, error) {
	m, err := s.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	it, err := s.InteractorFor(ctx, m, actorID)
	if err != nil {
		return nil, err
	}
	if !it.CanWithdraw() {
		return nil, errors.Forbidden("withdraw application")
	}

	state := m.CurrentState()
	code := application.ActionWithdrawInApprovals
	if state.IsStageType(workflow.StageFormSubmission) {
		code = application.ActionWithdrawBeforeSubmission
	}

	t := &application.Transition{
		Expected: state,
		Next:     state,
		Action: &application.Action{
			UserID:          actorID,
			Code:            code,
			StageID:         state.StageID(),
			ApprovalLevelID: state.ApprovalLevelID(),
		},
		Activities: []*application.ActivityRecord{{
			ActorID:         actorID,
			StageID:         state.StageID(),
			ApprovalLevelID: state.ApprovalLevelID(),
			Activity:        workflow.ActivityWithdrawn,
		}},
	}
	if err := s.applications.ApplyTransition(ctx, m.Application.ID, t); err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("application_id", m.Application.ID).
		Int64("actor_id", actorID).
		Str("action", string(code)).
		Msg("Application withdrawn")
	s.publishEvent(ctx, "application.withdrawn", m.Application)

	return s.GetApplication(ctx, applicationID)
}

// ── Clone / Delete ────────────────────────────────────────────────────────────

// Clone opens a fresh draft for the same applicant on the workflow's latest
// version, carrying over the source's last first-stage form data.
func (s *ApplicationService) Clone(ctx context.Context, applicationID, actorID int64) (*application.Model, error) {
	m, err := s.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	it, err := s.InteractorFor(ctx, m, actorID)
	if err != nil {
		return nil, err
	}
	if !it.CanClone() {
		return nil, errors.Forbidden("clone application")
	}

	latest, err := s.workflows.GetLatestVersion(ctx, m.Workflow.ID)
	if err != nil {
		return nil, err
	}
	if !latest.IsActive() {
		return nil, errors.New(errors.ErrCodeConflict, "workflow version must be active for clone application")
	}
	first := latest.FirstStage()
	manager := workflow.StateManagerFor(latest, first)
	state, err := manager.CreationState()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	clone := &application.Application{
		Title:             m.Application.Title,
		IDNumber:          application.GenerateIDNumber(m.Workflow.WorkflowTypeName, now),
		UserID:            m.Application.UserID,
		ApplicantName:     m.Application.ApplicantName,
		CreatorID:         actorID,
		OwnerID:           actorID,
		WorkflowVersionID: latest.ID,
		AssignmentID:      m.Application.AssignmentID,
		StageID:           state.StageID(),
		ApprovalLevelID:   state.ApprovalLevelID(),
		IsDraft:           state.IsDraft(),
	}

	var startLog workflow.ActivityLog
	startLog.Record(workflow.ActivityCreation, first.ID, 0)
	manager.OnApplicationStart(&startLog)

	records := activityRecords(actorID, &startLog)
	for _, rec := range records {
		if rec.Activity == workflow.ActivityCreation {
			rec.SourceApplicationID = m.Application.ID
		}
	}

	if err := s.applications.CreateApplication(ctx, clone, records); err != nil {
		return nil, err
	}

	// Carry the source's latest first-stage form data as a fresh draft.
	if src := m.LastSubmissionForStage(m.Version.FirstStage().ID); src != nil {
		sub := &application.Submission{
			ApplicationID: clone.ID,
			UserID:        actorID,
			StageID:       first.ID,
			FormData:      src.FormData,
		}
		if err := s.applications.SaveSubmission(ctx, sub); err != nil {
			return nil, err
		}
	}

	s.log.Info().
		Int64("application_id", clone.ID).
		Int64("source_application_id", m.Application.ID).
		Int64("actor_id", actorID).
		Msg("Application cloned")
	s.publishEvent(ctx, "application.cloned", clone)

	return s.GetApplication(ctx, clone.ID)
}

// Delete removes an application. Without force only drafts the actor may
// delete are accepted; force is for administrative cleanup.
func (s *ApplicationService) Delete(ctx context.Context, applicationID, actorID int64, force bool) error {
	m, err := s.GetApplication(ctx, applicationID)
	if err != nil {
		return err
	}
	if !force {
		it, err := s.InteractorFor(ctx, m, actorID)
		if err != nil {
			return err
		}
		if !it.CanDelete() {
			return errors.Forbidden("delete application")
		}
	}
	if err := s.applications.DeleteApplication(ctx, applicationID); err != nil {
		return err
	}

	s.log.Info().
		Int64("application_id", applicationID).
		Int64("actor_id", actorID).
		Bool("force", force).
		Msg("Application deleted")
	s.publishEvent(ctx, "application.deleted", m.Application)
	return nil
}

// ── Approver queries ──────────────────────────────────────────────────────────

// GetApproverUsers returns the users who may act at the application's
// current level, filtered down to those actually holding the approve
// capability.
func (s *ApplicationService) GetApproverUsers(ctx context.Context, applicationID int64) ([]int64, error) {
	m, err := s.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	candidates, err := m.ApproverUsers(ctx, s.approverDeps())
	if err != nil {
		return nil, err
	}

	var out []int64
	for _, userID := range candidates {
		it, err := s.InteractorFor(ctx, m, userID)
		if err != nil {
			return nil, err
		}
		if it.CanApprove() {
			out = append(out, userID)
		}
	}
	return out, nil
}

// ── Internal helpers ──────────────────────────────────────────────────────────

func activityRecords(actorID int64, log *workflow.ActivityLog) []*application.ActivityRecord {
	out := make([]*application.ActivityRecord, 0, len(log.Entries))
	for _, e := range log.Entries {
		out = append(out, &application.ActivityRecord{
			ActorID:         actorID,
			StageID:         e.StageID,
			ApprovalLevelID: e.ApprovalLevelID,
			Activity:        e.Activity,
		})
	}
	return out
}

// publishEvent emits a notification and logs a warning on failure.
func (s *ApplicationService) publishEvent(ctx context.Context, event string, app *application.Application) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishApplicationEvent(ctx, event, app); err != nil {
		s.log.Warn().Err(err).
			Str("event", event).
			Int64("application_id", app.ID).
			Msg("Failed to publish notification event")
	}
}
