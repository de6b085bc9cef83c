package interactor

import (
	"context"

	"github.com/pesio-ai/be-approval-workflows/internal/application"
	"github.com/pesio-ai/be-approval-workflows/internal/workflow"
)

// ApplicationInteractor answers what one actor may do with one application.
// Pending-ness against the current approval level is resolved once at
// construction; every query method is then a pure boolean.
type ApplicationInteractor struct {
	model    *application.Model
	provider CapabilityProvider
	actorID  int64
	pending  bool
}

// NewApplicationInteractor builds an interactor for an actor, resolving
// whether the application is pending the actor's approval.
func NewApplicationInteractor(ctx context.Context, model *application.Model, deps application.ApproverDeps, provider CapabilityProvider, actorID int64) (*ApplicationInteractor, error) {
	i := &ApplicationInteractor{model: model, provider: provider, actorID: actorID}

	state := model.CurrentState()
	if state.IsStageType(workflow.StageApprovals) && !state.IsDraft() {
		users, err := model.ApproverUsers(ctx, deps)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			if u == actorID {
				i.pending = true
				break
			}
		}
	}
	return i, nil
}

// ActorID returns the user the interactor answers for.
func (i *ApplicationInteractor) ActorID() int64 {
	return i.actorID
}

// IsPending reports whether the application currently waits on the actor's
// approval.
func (i *ApplicationInteractor) IsPending() bool {
	return i.pending
}

func (i *ApplicationInteractor) assignmentContext() Context {
	return Context{Type: ContextAssignment, ID: i.model.Application.AssignmentID}
}

func (i *ApplicationInteractor) applicantContext() Context {
	return Context{Type: ContextUser, ID: i.model.Application.UserID}
}

// can combines a capability's variants: the applicant and owner variants
// apply in the assignment context when the actor holds that role, the user
// variant applies in the applicant's user context, and the any variant
// applies in the assignment context unconditionally.
func (i *ApplicationInteractor) can(base string) bool {
	app := i.model.Application
	if i.actorID == app.UserID && i.provider.HasCapability(base+"_applicant", i.assignmentContext(), i.actorID) {
		return true
	}
	if i.actorID == app.OwnerID && i.provider.HasCapability(base+"_owner", i.assignmentContext(), i.actorID) {
		return true
	}
	if i.provider.HasCapability(base+"_user", i.applicantContext(), i.actorID) {
		return true
	}
	return i.provider.HasCapability(base+"_any", i.assignmentContext(), i.actorID)
}

// canWithoutOwner is can for capability families that carry no owner
// variant, such as the draft dashboard family.
func (i *ApplicationInteractor) canWithoutOwner(base string) bool {
	if i.actorID == i.model.Application.UserID && i.provider.HasCapability(base+"_applicant", i.assignmentContext(), i.actorID) {
		return true
	}
	if i.provider.HasCapability(base+"_user", i.applicantContext(), i.actorID) {
		return true
	}
	return i.provider.HasCapability(base+"_any", i.assignmentContext(), i.actorID)
}

// canPendingAware grants through the base capability, or through the
// pending variant when the application waits on the actor.
func (i *ApplicationInteractor) canPendingAware(base, pendingBase string) bool {
	if i.can(base) {
		return true
	}
	return i.pending && i.can(pendingBase)
}

// CanView reports whether the actor may open the application.
func (i *ApplicationInteractor) CanView() bool {
	if i.model.CurrentState().IsDraft() {
		return i.can(CapViewDraft)
	}
	return i.canPendingAware(CapView, CapViewPending)
}

// CanViewInDashboard reports whether the application appears in the actor's
// dashboard lists. Owners always see their applications; everyone else
// needs the dashboard capabilities, with drafts gated separately.
func (i *ApplicationInteractor) CanViewInDashboard() bool {
	if i.actorID == i.model.Application.OwnerID {
		return true
	}
	if i.model.CurrentState().IsDraft() {
		return i.canWithoutOwner(CapViewDraftInDashboard)
	}
	return i.canPendingAware(CapViewInDashboard, CapViewInDashboardPending)
}

// CanEdit reports whether the actor may change the application's form data
// in its current state. Stages without editable form fields are locked
// unless the actor holds the full-edit capability, which waives that gate
// only; the per-state edit capability is required either way.
func (i *ApplicationInteractor) CanEdit() bool {
	state := i.model.CurrentState()
	if state.IsTerminal() {
		return false
	}
	if !i.model.CurrentStage().HasEditableFormviews() && !i.can(CapEditFull) {
		return false
	}

	switch {
	case state.IsDraft():
		return i.can(CapEditDraft)
	case state.IsStageType(workflow.StageFormSubmission):
		return i.can(CapEditUnsubmitted)
	case state.IsStageType(workflow.StageApprovals):
		if i.canPendingAware(CapEditInApprovals, CapEditInApprovalsPending) {
			return true
		}
		return i.model.CurrentLevel().IsFirst() && i.canPendingAware(CapEditFirstLevel, CapEditFirstLevelPending)
	default:
		return false
	}
}

// CanEditWithoutInvalidating reports whether the actor's edits keep already
// granted approvals instead of resetting the application.
func (i *ApplicationInteractor) CanEditWithoutInvalidating() bool {
	return i.can(CapEditWithoutInvalidate)
}

// CanApprove reports whether the actor may approve or reject at the current
// level. The applicant only acts on their own application through the
// applicant variant; the broader grants do not reach it.
func (i *ApplicationInteractor) CanApprove() bool {
	state := i.model.CurrentState()
	if !state.IsStageType(workflow.StageApprovals) || state.IsDraft() {
		return false
	}
	if i.actorID == i.model.Application.UserID {
		if i.provider.HasCapability(CapApprove+"_applicant", i.assignmentContext(), i.actorID) {
			return true
		}
		return i.pending && i.provider.HasCapability(CapApprovePending+"_applicant", i.assignmentContext(), i.actorID)
	}
	return i.canPendingAware(CapApprove, CapApprovePending)
}

// CanWithdraw reports whether the actor may withdraw the application. On a
// form stage withdrawal is only offered after a rejection sent the
// application back; drafts are deleted, not withdrawn.
func (i *ApplicationInteractor) CanWithdraw() bool {
	state := i.model.CurrentState()
	switch {
	case state.IsDraft(), state.IsTerminal():
		return false
	case state.IsStageType(workflow.StageFormSubmission):
		last := i.model.LastAction()
		if last == nil || last.Code != application.ActionReject {
			return false
		}
		return i.can(CapWithdrawUnsubmitted)
	default:
		return i.can(CapWithdrawInApprovals)
	}
}

// CanClone reports whether the actor may clone the application into a new
// draft: they must be able to open or edit it, and to create applications
// about the same applicant under its assignment.
func (i *ApplicationInteractor) CanClone() bool {
	if !i.CanView() && !i.CanEdit() {
		return false
	}
	app := i.model.Application
	return NewAssignmentInteractor(i.provider, app.AssignmentID, app.UserID, i.actorID).CanCreateApplication()
}

// CanDelete reports whether the actor may delete the application. Only
// drafts can be deleted through the interactor.
func (i *ApplicationInteractor) CanDelete() bool {
	if !i.model.CurrentState().IsDraft() {
		return false
	}
	return i.can(CapDeleteDraft)
}

// CanViewComments reports whether the actor may read the comment thread.
// Drafts have no thread yet.
func (i *ApplicationInteractor) CanViewComments() bool {
	if i.model.CurrentState().IsDraft() {
		return false
	}
	return i.can(CapViewComment)
}

// CanPostComment reports whether the actor may post a comment. The thread
// only takes new comments while the application is in flight.
func (i *ApplicationInteractor) CanPostComment() bool {
	state := i.model.CurrentState()
	if state.IsDraft() || state.IsTerminal() {
		return false
	}
	return i.canPendingAware(CapPostComment, CapPostCommentPending)
}

// CanDeleteComment reports whether the actor may delete a comment posted by
// authorID. Comments are frozen on drafts and finished applications;
// otherwise authors may remove their own comments as long as they can still
// post, and moderators need the delete capability.
func (i *ApplicationInteractor) CanDeleteComment(authorID int64) bool {
	state := i.model.CurrentState()
	if state.IsDraft() || state.IsTerminal() {
		return false
	}
	if i.actorID == authorID && i.CanPostComment() {
		return true
	}
	return i.can(CapDeleteComment)
}

// CanAttachFile reports whether the actor may attach files.
func (i *ApplicationInteractor) CanAttachFile() bool {
	return i.can(CapAttachFile)
}

// CanBackdate reports whether the actor may override the creation date.
func (i *ApplicationInteractor) CanBackdate() bool {
	return i.can(CapBackdate)
}

// AssignmentInteractor answers creation questions for one assignment scope
// before an application exists.
type AssignmentInteractor struct {
	provider     CapabilityProvider
	assignmentID int64
	applicantID  int64
	actorID      int64
}

// NewAssignmentInteractor builds an interactor for creating applications
// about applicantID under the given assignment.
func NewAssignmentInteractor(provider CapabilityProvider, assignmentID, applicantID, actorID int64) *AssignmentInteractor {
	return &AssignmentInteractor{
		provider:     provider,
		assignmentID: assignmentID,
		applicantID:  applicantID,
		actorID:      actorID,
	}
}

// CanCreateApplication reports whether the actor may open a new application
// about the applicant in this scope.
func (i *AssignmentInteractor) CanCreateApplication() bool {
	assignmentCtx := Context{Type: ContextAssignment, ID: i.assignmentID}
	if i.actorID == i.applicantID && i.provider.HasCapability(CapCreate+"_applicant", assignmentCtx, i.actorID) {
		return true
	}
	if i.provider.HasCapability(CapCreate+"_user", Context{Type: ContextUser, ID: i.applicantID}, i.actorID) {
		return true
	}
	return i.provider.HasCapability(CapCreate+"_any", assignmentCtx, i.actorID)
}
