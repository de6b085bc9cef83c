// Package interactor answers permission questions about applications for a
// given actor. Decisions combine the application's state with capability
// grants resolved per context through a CapabilityProvider.
package interactor

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ContextType distinguishes the two context kinds capabilities are granted
// in: the assignment an application runs under, and the applicant's own
// user context.
type ContextType string

const (
	ContextAssignment ContextType = "ASSIGNMENT"
	ContextUser       ContextType = "USER"
)

// Context identifies one capability context.
type Context struct {
	Type ContextType
	ID   int64
}

// CapabilityProvider answers whether a user holds a capability in a
// context. Lookups are pure; a capability variant that does not exist is
// simply never granted.
type CapabilityProvider interface {
	HasCapability(capability string, c Context, userID int64) bool
}

// Base capability names. Each name exists in up to four variants, suffixed
// _applicant, _owner, _user and _any, which the interactor combines
// according to the actor's relation to the application.
const (
	CapViewDraftInDashboard   = "view_draft_in_dashboard_application"
	CapViewDraft              = "view_draft_application"
	CapEditDraft              = "edit_draft_application"
	CapDeleteDraft            = "delete_draft_application"
	CapViewInDashboard        = "view_in_dashboard_application"
	CapViewInDashboardPending = "view_in_dashboard_pending_application"
	CapView                   = "view_application"
	CapViewPending            = "view_pending_application"
	CapEditUnsubmitted        = "edit_unsubmitted_application"
	CapEditInApprovals        = "edit_in_approvals_application"
	CapEditInApprovalsPending = "edit_in_approvals_pending_application"
	CapEditFirstLevel         = "edit_first_approval_level_application"
	CapEditFirstLevelPending  = "edit_first_approval_level_pending_application"
	CapEditWithoutInvalidate  = "edit_without_invalidating_approvals"
	CapEditFull               = "edit_full_application"
	CapApprove                = "approve_application"
	CapApprovePending         = "approve_pending_application"
	CapAttachFile             = "attach_file_to_application"
	CapViewComment            = "view_comment_on_application"
	CapPostComment            = "post_comment_on_application"
	CapPostCommentPending     = "post_comment_on_pending_application"
	CapDeleteComment          = "delete_comment_on_application"
	CapWithdrawUnsubmitted    = "withdraw_unsubmitted_application"
	CapWithdrawInApprovals    = "withdraw_in_approvals_application"
	CapBackdate               = "backdate_application"
	CapCreate                 = "create_application"
)

// VariantSuffixes lists the capability variants in the order they are
// consulted.
var VariantSuffixes = []string{"_applicant", "_owner", "_user", "_any"}

// variantsFor returns the suffixes a base capability actually exists in.
// The draft dashboard capability carries no owner variant.
func variantsFor(base string) []string {
	if base == CapViewDraftInDashboard {
		return []string{"_applicant", "_user", "_any"}
	}
	return VariantSuffixes
}

func baseCapabilities() []string {
	return []string{
		CapViewDraftInDashboard, CapViewDraft, CapEditDraft, CapDeleteDraft,
		CapViewInDashboard, CapViewInDashboardPending, CapView, CapViewPending,
		CapEditUnsubmitted, CapEditInApprovals, CapEditInApprovalsPending,
		CapEditFirstLevel, CapEditFirstLevelPending, CapEditWithoutInvalidate,
		CapEditFull, CapApprove, CapApprovePending, CapAttachFile,
		CapViewComment, CapPostComment, CapPostCommentPending, CapDeleteComment,
		CapWithdrawUnsubmitted, CapWithdrawInApprovals, CapBackdate, CapCreate,
	}
}

// AllCapabilityNames returns every capability variant name, used to
// precompute a user's full capability map.
func AllCapabilityNames() []string {
	bases := baseCapabilities()
	out := make([]string, 0, len(bases)*len(VariantSuffixes))
	for _, base := range bases {
		for _, suffix := range variantsFor(base) {
			out = append(out, base+suffix)
		}
	}
	return out
}

// ContextLister enumerates the contexts where a user holds a capability.
// Implementations typically query an external authorization service.
type ContextLister interface {
	ContextsWithCapability(ctx context.Context, capability string, userID int64) ([]Context, error)
}

// CapabilityMap is a precomputed CapabilityProvider for one user. It is
// immutable after construction and safe for concurrent lookups.
type CapabilityMap struct {
	userID int64
	grants map[string]map[Context]struct{}
}

// BuildCapabilityMap precomputes the contexts in which the user holds each
// of the given capabilities, querying them concurrently.
func BuildCapabilityMap(ctx context.Context, lister ContextLister, userID int64, capabilities []string) (*CapabilityMap, error) {
	m := &CapabilityMap{
		userID: userID,
		grants: make(map[string]map[Context]struct{}, len(capabilities)),
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, capability := range capabilities {
		g.Go(func() error {
			contexts, err := lister.ContextsWithCapability(ctx, capability, userID)
			if err != nil {
				return err
			}
			if len(contexts) == 0 {
				return nil
			}
			set := make(map[Context]struct{}, len(contexts))
			for _, c := range contexts {
				set[c] = struct{}{}
			}
			mu.Lock()
			m.grants[capability] = set
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return m, nil
}

// HasCapability reports whether the map's user holds the capability in the
// context. Lookups for other users always answer false.
func (m *CapabilityMap) HasCapability(capability string, c Context, userID int64) bool {
	if userID != m.userID {
		return false
	}
	_, ok := m.grants[capability][c]
	return ok
}

// Contexts returns the contexts the map's user holds a capability in.
func (m *CapabilityMap) Contexts(capability string) []Context {
	set := m.grants[capability]
	out := make([]Context, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// UserID returns the user the map was built for.
func (m *CapabilityMap) UserID() int64 {
	return m.userID
}
