package assignment

import (
	"context"

	"github.com/pesio-ai/be-approval-workflows/internal/workflow"
)

// ApprovalLevelAssignment pairs an assignment with one approval level and
// resolves who approves there, walking ancestor scopes when the pairing has
// no approvers of its own.
//
// The direct approver set is cached per instance: a second Approvers call
// returns the cached set even if storage changed underneath. SeedApprovers
// primes the cache, InvalidateApprovers clears it.
//
// With activemode enabled, draft assignments are treated as absent while
// walking: they neither supply approvers nor block inheritance, and their
// descendants attach to the nearest eligible ancestor. Archived assignments
// are always treated that way.
//
// Activemode is held on the pairing instance only. Callers set it per use
// through SetActivemode; it is not persisted with the pairing.
type ApprovalLevelAssignment struct {
	store  Store
	walker HierarchyWalker

	assignment *Assignment
	level      *workflow.ApprovalLevel

	activemode bool

	approvers       []*Approver
	approversLoaded bool
}

// NewApprovalLevelAssignment builds a pairing of assignment and level.
func NewApprovalLevelAssignment(store Store, walker HierarchyWalker, a *Assignment, level *workflow.ApprovalLevel) *ApprovalLevelAssignment {
	return &ApprovalLevelAssignment{
		store:      store,
		walker:     walker,
		assignment: a,
		level:      level,
	}
}

// Assignment returns the assignment side of the pairing.
func (p *ApprovalLevelAssignment) Assignment() *Assignment {
	return p.assignment
}

// Level returns the approval level side of the pairing.
func (p *ApprovalLevelAssignment) Level() *workflow.ApprovalLevel {
	return p.level
}

// Activemode reports whether draft assignments are skipped while walking.
func (p *ApprovalLevelAssignment) Activemode() bool {
	return p.activemode
}

// SetActivemode toggles skipping of draft assignments.
func (p *ApprovalLevelAssignment) SetActivemode(on bool) {
	p.activemode = on
}

// Approvers returns the pairing's own active direct approvers.
func (p *ApprovalLevelAssignment) Approvers(ctx context.Context) ([]*Approver, error) {
	if p.approversLoaded {
		return p.approvers, nil
	}
	approvers, err := p.store.ListApprovers(ctx, p.assignment.ID, p.level.ID, false)
	if err != nil {
		return nil, err
	}
	p.approvers = approvers
	p.approversLoaded = true
	return p.approvers, nil
}

// SeedApprovers primes the direct approver cache, bypassing storage.
func (p *ApprovalLevelAssignment) SeedApprovers(approvers []*Approver) {
	p.approvers = approvers
	p.approversLoaded = true
}

// InvalidateApprovers clears the cache so the next Approvers call reloads.
func (p *ApprovalLevelAssignment) InvalidateApprovers() {
	p.approvers = nil
	p.approversLoaded = false
}

// ApproversWithInheritance returns the approvers acting at this pairing. A
// pairing with its own rows (direct or materialized inherited) returns them
// as stored; the default assignment never inherits. Otherwise the nearest
// ancestor pairing with direct approvers supplies them, each returned copy
// tagged with the originating row through AncestorID.
func (p *ApprovalLevelAssignment) ApproversWithInheritance(ctx context.Context) ([]*Approver, error) {
	rows, err := p.store.ListApprovers(ctx, p.assignment.ID, p.level.ID, true)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 || p.assignment.IsDefault {
		return rows, nil
	}

	source, err := p.InheritedFrom(ctx)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, nil
	}
	origin, err := source.Approvers(ctx)
	if err != nil {
		return nil, err
	}
	inherited := make([]*Approver, 0, len(origin))
	for _, o := range origin {
		inherited = append(inherited, &Approver{
			AssignmentID:    p.assignment.ID,
			ApprovalLevelID: p.level.ID,
			Kind:            o.Kind,
			Identifier:      o.Identifier,
			Active:          true,
			AncestorID:      o.ID,
		})
	}
	return inherited, nil
}

// InheritedFrom returns the pairing this one inherits its approvers from.
// It returns nil when the pairing has direct approvers of its own, and nil
// when no ancestor pairing has any either.
func (p *ApprovalLevelAssignment) InheritedFrom(ctx context.Context) (*ApprovalLevelAssignment, error) {
	own, err := p.Approvers(ctx)
	if err != nil {
		return nil, err
	}
	if len(own) > 0 {
		return nil, nil
	}
	ancestor, err := p.Ancestor(ctx)
	if err != nil || ancestor == nil {
		return nil, err
	}
	theirs, err := ancestor.Approvers(ctx)
	if err != nil {
		return nil, err
	}
	if len(theirs) == 0 {
		return nil, nil
	}
	return ancestor, nil
}

// Ancestor returns the nearest ancestor pairing with direct approvers,
// falling back to the default assignment's pairing. Only the default
// assignment itself has no ancestor. Cohort overrides inherit straight from
// the default.
func (p *ApprovalLevelAssignment) Ancestor(ctx context.Context) (*ApprovalLevelAssignment, error) {
	if p.assignment.IsDefault {
		return nil, nil
	}

	fallback, err := p.defaultPairing(ctx)
	if err != nil {
		return nil, err
	}
	if !p.assignment.Type.IsHierarchical() {
		return fallback, nil
	}

	nodes, err := p.walker.Ancestors(ctx, p.assignment.Type, p.assignment.Identifier)
	if err != nil {
		return nil, err
	}
	for _, nodeID := range nodes {
		a, err := p.store.AssignmentByTarget(ctx, p.assignment.WorkflowID, p.assignment.Type, nodeID)
		if err != nil {
			return nil, err
		}
		if a == nil || a.IsDefault || !p.eligible(a) {
			continue
		}
		pairing := p.sibling(a)
		theirs, err := pairing.Approvers(ctx)
		if err != nil {
			return nil, err
		}
		if len(theirs) > 0 {
			return pairing, nil
		}
	}
	return fallback, nil
}

// Descendants returns every descendant pairing that would inherit from this
// one: the walk prunes subtrees at scopes defining their own direct
// approvers. Cohort overrides have no descendants. For the default
// assignment the walk covers the whole override forest.
func (p *ApprovalLevelAssignment) Descendants(ctx context.Context) ([]*ApprovalLevelAssignment, error) {
	if !p.assignment.Type.IsHierarchical() && !p.assignment.IsDefault {
		return nil, nil
	}

	var scopes []*Assignment
	var err error
	if p.assignment.IsDefault {
		scopes, err = p.rootScopes(ctx)
	} else {
		scopes, err = p.childScopes(ctx, p.assignment.Type, p.assignment.Identifier)
	}
	if err != nil {
		return nil, err
	}

	var out []*ApprovalLevelAssignment
	var walk func(scopes []*Assignment) error
	walk = func(scopes []*Assignment) error {
		for _, sc := range scopes {
			pairing := p.sibling(sc)
			direct, err := pairing.Approvers(ctx)
			if err != nil {
				return err
			}
			if len(direct) > 0 {
				continue
			}
			out = append(out, pairing)
			if !sc.Type.IsHierarchical() {
				continue
			}
			kids, err := p.childScopes(ctx, sc.Type, sc.Identifier)
			if err != nil {
				return err
			}
			if err := walk(kids); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(scopes); err != nil {
		return nil, err
	}
	return out, nil
}

// childScopes returns the nearest eligible assignments below a node,
// walking through nodes without an eligible assignment.
func (p *ApprovalLevelAssignment) childScopes(ctx context.Context, t Type, nodeID int64) ([]*Assignment, error) {
	kids, err := p.walker.Children(ctx, t, nodeID)
	if err != nil {
		return nil, err
	}
	var out []*Assignment
	for _, kid := range kids {
		a, err := p.store.AssignmentByTarget(ctx, p.assignment.WorkflowID, t, kid)
		if err != nil {
			return nil, err
		}
		if a != nil && !a.IsDefault && p.eligible(a) {
			out = append(out, a)
			continue
		}
		deeper, err := p.childScopes(ctx, t, kid)
		if err != nil {
			return nil, err
		}
		out = append(out, deeper...)
	}
	return out, nil
}

// rootScopes returns the override assignments that inherit directly from
// the default: all eligible cohorts, plus hierarchy overrides with no
// eligible override above them.
func (p *ApprovalLevelAssignment) rootScopes(ctx context.Context) ([]*Assignment, error) {
	overrides, err := p.store.ListOverrides(ctx, p.assignment.WorkflowID)
	if err != nil {
		return nil, err
	}
	var roots []*Assignment
	for _, o := range overrides {
		if !p.eligible(o) {
			continue
		}
		if !o.Type.IsHierarchical() {
			roots = append(roots, o)
			continue
		}
		nodes, err := p.walker.Ancestors(ctx, o.Type, o.Identifier)
		if err != nil {
			return nil, err
		}
		covered := false
		for _, nodeID := range nodes {
			a, err := p.store.AssignmentByTarget(ctx, o.WorkflowID, o.Type, nodeID)
			if err != nil {
				return nil, err
			}
			if a != nil && !a.IsDefault && p.eligible(a) {
				covered = true
				break
			}
		}
		if !covered {
			roots = append(roots, o)
		}
	}
	return roots, nil
}

func (p *ApprovalLevelAssignment) defaultPairing(ctx context.Context) (*ApprovalLevelAssignment, error) {
	def, err := p.store.DefaultAssignment(ctx, p.assignment.WorkflowID)
	if err != nil {
		return nil, err
	}
	return p.sibling(def), nil
}

// sibling builds a pairing for another assignment at the same level,
// carrying the activemode setting over.
func (p *ApprovalLevelAssignment) sibling(a *Assignment) *ApprovalLevelAssignment {
	s := NewApprovalLevelAssignment(p.store, p.walker, a, p.level)
	s.activemode = p.activemode
	return s
}

// eligible reports whether an assignment participates in walks. Archived
// assignments never do; draft assignments only while activemode is off.
func (p *ApprovalLevelAssignment) eligible(a *Assignment) bool {
	switch a.Status {
	case workflow.StatusActive:
		return true
	case workflow.StatusDraft:
		return !p.activemode
	default:
		return false
	}
}
