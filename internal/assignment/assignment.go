// Package assignment models workflow assignments (the scopes a workflow is
// deployed to), their approvers, and the inheritance rules that decide which
// approvers act at each approval level of each scope.
package assignment

import (
	"context"
	"time"

	"github.com/pesio-ai/be-approval-workflows/internal/workflow"
)

// Type is the kind of scope an assignment targets.
type Type string

const (
	TypeOrganisation Type = "ORGANISATION"
	TypePosition     Type = "POSITION"
	TypeCohort       Type = "COHORT"
)

// IsHierarchical reports whether scopes of this type form a tree. Cohorts
// are flat and always inherit from the default assignment.
func (t Type) IsHierarchical() bool {
	return t == TypeOrganisation || t == TypePosition
}

// Assignment deploys a workflow to a scope. Exactly one assignment per
// workflow is the default; the rest are overrides.
type Assignment struct {
	ID         int64
	WorkflowID int64
	Type       Type
	Identifier int64 // hierarchy node or cohort id
	Name       string
	IDNumber   string
	IsDefault  bool
	Status     workflow.Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ApproverKind distinguishes concrete users from relationship placeholders.
type ApproverKind string

const (
	ApproverKindUser         ApproverKind = "USER"
	ApproverKindRelationship ApproverKind = "RELATIONSHIP"
)

// Well-known relationship identifiers understood by the identity service.
const (
	RelationshipManager          int64 = 1
	RelationshipTemporaryManager int64 = 2
	RelationshipAppraiser        int64 = 3
)

// Approver assigns either a user or a relationship as approver for one
// approval level of one assignment. Inherited approvers are materialized
// copies pointing back at the originating row through AncestorID.
type Approver struct {
	ID              int64
	AssignmentID    int64
	ApprovalLevelID int64
	Kind            ApproverKind
	Identifier      int64 // user id or relationship id, depending on Kind
	Active          bool
	AncestorID      int64 // originating approver row; 0 for direct approvers
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsInherited reports whether the approver was materialized from an
// ancestor assignment rather than assigned directly.
func (a *Approver) IsInherited() bool {
	return a.AncestorID != 0
}

// Store is the persistence surface the inheritance resolver reads from.
type Store interface {
	// DefaultAssignment returns the workflow's default assignment.
	DefaultAssignment(ctx context.Context, workflowID int64) (*Assignment, error)

	// AssignmentByTarget returns the assignment covering the given scope,
	// or nil when the scope has no assignment for this workflow.
	AssignmentByTarget(ctx context.Context, workflowID int64, t Type, identifier int64) (*Assignment, error)

	// ListOverrides returns every non-default assignment of the workflow,
	// regardless of status.
	ListOverrides(ctx context.Context, workflowID int64) ([]*Assignment, error)

	// ListApprovers returns the active approvers of an assignment at a
	// level. With includeInherited false only direct approvers are
	// returned; with true, materialized inherited copies are included.
	ListApprovers(ctx context.Context, assignmentID, approvalLevelID int64, includeInherited bool) ([]*Approver, error)
}

// HierarchyWalker navigates organisation and position trees.
type HierarchyWalker interface {
	// Ancestors returns the ancestor node ids of a node, nearest first.
	Ancestors(ctx context.Context, t Type, id int64) ([]int64, error)

	// Children returns the immediate child node ids of a node.
	Children(ctx context.Context, t Type, id int64) ([]int64, error)
}

// RelationshipResolver expands a relationship placeholder into the concrete
// users holding that relationship to the subject. Implementations are
// expected to exclude expired relationships, such as temporary managers
// past their expiry date.
type RelationshipResolver interface {
	ResolveRelationship(ctx context.Context, relationshipID, subjectUserID int64) ([]int64, error)
}
