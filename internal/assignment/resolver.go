package assignment

import (
	"context"
	"fmt"

	"github.com/pesio-ai/be-approval-workflows/internal/errors"
)

// ApproverResolver expands approver rows into the concrete user ids allowed
// to act, resolving relationship placeholders against the applicant.
type ApproverResolver struct {
	relationships RelationshipResolver
}

// NewApproverResolver builds a resolver over a relationship backend.
func NewApproverResolver(relationships RelationshipResolver) *ApproverResolver {
	return &ApproverResolver{relationships: relationships}
}

// ResolveUsers returns the deduplicated user ids behind the given approver
// rows, preserving first-seen order. Relationship approvers resolve against
// the applicant; a user appearing through several rows is returned once.
func (r *ApproverResolver) ResolveUsers(ctx context.Context, approvers []*Approver, applicantID int64) ([]int64, error) {
	seen := make(map[int64]struct{})
	var users []int64
	add := func(id int64) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		users = append(users, id)
	}

	for _, a := range approvers {
		switch a.Kind {
		case ApproverKindUser:
			add(a.Identifier)
		case ApproverKindRelationship:
			resolved, err := r.relationships.ResolveRelationship(ctx, a.Identifier, applicantID)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeInternal,
					fmt.Sprintf("resolve relationship %d for user %d", a.Identifier, applicantID))
			}
			for _, id := range resolved {
				add(id)
			}
		default:
			return nil, errors.New(errors.ErrCodeInternal, fmt.Sprintf("unknown approver kind %q", a.Kind))
		}
	}
	return users, nil
}
