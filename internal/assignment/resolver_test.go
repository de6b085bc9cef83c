package assignment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-approval-workflows/internal/errors"
)

type fakeRelationships struct {
	// keyed by relationship id, then subject user id
	holders map[int64]map[int64][]int64
}

func (f *fakeRelationships) ResolveRelationship(ctx context.Context, relationshipID, subjectUserID int64) ([]int64, error) {
	return f.holders[relationshipID][subjectUserID], nil
}

func TestResolveUsers(t *testing.T) {
	ctx := context.Background()
	rel := &fakeRelationships{holders: map[int64]map[int64][]int64{
		RelationshipManager: {42: {7, 8}},
	}}
	r := NewApproverResolver(rel)

	users, err := r.ResolveUsers(ctx, []*Approver{
		{Kind: ApproverKindUser, Identifier: 5},
		{Kind: ApproverKindRelationship, Identifier: RelationshipManager},
		{Kind: ApproverKindUser, Identifier: 7}, // already present via the manager
	}, 42)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 7, 8}, users)
}

func TestResolveUsersNoRelationshipHolders(t *testing.T) {
	ctx := context.Background()
	r := NewApproverResolver(&fakeRelationships{holders: map[int64]map[int64][]int64{}})

	users, err := r.ResolveUsers(ctx, []*Approver{
		{Kind: ApproverKindRelationship, Identifier: RelationshipManager},
	}, 42)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestResolveUsersUnknownKind(t *testing.T) {
	ctx := context.Background()
	r := NewApproverResolver(&fakeRelationships{})

	_, err := r.ResolveUsers(ctx, []*Approver{{Kind: "PET", Identifier: 1}}, 42)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInternal))
}
