package merge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petapt/internal/domain"
	"petapt/internal/repository/cart"
	"petapt/internal/sessionstore"
)

// flakyRepo applies the merge but can report failure afterwards, like a lost response.
type flakyRepo struct {
	*cart.Memory
	failAfterApply int
	failBefore     error
	calls          []string
}

func (f *flakyRepo) MergeAnonymous(ctx context.Context, owner, anon, attemptID string) (cart.MergeResult, error) {
	f.calls = append(f.calls, attemptID)
	if f.failBefore != nil {
		return cart.MergeResult{}, f.failBefore
	}
	res, err := f.Memory.MergeAnonymous(ctx, owner, anon, attemptID)
	if err == nil && f.failAfterApply > 0 {
		f.failAfterApply--
		return cart.MergeResult{}, errors.New("timeout reading response")
	}
	return res, err
}

func setup(t *testing.T) (*Procedure, *flakyRepo, *sessionstore.MemoryStore) {
	t.Helper()
	repo := &flakyRepo{Memory: cart.NewMemory()}
	store := sessionstore.NewMemory()
	ctx := context.Background()
	require.NoError(t, repo.Memory.UpsertLine(ctx, "anon:tok", "productA", "", 2, cart.AnyRevision))
	require.NoError(t, store.SaveMarker(ctx, "s1", sessionstore.Marker{AnonymousToken: "tok"}))
	return New(repo, store, "s1", nil), repo, store
}

func userCart(t *testing.T, repo *flakyRepo) map[string]int {
	t.Helper()
	lines, err := repo.Memory.List(context.Background(), "user:u1")
	require.NoError(t, err)
	out := map[string]int{}
	for _, l := range lines {
		out[l.ProductID] = l.Quantity
	}
	return out
}

func TestMerge_SingleSuccessThenNoop(t *testing.T) {
	p, repo, store := setup(t)
	ctx := context.Background()
	user := domain.Authenticated("u1")

	require.NoError(t, p.Merge(ctx, user))
	assert.Equal(t, map[string]int{"productA": 2}, userCart(t, repo))
	_, err := store.LoadMarker(ctx, "s1")
	assert.ErrorIs(t, err, sessionstore.ErrNoState)

	require.NoError(t, p.Merge(ctx, user))
	assert.Len(t, repo.calls, 1, "second merge must not reach the repository")
	assert.Equal(t, map[string]int{"productA": 2}, userCart(t, repo))
}

func TestMerge_RetryAfterAmbiguousFailureDoesNotDoubleCount(t *testing.T) {
	p, repo, store := setup(t)
	ctx := context.Background()
	repo.failAfterApply = 1
	user := domain.Authenticated("u1")

	require.Error(t, p.Merge(ctx, user))
	marker, err := store.LoadMarker(ctx, "s1")
	require.NoError(t, err, "marker kept after failure")
	require.NotEmpty(t, marker.AttemptID)

	require.NoError(t, p.Recover(ctx, user))
	assert.Equal(t, []string{marker.AttemptID, marker.AttemptID}, repo.calls)
	assert.Equal(t, map[string]int{"productA": 2}, userCart(t, repo))
	_, err = store.LoadMarker(ctx, "s1")
	assert.ErrorIs(t, err, sessionstore.ErrNoState)
}

func TestHandleTransition_LogsFailureAndKeepsMarker(t *testing.T) {
	p, repo, store := setup(t)
	ctx := context.Background()
	repo.failBefore = errors.New("storage unavailable")

	p.HandleTransition(ctx, domain.Transition{From: domain.Anonymous("tok"), To: domain.Authenticated("u1")})
	_, err := store.LoadMarker(ctx, "s1")
	assert.NoError(t, err)
	assert.Empty(t, userCart(t, repo))
}

func TestHandleTransition_IgnoresNonUpgrade(t *testing.T) {
	p, repo, _ := setup(t)
	p.HandleTransition(context.Background(), domain.Transition{To: domain.Anonymous("tok")})
	assert.Empty(t, repo.calls)
}

func TestRecover_AnonymousIdentitySkips(t *testing.T) {
	p, repo, _ := setup(t)
	require.NoError(t, p.Recover(context.Background(), domain.Anonymous("tok")))
	assert.Empty(t, repo.calls)
}
