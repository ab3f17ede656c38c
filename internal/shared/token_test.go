package shared_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/procureflow/procureflow/internal/shared"
	"github.com/procureflow/procureflow/internal/workflow"
)

func newTokenManager(t *testing.T) *shared.TokenManager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return shared.NewTokenManager(client, time.Hour)
}

func TestIssueAndResolve(t *testing.T) {
	tm := newTokenManager(t)
	ctx := context.Background()

	token, err := tm.Issue(ctx, shared.Principal{UserID: 7, Name: "Sami", Email: "sami@site.local", Role: workflow.RoleSupervisor})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	p, err := tm.Resolve(ctx, token)
	require.NoError(t, err)
	require.Equal(t, int64(7), p.UserID)
	require.Equal(t, workflow.RoleSupervisor, p.Role)
}

func TestResolveUnknownToken(t *testing.T) {
	tm := newTokenManager(t)

	_, err := tm.Resolve(context.Background(), "nope")
	require.ErrorIs(t, err, shared.ErrTokenExpired)

	_, err = tm.Resolve(context.Background(), "")
	require.ErrorIs(t, err, shared.ErrTokenExpired)
}

func TestRevoke(t *testing.T) {
	tm := newTokenManager(t)
	ctx := context.Background()

	token, err := tm.Issue(ctx, shared.Principal{UserID: 3, Role: workflow.RoleEngineer})
	require.NoError(t, err)
	require.NoError(t, tm.Revoke(ctx, token))

	_, err = tm.Resolve(ctx, token)
	require.ErrorIs(t, err, shared.ErrTokenExpired)
}

func TestRevokeUserDropsAllTokens(t *testing.T) {
	tm := newTokenManager(t)
	ctx := context.Background()

	first, err := tm.Issue(ctx, shared.Principal{UserID: 5, Role: workflow.RolePrinter})
	require.NoError(t, err)
	second, err := tm.Issue(ctx, shared.Principal{UserID: 5, Role: workflow.RolePrinter})
	require.NoError(t, err)

	require.NoError(t, tm.RevokeUser(ctx, 5))

	_, err = tm.Resolve(ctx, first)
	require.ErrorIs(t, err, shared.ErrTokenExpired)
	_, err = tm.Resolve(ctx, second)
	require.ErrorIs(t, err, shared.ErrTokenExpired)
}
