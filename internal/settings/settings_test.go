package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/procureflow/procureflow/internal/shared"
	"github.com/procureflow/procureflow/internal/workflow"
)

type memoryRepo struct {
	values map[string]Setting
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{values: map[string]Setting{}}
}

func (m *memoryRepo) Get(_ context.Context, key string) (*Setting, error) {
	s, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *memoryRepo) All(_ context.Context) ([]Setting, error) {
	var out []Setting
	for _, s := range m.values {
		out = append(out, s)
	}
	return out, nil
}

func (m *memoryRepo) Upsert(_ context.Context, s Setting) error {
	m.values[s.Key] = s
	return nil
}

var _ RepositoryPort = (*memoryRepo)(nil)

var gm = shared.Principal{UserID: 8, Role: workflow.RoleGeneralManager}

func TestApprovalLimitDefaultsWhenUnset(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)

	limit, err := svc.ApprovalLimit(context.Background())
	require.NoError(t, err)
	require.Equal(t, float64(DefaultApprovalLimit), limit)
}

func TestSetApprovalLimit(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)

	_, err := svc.Set(context.Background(), gm, KeyApprovalLimit, "50000")
	require.NoError(t, err)

	limit, err := svc.ApprovalLimit(context.Background())
	require.NoError(t, err)
	require.Equal(t, 50000.0, limit)
}

func TestSetApprovalLimitRejectsGarbage(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)

	_, err := svc.Set(context.Background(), gm, KeyApprovalLimit, "a lot")
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Set(context.Background(), gm, KeyApprovalLimit, "-5")
	require.ErrorIs(t, err, ErrValidation)
}

func TestMalformedStoredLimitFallsBack(t *testing.T) {
	repo := newMemoryRepo()
	repo.values[KeyApprovalLimit] = Setting{Key: KeyApprovalLimit, Value: "oops"}
	svc := NewService(repo, nil, nil)

	limit, err := svc.ApprovalLimit(context.Background())
	require.NoError(t, err)
	require.Equal(t, float64(DefaultApprovalLimit), limit)
}
