package retention

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raoulx24/borg-scheduler/internal/borg"
	"github.com/raoulx24/borg-scheduler/internal/config"
	"github.com/raoulx24/borg-scheduler/internal/logging"
)

type fakePruner struct {
	got []borg.PruneOptions
	err error
}

func (f *fakePruner) Prune(_ context.Context, o borg.PruneOptions) error {
	f.got = append(f.got, o)
	return f.err
}

func TestPolicy(t *testing.T) {
	p, err := Policy(config.RetentionConfig{
		LastCount: 2,
		Rules: []config.RetentionRule{
			{Name: "daily", Count: 7},
			{Name: "Weekly", Count: 4},
			{Name: "monthly", Count: 6},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, borg.PruneOptions{KeepLast: 2, KeepDaily: 7, KeepWeekly: 4, KeepMonthly: 6}, p)

	_, err = Policy(config.RetentionConfig{Rules: []config.RetentionRule{{Name: "fortnightly", Count: 1}}})
	assert.Error(t, err)
}

func TestApply_DisabledIsNoop(t *testing.T) {
	pr := &fakePruner{}
	e, err := New(config.RetentionConfig{}, pr, logging.Nop())
	require.NoError(t, err)

	assert.False(t, e.Enabled())
	require.NoError(t, e.Apply(context.Background(), "/srv/repo", "pw"))
	assert.Empty(t, pr.got)
}

func TestApply_PrunesWithPolicy(t *testing.T) {
	pr := &fakePruner{}
	e, err := New(config.RetentionConfig{LastCount: 3}, pr, logging.Nop())
	require.NoError(t, err)

	require.NoError(t, e.Apply(context.Background(), "/srv/repo", "pw"))
	require.Len(t, pr.got, 1)
	assert.Equal(t, borg.PruneOptions{Repository: "/srv/repo", Passphrase: "pw", KeepLast: 3}, pr.got[0])
}

func TestApply_WrapsError(t *testing.T) {
	pr := &fakePruner{err: borg.ErrLocked}
	e, err := New(config.RetentionConfig{LastCount: 1}, pr, logging.Nop())
	require.NoError(t, err)

	assert.ErrorIs(t, e.Apply(context.Background(), "/r", "pw"), borg.ErrLocked)
}
