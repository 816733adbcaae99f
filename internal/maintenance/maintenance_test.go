package maintenance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/appbuilder/internal/history"
)

type fakeTarget struct {
	vacuumed  int
	counted   int
	vacuumErr error
}

func (f *fakeTarget) Vacuum(context.Context) error {
	f.vacuumed++
	return f.vacuumErr
}

func (f *fakeTarget) Counts(context.Context) (int64, int64, error) {
	f.counted++
	return 3, 2, nil
}

func newScheduler(t *testing.T, target Target) *Scheduler {
	t.Helper()
	s, err := NewScheduler(target, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func TestRunOnce(t *testing.T) {
	target := &fakeTarget{}
	s := newScheduler(t, target)

	s.RunOnce(context.Background())
	assert.Equal(t, 1, target.vacuumed)
	assert.Equal(t, 1, target.counted)
}

func TestRunOnceVacuumFailureSkipsCount(t *testing.T) {
	target := &fakeTarget{vacuumErr: errors.New("locked")}
	s := newScheduler(t, target)

	s.RunOnce(context.Background())
	assert.Equal(t, 1, target.vacuumed)
	assert.Zero(t, target.counted)
}

func TestRunOnceAgainstRealStore(t *testing.T) {
	store, err := history.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	s := newScheduler(t, store)
	s.RunOnce(context.Background())
}
