package storage

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serverhub/internal/domain"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	store, err := NewGormStore(filepath.Join(t.TempDir(), "serverhub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestDefaultPortRange(t *testing.T) {
	store := newTestStore(t)

	start, end, err := store.GetPortRange()
	require.NoError(t, err)
	assert.Equal(t, DefaultPortRangeStart, start)
	assert.Equal(t, DefaultPortRangeEnd, end)
}

func TestSetPortRange(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SetPortRange(31000, 31010))
	start, end, err := store.GetPortRange()
	require.NoError(t, err)
	assert.Equal(t, 31000, start)
	assert.Equal(t, 31010, end)

	assert.Error(t, store.SetPortRange(31010, 31000))
	assert.Error(t, store.SetPortRange(0, 10))
	assert.Error(t, store.SetPortRange(1, 70000))
}

func TestDefaultsDoNotOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serverhub.db")
	store, err := NewGormStore(path)
	require.NoError(t, err)
	require.NoError(t, store.SetPortRange(31000, 31010))
	require.NoError(t, store.Close())

	reopened, err := NewGormStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	start, _, err := reopened.GetPortRange()
	require.NoError(t, err)
	assert.Equal(t, 31000, start)
}

func TestGetMissingSetting(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetSetting("nope")
	assert.EqualError(t, err, "setting not found: nope")
}

func TestActionJournal(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i, a := range []domain.Action{domain.ActionStart, domain.ActionStop, domain.ActionDelete} {
		serverID := "a"
		if a == domain.ActionStop {
			serverID = "b"
		}
		require.NoError(t, store.SaveAction(&domain.ActionRecord{
			ID:        fmt.Sprintf("rec-%d", i),
			RequestID: fmt.Sprintf("req-%d", i),
			ServerID:  serverID,
			Action:    a,
			Outcome:   domain.OutcomePending,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	require.NoError(t, store.FinishAction("rec-0", domain.OutcomeSucceeded, ""))
	require.NoError(t, store.FinishAction("rec-2", domain.OutcomeFailed, "API error (500)"))

	all, err := store.ListActions("", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "rec-2", all[0].ID)
	assert.Equal(t, domain.OutcomeFailed, all[0].Outcome)
	assert.Equal(t, "API error (500)", all[0].Error)
	assert.NotNil(t, all[0].FinishedAt)
	assert.Equal(t, domain.OutcomePending, all[1].Outcome)
	assert.Nil(t, all[1].FinishedAt)

	forA, err := store.ListActions("a", 10)
	require.NoError(t, err)
	require.Len(t, forA, 2)
	assert.Equal(t, domain.ActionDelete, forA[0].Action)
	assert.Equal(t, domain.ActionStart, forA[1].Action)
	assert.Equal(t, "req-0", forA[1].RequestID)

	limited, err := store.ListActions("", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestFinishUnknownAction(t *testing.T) {
	store := newTestStore(t)
	assert.Error(t, store.FinishAction("missing", domain.OutcomeSucceeded, ""))
}
