package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serverhub/internal/config"
	"serverhub/internal/domain"
	"serverhub/internal/view"
)

// gateway serves one roster snapshot on the status stream and accepts
// lifecycle commands.
type gateway struct {
	mu       sync.Mutex
	commands []string
}

func (g *gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/servers/status/all" {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: [{\"server_id\":\"a\",\"port\":30000,\"status\":\"Stopped\"},{\"server_id\":\"b\",\"port\":30001,\"status\":\"Running\"}]\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
		return
	}
	g.mu.Lock()
	g.commands = append(g.commands, r.Method+" "+r.URL.Path)
	g.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func newTestContainer(t *testing.T, gatewayURL string) *Container {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		GatewayURL:         gatewayURL,
		DatabasePath:       filepath.Join(dir, "serverhub.db"),
		ReconnectInitialMs: 10,
		ReconnectMaxMs:     50,
		CommandTimeoutMs:   2000,
	}
	c, err := New(cfg, nil, WithHub())
	require.NoError(t, err)
	c.Start(context.Background())
	t.Cleanup(func() { c.Close() })
	return c
}

func TestContainerAppliesStreamAndPublishes(t *testing.T) {
	gw := &gateway{}
	srv := httptest.NewServer(gw)
	t.Cleanup(srv.Close)

	c := newTestContainer(t, srv.URL)

	require.Eventually(t, func() bool { return len(c.Store.Servers()) == 2 }, 2*time.Second, 10*time.Millisecond)
	expected := `
# HELP serverhub_roster_servers Server instances in the current roster.
# TYPE serverhub_roster_servers gauge
serverhub_roster_servers 2
`
	require.Eventually(t, func() bool {
		return testutil.GatherAndCompare(c.Registry, strings.NewReader(expected), "serverhub_roster_servers") == nil
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		var v view.Roster
		if err := json.Unmarshal(c.Hub.Latest(), &v); err != nil {
			return false
		}
		return len(v.Rows) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestContainerDispatchJournalsCommand(t *testing.T) {
	gw := &gateway{}
	srv := httptest.NewServer(gw)
	t.Cleanup(srv.Close)

	c := newTestContainer(t, srv.URL)
	require.Eventually(t, func() bool { return len(c.Store.Servers()) == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Dispatcher.Start(context.Background(), "a"))
	assert.False(t, c.Tracker.IsBusy("a", domain.ActionStart))

	records, err := c.Journal.ListActions("a", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.OutcomeSucceeded, records[0].Outcome)

	gw.mu.Lock()
	defer gw.mu.Unlock()
	assert.Equal(t, []string{"POST /servers/a/start"}, gw.commands)
}

func TestContainerCloseIsIdempotent(t *testing.T) {
	c := newTestContainer(t, "")
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestConcurrentPublishesEndOnNewestView(t *testing.T) {
	gw := &gateway{}
	srv := httptest.NewServer(gw)
	t.Cleanup(srv.Close)

	c := newTestContainer(t, srv.URL)
	require.Eventually(t, func() bool { return len(c.Store.Servers()) == 2 }, 2*time.Second, 10*time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Tracker.SetBusy("a", domain.ActionStart, true)
			c.Publish()
			c.Tracker.SetBusy("a", domain.ActionStart, false)
			c.Publish()
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		var v view.Roster
		if err := json.Unmarshal(c.Hub.Latest(), &v); err != nil || len(v.Rows) != 2 {
			return false
		}
		return !v.Rows[0].Busy.Any()
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	var v view.Roster
	require.NoError(t, json.Unmarshal(c.Hub.Latest(), &v))
	assert.False(t, v.Rows[0].Busy.Start)
}
