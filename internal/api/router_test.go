package api

import (
	"bytes"
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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serverhub/internal/app"
	"serverhub/internal/config"
	"serverhub/internal/domain"
	"serverhub/internal/view"
	"serverhub/pkg/sdk"
)

const rosterEvent = `data: [{"server_id":"a","port":30000,"status":"Stopped"},{"server_id":"b","port":30001,"status":"Running","players":{"online":1,"max":20}},{"server_id":"c","port":30005,"status":"Pending"}]`

// fakeGateway streams one roster and holds every lifecycle command until
// the test releases it.
type fakeGateway struct {
	mu       sync.Mutex
	commands []string
	created  []sdk.CreateServerRequest
	release  chan struct{}
}

func (g *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == sdk.StatusStreamPath:
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, rosterEvent+"\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	case r.URL.Path == "/servers/create":
		var req sdk.CreateServerRequest
		json.NewDecoder(r.Body).Decode(&req)
		g.mu.Lock()
		g.created = append(g.created, req)
		g.mu.Unlock()
		fmt.Fprint(w, `{"message":"created"}`)
	default:
		g.mu.Lock()
		g.commands = append(g.commands, r.Method+" "+r.URL.Path)
		g.mu.Unlock()
		select {
		case <-g.release:
		case <-r.Context().Done():
		}
	}
}

func (g *fakeGateway) sent() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.commands...)
}

type fixture struct {
	gateway   *fakeGateway
	container *app.Container
	api       *Server
	handler   http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gw := &fakeGateway{release: make(chan struct{})}
	gwSrv := httptest.NewServer(gw)

	dir := t.TempDir()
	cfg := &config.Config{
		GatewayURL:         gwSrv.URL,
		DatabasePath:       filepath.Join(dir, "serverhub.db"),
		ReconnectInitialMs: 10,
		ReconnectMaxMs:     50,
		CommandTimeoutMs:   5000,
	}
	c, err := app.New(cfg, nil, app.WithHub())
	require.NoError(t, err)
	c.Start(context.Background())

	api := NewAPIServer(c)
	f := &fixture{gateway: gw, container: c, api: api, handler: api.Handler()}
	t.Cleanup(func() {
		close(gw.release)
		api.Wait()
		c.Close()
		gwSrv.Close()
	})

	require.Eventually(t, func() bool { return len(c.Store.Servers()) == 3 }, 2*time.Second, 10*time.Millisecond)
	return f
}

func (f *fixture) do(method, path string, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestGetRoster(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/roster", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var v view.Roster
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	require.Len(t, v.Rows, 3)
	assert.Equal(t, "a", v.Rows[0].Server.ID)
	assert.True(t, v.Rows[0].CanStart)
	assert.False(t, v.Rows[1].CanStart)
	assert.Equal(t, 1, v.Rows[1].Server.Players.Online)
}

func TestStartIsAcceptedThenConflictsWhileBusy(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/servers/c/start", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, f.container.Tracker.IsBusy("c", domain.ActionStart))

	rec = f.do(http.MethodPost, "/api/servers/c/start", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(http.MethodPost, "/api/servers/c/stop", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestRepeatedStartSendsOneCommand(t *testing.T) {
	f := newFixture(t)

	first := f.do(http.MethodPost, "/api/servers/a/start", "")
	second := f.do(http.MethodPost, "/api/servers/a/start", "")
	assert.Equal(t, http.StatusAccepted, first.Code)
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Contains(t, second.Body.String(), "start already in progress")

	require.Eventually(t, func() bool {
		return len(f.gateway.sent()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	// give a stray second command time to show up
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"POST /servers/a/start"}, f.gateway.sent())
}

func TestConcurrentStartsSendOneCommand(t *testing.T) {
	f := newFixture(t)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.do(http.MethodPost, "/api/servers/a/start", "").Code == http.StatusAccepted {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, accepted)

	require.Eventually(t, func() bool {
		return len(f.gateway.sent()) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestConfirmWhileDeleteInFlightConflicts(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, http.StatusAccepted, f.do(http.MethodPost, "/api/servers/a/delete", "").Code)
	require.Equal(t, http.StatusAccepted, f.do(http.MethodPost, "/api/confirm", "").Code)

	// reopen the prompt while the first delete is still held by the gateway
	f.container.Confirm.Request("a")
	rec := f.do(http.MethodPost, "/api/confirm", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.Eventually(t, func() bool {
		return len(f.gateway.sent()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"DELETE /servers/a"}, f.gateway.sent())
}

func TestShutdownCancelsCommands(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.api.baseCtx = ctx

	require.Equal(t, http.StatusAccepted, f.do(http.MethodPost, "/api/servers/a/start", "").Code)
	require.Eventually(t, func() bool {
		return len(f.gateway.sent()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, f.container.Tracker.IsBusy("a", domain.ActionStart))

	cancel()
	f.api.Wait()
	assert.False(t, f.container.Tracker.IsBusy("a", domain.ActionStart))

	records, err := f.container.Journal.ListActions("a", 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.OutcomeFailed, records[0].Outcome)
}

func TestCommandRules(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/api/servers/zz/start", "").Code)
	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/api/servers/b/start", "").Code)
	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/api/servers/a/stop", "").Code)
	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/api/servers/b/delete", "").Code)
	assert.Empty(t, f.gateway.sent())
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/api/confirm", "").Code)

	rec := f.do(http.MethodPost, "/api/servers/a/delete", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, f.gateway.sent())

	var v view.Roster
	require.NoError(t, json.Unmarshal(f.do(http.MethodGet, "/api/roster", "").Body.Bytes(), &v))
	assert.Equal(t, "a", v.PendingDelete)

	rec = f.do(http.MethodPost, "/api/confirm", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		_, ok := f.container.Store.Get("a")
		return !ok
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return len(f.gateway.sent()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"DELETE /servers/a"}, f.gateway.sent())
}

func TestCancelConfirmation(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, http.StatusAccepted, f.do(http.MethodPost, "/api/servers/a/delete", "").Code)
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/api/confirm", "").Code)
	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/api/confirm", "").Code)

	_, ok := f.container.Store.Get("a")
	assert.True(t, ok)
}

func TestCreateServer(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/servers", `{"name":"lobby","persistence":false}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	f.gateway.mu.Lock()
	defer f.gateway.mu.Unlock()
	require.Len(t, f.gateway.created, 1)
	got := f.gateway.created[0]
	assert.Equal(t, "lobby", got.ServerName)
	assert.Equal(t, 30002, got.MinecraftServer.NodePort)
	assert.False(t, got.Persistence.DataDir.Enabled)
}

func TestCreateServerValidation(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/servers", `{`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/servers", `{"name":""}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/servers", `{"name":"x","port":80}`).Code)
}

func TestPortRangeAndActions(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPut, "/api/settings/port-range", `{"start":31000,"end":31010}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/settings/port-range", "")
	assert.JSONEq(t, `{"start":31000,"end":31010}`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, "/api/settings/port-range", `{"start":5,"end":1}`).Code)

	require.Equal(t, http.StatusAccepted, f.do(http.MethodPost, "/api/servers/a/start", "").Code)
	require.Eventually(t, func() bool {
		var records []domain.ActionRecord
		rec := f.do(http.MethodGet, "/api/actions?server=a&limit=5", "")
		if json.Unmarshal(rec.Body.Bytes(), &records) != nil {
			return false
		}
		return len(records) == 1 && records[0].Action == domain.ActionStart
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/actions?limit=x", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)

	require.Eventually(t, func() bool {
		rec := f.do(http.MethodGet, "/metrics", "")
		return rec.Code == http.StatusOK && strings.Contains(rec.Body.String(), "serverhub_roster_servers 3")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodOptions, "/api/roster", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
