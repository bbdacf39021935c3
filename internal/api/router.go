// Package api is the web backend: a JSON facade over the roster and command
// dispatch plus a websocket feed of the roster view.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"serverhub/internal/app"
	"serverhub/internal/confirm"
	"serverhub/internal/domain"
	"serverhub/internal/server"
	"serverhub/internal/view"
)

type Server struct {
	container *app.Container
	logger    log.Logger

	// baseCtx parents background commands. Start sets it to its own ctx.
	baseCtx  context.Context
	inflight sync.WaitGroup
}

func NewAPIServer(container *app.Container) *Server {
	return &Server{
		container: container,
		logger:    log.With(container.Logger, "component", "api"),
		baseCtx:   context.Background(),
	}
}

func (api *Server) Handler() http.Handler {
	c := api.container
	mux := http.NewServeMux()

	if c.Config.WebDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(c.Config.WebDir)))
	}

	mux.HandleFunc("GET /api/roster", api.handleRoster)
	mux.HandleFunc("POST /api/servers", api.handleCreateServer)
	mux.HandleFunc("POST /api/servers/{id}/start", api.handleCommand(domain.ActionStart))
	mux.HandleFunc("POST /api/servers/{id}/stop", api.handleCommand(domain.ActionStop))
	mux.HandleFunc("POST /api/servers/{id}/delete", api.handleRequestDelete)
	mux.HandleFunc("POST /api/confirm", api.handleConfirm)
	mux.HandleFunc("DELETE /api/confirm", api.handleCancel)
	mux.HandleFunc("GET /api/actions", api.handleListActions)
	mux.HandleFunc("GET /api/settings/port-range", api.handleGetPortRange)
	mux.HandleFunc("PUT /api/settings/port-range", api.handleSetPortRange)

	if c.Hub != nil {
		mux.HandleFunc("GET /ws/roster", c.Hub.ServeWs)
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{}))

	return api.corsMiddleware(api.loggingMiddleware(mux))
}

// Start serves on listenAddr until ctx is cancelled, then drains open
// requests and background commands.
func (api *Server) Start(ctx context.Context, listenAddr string) error {
	api.baseCtx = ctx
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		level.Info(api.logger).Log("msg", "listening", "addr", listenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	api.Wait()
	return err
}

// Wait blocks until background commands have settled.
func (api *Server) Wait() {
	api.inflight.Wait()
}

func (api *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.container.View())
}

// lookup returns the view row for the {id} path value, writing the error
// response itself when there is none.
func (api *Server) lookup(w http.ResponseWriter, r *http.Request) (view.Row, bool) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "missing server id", http.StatusBadRequest)
		return view.Row{}, false
	}
	srv, ok := api.container.Store.Get(id)
	if !ok {
		http.Error(w, "server not found", http.StatusNotFound)
		return view.Row{}, false
	}
	return view.NewRow(srv, api.container.Tracker), true
}

func (api *Server) handleCommand(action domain.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		row, ok := api.lookup(w, r)
		if !ok {
			return
		}
		if !api.checkAllowed(w, row, action) {
			return
		}
		if !api.begin(w, action, row.Server.ID) {
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "action": string(action)})
	}
}

func (api *Server) checkAllowed(w http.ResponseWriter, row view.Row, action domain.Action) bool {
	if api.container.Dispatcher.IsBusy(row.Server.ID, action) {
		http.Error(w, string(action)+" already in progress", http.StatusConflict)
		return false
	}
	if !view.Allowed(row.Server, action) {
		http.Error(w, "cannot "+string(action)+" a server that is "+string(row.Server.Status), http.StatusConflict)
		return false
	}
	return true
}

// begin claims the busy flag and runs the command in the background. The
// flag is held before the response is written, so a repeated request is
// refused with 409.
func (api *Server) begin(w http.ResponseWriter, action domain.Action, id string) bool {
	run, ok := api.container.Dispatcher.Begin(id, action)
	if !ok {
		http.Error(w, string(action)+" already in progress", http.StatusConflict)
		return false
	}

	ctx := api.baseCtx
	api.inflight.Add(1)
	go func() {
		defer api.inflight.Done()
		// Command failures are logged and journaled by the dispatcher.
		_ = run(ctx)
	}()
	return true
}

func (api *Server) handleRequestDelete(w http.ResponseWriter, r *http.Request) {
	row, ok := api.lookup(w, r)
	if !ok {
		return
	}
	if !api.checkAllowed(w, row, domain.ActionDelete) {
		return
	}
	api.container.Confirm.Request(row.Server.ID)
	api.container.Publish()
	writeJSON(w, http.StatusAccepted, map[string]string{"pendingDelete": row.Server.ID})
}

func (api *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id, err := api.container.Confirm.Confirm()
	if errors.Is(err, confirm.ErrNoPending) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	ok := api.begin(w, domain.ActionDelete, id)
	api.container.Publish()
	if !ok {
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "action": string(domain.ActionDelete), "server_id": id})
}

func (api *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	api.container.Confirm.Cancel()
	api.container.Publish()
	w.WriteHeader(http.StatusNoContent)
}

func (api *Server) handleCreateServer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Port        int    `json:"port"`
		Motd        string `json:"motd"`
		GameMode    string `json:"gameMode"`
		Difficulty  string `json:"difficulty"`
		Persistence *bool  `json:"persistence"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	opts := server.Options{
		Name:          req.Name,
		Port:          req.Port,
		Motd:          req.Motd,
		GameMode:      req.GameMode,
		Difficulty:    req.Difficulty,
		NoPersistence: req.Persistence != nil && !*req.Persistence,
	}

	created, resp, err := api.container.Servers.Create(r.Context(), opts)
	switch {
	case errors.Is(err, server.ErrInvalidRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, server.ErrNoFreePort):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"request":  created,
		"response": resp,
	})
}

func (api *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := api.container.Journal.ListActions(r.URL.Query().Get("server"), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (api *Server) handleGetPortRange(w http.ResponseWriter, r *http.Request) {
	start, end, err := api.container.Journal.GetPortRange()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"start": start, "end": end})
}

func (api *Server) handleSetPortRange(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Start int `json:"start"`
		End   int `json:"end"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	if err := api.container.Journal.SetPortRange(req.Start, req.End); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
