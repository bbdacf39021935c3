// Package server builds and submits create-server requests.
package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"serverhub/pkg/sdk"
)

const (
	DefaultName        = "Minecraft Server"
	DefaultGameMode    = "creative"
	DefaultDifficulty  = "peaceful"
	DefaultMotd        = "A sample MOTD"
	DefaultServiceType = "NodePort"
)

var (
	GameModes    = []string{"survival", "creative", "adventure", "spectator"}
	Difficulties = []string{"peaceful", "easy", "normal", "hard"}

	// ErrInvalidRequest wraps every validation failure.
	ErrInvalidRequest = errors.New("invalid create request")
	ErrNameRequired   = fmt.Errorf("%w: server name is required", ErrInvalidRequest)
	ErrNoFreePort     = errors.New("no free ports")
)

// Options are the user-facing create fields. Zero values select defaults;
// Port 0 asks for an allocated port.
type Options struct {
	Name          string
	Port          int
	Motd          string
	GameMode      string
	Difficulty    string
	NoPersistence bool
}

func DefaultOptions() Options {
	return Options{
		Name:       DefaultName,
		Motd:       DefaultMotd,
		GameMode:   DefaultGameMode,
		Difficulty: DefaultDifficulty,
	}
}

// BuildRequest fills defaults and validates opts against the port range.
// The port must already be resolved.
func BuildRequest(opts Options, start, end int) (sdk.CreateServerRequest, error) {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return sdk.CreateServerRequest{}, ErrNameRequired
	}
	if strings.ContainsAny(name, "\\/:*?\"<>|") || strings.Contains(name, "..") {
		return sdk.CreateServerRequest{}, fmt.Errorf("%w: server name %q contains forbidden characters", ErrInvalidRequest, name)
	}
	if opts.Port < start || opts.Port > end {
		return sdk.CreateServerRequest{}, fmt.Errorf("%w: port %d outside allowed range %d-%d", ErrInvalidRequest, opts.Port, start, end)
	}

	gameMode := orDefault(strings.ToLower(opts.GameMode), DefaultGameMode)
	if !contains(GameModes, gameMode) {
		return sdk.CreateServerRequest{}, fmt.Errorf("%w: unknown game mode %q", ErrInvalidRequest, opts.GameMode)
	}
	difficulty := orDefault(strings.ToLower(opts.Difficulty), DefaultDifficulty)
	if !contains(Difficulties, difficulty) {
		return sdk.CreateServerRequest{}, fmt.Errorf("%w: unknown difficulty %q", ErrInvalidRequest, opts.Difficulty)
	}

	return sdk.CreateServerRequest{
		ServerName: name,
		MinecraftServer: sdk.MinecraftServer{
			Eula:        true,
			GameMode:    gameMode,
			Difficulty:  difficulty,
			Motd:        orDefault(opts.Motd, DefaultMotd),
			ServiceType: DefaultServiceType,
			NodePort:    opts.Port,
		},
		Persistence: sdk.Persistence{DataDir: sdk.DataDir{Enabled: !opts.NoPersistence}},
	}, nil
}

type Gateway interface {
	CreateServer(ctx context.Context, req sdk.CreateServerRequest) (*sdk.CreateServerResponse, error)
}

type PortRangeSource interface {
	GetPortRange() (int, int, error)
}

type RosterSource interface {
	Servers() []sdk.ServerInstance
}

// Manager submits create requests. The new instance shows up through the
// next roster snapshot, not through the response.
type Manager struct {
	gateway Gateway
	ports   PortRangeSource
	roster  RosterSource
	logger  log.Logger
}

func NewManager(gateway Gateway, ports PortRangeSource, roster RosterSource, logger log.Logger) *Manager {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Manager{
		gateway: gateway,
		ports:   ports,
		roster:  roster,
		logger:  logger,
	}
}

func (m *Manager) Create(ctx context.Context, opts Options) (sdk.CreateServerRequest, *sdk.CreateServerResponse, error) {
	start, end, err := m.ports.GetPortRange()
	if err != nil {
		return sdk.CreateServerRequest{}, nil, fmt.Errorf("read port range: %w", err)
	}

	if opts.Port == 0 {
		opts.Port, err = AllocatePort(start, end, m.roster.Servers())
		if err != nil {
			return sdk.CreateServerRequest{}, nil, err
		}
	}

	req, err := BuildRequest(opts, start, end)
	if err != nil {
		return req, nil, err
	}

	resp, err := m.gateway.CreateServer(ctx, req)
	if err != nil {
		level.Error(m.logger).Log("msg", "create failed", "name", req.ServerName, "port", opts.Port, "err", err)
		return req, nil, fmt.Errorf("create server %s: %w", req.ServerName, err)
	}
	level.Info(m.logger).Log("msg", "server created", "name", req.ServerName, "port", opts.Port)
	return req, resp, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
