package sdk

import "strings"

type Status string

const (
	StatusPending Status = "Pending"
	StatusRunning Status = "Running"
	StatusStopped Status = "Stopped"
	StatusUnknown Status = "Unknown"
)

// Is compares case-insensitively; the controller reports "running"/"stopped".
func (s Status) Is(other Status) bool {
	return strings.EqualFold(string(s), string(other))
}

type Players struct {
	Online int `json:"online"`
	Max    int `json:"max"`
}

type ServerInstance struct {
	ID          string   `json:"server_id"`
	Port        int      `json:"port"`
	Description string   `json:"description,omitempty"`
	Players     *Players `json:"players,omitempty"`
	Status      Status   `json:"status"`
}

type MinecraftServer struct {
	Eula        bool   `json:"eula"`
	GameMode    string `json:"gameMode"`
	Difficulty  string `json:"difficulty"`
	Motd        string `json:"motd"`
	ServiceType string `json:"serviceType"`
	NodePort    int    `json:"nodePort"`
}

type DataDir struct {
	Enabled bool `json:"enabled"`
}

type Persistence struct {
	DataDir DataDir `json:"dataDir"`
}

type CreateServerRequest struct {
	ServerName      string          `json:"serverName"`
	MinecraftServer MinecraftServer `json:"minecraftServer"`
	Persistence     Persistence     `json:"persistence"`
}

type CreateServerResponse struct {
	Message string `json:"message"`
	Output  string `json:"output,omitempty"`
}
