package apihttp

import (
	"net/http"
	"time"
)

// EngineSettings is the read-only view of the engine configuration served
// on /settings.
type EngineSettings struct {
	DownloadDir        string  `json:"downloadDir"`
	MaxTorrents        int     `json:"maxTorrents"`
	MaxPeersPerTorrent int     `json:"maxPeersPerTorrent"`
	ListenPort         int     `json:"listenPort"`
	EnableDHT          bool    `json:"enableDht"`
	EnableUPnP         bool    `json:"enableUpnp"`
	UploadLimitKBps    int64   `json:"uploadLimitKbps"`
	DownloadLimitKBps  int64   `json:"downloadLimitKbps"`
	SeedRatioLimit     float64 `json:"seedRatioLimit"`
	SeedTimeLimitSec   int64   `json:"seedTimeLimitSec"`
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.settings == nil {
		writeError(w, http.StatusNotFound, "not_configured", "settings not available")
		return
	}
	writeJSON(w, http.StatusOK, s.settings)
}

type healthResponse struct {
	Status    string    `json:"status"`
	CheckedAt time.Time `json:"checkedAt"`
	Torrents  int       `json:"torrents"`
	WSClients int       `json:"wsClients"`
	Issues    []string  `json:"issues,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resp := healthResponse{
		Status:    "ok",
		CheckedAt: time.Now().UTC(),
		WSClients: s.wsHub.clientCount(),
	}
	if s.engine != nil {
		resp.Torrents = len(s.engine.List(r.Context()))
	} else {
		resp.Status = "degraded"
		resp.Issues = append(resp.Issues, "engine is not configured")
	}
	writeJSON(w, http.StatusOK, resp)
}
