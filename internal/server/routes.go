package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/zsiec/udpreplay/internal/replay"
	"github.com/zsiec/udpreplay/pkg/version"
)

// StatusResponse is the body of /status.
type StatusResponse struct {
	Running          bool         `json:"running"`
	Stats            replay.Stats `json:"stats"`
	AverageFrequency float64      `json:"average_frequency_hz"`
	Uptime           string       `json:"uptime"`
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	s.writeJSON(w, r, http.StatusOK, version.GetInfo())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Uptime: time.Since(s.started).Round(time.Second).String(),
	}
	if s.status != nil {
		resp.Running = s.status.Running()
		resp.Stats = s.status.Snapshot()
		resp.AverageFrequency = resp.Stats.AverageFrequency()
	}
	s.writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
