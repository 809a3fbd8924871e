package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/erp/dispensing/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// SystemInfo describes the running service
type SystemInfo struct {
	Name    string
	Version string
	Env     string
	// CacheBackend is "redis" or "memory"
	CacheBackend string
}

// SessionCounter reports the number of live dispensing sessions
type SessionCounter interface {
	Len() int
}

// SystemHandler handles system-related API endpoints
type SystemHandler struct {
	BaseHandler
	info      SystemInfo
	sessions  SessionCounter
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(info SystemInfo, sessions SessionCounter) *SystemHandler {
	return &SystemHandler{
		info:      info,
		sessions:  sessions,
		startTime: time.Now(),
	}
}

// HealthResponse is the liveness answer
type HealthResponse struct {
	Status         string `json:"status"`
	Name           string `json:"name"`
	Version        string `json:"version"`
	Env            string `json:"env"`
	GoVersion      string `json:"go_version"`
	Uptime         string `json:"uptime"`
	CacheBackend   string `json:"cache_backend"`
	ActiveSessions int    `json:"active_sessions"`
}

// Health reports liveness and basic runtime facts
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:       "ok",
		Name:         h.info.Name,
		Version:      h.info.Version,
		Env:          h.info.Env,
		GoVersion:    runtime.Version(),
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		CacheBackend: h.info.CacheBackend,
	}
	if h.sessions != nil {
		resp.ActiveSessions = h.sessions.Len()
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(resp))
}
