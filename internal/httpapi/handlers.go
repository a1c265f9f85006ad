package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"tg_forwarder/internal/logger"
	"tg_forwarder/internal/query"

	"github.com/gorilla/mux"
)

// errorResponse 错误响应
type errorResponse struct {
	Detail string `json:"detail"`
}

type rootResponse struct {
	Service           string            `json:"service"`
	Running           bool              `json:"running"`
	TelegramConnected bool              `json:"telegram_connected"`
	ForwardingActive  bool              `json:"forwarding_active"`
	TargetChannelID   *string           `json:"target_channel_id"`
	AuthRequired      bool              `json:"auth_required"`
	Endpoints         map[string]string `json:"endpoints"`
}

type healthResponse struct {
	Status                  string `json:"status"`
	Timestamp               string `json:"timestamp"`
	TelegramConnected       bool   `json:"telegram_connected"`
	TargetChannelConfigured bool   `json:"target_channel_configured"`
	ForwardingActive        bool   `json:"forwarding_active"`
	AuthEnabled             bool   `json:"auth_enabled"`
	RelayState              string `json:"relay_state"`
	LastError               string `json:"last_error,omitempty"`
}

func (s *Server) handleRoot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := s.shared.Load()

		var targetID *string
		if snap.Target != nil {
			id := strconv.FormatInt(snap.Target.ID, 10)
			targetID = &id
		}

		writeJSON(w, http.StatusOK, rootResponse{
			Service:           ServiceName,
			Running:           true,
			TelegramConnected: snap.Connected(),
			ForwardingActive:  snap.Forwarding,
			TargetChannelID:   targetID,
			AuthRequired:      s.apiKey != "",
			Endpoints: map[string]string{
				"health":            "/health",
				"metrics":           "/metrics",
				"messages":          "/api/messages/{hours}",
				"combined_messages": "/api/messages/{hours}/combined",
			},
		})
	}
}

// handleHealth 存活检查总是返回 200，就绪状态体现在 status 字段
func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := s.shared.Load()

		status := "healthy"
		if !snap.Ready() {
			status = "not_ready"
		}

		writeJSON(w, http.StatusOK, healthResponse{
			Status:                  status,
			Timestamp:               s.now().Format(time.RFC3339),
			TelegramConnected:       snap.Connected(),
			TargetChannelConfigured: snap.Target != nil,
			ForwardingActive:        snap.Forwarding,
			AuthEnabled:             s.apiKey != "",
			RelayState:              string(snap.Phase),
			LastError:               snap.LastError,
		})
	}
}

func (s *Server) handleMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hours, ok := parseHours(w, r)
		if !ok {
			return
		}

		result, err := s.query.Messages(r.Context(), hours)
		if err != nil {
			writeQueryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) handleCombined() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hours, ok := parseHours(w, r)
		if !ok {
			return
		}

		result, err := s.query.Combined(r.Context(), hours)
		if err != nil {
			writeQueryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func parseHours(w http.ResponseWriter, r *http.Request) (int, bool) {
	hours, err := strconv.Atoi(mux.Vars(r)["hours"])
	if err != nil || hours < 1 {
		writeError(w, http.StatusBadRequest, query.ErrInvalidWindow.Error())
		return 0, false
	}
	return hours, true
}

// writeQueryError 将查询错误映射为 HTTP 状态码
func writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, query.ErrInvalidWindow):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, query.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		logger.L().WithField("request_id", RequestID(r.Context())).Errorf("Query failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L().Errorf("Failed to encode response: %v", err)
	}
}
