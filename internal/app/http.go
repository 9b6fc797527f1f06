package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gavel/api/internal/committee"
	"gavel/api/internal/docstore"
	"gavel/api/internal/export"
	"gavel/api/internal/present"
	"gavel/api/internal/search"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"store": map[string]any{"status": "ok"},
		}
		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["store"] = map[string]any{"status": "error", "error": err.Error()}
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/motion-types" {
		writeJSON(w, http.StatusOK, map[string]any{"motionTypes": s.service.MotionTypeTable()})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		s.handleSearch(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/archive/sessions" {
		limit := queryInt(r, "limit", 50)
		sessions, err := s.service.ArchivedSessions(r.Context(), limit)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
		return
	}

	if segments := splitPath(r.URL.Path); len(segments) == 4 && segments[0] == "api" && segments[1] == "archive" && segments[2] == "sessions" && r.Method == http.MethodGet {
		payload, err := s.service.ArchivedSession(r.Context(), segments[3])
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.URL.Path == "/api/notifications" && r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]any{"notices": s.service.Notifier().Active()})
		return
	}

	if r.URL.Path == "/api/notifications/stream" && r.Method == http.MethodGet {
		s.streamNotifications(w, r)
		return
	}

	if segments := splitPath(r.URL.Path); len(segments) == 3 && segments[0] == "api" && segments[1] == "notifications" && r.Method == http.MethodDelete {
		s.service.Notifier().Dismiss(segments[2])
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.URL.Path == "/api/sessions" && r.Method == http.MethodPost {
		actor := s.actorFrom(r)
		var body struct {
			Name  string `json:"name"`
			Topic string `json:"topic"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		id, err := s.service.CreateSession(r.Context(), actor, body.Name, body.Topic)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"sessionId": id})
		return
	}

	segments := splitPath(r.URL.Path)
	if len(segments) >= 3 && segments[0] == "api" && segments[1] == "sessions" {
		s.handleSession(w, r, segments[2], segments[3:])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request, sessionID string, rest []string) {
	actor := s.actorFrom(r)

	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		raw, err := s.service.GetSession(r.Context(), sessionID)
		if err != nil {
			respondError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(raw)

	case len(rest) == 1 && rest[0] == "stream" && r.Method == http.MethodGet:
		s.streamSession(w, r, sessionID)

	case len(rest) == 1 && rest[0] == "close" && r.Method == http.MethodPost:
		payload, err := s.service.CloseSession(r.Context(), actor, sessionID)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(rest) == 1 && rest[0] == "export" && r.Method == http.MethodGet:
		format := export.Format(strings.TrimSpace(r.URL.Query().Get("format")))
		if format == "" {
			format = export.FormatPDF
		}
		if format != export.FormatPDF && format != export.FormatDOCX {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "format must be pdf or docx", nil)
			return
		}
		result, err := s.service.ExportMinutes(r.Context(), sessionID, format)
		if err != nil {
			respondError(w, err)
			return
		}
		w.Header().Set("Content-Type", result.MimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)

	case len(rest) == 1 && rest[0] == "thresholds" && r.Method == http.MethodGet:
		stats, err := s.service.Thresholds(r.Context(), sessionID)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)

	case len(rest) == 2 && rest[0] == "members" && r.Method == http.MethodPut:
		var body struct {
			Present bool `json:"present"`
			Voting  bool `json:"voting"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.UpsertMember(r.Context(), actor, sessionID, rest[1], committee.Member{
			Present: body.Present,
			Voting:  body.Voting,
		}); err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(rest) == 1 && rest[0] == "timer" && r.Method == http.MethodGet:
		payload, err := s.service.TimerDisplay(r.Context(), sessionID)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(rest) == 2 && rest[0] == "timer" && rest[1] == "toggle" && r.Method == http.MethodPost:
		if err := s.service.ToggleTimer(r.Context(), actor, sessionID); err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(rest) == 2 && rest[0] == "timer" && rest[1] == "duration" && r.Method == http.MethodPost:
		var body struct {
			Amount string         `json:"amount"`
			Unit   committee.Unit `json:"unit"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.SetTimerDuration(r.Context(), actor, sessionID, body.Amount, body.Unit); err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(rest) == 1 && rest[0] == "present" && r.Method == http.MethodPost:
		var body struct {
			Mode   present.Kind `json:"mode"`
			Target string       `json:"target"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.SetPresentation(r.Context(), actor, sessionID, body.Mode, body.Target); err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(rest) == 2 && rest[0] == "present" && rest[1] == "stream" && r.Method == http.MethodGet:
		s.streamPresentation(w, r, sessionID)

	case len(rest) == 1 && rest[0] == "caucuses" && r.Method == http.MethodPost:
		var body struct {
			Topic          string `json:"topic"`
			CaucusSeconds  int    `json:"caucusSeconds"`
			SpeakerSeconds int    `json:"speakerSeconds"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		id, err := s.service.CreateCaucus(r.Context(), actor, sessionID, body.Topic, body.CaucusSeconds, body.SpeakerSeconds)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"caucusId": id})

	case len(rest) == 2 && rest[0] == "caucuses" && r.Method == http.MethodGet:
		state, err := s.service.GetCaucus(r.Context(), sessionID, rest[1])
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, state)

	case len(rest) == 3 && rest[0] == "caucuses" && rest[2] == "timer" && r.Method == http.MethodGet:
		payload, err := s.service.CaucusTimerDisplay(r.Context(), sessionID, rest[1])
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(rest) == 5 && rest[0] == "caucuses" && rest[2] == "timer" && rest[4] == "toggle" && r.Method == http.MethodPost:
		if err := s.service.ToggleCaucusTimer(r.Context(), actor, sessionID, rest[1], rest[3]); err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(rest) == 5 && rest[0] == "caucuses" && rest[2] == "timer" && rest[4] == "duration" && r.Method == http.MethodPost:
		var body struct {
			Amount string         `json:"amount"`
			Unit   committee.Unit `json:"unit"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.SetCaucusTimerDuration(r.Context(), actor, sessionID, rest[1], rest[3], body.Amount, body.Unit); err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(rest) == 3 && rest[0] == "caucuses" && rest[2] == "queue" && r.Method == http.MethodPost:
		var input EnqueueSpeakerInput
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		key, err := s.service.EnqueueSpeaker(r.Context(), actor, sessionID, rest[1], input)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"key": key})

	case len(rest) == 3 && rest[0] == "caucuses" && rest[2] == "advance" && r.Method == http.MethodPost:
		state, err := s.service.AdvanceSpeaker(r.Context(), actor, sessionID, rest[1])
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, state)

	case len(rest) == 3 && rest[0] == "caucuses" && rest[2] == "close" && r.Method == http.MethodPost:
		if err := s.service.CloseCaucus(r.Context(), actor, sessionID, rest[1]); err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(rest) == 4 && rest[0] == "caucuses" && rest[2] == "queue" && r.Method == http.MethodDelete:
		if err := s.service.RemoveQueuedSpeaker(r.Context(), actor, sessionID, rest[1], rest[3]); err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(rest) == 1 && rest[0] == "motions" && r.Method == http.MethodGet:
		ranked, err := s.service.RankedMotions(r.Context(), sessionID)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"motions": ranked})

	case len(rest) == 1 && rest[0] == "motions" && r.Method == http.MethodPost:
		var motion committee.MotionData
		if err := decodeBody(r, &motion); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		key, err := s.service.ProposeMotion(r.Context(), actor, sessionID, motion)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"key": key})

	case len(rest) == 3 && rest[0] == "motions" && rest[2] == "second" && r.Method == http.MethodPost:
		var body struct {
			Seconder string `json:"seconder"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		motion, err := s.service.SecondMotion(r.Context(), actor, sessionID, rest[1], body.Seconder)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, motion)

	case len(rest) == 3 && rest[0] == "motions" && rest[2] == "approve" && r.Method == http.MethodPost:
		payload, err := s.service.ApproveMotion(r.Context(), actor, sessionID, rest[1])
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(rest) == 3 && rest[0] == "motions" && rest[2] == "deny" && r.Method == http.MethodPost:
		if err := s.service.DenyMotion(r.Context(), actor, sessionID, rest[1]); err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(rest) == 3 && rest[0] == "resolutions" && rest[2] == "amend" && r.Method == http.MethodPost:
		var input AmendResolutionInput
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.AmendResolution(r.Context(), actor, sessionID, rest[1], input)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(rest) == 3 && rest[0] == "resolutions" && rest[2] == "history" && r.Method == http.MethodGet:
		history, err := s.service.ResolutionHistory(r.Context(), sessionID, rest[1], queryInt(r, "limit", 50))
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"revisions": history})

	case len(rest) == 3 && rest[0] == "resolutions" && rest[2] == "status" && r.Method == http.MethodPost:
		var body struct {
			Status committee.ResolutionStatus `json:"status"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.SetResolutionStatus(r.Context(), actor, sessionID, rest[1], body.Status); err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := search.Query{
		Text:            strings.TrimSpace(r.URL.Query().Get("q")),
		FilterType:      search.ResultType(strings.TrimSpace(r.URL.Query().Get("type"))),
		FilterSessionID: strings.TrimSpace(r.URL.Query().Get("sessionId")),
		Limit:           queryInt(r, "limit", 20),
		Offset:          queryInt(r, "offset", 0),
	}
	writeJSON(w, http.StatusOK, s.service.Search(q))
}

/// streamSession sends the session subtree as server-sent events: one event
// for the initial snapshot, then one per committed mutation. Subscribing
// happens before the response commits, so a failure still yields a JSON
// error instead of an empty stream.
func (s *HTTPServer) streamSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	sub, err := s.service.SubscribeSession(r.Context(), sessionID)
	if err != nil {
		log.Printf("stream: subscribe %s: %v", sessionID, err)
		writeError(w, http.StatusServiceUnavailable, "STREAM_UNAVAILABLE", "Session stream unavailable", nil)
		return
	}
	defer sub.Close()

	flusher, ok := sseSetup(w)
	if !ok {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, open := <-sub.Updates():
			if !open {
				return
			}
			sseSend(w, flusher, snap)
		}
	}
}

// streamPresentation attaches to the session's presentation hub.
func (s *HTTPServer) streamPresentation(w http.ResponseWriter, r *http.Request, sessionID string) {
	flusher, ok := sseSetup(w)
	if !ok {
		return
	}

	ch, detach := s.service.Hub(sessionID).Attach(nil)
	defer detach()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, open := <-ch:
			if !open {
				return
			}
			payload, err := json.Marshal(snap)
			if err != nil {
				continue
			}
			sseSend(w, flusher, payload)
		}
	}
}

func (s *HTTPServer) streamNotifications(w http.ResponseWriter, r *http.Request) {
	flusher, ok := sseSetup(w)
	if !ok {
		return
	}

	ch, stop := s.service.Notifier().Watch()
	defer stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case notice, open := <-ch:
			if !open {
				return
			}
			payload, err := json.Marshal(notice)
			if err != nil {
				continue
			}
			sseSend(w, flusher, payload)
		}
	}
}

func sseSetup(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "STREAM_UNSUPPORTED", "Streaming unsupported", nil)
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return flusher, true
}

func sseSend(w http.ResponseWriter, flusher http.Flusher, payload []byte) {
	if payload == nil {
		payload = []byte("null")
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}

func (s *HTTPServer) actorFrom(r *http.Request) docstore.Actor {
	return s.service.ActorFrom(bearerToken(r), strings.TrimSpace(r.Header.Get("X-Member")))
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush lets SSE handlers flush through the recorder.
func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-Member")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func respondError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
