package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"eboard/api/internal/export"
	"eboard/api/internal/obs"
	"eboard/api/internal/rbac"
	"eboard/api/internal/store"

	"go.uber.org/zap"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	log        *zap.Logger
	limiter    *rateLimiter
}

func NewHTTPServer(service *Service) *HTTPServer {
	return &HTTPServer{
		service:    service,
		corsOrigin: service.cfg.CORSOrigin,
		log:        service.log,
		limiter:    newRateLimiter(service.cfg.RateLimitPerSecond, service.cfg.RateLimitBurst),
	}
}

// Handler returns the full API. Instrumentation wraps the mux directly so
// it can label requests by their matched pattern.
func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(s.limiter.middleware(obs.Instrument(s.routes())))
}

func (s *HTTPServer) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", obs.Handler())

	mux.HandleFunc("POST /api/auth/signin", s.handleSignIn)
	mux.HandleFunc("GET /api/session", s.authed(s.handleSession))
	mux.HandleFunc("PUT /api/session/signing-pin", s.authed(s.handleSetSigningPIN))

	mux.HandleFunc("POST /api/meetings", s.authed(s.handleCreateMeeting))
	mux.HandleFunc("GET /api/meetings/{id}", s.authed(s.handleGetMeeting))
	mux.HandleFunc("PUT /api/meetings/{id}/status", s.authed(s.handleMeetingStatus))
	mux.HandleFunc("GET /api/meetings/{id}/signers", s.authed(s.handleGetSigners))
	mux.HandleFunc("PUT /api/meetings/{id}/signers", s.authed(s.handleSetSigners))

	mux.HandleFunc("POST /api/minutes", s.authed(s.handleCreateMinutes))
	mux.HandleFunc("GET /api/minutes", s.authed(s.handleListMinutes))
	mux.HandleFunc("GET /api/minutes/{id}", s.authed(s.handleGetMinutes))
	mux.HandleFunc("PUT /api/minutes/{id}", s.authed(s.handleUpdateMinutes))
	mux.HandleFunc("PUT /api/minutes/{id}/settings", s.authed(s.handleUpdateSettings))
	mux.HandleFunc("POST /api/minutes/{id}/submit", s.authed(s.handleTransition("submit")))
	mux.HandleFunc("POST /api/minutes/{id}/approve", s.authed(s.handleTransition("approve")))
	mux.HandleFunc("POST /api/minutes/{id}/request-revision", s.authed(s.handleTransition("request_revision")))
	mux.HandleFunc("POST /api/minutes/{id}/publish", s.authed(s.handleTransition("publish")))
	mux.HandleFunc("GET /api/minutes/{id}/events", s.authed(s.handleEvents))
	mux.HandleFunc("GET /api/minutes/{id}/versions", s.authed(s.handleVersions))
	mux.HandleFunc("GET /api/minutes/{id}/versions/{hash}", s.authed(s.handleVersion))
	mux.HandleFunc("GET /api/minutes/{id}/export", s.authed(s.handleExport))

	mux.HandleFunc("PUT /api/minutes/{id}/draft", s.authed(s.handleSaveDraft))
	mux.HandleFunc("GET /api/minutes/{id}/draft", s.authed(s.handleGetDraft))
	mux.HandleFunc("DELETE /api/minutes/{id}/draft", s.authed(s.handleDiscardDraft))
	mux.HandleFunc("GET /api/minutes/{id}/drafts", s.authed(s.handleDraftEditors))

	mux.HandleFunc("POST /api/minutes/{id}/comments", s.authed(s.handleAddComment))
	mux.HandleFunc("GET /api/minutes/{id}/comments", s.authed(s.handleListComments))
	mux.HandleFunc("POST /api/comments/{id}/resolve", s.authed(s.handleResolveComment))
	mux.HandleFunc("DELETE /api/comments/{id}", s.authed(s.handleDeleteComment))

	mux.HandleFunc("POST /api/minutes/{id}/signatures", s.authed(s.handleAddSignature))
	mux.HandleFunc("GET /api/minutes/{id}/signatures", s.authed(s.handleListSignatures))
	mux.HandleFunc("POST /api/signatures/{id}/verify", s.authed(s.handleVerifySignature))

	mux.HandleFunc("GET /api/search", s.authed(s.handleSearch))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	return mux
}

type actorHandler func(w http.ResponseWriter, r *http.Request, actor rbac.Actor)

// authed resolves the bearer token to an actor before calling h.
func (s *HTTPServer) authed(h actorHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return
		}
		actor, err := s.service.ActorFromToken(r.Context(), token)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		h(w, r, actor)
	}
}

// fail writes err as the client-facing error envelope. Unexpected errors
// are logged with the request id and hidden behind SERVER_ERROR.
func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	code := http.StatusOK
	checks := map[string]any{"database": map[string]any{"status": "ok"}}
	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		code = http.StatusServiceUnavailable
		checks["database"] = map[string]any{"status": "error", "error": err.Error()}
	}
	writeJSON(w, code, map[string]any{"status": status, "checks": checks})
}

func (s *HTTPServer) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var body SignInInput
	if !s.decode(w, r, &body) {
		return
	}
	session, err := s.service.SignIn(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request, actor rbac.Actor) {
	user, err := s.service.Session(r.Context(), actor)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *HTTPServer) handleSetSigningPIN(w http.ResponseWriter, r *http.Request, actor rbac.Actor) {
	var body struct {
		PIN string `json:"pin"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.service.SetSigningPIN(r.Context(), actor, body.PIN); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleCreateMeeting(w http.ResponseWriter, r *http.Request, actor rbac.Actor) {
	var body CreateMeetingInput
	if !s.decode(w, r, &body) {
		return
	}
	meeting, err := s.service.CreateMeeting(r.Context(), actor, body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"meeting": meeting})
}

func (s *HTTPServer) handleGetMeeting(w http.ResponseWriter, r *http.Request, actor rbac.Actor) {
	meeting, err := s.service.GetMeeting(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"meeting": meeting})
}

func (s *HTTPServer) handleMeetingStatus(w http.ResponseWriter, r *http.Request, actor rbac.Actor) {
	var body struct {
		Status string `json:"status"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	meeting, err := s.service.UpdateMeetingStatus(r.Context(), actor, r.PathValue("id"), body.Status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"meeting": meeting})
}

func (s *HTTPServer) handleGetSigners(w http.ResponseWriter, r *http.Request, actor rbac.Actor) {
	signers, err := s.service.GetRequiredSigners(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"signers": signers})
}

func (s *HTTPServer) handleSetSigners(w http.ResponseWriter, r *http.Request, actor rbac.Actor) {
	var body RequiredSignersInput
	if !s.decode(w, r, &body) {
		return
	}
	signers, err := s.service.SetRequiredSigners(r.Context(), actor, r.PathValue("id"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"signers": signers})
}

func (s *HTTPServer) handleCreateMinutes(w http.ResponseWriter, r *http.Request, actor rbac.Actor) {
	var body CreateMinutesInput
	if !s.decode(w, r, &body) {
		return
	}
	minutes, err := s.service.CreateMinutes(r.Context(), actor, body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"minutes": minutes})
}

func (s *HTTPServer) handleListMinutes(w http.ResponseWriter, r *http.Request, actor rbac.Actor) {
	q := r.URL.Query()
	items, err := s.service.ListMinutes(r.Context(), actor, store.MinutesFilter{
		Status:    q.Get("status"),
		MeetingID: q.Get("meetingId"),
		Limit:     queryInt(q.Get("limit"), 50),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *HTTPServer) handleGetMinutes(w http.ResponseWriter, r *http.Request, actor rbac.Actor) {
	minutes, err := s.service.GetMinutes(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"minutes": minutes})
}

func (s *HTTPServer) handleUpdateMinutes(w http.ResponseWriter, r *http.Request, actor rbac.Actor) {
	var body UpdateMinutesInput
	if !s.decode(w, r, &body) {
		return
	}
	minutes, err := s.service.UpdateMinutes(r.Context(), actor, r.PathValue("id"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"minutes": minutes})
}

func (s *HTTPServer) handleUpdateSettings(w http.ResponseWriter, r *http.Request, actor rbac.Actor) {
	var body UpdateSettingsInput
	if !s.decode(w, r, &body) {
		return
	}
	minutes, err := s.service.UpdateSettings(r.Context(), actor, r.PathValue("id"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"minutes": minutes})
}

func (s *HTTPServer) handleTransition(event string) actorHandler {
	return func(w http.ResponseWriter, r *http.Request, actor rbac.Actor) {
		var body TransitionInput
		if !s.decode(w, r, &body) {
			return
		}
		minutes, err := s.service.RequestTransition(r.Context(), actor, r.PathValue("id"), event, body)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"minutes": minutes})
	}
}

func (s *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request, actor rbac.Actor) {
	events, err := s.service.ListEvents(r.Context(), actor, r.PathValue("id"), queryInt(r.URL.Query().Get("limit"), 100))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *HTTPServer) handleVersions(w http.ResponseWriter, r *http.Request, actor rbac.Actor) {
	versions, err := s.service.ListVersions(r.Context(), actor, r.PathValue("id"), queryInt(r.URL.Query().Get("limit"), 50))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

func (s *HTTPServer) handleVersion(w http.ResponseWriter, r *http.Request, actor rbac.Actor) {
	content, err := s.service.GetVersion(r.Context(), actor, r.PathValue("id"), r.PathValue("hash"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hash": r.PathValue("hash"), "content": content})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, actor rbac.Actor) {
	format, ok := export.ParseFormat(r.URL.Query().Get("format"))
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "format must be pdf or docx", nil)
		return
	}
	result, err := s.service.ExportMinutes(r.Context(), actor, r.PathValue("id"), format)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleSaveDraft(w http.ResponseWriter, r *http.Request, actor rbac.Actor) {
	var body SaveDraftInput
	if !s.decode(w, r, &body) {
		return
	}
	draft, err := s.service.SaveDraft(r.Context(), actor, r.PathValue("id"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"draft": draft})
}

func (s *HTTPServer) handleGetDraft(w http.ResponseWriter, r *http.Request, actor rbac.Actor) {
	draft, err := s.service.GetDraft(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"draft": draft})
}

func (s *HTTPServer) handleDraftEditors(w http.ResponseWriter, r *http.Request, actor rbac.Actor) {
	editors, err := s.service.ListDraftEditors(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"editors": editors})
}

func (s *HTTPServer) handleDiscardDraft(w http.ResponseWriter, r *http.Request, actor rbac.Actor) {
	if err := s.service.DiscardDraft(r.Context(), actor, r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleAddComment(w http.ResponseWriter, r *http.Request, actor rbac.Actor) {
	var body AddCommentInput
	if !s.decode(w, r, &body) {
		return
	}
	comment, err := s.service.AddComment(r.Context(), actor, r.PathValue("id"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"comment": comment})
}

func (s *HTTPServer) handleListComments(w http.ResponseWriter, r *http.Request, actor rbac.Actor) {
	list, err := s.service.ListComments(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *HTTPServer) handleResolveComment(w http.ResponseWriter, r *http.Request, actor rbac.Actor) {
	var body ResolveCommentInput
	if !s.decode(w, r, &body) {
		return
	}
	comment, err := s.service.ResolveComment(r.Context(), actor, r.PathValue("id"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comment": comment})
}

func (s *HTTPServer) handleDeleteComment(w http.ResponseWriter, r *http.Request, actor rbac.Actor) {
	if err := s.service.DeleteComment(r.Context(), actor, r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleAddSignature(w http.ResponseWriter, r *http.Request, actor rbac.Actor) {
	var body AddSignatureInput
	if !s.decode(w, r, &body) {
		return
	}
	signature, err := s.service.AddSignature(r.Context(), actor, r.PathValue("id"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"signature": signature})
}

func (s *HTTPServer) handleListSignatures(w http.ResponseWriter, r *http.Request, actor rbac.Actor) {
	list, err := s.service.ListSignatures(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *HTTPServer) handleVerifySignature(w http.ResponseWriter, r *http.Request, actor rbac.Actor) {
	signature, err := s.service.VerifySignature(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"signature": signature})
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, actor rbac.Actor) {
	q := r.URL.Query()
	resp, err := s.service.Search(r.Context(), actor, SearchInput{
		Query:  q.Get("q"),
		Type:   q.Get("type"),
		Status: q.Get("status"),
		Limit:  queryInt(q.Get("limit"), 20),
		Offset: queryInt(q.Get("offset"), 0),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := decodeBody(r, target); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return false
	}
	return true
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

// decodeBody reads a JSON body into target. An empty body leaves target at
// its zero value.
func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(io.LimitReader(r.Body, 4<<20))
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
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

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
