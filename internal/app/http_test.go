package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"eboard/api/internal/auth"
	"eboard/api/internal/authpw"
	"eboard/api/internal/rbac"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenFor(t *testing.T, h *harness, actor rbac.Actor) string {
	t.Helper()
	token, err := auth.IssueToken([]byte(h.svc.cfg.JWTSecret), actor.UserID, actor.Name, actor.RoleStrings(), "jti-"+actor.UserID, h.svc.now(), time.Hour)
	require.NoError(t, err)
	return token
}

func doRequest(t *testing.T, handler http.Handler, method, path, token, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	var payload map[string]any
	if rr.Header().Get("Content-Type") == "application/json" && rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
			t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
		}
	}
	return rr, payload
}

func TestHealthAndReady(t *testing.T) {
	h := newHarness(t)
	handler := NewHTTPServer(h.svc).Handler()

	rr, payload := doRequest(t, handler, http.MethodGet, "/api/health", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, payload["ok"])
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	rr, payload = doRequest(t, handler, http.MethodGet, "/api/ready", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ready", payload["status"])

	rr, _ = doRequest(t, handler, http.MethodOptions, "/api/minutes", "", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	h := newHarness(t)
	rr, payload := doRequest(t, NewHTTPServer(h.svc).Handler(), http.MethodGet, "/api/nope", "", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "NOT_FOUND", payload["code"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newHarness(t)
	handler := NewHTTPServer(h.svc).Handler()

	for _, token := range []string{"", "not-a-jwt"} {
		rr, payload := doRequest(t, handler, http.MethodGet, "/api/minutes", token, "")
		require.Equal(t, http.StatusUnauthorized, rr.Code, "token %q", token)
		assert.Equal(t, "UNAUTHORIZED", payload["code"])
	}

	ghost := rbac.Actor{UserID: "usr_ghost", Name: "Ghost", Roles: []rbac.Role{rbac.RoleAdmin}}
	rr, _ := doRequest(t, handler, http.MethodGet, "/api/minutes", tokenFor(t, h, ghost), "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "token for a deleted user")
}

func TestTokenExpiryFollowsServiceClock(t *testing.T) {
	h := newHarness(t)
	handler := NewHTTPServer(h.svc).Handler()

	stale, err := auth.IssueToken([]byte(h.svc.cfg.JWTSecret), secretaryActor.UserID, secretaryActor.Name,
		secretaryActor.RoleStrings(), "jti-stale", h.svc.now().Add(-2*time.Hour), time.Hour)
	require.NoError(t, err)
	rr, payload := doRequest(t, handler, http.MethodGet, "/api/session", stale, "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "UNAUTHORIZED", payload["code"])

	rr, _ = doRequest(t, handler, http.MethodGet, "/api/session", tokenFor(t, h, secretaryActor), "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestViewerWriteEndpointsAreForbidden(t *testing.T) {
	h := newHarness(t)
	m := h.createMinutes(t, sampleMinutes)
	handler := NewHTTPServer(h.svc).Handler()
	token := tokenFor(t, h, viewerActor)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"create minutes", http.MethodPost, "/api/minutes", `{"meetingId":"mtg_1"}`},
		{"update minutes", http.MethodPut, "/api/minutes/" + m.ID, `{"content":"<p>x</p>"}`},
		{"settings", http.MethodPut, "/api/minutes/" + m.ID + "/settings", `{"allowComments":false}`},
		{"submit", http.MethodPost, "/api/minutes/" + m.ID + "/submit", ``},
		{"comment", http.MethodPost, "/api/minutes/" + m.ID + "/comments", `{"comment":"hi"}`},
		{"draft", http.MethodPut, "/api/minutes/" + m.ID + "/draft", `{"content":"x","baseRevision":1}`},
		{"meeting", http.MethodPost, "/api/meetings", `{"title":"AGM"}`},
		{"signers", http.MethodPut, "/api/meetings/mtg_1/signers", `{"signers":[]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr, payload := doRequest(t, handler, tc.method, tc.path, token, tc.body)
			require.Equal(t, http.StatusForbidden, rr.Code, rr.Body.String())
			assert.Equal(t, "FORBIDDEN", payload["code"])
		})
	}
}

func TestHTTPWorkflowAndErrorEnvelope(t *testing.T) {
	h := newHarness(t)
	handler := NewHTTPServer(h.svc).Handler()
	sec := tokenFor(t, h, secretaryActor)
	chair := tokenFor(t, h, chairActor)

	rr, payload := doRequest(t, handler, http.MethodPost, "/api/minutes", sec, `{"meetingId":"mtg_1","content":"<p>Quorum present.</p>"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	id := payload["minutes"].(map[string]any)["id"].(string)

	rr, payload = doRequest(t, handler, http.MethodPost, "/api/minutes/"+id+"/approve", chair, `{}`)
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "INVALID_TRANSITION", payload["code"])
	assert.NotEmpty(t, payload["error"])

	rr, _ = doRequest(t, handler, http.MethodPost, "/api/minutes/"+id+"/submit", sec, ``)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr, payload = doRequest(t, handler, http.MethodPost, "/api/minutes/"+id+"/request-revision", chair, `{}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "MISSING_REVISION_REASON", payload["code"])

	rr, payload = doRequest(t, handler, http.MethodPost, "/api/minutes/"+id+"/approve", chair, `{"approvalNotes":"ok"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "approved", payload["minutes"].(map[string]any)["status"])

	rr, payload = doRequest(t, handler, http.MethodPost, "/api/minutes/"+id+"/publish", chair, `{}`)
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "SIGNATURES_INCOMPLETE", payload["code"])
	missing := payload["details"].(map[string]any)["missing"].([]any)
	assert.Len(t, missing, 2)

	rr, _ = doRequest(t, handler, http.MethodPost, "/api/minutes/"+id+"/signatures", chair, `{"signatureMethod":"digital"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rr, payload = doRequest(t, handler, http.MethodPost, "/api/minutes/"+id+"/signatures", chair, `{"signatureMethod":"digital"}`)
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "ALREADY_SIGNED", payload["code"])

	rr, payload = doRequest(t, handler, http.MethodGet, "/api/minutes/"+id+"/signatures", chair, ``)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, false, payload["fullySigned"])

	rr, payload = doRequest(t, handler, http.MethodPut, "/api/minutes/"+id, sec, `{"content":"<p>x</p>"}`)
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "INVALID_TRANSITION", payload["code"])

	rr, payload = doRequest(t, handler, http.MethodGet, "/api/minutes/"+id+"/events", sec, ``)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, payload["events"], 4)

	rr, payload = doRequest(t, handler, http.MethodPost, "/api/minutes/"+id+"/submit", sec, `{not json`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_BODY", payload["code"])
}

func TestCommentRoutes(t *testing.T) {
	h := newHarness(t)
	m := h.createMinutes(t, sampleMinutes)
	handler := NewHTTPServer(h.svc).Handler()
	member := tokenFor(t, h, memberActor)
	sec := tokenFor(t, h, secretaryActor)

	rr, payload := doRequest(t, handler, http.MethodPost, "/api/minutes/"+m.ID+"/comments", member,
		`{"comment":"Wrong date","commentType":"highlight","highlightedText":"March 3","textPosition":{"start":10,"end":17}}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	comment := payload["comment"].(map[string]any)
	assert.Equal(t, map[string]any{"start": float64(10), "end": float64(17)}, comment["textPosition"])
	commentID := comment["id"].(string)

	rr, payload = doRequest(t, handler, http.MethodPost, "/api/minutes/"+m.ID+"/comments", member,
		`{"comment":"x","commentType":"highlight","highlightedText":"y","textPosition":{"start":5,"end":5}}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "VALIDATION_ERROR", payload["code"])

	rr, payload = doRequest(t, handler, http.MethodPost, "/api/comments/"+commentID+"/resolve", sec, `{"response":"Corrected"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, true, payload["comment"].(map[string]any)["resolved"])

	rr, payload = doRequest(t, handler, http.MethodPost, "/api/comments/"+commentID+"/resolve", sec, `{"response":"Again"}`)
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "ALREADY_RESOLVED", payload["code"])

	rr, payload = doRequest(t, handler, http.MethodGet, "/api/minutes/"+m.ID+"/comments", member, ``)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, payload["comments"], 1)
	assert.Len(t, payload["threads"], 1)

	rr, _ = doRequest(t, handler, http.MethodDelete, "/api/comments/"+commentID, member, ``)
	require.Equal(t, http.StatusNoContent, rr.Code)
}

func TestExportRoute(t *testing.T) {
	h := newHarness(t)
	m := h.createMinutes(t, sampleMinutes)
	handler := NewHTTPServer(h.svc).Handler()
	token := tokenFor(t, h, viewerActor)

	rr, _ := doRequest(t, handler, http.MethodGet, "/api/minutes/"+m.ID+"/export?format=pdf", token, ``)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "attachment")
	assert.Equal(t, "%PDF-March Board Meeting", rr.Body.String())

	rr, payload := doRequest(t, handler, http.MethodGet, "/api/minutes/"+m.ID+"/export?format=odt", token, ``)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "VALIDATION_ERROR", payload["code"])
}

func TestSignInIssuesUsableToken(t *testing.T) {
	h := newHarness(t)
	_, created, err := h.svc.passwords.EnsureUser(context.Background(), authpw.EnsureUserRequest{
		Email:       "clerk@board.test",
		Password:    "correct horse",
		DisplayName: "Casey Clerk",
		Roles:       []string{"secretary"},
	})
	require.NoError(t, err)
	require.True(t, created)
	handler := NewHTTPServer(h.svc).Handler()

	rr, payload := doRequest(t, handler, http.MethodPost, "/api/auth/signin", "", `{"email":"clerk@board.test","password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "UNAUTHORIZED", payload["code"])

	rr, payload = doRequest(t, handler, http.MethodPost, "/api/auth/signin", "", `{"email":"CLERK@board.test","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	token := payload["token"].(string)

	rr, payload = doRequest(t, handler, http.MethodGet, "/api/session", token, ``)
	require.Equal(t, http.StatusOK, rr.Code)
	user := payload["user"].(map[string]any)
	assert.Equal(t, "Casey Clerk", user["displayName"])
	assert.Equal(t, []any{"secretary"}, user["roles"])
	assert.Equal(t, false, user["hasSigningPin"])

	rr, _ = doRequest(t, handler, http.MethodPut, "/api/session/signing-pin", token, `{"pin":"4321"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	rr, payload = doRequest(t, handler, http.MethodGet, "/api/session", token, ``)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, payload["user"].(map[string]any)["hasSigningPin"])
}

func TestRateLimitPerClient(t *testing.T) {
	h := newHarness(t)
	h.svc.cfg.RateLimitPerSecond = 1
	h.svc.cfg.RateLimitBurst = 1
	handler := NewHTTPServer(h.svc).Handler()

	rr, _ := doRequest(t, handler, http.MethodGet, "/api/health", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	rr, payload := doRequest(t, handler, http.MethodGet, "/api/health", "", "")
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "RATE_LIMITED", payload["code"])
}

func TestBootstrapAdmin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.svc.EnsureBootstrapAdmin(ctx), "unset config is a no-op")

	h.svc.cfg.BootstrapAdminEmail = "root@board.test"
	h.svc.cfg.BootstrapAdminPassword = "long enough secret"
	h.svc.cfg.BootstrapAdminName = "Root"
	require.NoError(t, h.svc.EnsureBootstrapAdmin(ctx))
	require.NoError(t, h.svc.EnsureBootstrapAdmin(ctx))

	user, err := h.store.GetUserByEmail(ctx, "root@board.test")
	require.NoError(t, err)
	assert.Equal(t, []string{"admin"}, user.Roles)
}
