package app

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"eboard/api/internal/config"
	"eboard/api/internal/drafts"
	"eboard/api/internal/email"
	"eboard/api/internal/export"
	"eboard/api/internal/gitrepo"
	"eboard/api/internal/rbac"
	"eboard/api/internal/search"
	"eboard/api/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// memStore is an in-memory dataStore with the same revision
// compare-and-swap and uniqueness rules as the Postgres store.
type memStore struct {
	mu         sync.Mutex
	users      map[string]store.User
	meetings   map[string]store.Meeting
	signers    map[string][]store.RequiredSigner
	minutes    map[string]store.Minutes
	comments   []store.MinutesComment
	signatures []store.MinutesSignature
	events     []store.MinutesEvent

	// beforeUpdate runs inside UpdateMinutes before the revision check.
	beforeUpdate func(m *store.Minutes)
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]store.User{},
		meetings: map[string]store.Meeting{},
		signers:  map[string][]store.RequiredSigner{},
		minutes:  map[string]store.Minutes{},
	}
}

func (f *memStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (f *memStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return u, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *memStore) InsertUser(_ context.Context, u store.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return store.ErrConflict
		}
	}
	f.users[u.ID] = u
	return nil
}

func (f *memStore) UpdateSigningPinHash(_ context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.SigningPinHash = hash
	f.users[id] = u
	return nil
}

func (f *memStore) ListUsers(context.Context) ([]store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out, nil
}

func (f *memStore) InsertMeeting(_ context.Context, m store.Meeting) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.meetings[m.ID]; ok {
		return store.ErrConflict
	}
	f.meetings[m.ID] = m
	return nil
}

func (f *memStore) GetMeeting(_ context.Context, id string) (store.Meeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meetings[id]
	if !ok {
		return store.Meeting{}, sql.ErrNoRows
	}
	return m, nil
}

func (f *memStore) UpdateMeetingStatus(_ context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meetings[id]
	if !ok {
		return sql.ErrNoRows
	}
	m.Status = status
	f.meetings[id] = m
	return nil
}

func (f *memStore) ListRequiredSigners(_ context.Context, meetingID string) ([]store.RequiredSigner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.RequiredSigner(nil), f.signers[meetingID]...), nil
}

func (f *memStore) ReplaceRequiredSigners(_ context.Context, meetingID string, signers []store.RequiredSigner) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signers[meetingID] = append([]store.RequiredSigner(nil), signers...)
	return nil
}

func (f *memStore) InsertMinutes(_ context.Context, m store.Minutes, event store.MinutesEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.minutes {
		if existing.MeetingID == m.MeetingID {
			return store.ErrConflict
		}
	}
	f.minutes[m.ID] = m
	f.appendEvent(event)
	return nil
}

func (f *memStore) GetMinutes(_ context.Context, id string) (store.Minutes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.minutes[id]
	if !ok {
		return store.Minutes{}, sql.ErrNoRows
	}
	return m, nil
}

func (f *memStore) ListMinutes(_ context.Context, filter store.MinutesFilter) ([]store.Minutes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.Minutes, 0)
	for _, m := range f.minutes {
		if filter.Status != "" && m.Status != filter.Status {
			continue
		}
		if filter.MeetingID != "" && m.MeetingID != filter.MeetingID {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (f *memStore) UpdateMinutes(_ context.Context, m store.Minutes, expected int, event *store.MinutesEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.minutes[m.ID]
	if !ok {
		return sql.ErrNoRows
	}
	if f.beforeUpdate != nil {
		f.beforeUpdate(&current)
		f.minutes[m.ID] = current
	}
	if current.Revision != expected {
		return store.ErrRevisionConflict
	}
	f.minutes[m.ID] = m
	if event != nil {
		f.appendEvent(*event)
	}
	return nil
}

func (f *memStore) InsertComment(_ context.Context, c store.MinutesComment, event store.MinutesEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments = append(f.comments, c)
	f.appendEvent(event)
	return nil
}

func (f *memStore) GetComment(_ context.Context, id string) (store.MinutesComment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.comments {
		if c.ID == id {
			return c, nil
		}
	}
	return store.MinutesComment{}, sql.ErrNoRows
}

func (f *memStore) ListComments(_ context.Context, minutesID string) ([]store.MinutesComment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.MinutesComment, 0)
	for _, c := range f.comments {
		if c.MinutesID == minutesID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *memStore) ResolveComment(_ context.Context, id, response string, at time.Time, event store.MinutesEvent) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.comments {
		if c.ID != id {
			continue
		}
		if c.Resolved {
			return false, nil
		}
		f.comments[i].Resolved = true
		f.comments[i].SecretaryResponse = &response
		f.comments[i].RespondedAt = &at
		f.appendEvent(event)
		return true, nil
	}
	return false, nil
}

func (f *memStore) DeleteComment(_ context.Context, id string, event store.MinutesEvent) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.comments {
		if c.ID == id {
			f.comments = append(f.comments[:i], f.comments[i+1:]...)
			f.appendEvent(event)
			return true, nil
		}
	}
	return false, nil
}

func (f *memStore) InsertSignature(_ context.Context, sig store.MinutesSignature, event store.MinutesEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.signatures {
		if existing.MinutesID == sig.MinutesID &&
			strings.EqualFold(existing.SignerRole, sig.SignerRole) &&
			strings.EqualFold(existing.SignerName, sig.SignerName) {
			return store.ErrConflict
		}
	}
	f.signatures = append(f.signatures, sig)
	f.appendEvent(event)
	return nil
}

func (f *memStore) GetSignature(_ context.Context, id string) (store.MinutesSignature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sig := range f.signatures {
		if sig.ID == id {
			return sig, nil
		}
	}
	return store.MinutesSignature{}, sql.ErrNoRows
}

func (f *memStore) ListSignatures(_ context.Context, minutesID string) ([]store.MinutesSignature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.MinutesSignature, 0)
	for _, sig := range f.signatures {
		if sig.MinutesID == minutesID {
			out = append(out, sig)
		}
	}
	return out, nil
}

func (f *memStore) MarkSignatureVerified(_ context.Context, id string, at time.Time, event store.MinutesEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, sig := range f.signatures {
		if sig.ID == id {
			f.signatures[i].Verified = true
			f.signatures[i].VerificationDate = &at
			f.appendEvent(event)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *memStore) ListMinutesEvents(_ context.Context, minutesID string, limit int) ([]store.MinutesEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.MinutesEvent, 0)
	for _, e := range f.events {
		if e.MinutesID == minutesID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *memStore) Ping(context.Context) error { return nil }

func (f *memStore) appendEvent(e store.MinutesEvent) {
	e.ID = int64(len(f.events) + 1)
	f.events = append(f.events, e)
}

func (f *memStore) eventNames(minutesID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0)
	for _, e := range f.events {
		if e.MinutesID == minutesID {
			out = append(out, e.Event)
		}
	}
	return out
}

type fakeGit struct {
	mu      sync.Mutex
	commits map[string][]gitrepo.Content
	tags    map[string][]string
}

func newFakeGit() *fakeGit {
	return &fakeGit{commits: map[string][]gitrepo.Content{}, tags: map[string][]string{}}
}

func (g *fakeGit) EnsureMinutesRepo(id string, c gitrepo.Content, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.commits[id]; !ok {
		g.commits[id] = []gitrepo.Content{c}
	}
	return nil
}

func (g *fakeGit) CommitVersion(id string, c gitrepo.Content, author, message string) (store.CommitInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.commits[id] = append(g.commits[id], c)
	return store.CommitInfo{Hash: "abc1234", Message: message, Author: author}, nil
}

func (g *fakeGit) GetContentByHash(id, _ string) (gitrepo.Content, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	items := g.commits[id]
	if len(items) == 0 {
		return gitrepo.Content{}, sql.ErrNoRows
	}
	return items[len(items)-1], nil
}

func (g *fakeGit) History(id string, _ int) ([]store.CommitInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]store.CommitInfo, 0)
	for i := len(g.commits[id]) - 1; i >= 0; i-- {
		out = append(out, store.CommitInfo{Hash: "h" + string(rune('0'+i)), Message: "v"})
	}
	return out, nil
}

func (g *fakeGit) TagHead(id, name, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tags[id] = append(g.tags[id], name)
	return nil
}

type fakeMailer struct {
	mu          sync.Mutex
	transitions []sentTransition
	resolved    []string
}

type sentTransition struct {
	to     []string
	notice email.TransitionNotice
}

func (m *fakeMailer) IsConfigured() bool { return true }

func (m *fakeMailer) SendTransitionNotice(to []string, n email.TransitionNotice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, sentTransition{to: to, notice: n})
	return nil
}

func (m *fakeMailer) SendCommentResolved(to string, _ email.CommentResolvedNotice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolved = append(m.resolved, to)
	return nil
}

type fakeExporter struct{}

func (fakeExporter) Export(_ context.Context, doc export.Document, format export.Format) (*export.Result, error) {
	return &export.Result{Data: []byte("%PDF-" + doc.Title), Filename: "minutes." + string(format), MimeType: "application/pdf"}, nil
}

type fakeArtifacts struct {
	mu   sync.Mutex
	keys []string
}

func (a *fakeArtifacts) PutMinutesPDF(_ context.Context, id string, version int, _ []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := "minutes/" + id + "/v" + string(rune('0'+version)) + ".pdf"
	a.keys = append(a.keys, key)
	return "http://files.test/eboard/" + key, nil
}

type fakeSearch struct {
	mu      sync.Mutex
	minutes map[string]search.MinutesRecord
	deleted []string
}

func (f *fakeSearch) Search(q search.Query) search.Response {
	return search.Response{Results: []search.Result{}, Query: q.Text, Engine: "fake"}
}

func (f *fakeSearch) IndexMinutes(r search.MinutesRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.minutes[r.ID] = r
}

func (f *fakeSearch) IndexComment(search.CommentRecord) {}

func (f *fakeSearch) DeleteComment(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
}

var (
	secretaryActor = rbac.Actor{UserID: "usr_sec", Name: "Sam Secretary", Roles: []rbac.Role{rbac.RoleSecretary}}
	chairActor     = rbac.Actor{UserID: "usr_chair", Name: "Chris Chair", Roles: []rbac.Role{rbac.RoleChairman}}
	memberActor    = rbac.Actor{UserID: "usr_mem", Name: "Morgan Member", Roles: []rbac.Role{rbac.RoleBoardMember}}
	viewerActor    = rbac.Actor{UserID: "usr_view", Name: "Vic Viewer", Roles: []rbac.Role{rbac.RoleViewer}}
	adminActor     = rbac.Actor{UserID: "usr_admin", Name: "Ada Admin", Roles: []rbac.Role{rbac.RoleAdmin}}
)

type harness struct {
	svc       *Service
	store     *memStore
	git       *fakeGit
	mailer    *fakeMailer
	artifacts *fakeArtifacts
	search    *fakeSearch
	redis     *miniredis.Miniredis
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:     "test-jwt-secret",
		AccessTTL:     time.Hour,
		SigningSecret: "test-signing-secret",
		CORSOrigin:    "*",
		PublicBaseURL: "http://eboard.test",
	}
}

// newHarness wires a service over in-memory fakes with a completed meeting
// "mtg_1" that requires the chairman and the secretary to sign.
func newHarness(t *testing.T) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	st := newMemStore()
	for _, a := range []rbac.Actor{secretaryActor, chairActor, memberActor, viewerActor, adminActor} {
		st.users[a.UserID] = store.User{
			ID:          a.UserID,
			DisplayName: a.Name,
			Email:       strings.ToLower(strings.ReplaceAll(a.Name, " ", ".")) + "@board.test",
			Roles:       a.RoleStrings(),
		}
	}
	st.meetings["mtg_1"] = store.Meeting{ID: "mtg_1", BoardID: "brd_1", Title: "March Board Meeting", Status: store.MeetingCompleted}
	st.signers["mtg_1"] = []store.RequiredSigner{
		{Role: "chairman", Name: "Chris Chair"},
		{Role: "secretary", Name: "Sam Secretary"},
	}

	h := &harness{
		store:     st,
		git:       newFakeGit(),
		mailer:    &fakeMailer{},
		artifacts: &fakeArtifacts{},
		search:    &fakeSearch{minutes: map[string]search.MinutesRecord{}},
		redis:     mr,
	}
	svc := newService(testConfig(), zap.NewNop(), st)
	t.Cleanup(svc.Wait)
	svc.git = h.git
	svc.drafts = drafts.NewRedisStoreWithClient(client, time.Hour)
	svc.search = h.search
	svc.mailer = h.mailer
	svc.exporter = fakeExporter{}
	svc.artifacts = h.artifacts

	clock := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	var clockMu sync.Mutex
	svc.now = func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}
	h.svc = svc
	return h
}

func codeOf(err error) string {
	if err == nil {
		return ""
	}
	_, code, _, _ := mapError(err)
	return code
}

func intPtr(v int) *int { return &v }

func boolPtr(v bool) *bool { return &v }
