package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"eboard/api/internal/artifacts"
	"eboard/api/internal/authpw"
	"eboard/api/internal/config"
	"eboard/api/internal/drafts"
	"eboard/api/internal/email"
	"eboard/api/internal/export"
	"eboard/api/internal/gitrepo"
	"eboard/api/internal/obs"
	"eboard/api/internal/rbac"
	"eboard/api/internal/search"
	"eboard/api/internal/store"
	"eboard/api/internal/workflow"

	"go.uber.org/zap"
)

type dataStore interface {
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	InsertUser(context.Context, store.User) error
	UpdateSigningPinHash(context.Context, string, string) error
	ListUsers(context.Context) ([]store.User, error)

	InsertMeeting(context.Context, store.Meeting) error
	GetMeeting(context.Context, string) (store.Meeting, error)
	UpdateMeetingStatus(context.Context, string, string) error
	ListRequiredSigners(context.Context, string) ([]store.RequiredSigner, error)
	ReplaceRequiredSigners(context.Context, string, []store.RequiredSigner) error

	InsertMinutes(context.Context, store.Minutes, store.MinutesEvent) error
	GetMinutes(context.Context, string) (store.Minutes, error)
	ListMinutes(context.Context, store.MinutesFilter) ([]store.Minutes, error)
	UpdateMinutes(context.Context, store.Minutes, int, *store.MinutesEvent) error

	InsertComment(context.Context, store.MinutesComment, store.MinutesEvent) error
	GetComment(context.Context, string) (store.MinutesComment, error)
	ListComments(context.Context, string) ([]store.MinutesComment, error)
	ResolveComment(context.Context, string, string, time.Time, store.MinutesEvent) (bool, error)
	DeleteComment(context.Context, string, store.MinutesEvent) (bool, error)

	InsertSignature(context.Context, store.MinutesSignature, store.MinutesEvent) error
	GetSignature(context.Context, string) (store.MinutesSignature, error)
	ListSignatures(context.Context, string) ([]store.MinutesSignature, error)
	MarkSignatureVerified(context.Context, string, time.Time, store.MinutesEvent) error

	ListMinutesEvents(context.Context, string, int) ([]store.MinutesEvent, error)
	Ping(ctx context.Context) error
}

type gitService interface {
	EnsureMinutesRepo(string, gitrepo.Content, string) error
	CommitVersion(string, gitrepo.Content, string, string) (store.CommitInfo, error)
	GetContentByHash(string, string) (gitrepo.Content, error)
	History(string, int) ([]store.CommitInfo, error)
	TagHead(string, string, string) error
}

type draftStore interface {
	Save(context.Context, drafts.Draft) error
	Load(context.Context, string, string) (drafts.Draft, error)
	List(context.Context, string) ([]drafts.Draft, error)
	Discard(context.Context, string, string) error
	DiscardAll(context.Context, string) error
}

type searchIndex interface {
	Search(search.Query) search.Response
	IndexMinutes(search.MinutesRecord)
	IndexComment(search.CommentRecord)
	DeleteComment(string)
}

type notifier interface {
	IsConfigured() bool
	SendTransitionNotice([]string, email.TransitionNotice) error
	SendCommentResolved(string, email.CommentResolvedNotice) error
}

type exporter interface {
	Export(context.Context, export.Document, export.Format) (*export.Result, error)
}

type artifactStore interface {
	PutMinutesPDF(context.Context, string, int, []byte) (string, error)
}

// Deps are the collaborators wired in main. Everything but Store is
// optional; a nil collaborator disables its side effect.
type Deps struct {
	Store     *store.PostgresStore
	Git       *gitrepo.Service
	Drafts    *drafts.RedisStore
	Search    *search.Service
	Mailer    *email.Service
	Exporter  *export.Service
	Artifacts *artifacts.Store
}

type Service struct {
	cfg       config.Config
	log       *zap.Logger
	store     dataStore
	git       gitService
	drafts    draftStore
	search    searchIndex
	mailer    notifier
	exporter  exporter
	artifacts artifactStore
	passwords *authpw.Service

	now        func() time.Time
	sideEffect sync.WaitGroup
}

func New(cfg config.Config, log *zap.Logger, deps Deps) *Service {
	s := newService(cfg, log, deps.Store)
	if deps.Git != nil {
		s.git = deps.Git
	}
	if deps.Drafts != nil {
		s.drafts = deps.Drafts
	}
	if deps.Search != nil {
		s.search = deps.Search
	}
	if deps.Mailer != nil && deps.Mailer.IsConfigured() {
		s.mailer = deps.Mailer
	}
	if deps.Exporter != nil {
		s.exporter = deps.Exporter
	}
	if deps.Artifacts != nil {
		s.artifacts = deps.Artifacts
	}
	return s
}

func newService(cfg config.Config, log *zap.Logger, st dataStore) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		cfg:       cfg,
		log:       log,
		store:     st,
		passwords: authpw.NewService(st),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Wait blocks until every in-flight side effect has finished.
func (s *Service) Wait() {
	s.sideEffect.Wait()
}

// afterCommit runs a post-persistence side effect in the background. A
// failure is logged and counted and never reaches the caller.
func (s *Service) afterCommit(ctx context.Context, effect string, fn func(context.Context) error) {
	s.sideEffect.Add(1)
	go func() {
		defer s.sideEffect.Done()
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Minute)
		defer cancel()
		if err := fn(runCtx); err != nil {
			obs.RecordSideEffectFailure(effect)
			s.log.Warn("side effect failed", zap.String("effect", effect), zap.Error(err))
		}
	}()
}

func authorize(actor rbac.Actor, perm rbac.Permission) error {
	if !actor.Has(perm) {
		return errForbidden("Forbidden")
	}
	return nil
}

func (s *Service) loadMinutes(ctx context.Context, minutesID string) (store.Minutes, error) {
	m, err := s.store.GetMinutes(ctx, strings.TrimSpace(minutesID))
	if errors.Is(err, sql.ErrNoRows) {
		return store.Minutes{}, errNotFound("Minutes")
	}
	return m, err
}

func (s *Service) loadMeeting(ctx context.Context, meetingID string) (store.Meeting, error) {
	meeting, err := s.store.GetMeeting(ctx, strings.TrimSpace(meetingID))
	if errors.Is(err, sql.ErrNoRows) {
		return store.Meeting{}, errNotFound("Meeting")
	}
	return meeting, err
}

// loadMutable loads minutes for a write. An archived meeting freezes them.
func (s *Service) loadMutable(ctx context.Context, minutesID string) (store.Minutes, store.Meeting, error) {
	m, err := s.loadMinutes(ctx, minutesID)
	if err != nil {
		return store.Minutes{}, store.Meeting{}, err
	}
	meeting, err := s.loadMeeting(ctx, m.MeetingID)
	if err != nil {
		return store.Minutes{}, store.Meeting{}, err
	}
	if meeting.Status == store.MeetingArchived {
		return store.Minutes{}, store.Meeting{}, errMinutesFrozen()
	}
	return m, meeting, nil
}

func checkExpectedRevision(m store.Minutes, expected *int) error {
	if expected != nil && *expected != m.Revision {
		return errVersionConflict(m.Revision)
	}
	return nil
}

func (s *Service) saveMinutes(ctx context.Context, m store.Minutes, expectedRevision int, event *store.MinutesEvent) error {
	err := s.store.UpdateMinutes(ctx, m, expectedRevision, event)
	if errors.Is(err, store.ErrRevisionConflict) {
		current := expectedRevision
		if fresh, getErr := s.store.GetMinutes(ctx, m.ID); getErr == nil {
			current = fresh.Revision
		}
		return errVersionConflict(current)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errNotFound("Minutes")
	}
	return err
}

func (s *Service) newEvent(m store.Minutes, event string, actor rbac.Actor, payload map[string]any) store.MinutesEvent {
	if payload == nil {
		payload = map[string]any{}
	}
	return store.MinutesEvent{
		MinutesID:  m.ID,
		Event:      event,
		FromStatus: m.Status,
		ToStatus:   m.Status,
		ActorID:    actor.UserID,
		ActorName:  actor.Name,
		Payload:    payload,
		CreatedAt:  s.now(),
	}
}

func toWorkflowSigners(items []store.RequiredSigner) []workflow.RequiredSigner {
	out := make([]workflow.RequiredSigner, 0, len(items))
	for _, item := range items {
		out = append(out, workflow.RequiredSigner{Role: item.Role, Name: item.Name, UserID: item.UserID})
	}
	return out
}

func signersOf(signatures []store.MinutesSignature) []workflow.Signer {
	out := make([]workflow.Signer, 0, len(signatures))
	for _, sig := range signatures {
		out = append(out, workflow.Signer{Role: sig.SignerRole, Name: sig.SignerName})
	}
	return out
}

func strPtr(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func (s *Service) minutesLink(minutesID string) string {
	base := strings.TrimRight(s.cfg.PublicBaseURL, "/")
	if base == "" {
		return ""
	}
	return base + "/minutes/" + minutesID
}

func (s *Service) indexMinutes(m store.Minutes, meeting store.Meeting) {
	if s.search == nil {
		return
	}
	s.search.IndexMinutes(search.MinutesRecord{
		ID:        m.ID,
		MeetingID: m.MeetingID,
		Title:     meeting.Title,
		Content:   m.ContentPlainText,
		Status:    m.Status,
	})
}
