package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"sprintium/internal/auth"
	"sprintium/internal/config"
	"sprintium/internal/events"
	"sprintium/internal/issue"
	"sprintium/internal/jwtauth"
	"sprintium/internal/logging"
	"sprintium/internal/project"
	"sprintium/internal/user"
)

const (
	adminEmail  = "a@example.com"
	memberEmail = "b@example.com"
	viewerEmail = "c@example.com"
)

var (
	userColumns    = []string{"id", "username", "email", "password_hash", "created_at"}
	projectColumns = []string{"id", "name", "key", "description", "type", "owner", "created_at", "email", "role"}
	issueColumns   = []string{"id", "project_id", "title", "description", "status", "reporter", "assignee", "created_at", "updated_at"}
)

type recordingMailer struct {
	mu     sync.Mutex
	to     []string
	tokens []string
}

func (m *recordingMailer) SendPasswordReset(_ context.Context, to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.to = append(m.to, to)
	m.tokens = append(m.tokens, token)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	t       *testing.T
	mock    sqlmock.Sqlmock
	handler http.Handler
	tokens  *jwtauth.Service
	mailer  *recordingMailer
	events  *recordingPublisher
	redis   *redis.Client
}

func newTestEnv(t *testing.T, configure ...func(*Deps)) *testEnv {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	tokens, err := jwtauth.NewService(jwtauth.Config{
		SessionKey: []byte("session-key-for-handler-tests"),
		ResetKey:   []byte("reset-key-for-handler-tests"),
	})
	if err != nil {
		t.Fatalf("failed to create token service: %v", err)
	}

	env := &testEnv{
		t:      t,
		mock:   mock,
		tokens: tokens,
		mailer: &recordingMailer{},
		events: &recordingPublisher{},
		redis:  rdb,
	}

	projects := project.NewManager(project.NewDatastore(db))
	deps := Deps{
		Config:   &config.Config{Environment: "development", ExposeResetToken: true},
		Users:    user.NewManager(user.NewDatastore(db)),
		Projects: projects,
		Issues:   issue.NewManager(issue.NewDatastore(db), projects),
		Tokens:   tokens,
		Resolver: auth.NewResolver(tokens, auth.NewRedisRevocationStore(rdb)),
		Mailer:   env.mailer,
		Events:   env.events,
		Logger:   logging.Discard(),
	}
	for _, fn := range configure {
		fn(&deps)
	}
	env.handler = NewRouter(deps)

	return env
}

func (e *testEnv) token(email string) string {
	e.t.Helper()
	token, _, err := e.tokens.IssueSessionToken(email)
	if err != nil {
		e.t.Fatalf("failed to issue token: %v", err)
	}
	return token
}

func (e *testEnv) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			e.t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) expectationsMet() {
	e.t.Helper()
	if err := e.mock.ExpectationsWereMet(); err != nil {
		e.t.Errorf("unmet expectations: %v", err)
	}
}

// expectProject queues the lookup of a project with the given members.
func (e *testEnv) expectProject(id uuid.UUID, key string, members ...project.Member) {
	rows := sqlmock.NewRows(projectColumns)
	for _, m := range members {
		rows.AddRow(id.String(), "Project "+key, key, nil, project.DefaultType, members[0].Email, time.Now(), m.Email, string(m.Role))
	}
	e.mock.ExpectQuery(`FROM projects p .+ WHERE p.id = \$1`).
		WithArgs(id).
		WillReturnRows(rows)
}

func (e *testEnv) expectTeamProject(id uuid.UUID) {
	e.expectProject(id, "TEAM",
		project.Member{Email: adminEmail, Role: project.RoleAdmin},
		project.Member{Email: memberEmail, Role: project.RoleMember},
		project.Member{Email: viewerEmail, Role: project.RoleViewer},
	)
}

func (e *testEnv) expectMissingProject(id uuid.UUID) {
	e.mock.ExpectQuery(`FROM projects p .+ WHERE p.id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(projectColumns))
}

func (e *testEnv) expectIssue(projectID, id uuid.UUID, reporter string, assignee any) {
	now := time.Now()
	e.mock.ExpectQuery(`SELECT .+ FROM issues WHERE id = \$1 AND project_id = \$2`).
		WithArgs(id, projectID).
		WillReturnRows(sqlmock.NewRows(issueColumns).
			AddRow(id.String(), projectID.String(), "Fix login", nil, "To Do", reporter, assignee, now, now))
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, errType string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
	body := decodeBody[auth.APIError](t, rec)
	if body.Error.Type != errType {
		t.Errorf("expected error type %q, got %q", errType, body.Error.Type)
	}
	if body.Error.Message == "" {
		t.Error("expected an error message")
	}
}
