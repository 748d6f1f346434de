package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"server/internal/auth"
	"server/internal/domain"
	"server/internal/infra"
	"server/internal/middleware"
	"server/internal/storage"
)

func contextWithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, middleware.LocaleKey, locale)
}

const testSecret = "handlers-test-secret"

type stubRow struct {
	scan func(dest ...any) error
}

func (r stubRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

type listRows struct {
	records []domain.GenerationRecord
	idx     int
}

func (r *listRows) Close()                                       {}
func (r *listRows) Err() error                                   { return nil }
func (r *listRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *listRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *listRows) Next() bool                                   { r.idx++; return r.idx <= len(r.records) }
func (r *listRows) Scan(dest ...any) error {
	rec := r.records[r.idx-1]
	*(dest[0].(*string)) = rec.ID
	*(dest[1].(*string)) = rec.PublicURL
	*(dest[2].(*string)) = rec.StorageKey
	*(dest[3].(*string)) = rec.Prompt
	*(dest[4].(*string)) = rec.AspectRatio
	*(dest[5].(*string)) = rec.Kind
	*(dest[6].(*string)) = rec.Style
	*(dest[7].(*string)) = rec.SourceImageURL
	*(dest[8].(*float64)) = rec.SourceImageStrength
	*(dest[9].(*int)) = rec.Scale
	*(dest[10].(*int)) = rec.CreditCost
	*(dest[11].(*time.Time)) = rec.CreatedAt
	return nil
}
func (r *listRows) Values() ([]any, error) { return nil, errors.New("unsupported") }
func (r *listRows) RawValues() [][]byte    { return nil }
func (r *listRows) Conn() *pgx.Conn        { return nil }

type stubDB struct {
	caller      *domain.Caller
	key         *domain.APIKey
	keySecret   string
	generations []domain.GenerationRecord
	deletedKey  string
	usageEvents int
	apiKeyRows  int
}

func (s *stubDB) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	if strings.Contains(query, "usage_events") {
		s.usageEvents++
		return pgconn.CommandTag{}, nil
	}
	return pgconn.CommandTag{}, errors.New("unsupported exec")
}

func (s *stubDB) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	if strings.Contains(query, "from generations") {
		return &listRows{records: s.generations}, nil
	}
	return nil, errors.New("unsupported query: " + query)
}

func (s *stubDB) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	switch {
	case strings.Contains(query, "from api_keys"):
		if s.key == nil || len(args) == 0 || args[0] != s.keySecret {
			return stubRow{}
		}
		return stubRow{scan: func(dest ...any) error {
			*(dest[0].(*string)) = s.key.ID
			*(dest[1].(*string)) = s.key.ProfileID
			*(dest[2].(*string)) = s.key.Name
			*(dest[3].(*[]string)) = s.key.Capabilities
			*(dest[4].(*bool)) = s.key.Revoked
			return nil
		}}
	case strings.Contains(query, "from profiles"):
		if s.caller == nil {
			return stubRow{}
		}
		return stubRow{scan: func(dest ...any) error {
			*(dest[0].(*string)) = s.caller.ID
			*(dest[1].(*string)) = s.caller.Email
			*(dest[2].(*bool)) = s.caller.NotificationsEnabled
			*(dest[3].(*int)) = s.caller.CreditBalance
			return nil
		}}
	case strings.Contains(query, "insert into api_keys"):
		s.apiKeyRows++
		return stubRow{scan: func(dest ...any) error {
			*(dest[0].(*string)) = "key-new"
			*(dest[1].(*time.Time)) = time.Now()
			return nil
		}}
	case strings.Contains(query, "delete from generations"):
		if s.deletedKey == "" {
			return stubRow{}
		}
		key := s.deletedKey
		return stubRow{scan: func(dest ...any) error {
			*(dest[0].(*string)) = key
			return nil
		}}
	}
	return stubRow{scan: func(...any) error { return errors.New("unsupported query: " + query) }}
}

type fakeRunner struct {
	record *domain.GenerationRecord
	err    error
	kind   string
	input  domain.GenerateInput
	calls  int
}

func (f *fakeRunner) Run(ctx context.Context, caller domain.Caller, op domain.Operation, in domain.GenerateInput) (*domain.GenerationRecord, error) {
	f.calls++
	f.kind = op.Kind()
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return f.record, nil
}

func newApp(t *testing.T, db *stubDB, runner *fakeRunner) *App {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	cfg := &infra.Config{
		StorageBaseURL:     "http://localhost:8080/static",
		PublicAssetBaseURL: "https://cdn.example.com/static",
		DefaultLocale:      "en",
	}
	return &App{
		Config:   cfg,
		Logger:   zerolog.Nop(),
		SQL:      db,
		Auth:     auth.NewResolver(db, testSecret, zerolog.Nop()),
		Pipeline: runner,
		Store:    store,
	}
}

func sessionToken(t *testing.T) string {
	t.Helper()
	token, err := auth.SignSession(testSecret, "owner-1", time.Hour)
	if err != nil {
		t.Fatalf("SignSession: %v", err)
	}
	return token
}

// chiRequest builds a request carrying one chi route parameter.
func chiRequest(method, target, param, value string) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(param, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func TestAccountIsSessionOnly(t *testing.T) {
	db := &stubDB{
		caller:    &domain.Caller{ID: "owner-1", Email: "a@b.c", CreditBalance: 9},
		keySecret: "sk_abc",
		key: &domain.APIKey{
			ID: "key-1", ProfileID: "owner-1",
			Capabilities: []string{domain.CapabilityCreateImage, domain.CapabilityGetImage},
		},
	}
	app := newApp(t, db, &fakeRunner{})

	req := httptest.NewRequest(http.MethodGet, "/v1/account", nil)
	req.Header.Set("Authorization", "Bearer sk_abc")
	rec := httptest.NewRecorder()
	app.Account(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for api key", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/account", nil)
	req.Header.Set("Authorization", sessionToken(t))
	rec = httptest.NewRecorder()
	app.Account(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for session", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if !env.Success {
		t.Fatalf("success = false: %+v", env)
	}
	data := env.Data.(map[string]any)
	if data["credit_balance"].(float64) != 9 {
		t.Fatalf("credit_balance = %v", data["credit_balance"])
	}
}

func TestListGenerationsRewritesAssetHost(t *testing.T) {
	db := &stubDB{
		caller: &domain.Caller{ID: "owner-1"},
		generations: []domain.GenerationRecord{{
			ID:         "gen-1",
			PublicURL:  "http://localhost:8080/static/generations/owner-1/a.webp",
			StorageKey: "generations/owner-1/a.webp",
			Kind:       domain.KindStandard,
			CreditCost: 1,
			CreatedAt:  time.Now(),
		}},
	}
	app := newApp(t, db, &fakeRunner{})

	req := httptest.NewRequest(http.MethodGet, "/v1/generations", nil)
	req.Header.Set("Authorization", sessionToken(t))
	rec := httptest.NewRecorder()
	app.ListGenerations(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "https://cdn.example.com/static/generations/owner-1/a.webp") {
		t.Fatalf("public url not rewritten: %s", rec.Body.String())
	}
}

func TestDeleteGenerationNotFound(t *testing.T) {
	db := &stubDB{caller: &domain.Caller{ID: "owner-1"}}
	app := newApp(t, db, &fakeRunner{})

	r := chiRequest(http.MethodDelete, "/v1/generations/gen-404", "id", "gen-404")
	r.Header.Set("Authorization", sessionToken(t))
	rec := httptest.NewRecorder()
	app.DeleteGeneration(rec, r)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Success {
		t.Fatalf("success must be false on 404")
	}
}

func TestCreateAPIKeyReturnsSecretOnce(t *testing.T) {
	db := &stubDB{caller: &domain.Caller{ID: "owner-1"}}
	app := newApp(t, db, &fakeRunner{})

	body := strings.NewReader(`{"name":"ci","capabilities":["create_image"]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/api-keys", body)
	req.Header.Set("Authorization", sessionToken(t))
	rec := httptest.NewRecorder()
	app.CreateAPIKey(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	secret, _ := env.Data.(map[string]any)["secret"].(string)
	if !strings.HasPrefix(secret, "sk_") {
		t.Fatalf("secret %q must carry the sk_ prefix", secret)
	}
}

func TestCreateAPIKeyRejectsUnknownCapability(t *testing.T) {
	db := &stubDB{caller: &domain.Caller{ID: "owner-1"}}
	app := newApp(t, db, &fakeRunner{})

	body := strings.NewReader(`{"name":"ci","capabilities":["drop_tables"]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/api-keys", body)
	req.Header.Set("Authorization", sessionToken(t))
	rec := httptest.NewRecorder()
	app.CreateAPIKey(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if db.apiKeyRows != 0 {
		t.Fatalf("no key row must be written")
	}
}

func TestAssetServesStoredObject(t *testing.T) {
	db := &stubDB{}
	app := newApp(t, db, &fakeRunner{})
	if _, err := app.Store.Write(context.Background(), "generations/owner-1/a.webp", []byte("bytes")); err != nil {
		t.Fatalf("write: %v", err)
	}

	r := chiRequest(http.MethodGet, "/static/generations/owner-1/a.webp", "*", "generations/owner-1/a.webp")
	rec := httptest.NewRecorder()
	app.Asset(rec, r)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/webp" {
		t.Fatalf("content type = %q", ct)
	}

	r = chiRequest(http.MethodGet, "/static/missing.png", "*", "missing.png")
	rec = httptest.NewRecorder()
	app.Asset(rec, r)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
