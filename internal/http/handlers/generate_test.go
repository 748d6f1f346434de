package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"server/internal/domain"
)

func generateRequest(t *testing.T, body, authHeader string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/images/generate", strings.NewReader(body))
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestGenerateRequiresAuth(t *testing.T) {
	app := newApp(t, &stubDB{}, &fakeRunner{})

	rec := httptest.NewRecorder()
	app.Generate(domain.OpStandard)(rec, generateRequest(t, `{"prompt":"a cat"}`, ""))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Success {
		t.Fatalf("success must be false")
	}
}

func TestGenerateAPIKeyMissingCapabilityIsUnauthorized(t *testing.T) {
	db := &stubDB{
		caller:    &domain.Caller{ID: "owner-1"},
		keySecret: "sk_abc",
		key: &domain.APIKey{
			ID: "key-1", ProfileID: "owner-1",
			Capabilities: []string{domain.CapabilityGetImage},
		},
	}
	runner := &fakeRunner{}
	app := newApp(t, db, runner)

	rec := httptest.NewRecorder()
	app.Generate(domain.OpStandard)(rec, generateRequest(t, `{"prompt":"a cat"}`, "Bearer sk_abc"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if runner.calls != 0 {
		t.Fatalf("pipeline must not run for a key missing the capability")
	}
}

func TestGenerateInvalidPayload(t *testing.T) {
	db := &stubDB{caller: &domain.Caller{ID: "owner-1"}}
	app := newApp(t, db, &fakeRunner{})

	rec := httptest.NewRecorder()
	app.Generate(domain.OpStandard)(rec, generateRequest(t, `{not json`, sessionToken(t)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGenerateValidationErrorsReturnFieldDetail(t *testing.T) {
	db := &stubDB{caller: &domain.Caller{ID: "owner-1"}}
	runner := &fakeRunner{}
	app := newApp(t, db, runner)

	rec := httptest.NewRecorder()
	app.Generate(domain.OpStandard)(rec, generateRequest(t, `{"prompt":"", "aspect_ratio":"7:5"}`, sessionToken(t)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	fields, _ := env.Data.(map[string]any)
	if fields["prompt"] == nil || fields["aspect_ratio"] == nil {
		t.Fatalf("field errors missing: %+v", env.Data)
	}
	if runner.calls != 0 {
		t.Fatalf("pipeline must not run on invalid input")
	}
}

func TestGenerateInsufficientCredits(t *testing.T) {
	db := &stubDB{caller: &domain.Caller{ID: "owner-1", CreditBalance: 0}}
	app := newApp(t, db, &fakeRunner{err: domain.ErrInsufficientCredits})

	rec := httptest.NewRecorder()
	app.Generate(domain.OpStandard)(rec, generateRequest(t, `{"prompt":"a cat"}`, sessionToken(t)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Success || !strings.Contains(env.Message, "credits") {
		t.Fatalf("want actionable credit message, got %+v", env)
	}
}

func TestGenerateUnsafeContentKeepsMessageVerbatim(t *testing.T) {
	db := &stubDB{caller: &domain.Caller{ID: "owner-1"}}
	app := newApp(t, db, &fakeRunner{err: &domain.UnsafeContentError{Message: "NSFW content detected"}})

	rec := httptest.NewRecorder()
	app.Generate(domain.OpStandard)(rec, generateRequest(t, `{"prompt":"a cat"}`, sessionToken(t)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Message != "NSFW content detected" {
		t.Fatalf("message = %q, want verbatim moderation string", env.Message)
	}
}

func TestGenerateInternalFailureIsGeneric(t *testing.T) {
	db := &stubDB{caller: &domain.Caller{ID: "owner-1"}}
	cause := errors.New("provider exploded with secret detail")
	app := newApp(t, db, &fakeRunner{err: domain.Internal("invoke", cause)})

	rec := httptest.NewRecorder()
	app.Generate(domain.OpStandard)(rec, generateRequest(t, `{"prompt":"a cat"}`, sessionToken(t)))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Message != "Internal Server Error" {
		t.Fatalf("message = %q, want generic", env.Message)
	}
	if strings.Contains(rec.Body.String(), "secret detail") {
		t.Fatalf("internal cause leaked to the caller: %s", rec.Body.String())
	}
}

func TestGenerateSuccessReturnsPublicURL(t *testing.T) {
	db := &stubDB{caller: &domain.Caller{ID: "owner-1", CreditBalance: 100}}
	runner := &fakeRunner{record: &domain.GenerationRecord{
		ID:         "gen-1",
		PublicURL:  "https://cdn.example.com/static/generations/owner-1/a.webp",
		CreditCost: 1,
	}}
	app := newApp(t, db, runner)

	rec := httptest.NewRecorder()
	app.Generate(domain.OpStandard)(rec, generateRequest(t, `{"prompt":"a cat"}`, sessionToken(t)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if !env.Success {
		t.Fatalf("success = false: %+v", env)
	}
	if env.Data != "https://cdn.example.com/static/generations/owner-1/a.webp" {
		t.Fatalf("data = %v, want the public url", env.Data)
	}
	if runner.kind != domain.KindStandard {
		t.Fatalf("operation kind = %q", runner.kind)
	}
	if db.usageEvents != 1 {
		t.Fatalf("usage events = %d, want 1", db.usageEvents)
	}
}

func TestGenerateLocalizedMessage(t *testing.T) {
	db := &stubDB{caller: &domain.Caller{ID: "owner-1"}}
	app := newApp(t, db, &fakeRunner{err: domain.ErrInsufficientCredits})

	req := generateRequest(t, `{"prompt":"a cat"}`, sessionToken(t))
	req = req.WithContext(contextWithLocale(req.Context(), "id"))
	rec := httptest.NewRecorder()
	app.Generate(domain.OpStandard)(rec, req)
	env := decodeEnvelope(t, rec)
	if !strings.Contains(env.Message, "Kredit") {
		t.Fatalf("message = %q, want Indonesian wording", env.Message)
	}
}
