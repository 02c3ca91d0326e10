package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JCampos05/Backend-Taskeer/internal/components/identity"
	"github.com/JCampos05/Backend-Taskeer/internal/components/notify"
	"github.com/JCampos05/Backend-Taskeer/internal/components/sharing"
	"github.com/JCampos05/Backend-Taskeer/internal/platform/config"
	"github.com/JCampos05/Backend-Taskeer/internal/platform/store"
)

func newTestServer(t *testing.T, basePath string) http.Handler {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { store.Close(db) })
	if err := store.Migrate(db,
		&identity.User{},
		&identity.Session{},
		&sharing.Resource{},
		&sharing.Grant{},
		&sharing.AuditEntry{},
		&notify.Notification{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := config.Defaults()
	cfg.BasePath = basePath

	users := identity.NewGormUserRepo(db)
	sessions := identity.NewGormSessionRepo(db)
	inbox := notify.NewStoreNotifier(db)
	svc := sharing.NewService(db, nil, inbox, nil)

	srv := New(cfg, Deps{
		Identity:      identity.NewHandler(users, sessions, identity.NewUserAuthFast(), time.Hour, nil),
		Sessions:      sessions,
		Sharing:       sharing.NewHandler(svc, sharing.NewResolver(svc.Store()), nil),
		Notifications: notify.NewHandler(inbox, nil),
	})
	return srv.Handler()
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t, "")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
}

func TestBasePathPrefix(t *testing.T) {
	h := newTestServer(t, "/taskeer")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/taskeer/api/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("prefixed healthz status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/healthz", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unprefixed path status = %d, want 404", rec.Code)
	}
}

func TestAuthedRoutesRequireSession(t *testing.T) {
	h := newTestServer(t, "")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/share/accessible", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want 401", rec.Code)
	}
}

func TestRegisterLoginAndUseSession(t *testing.T) {
	h := newTestServer(t, "")

	register := `{"name":"Ana","email":"ana@example.com","password":"hunter2hunter2"}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(register)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", rec.Code, rec.Body.String())
	}

	login := `{"email":"ana@example.com","password":"hunter2hunter2"}`
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(login)))
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}

	// Pull the token out without a full struct.
	body := rec.Body.String()
	i := strings.Index(body, `"token":"`)
	if i < 0 {
		t.Fatalf("no token in login response: %s", body)
	}
	token := body[i+len(`"token":"`):]
	token = token[:strings.Index(token, `"`)]

	req := httptest.NewRequest(http.MethodGet, "/api/share/accessible", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authed request status = %d: %s", rec.Code, rec.Body.String())
	}
}
