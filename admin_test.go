package viewcounter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func adminConfig() Config {
	return Config{
		AdminPassword: "correct horse",
		SessionSecret: "0123456789abcdef0123456789abcdef",
	}
}

// csrfCookie fetches the login page and returns the CSRF cookie it sets.
func csrfCookie(t *testing.T, a *App) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /admin/: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `name="password"`) {
		t.Fatalf("expected login form, got %s", rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == "_csrf" {
			return c
		}
	}
	t.Fatal("no _csrf cookie set")
	return nil
}

func login(t *testing.T, a *App, password string) *httptest.ResponseRecorder {
	t.Helper()
	token := csrfCookie(t, a)
	form := url.Values{"password": {password}, "_csrf": {token.Value}}
	req := httptest.NewRequest(http.MethodPost, "/admin/login/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(token)
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	return rec
}

func TestAdminRoutesDisabledWithoutPassword(t *testing.T) {
	a, _ := newTestApp(t, Config{})

	rec := do(a, http.MethodGet, "/admin/", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without admin config, got %d", rec.Code)
	}
}

func TestAdminLoginAndStats(t *testing.T) {
	a, store := newTestApp(t, adminConfig())
	_, _ = store.Increment(context.Background(), "/blog/<script>")

	rec := login(t, a, "correct horse")
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/admin/stats/" {
		t.Fatalf("expected redirect to stats, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionName {
			sessionCookie = c
		}
	}
	if sessionCookie == nil {
		t.Fatal("no session cookie after login")
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/stats/", nil)
	req.AddCookie(sessionCookie)
	rec = httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "/blog/&lt;script&gt;") {
		t.Fatalf("expected escaped slug in stats table, got %s", body)
	}
	if strings.Contains(body, "<script>") {
		t.Fatal("slug rendered unescaped")
	}
}

func TestAdminStatsRequiresSession(t *testing.T) {
	a, _ := newTestApp(t, adminConfig())

	rec := do(a, http.MethodGet, "/admin/stats/", "")
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/admin/" {
		t.Fatalf("expected redirect to login, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestAdminLoginWrongPassword(t *testing.T) {
	a, _ := newTestApp(t, adminConfig())

	rec := login(t, a, "wrong")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Invalid password") {
		t.Fatalf("expected error notice, got %s", rec.Body.String())
	}
}

func TestAdminLoginRequiresCSRFToken(t *testing.T) {
	a, _ := newTestApp(t, adminConfig())

	form := url.Values{"password": {"correct horse"}}
	req := httptest.NewRequest(http.MethodPost, "/admin/login/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without CSRF token, got %d", rec.Code)
	}
}

func TestAdminLoginLimiter(t *testing.T) {
	a, _ := newTestApp(t, adminConfig())

	for i := 0; i < 5; i++ {
		if rec := login(t, a, "wrong"); rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, rec.Code)
		}
	}
	if rec := login(t, a, "correct horse"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after repeated failures, got %d", rec.Code)
	}
}
