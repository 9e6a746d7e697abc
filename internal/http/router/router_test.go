package router

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/delcom/healthtrack/internal/domain"
	"github.com/delcom/healthtrack/internal/http/handler"
	"github.com/delcom/healthtrack/internal/http/web"
	"github.com/delcom/healthtrack/internal/repository"
	"github.com/delcom/healthtrack/internal/security"
	"github.com/delcom/healthtrack/internal/service"
	"github.com/delcom/healthtrack/internal/storage"
)

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newRouterForTest(t *testing.T) http.Handler {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.AuthToken{}, &domain.HealthRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	recordRepo := repository.NewRecordRepository(db)
	codec := security.NewTokenCodec("0123456789abcdef0123456789abcdef", "healthtrack", 2*time.Hour)
	files := storage.NewLocalStore(t.TempDir())

	gate := service.NewGate(codec, tokenRepo, userRepo)
	authService := service.NewAuthService(userRepo, tokenRepo, codec)
	userService := service.NewUserService(userRepo)
	recordService := service.NewRecordService(recordRepo, files)
	photoService := service.NewPhotoService(recordService, files)
	guard := service.NewLocalAuthAbuseGuard(service.AuthAbusePolicy{FreeAttempts: 100})
	sessions := web.NewSessionManager([]byte("test-session-secret"), "healthtrack_session")

	return NewRouter(Dependencies{
		AuthHandler:      handler.NewAuthHandler(authService, guard),
		UserHandler:      handler.NewUserHandler(userService, authService),
		RecordHandler:    handler.NewRecordHandler(recordService),
		AuthWebHandler:   web.NewAuthWebHandler(authService, gate, guard, sessions),
		RecordWebHandler: web.NewRecordWebHandler(recordService, photoService, sessions),
		Gate:             gate,
		Sessions:         sessions,
		AuthRateLimitRPM: 1000,
	})
}

func perform(r http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.RemoteAddr = "10.10.10.10:1234"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %q)", err, rr.Body.String())
	}
	return env
}

func registerAndLogin(t *testing.T, r http.Handler, email string) string {
	t.Helper()
	rr := perform(r, http.MethodPost, "/api/auth/register", "",
		fmt.Sprintf(`{"name":"Test","email":%q,"password":"pass1234"}`, email))
	if rr.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d (%s)", rr.Code, rr.Body.String())
	}
	rr = perform(r, http.MethodPost, "/api/auth/login", "",
		fmt.Sprintf(`{"email":%q,"password":"pass1234"}`, email))
	if rr.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	var data struct {
		Token string `json:"token"`
	}
	env := decodeEnvelope(t, rr)
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode login data: %v", err)
	}
	if data.Token == "" {
		t.Fatal("expected a token in the login response")
	}
	return data.Token
}

func TestHealthLive(t *testing.T) {
	r := newRouterForTest(t)
	rr := perform(r, http.MethodGet, "/health/live", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestRegisterValidationAndDuplicate(t *testing.T) {
	r := newRouterForTest(t)

	rr := perform(r, http.MethodPost, "/api/auth/register", "", `{"email":"a@b.com","password":"x"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing name, got %d", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.Message != "name is required" || env.Status != "fail" {
		t.Fatalf("unexpected envelope: %+v", env)
	}

	registerAndLogin(t, r, "alice@example.com")
	rr = perform(r, http.MethodPost, "/api/auth/register", "", `{"name":"A","email":"alice@example.com","password":"pass1234"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate, got %d", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.Message != "user already registered with this email" {
		t.Fatalf("unexpected message: %q", env.Message)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	r := newRouterForTest(t)
	registerAndLogin(t, r, "alice@example.com")

	rr := perform(r, http.MethodPost, "/api/auth/login", "", `{"email":"alice@example.com","password":"nope"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.Message != "email or password incorrect" {
		t.Fatalf("unexpected message: %q", env.Message)
	}
}

func TestLoginBlankFields(t *testing.T) {
	r := newRouterForTest(t)
	registerAndLogin(t, r, "alice@example.com")

	rr := perform(r, http.MethodPost, "/api/auth/login", "", `{"password":"pass1234"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank email, got %d", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.Message != "email is required" {
		t.Fatalf("unexpected message: %q", env.Message)
	}

	rr = perform(r, http.MethodPost, "/api/auth/login", "", `{"email":"alice@example.com"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank password, got %d", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.Message != "password is required" {
		t.Fatalf("unexpected message: %q", env.Message)
	}
}

func TestProtectedRouteTokenFailures(t *testing.T) {
	r := newRouterForTest(t)

	rr := perform(r, http.MethodGet, "/api/users/me", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without header, got %d", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.Message != "authentication token not found" {
		t.Fatalf("unexpected message: %q", env.Message)
	}

	rr = perform(r, http.MethodGet, "/api/users/me", "garbage-token", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.Message != "authentication token invalid" {
		t.Fatalf("unexpected message: %q", env.Message)
	}
}

// Two back-to-back logins land within the same second; the random jti
// keeps the token strings distinct, so revoking the first cannot be
// masked by the second matching its bytes.
func TestSecondLoginRevokesFirstToken(t *testing.T) {
	r := newRouterForTest(t)
	first := registerAndLogin(t, r, "alice@example.com")

	rr := perform(r, http.MethodPost, "/api/auth/login", "", `{"email":"alice@example.com","password":"pass1234"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("second login: %d", rr.Code)
	}
	var data struct {
		Token string `json:"token"`
	}
	env := decodeEnvelope(t, rr)
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode login data: %v", err)
	}
	if data.Token == first {
		t.Fatal("second login reissued an identical token")
	}

	rr = perform(r, http.MethodGet, "/api/users/me", first, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected first token rejected, got %d", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.Message != "authentication token expired" {
		t.Fatalf("unexpected message: %q", env.Message)
	}

	rr = perform(r, http.MethodGet, "/api/users/me", data.Token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected second token live, got %d", rr.Code)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	r := newRouterForTest(t)
	token := registerAndLogin(t, r, "alice@example.com")

	rr := perform(r, http.MethodPost, "/api/auth/logout", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", rr.Code)
	}
	rr = perform(r, http.MethodGet, "/api/users/me", token, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected revoked token rejected, got %d", rr.Code)
	}
}

func TestRecordCRUDAndOwnership(t *testing.T) {
	r := newRouterForTest(t)
	alice := registerAndLogin(t, r, "alice@example.com")
	bob := registerAndLogin(t, r, "bob@example.com")

	rr := perform(r, http.MethodPost, "/api/health-records", alice,
		`{"date":"2026-08-01","body_temperature":36.8,"blood_pressure":"120/80","heart_rate":70,"notes":"morning run"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d (%s)", rr.Code, rr.Body.String())
	}
	var created struct {
		Record domain.HealthRecord `json:"record"`
	}
	env := decodeEnvelope(t, rr)
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode created record: %v", err)
	}
	recordID := created.Record.ID.String()

	rr = perform(r, http.MethodPost, "/api/health-records", alice, `{"blood_pressure":"120/80","heart_rate":70}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing temperature, got %d", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.Message != "body temperature is required" {
		t.Fatalf("unexpected message: %q", env.Message)
	}

	rr = perform(r, http.MethodGet, "/api/health-records/"+recordID, alice, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rr.Code)
	}

	// bob cannot see, update or delete alice's record
	rr = perform(r, http.MethodGet, "/api/health-records/"+recordID, bob, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign owner, got %d", rr.Code)
	}
	rr = perform(r, http.MethodDelete, "/api/health-records/"+recordID, bob, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign delete, got %d", rr.Code)
	}

	rr = perform(r, http.MethodPut, "/api/health-records/"+recordID, alice,
		`{"body_temperature":37.1,"blood_pressure":"118/76","heart_rate":68,"notes":"evening"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	rr = perform(r, http.MethodGet, "/api/health-records?search=evening", alice, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("search: expected 200, got %d", rr.Code)
	}
	var listed struct {
		Records []domain.HealthRecord `json:"records"`
	}
	env = decodeEnvelope(t, rr)
	if err := json.Unmarshal(env.Data, &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed.Records) != 1 {
		t.Fatalf("expected 1 search hit, got %d", len(listed.Records))
	}

	rr = perform(r, http.MethodDelete, "/api/health-records/"+recordID, alice, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rr.Code)
	}
	rr = perform(r, http.MethodGet, "/api/health-records/"+recordID, alice, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rr.Code)
	}
}

func TestProfileUpdateAndPasswordChange(t *testing.T) {
	r := newRouterForTest(t)
	token := registerAndLogin(t, r, "alice@example.com")

	rr := perform(r, http.MethodPut, "/api/users/me", token, `{"name":"Alice R","email":"alice@example.com"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("profile update: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	// a wrong old password reads as a failed confirmation
	rr = perform(r, http.MethodPut, "/api/users/me/password", token,
		`{"old_password":"wrong999","new_password":"newpass1"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong old password, got %d", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.Message != "password confirmation does not match" {
		t.Fatalf("unexpected message: %q", env.Message)
	}

	rr = perform(r, http.MethodPut, "/api/users/me/password", token,
		`{"old_password":"pass1234","new_password":"newpass1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("password change: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	// the change revoked every token, including the one just used
	rr = perform(r, http.MethodGet, "/api/users/me", token, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected token revoked after password change, got %d", rr.Code)
	}
}

func TestWebRedirectsAnonymousToLogin(t *testing.T) {
	r := newRouterForTest(t)

	rr := perform(r, http.MethodGet, "/", "", "")
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 redirect, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/auth/login" {
		t.Fatalf("expected redirect to /auth/login, got %q", loc)
	}
}

func TestWebLoginFlowSetsSessionAndServesHome(t *testing.T) {
	r := newRouterForTest(t)
	registerAndLogin(t, r, "alice@example.com")

	form := "email=alice%40example.com&password=pass1234"
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "10.10.10.10:1234"
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 after login, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/" {
		t.Fatalf("expected redirect to /, got %q", loc)
	}

	home := httptest.NewRequest(http.MethodGet, "/", nil)
	home.RemoteAddr = "10.10.10.10:1234"
	for _, c := range rr.Result().Cookies() {
		home.AddCookie(c)
	}
	hr := httptest.NewRecorder()
	r.ServeHTTP(hr, home)
	if hr.Code != http.StatusOK {
		t.Fatalf("expected 200 home with session, got %d", hr.Code)
	}
	if !strings.Contains(hr.Body.String(), "Health records") {
		t.Fatalf("expected home page body, got %q", hr.Body.String())
	}
}

func TestWebFlashShownOnce(t *testing.T) {
	r := newRouterForTest(t)
	registerAndLogin(t, r, "alice@example.com")

	login := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("email=alice%40example.com&password=pass1234"))
	login.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	login.RemoteAddr = "10.10.10.10:1234"
	lr := httptest.NewRecorder()
	r.ServeHTTP(lr, login)
	cookies := lr.Result().Cookies()

	// a form submission missing a required field leaves an error flash
	add := httptest.NewRequest(http.MethodPost, "/health-records/add", strings.NewReader("blood_pressure=120%2F80&heart_rate=70"))
	add.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	add.RemoteAddr = "10.10.10.10:1234"
	for _, c := range cookies {
		add.AddCookie(c)
	}
	ar := httptest.NewRecorder()
	r.ServeHTTP(ar, add)
	if ar.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 after invalid add, got %d", ar.Code)
	}
	cookies = mergeCookies(cookies, ar.Result().Cookies())

	home := httptest.NewRequest(http.MethodGet, "/", nil)
	home.RemoteAddr = "10.10.10.10:1234"
	for _, c := range cookies {
		home.AddCookie(c)
	}
	hr := httptest.NewRecorder()
	r.ServeHTTP(hr, home)
	if !strings.Contains(hr.Body.String(), "body temperature is required") {
		t.Fatalf("expected flash on first view, got %q", hr.Body.String())
	}
	cookies = mergeCookies(cookies, hr.Result().Cookies())

	again := httptest.NewRequest(http.MethodGet, "/", nil)
	again.RemoteAddr = "10.10.10.10:1234"
	for _, c := range cookies {
		again.AddCookie(c)
	}
	gr := httptest.NewRecorder()
	r.ServeHTTP(gr, again)
	if strings.Contains(gr.Body.String(), "body temperature is required") {
		t.Fatal("expected flash consumed after first view")
	}
}

func mergeCookies(existing, updates []*http.Cookie) []*http.Cookie {
	merged := make(map[string]*http.Cookie, len(existing)+len(updates))
	for _, c := range existing {
		merged[c.Name] = c
	}
	for _, c := range updates {
		merged[c.Name] = c
	}
	out := make([]*http.Cookie, 0, len(merged))
	for _, c := range merged {
		out = append(out, c)
	}
	return out
}

func TestErrorRoute(t *testing.T) {
	r := newRouterForTest(t)
	rr := perform(r, http.MethodGet, "/error", "", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.Status != "error" {
		t.Fatalf("expected error status, got %q", env.Status)
	}
}
