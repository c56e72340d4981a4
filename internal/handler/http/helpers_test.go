package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/event"
	"github.com/vidtube/backend/internal/repository/memory"
	"github.com/vidtube/backend/internal/service"
	storagemem "github.com/vidtube/backend/internal/storage/memory"
	"github.com/vidtube/backend/pkg/health"
	"github.com/vidtube/backend/pkg/httputil"
	pkgkafka "github.com/vidtube/backend/pkg/kafka"
	"github.com/vidtube/backend/pkg/middleware"
)

type testEnv struct {
	router   http.Handler
	store    *memory.Store
	media    *storagemem.Storage
	tokens   *auth.TokenIssuer
	channels *service.ChannelService
	tmpDir   string
}

type envOption func(*RouterConfig)

func withAuthLimit(rps float64, burst int) envOption {
	return func(c *RouterConfig) { c.AuthLimit = middleware.RateLimitConfig{RPS: rps, Burst: burst} }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	media := storagemem.New()
	tokens := auth.NewTokenIssuer(
		"access-secret-for-handler-tests-0123456789",
		"refresh-secret-for-handler-tests-0123456789",
		15*time.Minute, 24*time.Hour,
	)
	producer := event.NewProducer(pkgkafka.NoopPublisher{}, logger)
	users := service.NewUserService(store, store, tokens, auth.NewPasswordHasher(4), media, producer, logger)
	channels := service.NewChannelService(store, logger)
	tmpDir := t.TempDir()

	cfg := RouterConfig{
		ServiceName:    "vidtube-test",
		UserService:    users,
		ChannelService: channels,
		Health:         health.NewHandler(),
		Logger:         logger,
		Cookies: CookieConfig{
			Secure:        true,
			SameSite:      http.SameSiteLaxMode,
			AccessMaxAge:  15 * time.Minute,
			RefreshMaxAge: 24 * time.Hour,
		},
		Uploads:   UploadConfig{MaxBytes: 1 << 20, TmpDir: tmpDir},
		CORS:      middleware.DefaultCORSConfig(),
		AuthLimit: middleware.RateLimitConfig{RPS: 1000, Burst: 1000},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &testEnv{
		router:   NewRouter(cfg),
		store:    store,
		media:    media,
		tokens:   tokens,
		channels: channels,
		tmpDir:   tmpDir,
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// envelope decodes both the success and the error shape.
type envelope struct {
	StatusCode int                   `json:"statusCode"`
	Data       json.RawMessage       `json:"data"`
	Message    string                `json:"message"`
	Success    bool                  `json:"success"`
	Code       string                `json:"code"`
	Errors     []httputil.FieldError `json:"errors"`
	RequestID  string                `json:"requestId"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) envelope {
	t.Helper()
	env := decode(t, rec)
	require.NoError(t, json.Unmarshal(env.Data, dst))
	return env
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func formBodyRequest(method, path string, values url.Values) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// multipartRequest builds a multipart body. files maps field name to
// file content; each file is named <field>.png.
func multipartRequest(t *testing.T, method, path string, fields, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for field, content := range files {
		fw, err := mw.CreateFormFile(field, field+".png")
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func withBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

type loginData struct {
	User struct {
		ID       string `json:"id"`
		UserName string `json:"userName"`
	} `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type pairData struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// register creates alice and returns the response.
func (e *testEnv) register(t *testing.T, userName, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(multipartRequest(t, http.MethodPost, "/api/v1/users/register",
		map[string]string{"fullName": "Alice Liddell", "email": email, "userName": userName, "password": password},
		map[string]string{"avatar": "avatar-bytes"},
	))
}

func (e *testEnv) login(t *testing.T, userName, password string) loginData {
	t.Helper()
	rec := e.do(jsonRequest(t, http.MethodPost, "/api/v1/users/login", map[string]string{
		"userName": userName, "password": password,
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var data loginData
	decodeData(t, rec, &data)
	return data
}

func tmpEntries(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return entries
}
