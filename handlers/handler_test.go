package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rrepohub/rrepohub-backend/auth"
	"github.com/rrepohub/rrepohub-backend/auth/middleware"
	"github.com/rrepohub/rrepohub-backend/blob"
	"github.com/rrepohub/rrepohub-backend/models"
	"github.com/rrepohub/rrepohub-backend/services"
	"github.com/rrepohub/rrepohub-backend/store"
	"github.com/rrepohub/rrepohub-backend/store/storetest"
)

type outbox struct {
	mu     sync.Mutex
	bodies []string
	err    error
}

func (o *outbox) Send(ctx context.Context, to, subject, body string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.bodies = append(o.bodies, body)
	return nil
}

func (o *outbox) lastToken(t *testing.T) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.bodies)
	body := o.bodies[len(o.bodies)-1]
	i := strings.Index(body, "token=")
	require.GreaterOrEqual(t, i, 0)
	raw := strings.Fields(body[i+len("token="):])[0]
	tok, err := url.QueryUnescape(raw)
	require.NoError(t, err)
	return tok
}

type harness struct {
	router   *gin.Engine
	files    *store.FileStore
	profiles *store.ProfileStore
	tokens   *auth.TokenIssuer
	mail     *outbox
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := storetest.Open(t)
	files := store.NewFileStore(db)
	profiles := store.NewProfileStore(db)
	local, err := blob.NewLocalStore(t.TempDir(), "http://api.test")
	require.NoError(t, err)

	mail := &outbox{}
	tokens := auth.NewTokenIssuer("test-secret", 15*time.Minute, time.Hour)
	identity := auth.NewIdentity(profiles, store.NewVerificationStore(db), mail, auth.IdentityConfig{
		VerifyURL:       "http://api.test/api/auth/verify",
		VerificationTTL: time.Hour,
		BcryptCost:      bcrypt.MinCost,
	}, zap.NewNop())
	cache := services.NewFileCache(files, 16, 0)

	h := New(Deps{
		Files:     files,
		Profiles:  profiles,
		Identity:  identity,
		Tokens:    tokens,
		Uploads:   services.NewUploads(files, local, store.NewOrphanStore(db), zap.NewNop()),
		Downloads: services.NewDownloads(files, cache),
		Cache:     cache,
		Log:       zap.NewNop(),
	}, Options{BaseURL: "http://app.test", MaxUploadBytes: 1 << 20})

	r := gin.New()
	api := r.Group("/api")
	required := middleware.AuthRequired(tokens)
	api.GET("/stats", h.Stats)
	api.POST("/register", h.Register)
	api.POST("/login", h.Login)
	api.POST("/logout", h.Logout)
	api.POST("/refresh-token", h.RefreshToken)
	api.GET("/auth/verify", h.VerifyEmail)
	api.POST("/auth/resend-verification", h.ResendVerification)
	api.GET("/files", h.ListFiles)
	api.GET("/files/:id", h.GetFile)
	api.GET("/files/:id/qr", h.FileQR)
	api.GET("/highlights", h.Highlights)
	api.GET("/recent", h.Recent)
	api.GET("/download/:id", middleware.AuthOptional(tokens), h.DownloadFile)
	api.POST("/upload", required, h.UploadFile)
	api.GET("/users", h.SearchUsers)
	api.GET("/users/:id", h.UserProfile)
	api.GET("/me", required, h.Me)
	api.PATCH("/profile", required, h.UpdateProfile)

	return &harness{router: r, files: files, profiles: profiles, tokens: tokens, mail: mail}
}

func (h *harness) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) getJSON(path, token string) *httptest.ResponseRecorder {
	return h.do(httptest.NewRequest(http.MethodGet, path, nil), token)
}

func (h *harness) sendJSON(method, path string, body any, token string) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return h.do(req, token)
}

// member creates a verified account and returns it with an access token.
func (h *harness) member(t *testing.T, email, username string) (*models.User, string) {
	t.Helper()
	u := &models.User{Email: email, Username: username, FirstName: "Test", LastName: "User", EmailVerified: true}
	require.NoError(t, h.profiles.Create(context.Background(), u))
	tok, err := h.tokens.GenerateAccessToken(u.ID.String())
	require.NoError(t, err)
	return u, tok
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func multipartBody(t *testing.T, fields map[string]string, filename, content string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func seedFile(t *testing.T, h *harness, name, category, date string, downloads int64) models.File {
	t.Helper()
	f := models.File{
		Name:        name,
		Category:    category,
		Type:        "zip",
		Size:        "1.00 KB",
		Uploader:    "seed",
		DownloadURL: "http://api.test/uploads/" + name,
		Date:        date,
		Downloads:   downloads,
	}
	require.NoError(t, h.files.Create(context.Background(), &f))
	return f
}

func TestListFiles(t *testing.T) {
	h := newHarness(t)
	seedFile(t, h, "Project Alpha", "Apps", "2024-01-01T00:00:00.000Z", 0)
	seedFile(t, h, "Beta Tool", "Apps", "2024-02-01T00:00:00.000Z", 0)
	seedFile(t, h, "Alpha Song", "Music", "2024-03-01T00:00:00.000Z", 0)

	w := h.getJSON("/api/files?search=ALPHA&category=Apps", "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[[]models.File](t, w)
	require.Len(t, got, 1)
	assert.Equal(t, "Project Alpha", got[0].Name)

	w = h.getJSON("/api/files?search=alpha", "")
	got = decode[[]models.File](t, w)
	require.Len(t, got, 2)
	assert.Equal(t, "Alpha Song", got[0].Name, "newest first")

	w = h.getJSON("/api/files", "")
	assert.Len(t, decode[[]models.File](t, w), 3)

	w = h.getJSON("/api/files?category=Podcasts", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListFiles_NonASCIISearch(t *testing.T) {
	h := newHarness(t)
	seedFile(t, h, "ÉCOLE notes.pdf", "Docs", "2024-01-01T00:00:00.000Z", 0)
	seedFile(t, h, "Straße map.png", "Images", "2024-01-02T00:00:00.000Z", 0)

	w := h.getJSON("/api/files?search="+url.QueryEscape("école"), "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[[]models.File](t, w)
	require.Len(t, got, 1)
	assert.Equal(t, "ÉCOLE notes.pdf", got[0].Name)

	w = h.getJSON("/api/files?category=Images&search="+url.QueryEscape("STRASSE"), "")
	assert.Empty(t, decode[[]models.File](t, w), "case folding, not full Unicode folding")

	w = h.getJSON("/api/files?category=Images&search="+url.QueryEscape("STRAßE"), "")
	assert.Len(t, decode[[]models.File](t, w), 1)
}

func TestGetFileAndQR(t *testing.T) {
	h := newHarness(t)
	f := seedFile(t, h, "Doc", "Docs", "2024-01-01T00:00:00.000Z", 0)

	w := h.getJSON("/api/files/"+f.ID.String(), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Doc", decode[models.File](t, w).Name)

	w = h.getJSON("/api/files/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = h.getJSON("/api/files/not-a-uuid", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.getJSON("/api/files/"+f.ID.String()+"/qr", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))
}

func TestRegisterVerifyLogin(t *testing.T) {
	h := newHarness(t)
	input := map[string]string{
		"username":  "ada_l",
		"email":     "Ada@Example.com",
		"password":  "abc",
		"firstName": "Ada",
		"lastName":  "Lovelace",
	}

	w := h.sendJSON(http.MethodPost, "/api/register", input, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "password", decode[map[string]any](t, w)["field"])

	input["password"] = "secret1!"
	w = h.sendJSON(http.MethodPost, "/api/register", input, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode[map[string]any](t, w)["success"])

	w = h.sendJSON(http.MethodPost, "/api/register", input, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "User already exists. Please sign in", decode[map[string]any](t, w)["error"])

	creds := map[string]string{"email": "ada@example.com", "password": "secret1!"}
	w = h.sendJSON(http.MethodPost, "/api/login", creds, "")
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "EMAIL_NOT_VERIFIED", decode[map[string]any](t, w)["error"])

	w = h.getJSON("/api/auth/verify?token=bogus", "")
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "http://app.test/verify-email?error=invalid_token", w.Header().Get("Location"))

	w = h.getJSON("/api/auth/verify?token="+url.QueryEscape(h.mail.lastToken(t)), "")
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "http://app.test/login?verified=1", w.Header().Get("Location"))

	w = h.sendJSON(http.MethodPost, "/api/login", map[string]string{"email": "ada@example.com", "password": "wrong1!x"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.sendJSON(http.MethodPost, "/api/login", creds, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[map[string]any](t, w)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	var refresh *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == RefreshCookie {
			refresh = c
		}
	}
	require.NotNil(t, refresh)
	assert.True(t, refresh.HttpOnly)
	assert.Equal(t, "/api/refresh-token", refresh.Path)

	w = h.getJSON("/api/me", token)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[map[string]any](t, w)
	assert.Equal(t, "ada_l", me["username"])
	assert.Equal(t, "ada@example.com", me["email"])

	req := httptest.NewRequest(http.MethodPost, "/api/refresh-token", nil)
	req.AddCookie(refresh)
	w = h.do(req, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode[map[string]any](t, w)["token"])

	w = h.do(httptest.NewRequest(http.MethodPost, "/api/refresh-token", nil), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestResendVerificationAlwaysSucceeds(t *testing.T) {
	h := newHarness(t)
	w := h.sendJSON(http.MethodPost, "/api/auth/resend-verification", map[string]string{"email": "nobody@example.com"}, "")
	assert.Equal(t, http.StatusOK, w.Code)

	input := map[string]string{
		"username": "ada_l", "email": "ada@example.com", "password": "secret1!", "firstName": "Ada", "lastName": "Lovelace",
	}
	w = h.sendJSON(http.MethodPost, "/api/register", input, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	h.mail.mu.Lock()
	h.mail.err = errors.New("smtp down")
	h.mail.mu.Unlock()

	w = h.sendJSON(http.MethodPost, "/api/auth/resend-verification", map[string]string{"email": "ada@example.com"}, "")
	assert.Equal(t, http.StatusOK, w.Code, "mail server failures are not reported to the caller")
	assert.Equal(t, true, decode[map[string]any](t, w)["success"])
}

func TestRegisterMailFailureCanRetry(t *testing.T) {
	h := newHarness(t)
	input := map[string]string{
		"username": "ada_l", "email": "ada@example.com", "password": "secret1!", "firstName": "Ada", "lastName": "Lovelace",
	}

	h.mail.mu.Lock()
	h.mail.err = errors.New("smtp down")
	h.mail.mu.Unlock()
	w := h.sendJSON(http.MethodPost, "/api/register", input, "")
	require.Equal(t, http.StatusInternalServerError, w.Code)

	h.mail.mu.Lock()
	h.mail.err = nil
	h.mail.mu.Unlock()
	w = h.sendJSON(http.MethodPost, "/api/register", input, "")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestUploadAndDownload(t *testing.T) {
	h := newHarness(t)
	user, token := h.member(t, "grace@example.com", "grace")

	body, ct := multipartBody(t, map[string]string{"name": "Compiler", "category": "Apps"}, "cc.zip", "bytes")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", ct)
	w := h.do(req, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	body, ct = multipartBody(t, map[string]string{"name": "Compiler", "category": "Apps", "uploadType": "file"}, "cc.zip", "bytes")
	req = httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", ct)
	w = h.do(req, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[struct {
		Success bool        `json:"success"`
		File    models.File `json:"file"`
	}](t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, "grace", resp.File.Uploader)
	require.NotNil(t, resp.File.UploaderID)
	assert.Equal(t, user.ID, *resp.File.UploaderID)
	assert.Equal(t, "5 B", resp.File.Size)
	assert.True(t, strings.HasPrefix(resp.File.DownloadURL, "http://api.test/uploads/"))

	w = h.getJSON("/api/download/"+resp.File.ID.String(), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, resp.File.DownloadURL, decode[map[string]any](t, w)["url"])

	w = h.getJSON("/api/files/"+resp.File.ID.String(), "")
	assert.EqualValues(t, 1, decode[models.File](t, w).Downloads)

	w = h.getJSON("/api/highlights", "")
	require.Equal(t, http.StatusOK, w.Code)
	hl := decode[map[string]any](t, w)
	assert.EqualValues(t, 1, hl["totalDownloads"])

	w = h.getJSON("/api/download/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadRejectsBadInput(t *testing.T) {
	h := newHarness(t)
	_, token := h.member(t, "linus@example.com", "linus")

	cases := []struct {
		name   string
		fields map[string]string
		file   string
	}{
		{"unknown category", map[string]string{"name": "x", "category": "Podcasts"}, "x.zip"},
		{"missing file", map[string]string{"name": "x", "category": "Apps"}, ""},
		{"non-http link", map[string]string{"name": "x", "category": "Apps", "uploadType": "link", "link": "ftp://host/x"}, ""},
		{"unknown upload type", map[string]string{"name": "x", "category": "Apps", "uploadType": "torrent"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, ct := multipartBody(t, tc.fields, tc.file, "data")
			req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
			req.Header.Set("Content-Type", ct)
			w := h.do(req, token)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}

	n, err := h.files.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUploadLink(t *testing.T) {
	h := newHarness(t)
	_, token := h.member(t, "ken@example.com", "kenthompson")

	body, ct := multipartBody(t, map[string]string{
		"name": "Plan 9", "category": "Archives", "uploadType": "link", "link": "https://example.com/plan9.iso",
	}, "", "")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", ct)
	w := h.do(req, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[struct {
		File models.File `json:"file"`
	}](t, w)
	assert.True(t, resp.File.IsExternalLink)
	assert.Equal(t, "External", resp.File.Size)
	assert.Equal(t, "https://example.com/plan9.iso", resp.File.DownloadURL)
}

func TestUserProfile(t *testing.T) {
	h := newHarness(t)
	user, _ := h.member(t, "barbara@example.com", "barbara")
	other, _ := h.member(t, "edsger@example.com", "edsger")

	seedFile(t, h, "Anonymous", "Docs", "2024-01-01T00:00:00.000Z", 0)
	uid := user.ID
	require.NoError(t, h.files.Create(context.Background(), &models.File{
		Name: "Owned", Category: "Docs", DownloadURL: "u", UploaderID: &uid,
	}))
	oid := other.ID
	require.NoError(t, h.files.Create(context.Background(), &models.File{
		Name: "Theirs", Category: "Docs", DownloadURL: "u", UploaderID: &oid,
	}))

	w := h.getJSON("/api/users/"+user.ID.String(), "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[struct {
		Profile models.Profile `json:"profile"`
		Files   []models.File  `json:"files"`
	}](t, w)
	assert.Equal(t, "barbara", resp.Profile.Username)
	require.Len(t, resp.Files, 1)
	assert.Equal(t, "Owned", resp.Files[0].Name)

	w = h.getJSON("/api/users/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "profile not found", decode[map[string]any](t, w)["error"])
}

func TestSearchUsers(t *testing.T) {
	h := newHarness(t)
	h.member(t, "a@example.com", "alice")
	h.member(t, "b@example.com", "malice")
	h.member(t, "c@example.com", "bob")

	w := h.getJSON("/api/users?username=LIC", "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[[]models.Profile](t, w)
	assert.Len(t, got, 2)

	w = h.getJSON("/api/users?username=", "")
	assert.Empty(t, decode[[]models.Profile](t, w))
}

func TestUpdateProfile(t *testing.T) {
	h := newHarness(t)
	_, token := h.member(t, "margaret@example.com", "margaret")

	w := h.sendJSON(http.MethodPatch, "/api/profile", map[string]string{"username": "mh"}, token)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "username", decode[map[string]any](t, w)["field"])

	w = h.sendJSON(http.MethodPatch, "/api/profile", map[string]string{"username": "  mhamilton ", "lastName": "Hamilton"}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[map[string]any](t, w)
	assert.Equal(t, "mhamilton", got["username"])
	assert.Equal(t, "Test", got["firstName"])
	assert.Equal(t, "Hamilton", got["lastName"])

	w = h.sendJSON(http.MethodPatch, "/api/profile", map[string]string{"username": "nobody"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStatsAndRecent(t *testing.T) {
	h := newHarness(t)
	h.member(t, "x@example.com", "xavier")
	for i, d := range []string{"01", "02", "03", "04", "05", "06"} {
		seedFile(t, h, "F"+d, "Docs", "2024-01-"+d+"T00:00:00.000Z", int64(i))
	}

	w := h.getJSON("/api/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[map[string]any](t, w)
	assert.EqualValues(t, 1, stats["userCount"])
	assert.EqualValues(t, 6, stats["fileCount"])

	w = h.getJSON("/api/recent", "")
	got := decode[[]models.File](t, w)
	require.Len(t, got, 5)
	assert.Equal(t, "F06", got[0].Name)
	assert.Equal(t, "F02", got[4].Name)
}
