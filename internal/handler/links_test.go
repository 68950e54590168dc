package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snipd/snipd/internal/auth"
	"github.com/snipd/snipd/internal/db"
	"github.com/snipd/snipd/internal/repo"
	"github.com/snipd/snipd/internal/shortener"
)

func newTestApp(t *testing.T) *echo.Echo {
	t.Helper()

	database, err := db.Init(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	credentials := []auth.Credentials{
		{Email: "alice@example.com", Password: "alice-pw"},
		{Email: "bob@example.com", Password: "bob-pw"},
	}

	usersRepo := repo.NewUsersRepo(database)
	linksRepo := repo.NewShortLinksRepo(database)
	service := shortener.NewService(linksRepo)
	authenticator := auth.NewAuthenticator(credentials, usersRepo, "test-secret")

	authHandler := NewAuthHandler(authenticator)
	linkHandler := NewLinkHandler(service)

	e := echo.New()
	e.POST("/login", authHandler.Login)
	e.GET("/logout", authHandler.Logout)

	api := e.Group("/api/links", auth.NewMiddleware(authenticator))
	api.POST("", linkHandler.CreateLink)
	api.GET("", linkHandler.ListLinks)
	api.PATCH("/:id", linkHandler.UpdateLink)
	api.DELETE("/:id", linkHandler.DeleteLink)

	e.GET("/api/resolve", linkHandler.ResolveLink)
	e.GET("/:label", linkHandler.Redirect)

	return e
}

func doJSON(t *testing.T, e *echo.Echo, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, e *echo.Echo, email, password string) string {
	t.Helper()

	rec := doJSON(t, e, http.MethodPost, "/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func createLink(t *testing.T, e *echo.Echo, token string, body CreateLinkRequest) string {
	t.Helper()

	rec := doJSON(t, e, http.MethodPost, "/api/links", token, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp CreateLinkResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	return resp.ID
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	e := newTestApp(t)

	rec := doJSON(t, e, http.MethodPost, "/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateRequiresAuth(t *testing.T) {
	e := newTestApp(t)

	rec := doJSON(t, e, http.MethodPost, "/api/links", "", CreateLinkRequest{URL: "example.com", RandomLabel: true})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateAndRedirect(t *testing.T) {
	e := newTestApp(t)
	token := login(t, e, "alice@example.com", "alice-pw")

	createLink(t, e, token, CreateLinkRequest{URL: "openai.com", Label: "gpt"})

	rec := doJSON(t, e, http.MethodGet, "/gpt", "", nil)
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "https://openai.com", rec.Header().Get(echo.HeaderLocation))
}

func TestCreateValidation(t *testing.T) {
	e := newTestApp(t)
	token := login(t, e, "alice@example.com", "alice-pw")

	tests := []struct {
		name string
		body CreateLinkRequest
		want int
	}{
		{name: "http destination", body: CreateLinkRequest{URL: "http://example.com", Label: "abc"}, want: http.StatusBadRequest},
		{name: "bad url", body: CreateLinkRequest{URL: "nope", Label: "abc"}, want: http.StatusBadRequest},
		{name: "missing label", body: CreateLinkRequest{URL: "example.com"}, want: http.StatusBadRequest},
		{name: "bad label", body: CreateLinkRequest{URL: "example.com", Label: "A_b"}, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, e, http.MethodPost, "/api/links", token, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestCreateDuplicateLabelConflicts(t *testing.T) {
	e := newTestApp(t)
	token := login(t, e, "alice@example.com", "alice-pw")

	createLink(t, e, token, CreateLinkRequest{URL: "a.example.com", Label: "dup"})

	rec := doJSON(t, e, http.MethodPost, "/api/links", token, CreateLinkRequest{URL: "b.example.com", Label: "dup"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListShowsOnlyOwnLinks(t *testing.T) {
	e := newTestApp(t)
	aliceToken := login(t, e, "alice@example.com", "alice-pw")
	bobToken := login(t, e, "bob@example.com", "bob-pw")

	createLink(t, e, aliceToken, CreateLinkRequest{URL: "one.example.com", Label: "one"})
	createLink(t, e, bobToken, CreateLinkRequest{URL: "two.example.com", Label: "two"})

	rec := doJSON(t, e, http.MethodGet, "/api/links", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListLinksResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Links, 1)
	assert.Equal(t, "one", resp.Links[0].Label)
}

func TestUpdateOwnership(t *testing.T) {
	e := newTestApp(t)
	aliceToken := login(t, e, "alice@example.com", "alice-pw")
	bobToken := login(t, e, "bob@example.com", "bob-pw")

	id := createLink(t, e, aliceToken, CreateLinkRequest{URL: "example.com", Label: "mine"})

	rec := doJSON(t, e, http.MethodPatch, "/api/links/"+id, bobToken, UpdateLinkRequest{URL: "evil.example.com"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, e, http.MethodPatch, "/api/links/"+id, aliceToken, UpdateLinkRequest{URL: "new.example.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp LinkResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "https://new.example.com", resp.URL)
	assert.Equal(t, "mine", resp.Label)
}

func TestUpdateMissingLink(t *testing.T) {
	e := newTestApp(t)
	token := login(t, e, "alice@example.com", "alice-pw")

	rec := doJSON(t, e, http.MethodPatch, "/api/links/no-such-id", token, UpdateLinkRequest{URL: "example.com"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteOwnership(t *testing.T) {
	e := newTestApp(t)
	aliceToken := login(t, e, "alice@example.com", "alice-pw")
	bobToken := login(t, e, "bob@example.com", "bob-pw")

	id := createLink(t, e, aliceToken, CreateLinkRequest{URL: "example.com", Label: "gone"})

	rec := doJSON(t, e, http.MethodDelete, "/api/links/"+id, bobToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, e, http.MethodDelete, "/api/links/"+id, aliceToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/gone", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResolveEndpoint(t *testing.T) {
	e := newTestApp(t)
	token := login(t, e, "alice@example.com", "alice-pw")

	createLink(t, e, token, CreateLinkRequest{URL: "openai.com", Label: "gpt"})

	rec := doJSON(t, e, http.MethodGet, "/api/resolve?label=gpt", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ResolveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "https://openai.com", resp.URL)

	rec = doJSON(t, e, http.MethodGet, "/api/resolve?label=nonexistent-label", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/api/resolve", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRandomLabelCreation(t *testing.T) {
	e := newTestApp(t)
	token := login(t, e, "alice@example.com", "alice-pw")

	for i := range 5 {
		body := CreateLinkRequest{URL: fmt.Sprintf("site%d.example.com", i), RandomLabel: true}
		createLink(t, e, token, body)
	}

	rec := doJSON(t, e, http.MethodGet, "/api/links", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListLinksResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Links, 5)

	seen := map[string]bool{}
	for _, link := range resp.Links {
		assert.Regexp(t, `^[a-z0-9]{3}$`, link.Label)
		assert.False(t, seen[link.Label])
		seen[link.Label] = true
	}
}
