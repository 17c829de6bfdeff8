package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"codecommunity/internal/auth"
	"codecommunity/internal/handlers"
	"codecommunity/internal/models"
	"codecommunity/internal/router"
	"codecommunity/internal/storage"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type harness struct {
	t       *testing.T
	url     string
	store   *storage.MemStorage
	session string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := storage.NewMemStorage()
	deps := &handlers.Deps{Store: store, Tokens: auth.NewTokens("k", time.Hour), Log: zap.NewNop()}
	srv := httptest.NewServer(router.New(router.Options{SessionSecret: "s"}, deps))
	t.Cleanup(srv.Close)
	return &harness{t: t, url: srv.URL, store: store, session: filepath.Join(t.TempDir(), "session.json")}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--server", h.url, "--session", h.session))
	err := cmd.Execute()
	return out.String(), err
}

func TestRegisterWhoamiLogout(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in")

	out, err = h.run("register", "--username", "sarah", "--email", "sarah@example.com", "--password", "secret123")
	require.NoError(t, err)
	assert.Contains(t, out, "logged in as sarah")

	out, err = h.run("whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "sarah <sarah@example.com>")

	_, err = h.run("logout")
	require.NoError(t, err)
	out, err = h.run("whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in")

	out, err = h.run("login", "--email", "sarah@example.com", "--password", "secret123")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as sarah")

	_, err = h.run("login", "--email", "sarah@example.com", "--password", "wrongpass")
	assert.ErrorContains(t, err, "Invalid credentials")
}

func TestFeedLikeFollow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mike, err := h.store.CreateUser(ctx, models.NewUser{Username: "mike", Email: "mike@example.com", Password: "x"})
	require.NoError(t, err)
	article, err := h.store.CreateArticle(ctx, models.NewArticle{Title: "Go generics", Content: "c", AuthorID: mike.ID, Tags: []string{"go"}, Published: true})
	require.NoError(t, err)
	_, err = h.store.CreateArticle(ctx, models.NewArticle{Title: "Secret draft", Content: "c", AuthorID: mike.ID})
	require.NoError(t, err)

	_, err = h.run("like", article.ID)
	assert.ErrorContains(t, err, "not logged in")

	_, err = h.run("register", "--username", "sarah", "--email", "sarah@example.com", "--password", "secret123")
	require.NoError(t, err)

	out, err := h.run("feed", "--sort", "latest")
	require.NoError(t, err)
	assert.Contains(t, out, "Go generics")
	assert.NotContains(t, out, "Secret draft")

	out, err = h.run("feed", "--drafts", "--tag", "go")
	require.NoError(t, err)
	assert.NotContains(t, out, "Secret draft")

	out, err = h.run("like", article.ID)
	require.NoError(t, err)
	assert.Contains(t, out, `Liked "Go generics" (1 likes)`)

	out, err = h.run("follow", "mike")
	require.NoError(t, err)
	assert.Contains(t, out, "Now following mike")

	out, err = h.run("feed", "--sort", "following")
	require.NoError(t, err)
	assert.Contains(t, out, "♥ Go generics")

	out, err = h.run("follow", "mike")
	require.NoError(t, err)
	assert.Contains(t, out, "Unfollowed mike")
}

func TestSeedCommand(t *testing.T) {
	h := newHarness(t)
	out, err := h.run("seed", "--users", "2", "--articles", "2", "--seed", "42")
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded 2 users and 4 articles")

	articles, err := h.store.GetArticles(context.Background(), storage.ArticleFilter{})
	require.NoError(t, err)
	assert.Len(t, articles, 4)
}

func TestFakeDataIsDeterministic(t *testing.T) {
	a := fakeArticle(gofakeit.New(7))
	b := fakeArticle(gofakeit.New(7))
	assert.Equal(t, a, b)
	assert.NotEmpty(t, a.Title)
	assert.NotEmpty(t, a.Tags)

	u := fakeUser(gofakeit.New(7))
	assert.GreaterOrEqual(t, len(u.Password), 6)
	assert.Contains(t, u.Email, "@")
}
