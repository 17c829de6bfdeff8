package storage

import (
	"context"
	"os"
	"testing"

	"codecommunity/internal/db"
	"codecommunity/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// 需要真实 PostgreSQL：TEST_DATABASE_URL=postgres://... go test ./internal/storage
func newGormTestStore(t *testing.T) *GormStorage {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	require.NoError(t, conn.Exec("TRUNCATE users, articles, comments, likes, follows, tags").Error)
	return NewGormStorage(conn)
}

func TestGormUserUniqueness(t *testing.T) {
	s := newGormTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, models.NewUser{Username: "a", Email: "a@example.com", Password: "x"})
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, models.NewUser{Username: "b", Email: "a@example.com", Password: "x"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = s.GetUser(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormArticleLifecycle(t *testing.T) {
	s := newGormTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, models.NewUser{Username: "a", Email: "a@example.com", Password: "x"})
	require.NoError(t, err)

	a, err := s.CreateArticle(ctx, models.NewArticle{
		Title: "Learning React", Content: "hooks", AuthorID: u.ID, Tags: []string{"react", "webdev"}, Published: true,
	})
	require.NoError(t, err)
	_, err = s.CreateArticle(ctx, models.NewArticle{Title: "Draft", Content: "wip", AuthorID: u.ID})
	require.NoError(t, err)

	popular, err := s.GetPopularTags(ctx, 1)
	require.NoError(t, err)
	require.Len(t, popular, 1)
	assert.Equal(t, 1, popular[0].ArticlesCount)

	published, err := s.GetArticles(ctx, ArticleFilter{Published: boolPtr(true)})
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Equal(t, a.ID, published[0].ID)

	byTag, err := s.GetArticles(ctx, ArticleFilter{Tag: "react"})
	require.NoError(t, err)
	assert.Len(t, byTag, 1)

	search, err := s.GetArticles(ctx, ArticleFilter{Search: "REACT"})
	require.NoError(t, err)
	assert.Len(t, search, 1)

	res, err := s.ToggleLike(ctx, u.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LikeResult{Liked: true, LikesCount: 1}, res)
	res, err = s.ToggleLike(ctx, u.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LikeResult{Liked: false, LikesCount: 0}, res)

	ok, err := s.DeleteArticle(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	tags, err := s.GetTags(ctx)
	require.NoError(t, err)
	for _, tag := range tags {
		assert.Zero(t, tag.ArticlesCount, tag.Name)
	}
}

func TestGormToggleFollow(t *testing.T) {
	s := newGormTestStore(t)
	ctx := context.Background()

	a, _ := s.CreateUser(ctx, models.NewUser{Username: "a", Email: "a@example.com", Password: "x"})
	b, _ := s.CreateUser(ctx, models.NewUser{Username: "b", Email: "b@example.com", Password: "x"})

	res, err := s.ToggleFollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, res.Following)

	followers, err := s.GetFollowers(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, a.ID, followers[0].ID)

	res, err = s.ToggleFollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, res.Following)
}
