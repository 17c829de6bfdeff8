package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"codecommunity/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tickingClock 每次调用前进一秒，保证创建时间严格递增
func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newTestStore(t *testing.T) (*MemStorage, *models.User) {
	t.Helper()
	s := NewMemStorage(WithClock(tickingClock()))
	u, err := s.CreateUser(context.Background(), models.NewUser{
		Username: "sarah_dev",
		Email:    "sarah@example.com",
		Password: "hash",
	})
	require.NoError(t, err)
	return s, u
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func tagCount(t *testing.T, s Storage, name string) int {
	t.Helper()
	tags, err := s.GetTags(context.Background())
	require.NoError(t, err)
	for _, tag := range tags {
		if tag.Name == name {
			return tag.ArticlesCount
		}
	}
	return -1
}

func TestCreateUserDefaults(t *testing.T) {
	s, u := newTestStore(t)
	ctx := context.Background()

	assert.NotEmpty(t, u.ID)
	assert.Nil(t, u.Bio)
	assert.Nil(t, u.Website)
	assert.False(t, u.CreatedAt.IsZero())

	byEmail, err := s.GetUserByEmail(ctx, "sarah@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	byName, err := s.GetUserByUsername(ctx, "sarah_dev")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)

	_, err = s.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateUserMergesPresentFields(t *testing.T) {
	s, u := newTestStore(t)
	ctx := context.Background()

	updated, err := s.UpdateUser(ctx, u.ID, models.UserUpdate{Bio: strPtr("Gopher"), Location: strPtr("Berlin")})
	require.NoError(t, err)
	assert.Equal(t, "Gopher", *updated.Bio)
	assert.Equal(t, "Berlin", *updated.Location)
	assert.Equal(t, "sarah_dev", updated.Username)
	assert.Equal(t, "hash", updated.Password)

	_, err = s.UpdateUser(ctx, "missing", models.UserUpdate{Bio: strPtr("x")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	s, u := newTestStore(t)
	ctx := context.Background()

	u.Username = "mutated"
	stored, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "sarah_dev", stored.Username)

	a, err := s.CreateArticle(ctx, models.NewArticle{Title: "T", Content: "C", AuthorID: u.ID, Tags: []string{"go"}})
	require.NoError(t, err)
	a.Tags[0] = "mutated"
	got, err := s.GetArticle(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"go"}, got.Tags)
}

func TestCreateArticleDefaultsAndTagCounts(t *testing.T) {
	s, u := newTestStore(t)
	ctx := context.Background()
	_, _ = s.SeedTag(ctx, "react", "", "#61dafb")

	a, err := s.CreateArticle(ctx, models.NewArticle{
		Title:    "Hooks",
		Content:  "useState everywhere",
		AuthorID: u.ID,
		Tags:     []string{"react", "webdev", "react", " "},
	})
	require.NoError(t, err)

	assert.False(t, a.Published)
	assert.Zero(t, a.Likes)
	assert.Zero(t, a.Views)
	assert.Nil(t, a.Excerpt)
	assert.Nil(t, a.CoverImage)
	assert.Equal(t, []string{"react", "webdev"}, a.Tags)
	assert.Equal(t, a.CreatedAt, a.UpdatedAt)

	assert.Equal(t, 1, tagCount(t, s, "react"))
	// 未知标签自动创建
	assert.Equal(t, 1, tagCount(t, s, "webdev"))
}

func TestDeleteArticleDecrementsTagsAndCascades(t *testing.T) {
	s, u := newTestStore(t)
	ctx := context.Background()

	a, err := s.CreateArticle(ctx, models.NewArticle{Title: "T", Content: "C", AuthorID: u.ID, Tags: []string{"go", "db"}})
	require.NoError(t, err)
	_, err = s.CreateComment(ctx, models.NewComment{Content: "nice", ArticleID: a.ID, AuthorID: u.ID})
	require.NoError(t, err)
	_, err = s.ToggleLike(ctx, u.ID, a.ID)
	require.NoError(t, err)
	require.Equal(t, 1, tagCount(t, s, "go"))

	ok, err := s.DeleteArticle(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, 0, tagCount(t, s, "go"))
	assert.Equal(t, 0, tagCount(t, s, "db"))

	comments, err := s.GetCommentsByArticleID(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)
	likes, err := s.GetUserLikes(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, likes)

	ok, err = s.DeleteArticle(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateArticleAdjustsTagsAndTimestamp(t *testing.T) {
	s, u := newTestStore(t)
	ctx := context.Background()

	a, err := s.CreateArticle(ctx, models.NewArticle{Title: "T", Content: "C", AuthorID: u.ID, Tags: []string{"go", "db"}})
	require.NoError(t, err)

	tags := []string{"db", "cloud"}
	updated, err := s.UpdateArticle(ctx, a.ID, models.ArticleUpdate{
		Title:     strPtr("New title"),
		Tags:      &tags,
		Published: boolPtr(true),
	})
	require.NoError(t, err)

	assert.Equal(t, "New title", updated.Title)
	assert.Equal(t, "C", updated.Content)
	assert.True(t, updated.Published)
	assert.True(t, updated.UpdatedAt.After(a.UpdatedAt))

	assert.Equal(t, 0, tagCount(t, s, "go"))
	assert.Equal(t, 1, tagCount(t, s, "db"))
	assert.Equal(t, 1, tagCount(t, s, "cloud"))

	// 取消发布不影响计数
	_, err = s.UpdateArticle(ctx, a.ID, models.ArticleUpdate{Published: boolPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, 1, tagCount(t, s, "db"))

	_, err = s.UpdateArticle(ctx, "missing", models.ArticleUpdate{Title: strPtr("x")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetArticlesFilters(t *testing.T) {
	s, u := newTestStore(t)
	ctx := context.Background()
	other, err := s.CreateUser(ctx, models.NewUser{Username: "mike", Email: "mike@example.com", Password: "x"})
	require.NoError(t, err)

	reactTitle, _ := s.CreateArticle(ctx, models.NewArticle{Title: "Learning React", Content: "hooks", AuthorID: u.ID, Tags: []string{"react"}, Published: true})
	reactBody, _ := s.CreateArticle(ctx, models.NewArticle{Title: "Frontend notes", Content: "Why I like REACT", AuthorID: other.ID, Published: true})
	draft, _ := s.CreateArticle(ctx, models.NewArticle{Title: "Draft about react", Content: "wip", AuthorID: u.ID})
	goPost, _ := s.CreateArticle(ctx, models.NewArticle{Title: "Go channels", Content: "select", AuthorID: other.ID, Tags: []string{"go"}, Published: true})

	ids := func(list []models.ArticleWithAuthor) []string {
		out := make([]string, len(list))
		for i, a := range list {
			out[i] = a.ID
		}
		return out
	}

	all, err := s.GetArticles(ctx, ArticleFilter{})
	require.NoError(t, err)
	// 按创建时间倒序
	assert.Equal(t, []string{goPost.ID, draft.ID, reactBody.ID, reactTitle.ID}, ids(all))

	published, err := s.GetArticles(ctx, ArticleFilter{Published: boolPtr(true)})
	require.NoError(t, err)
	assert.NotContains(t, ids(published), draft.ID)
	for _, a := range published {
		assert.True(t, a.Published)
	}

	drafts, err := s.GetArticles(ctx, ArticleFilter{Published: boolPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, []string{draft.ID}, ids(drafts))

	search, err := s.GetArticles(ctx, ArticleFilter{Search: "react"})
	require.NoError(t, err)
	assert.Equal(t, []string{draft.ID, reactBody.ID, reactTitle.ID}, ids(search))

	byAuthor, err := s.GetArticles(ctx, ArticleFilter{AuthorID: other.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{goPost.ID, reactBody.ID}, ids(byAuthor))

	byTag, err := s.GetArticles(ctx, ArticleFilter{Tag: "go"})
	require.NoError(t, err)
	assert.Equal(t, []string{goPost.ID}, ids(byTag))

	combined, err := s.GetArticles(ctx, ArticleFilter{Search: "REACT", Published: boolPtr(true), AuthorID: u.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{reactTitle.ID}, ids(combined))
}

func TestGetArticleDecoratesAuthorAndComments(t *testing.T) {
	s, u := newTestStore(t)
	ctx := context.Background()

	a, err := s.CreateArticle(ctx, models.NewArticle{Title: "T", Content: "C", AuthorID: u.ID})
	require.NoError(t, err)
	_, _ = s.CreateComment(ctx, models.NewComment{Content: "one", ArticleID: a.ID, AuthorID: u.ID})
	_, _ = s.CreateComment(ctx, models.NewComment{Content: "two", ArticleID: a.ID, AuthorID: u.ID})

	got, err := s.GetArticle(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.Author.ID)
	assert.Equal(t, 2, got.CommentsCount)

	_, err = s.GetArticle(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArticlesWithMissingAuthorAreHidden(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	orphan, err := s.CreateArticle(ctx, models.NewArticle{Title: "T", Content: "C", AuthorID: "ghost"})
	require.NoError(t, err)

	_, err = s.GetArticle(ctx, orphan.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	list, err := s.GetArticles(ctx, ArticleFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestIncrementArticleViews(t *testing.T) {
	s, u := newTestStore(t)
	ctx := context.Background()
	a, _ := s.CreateArticle(ctx, models.NewArticle{Title: "T", Content: "C", AuthorID: u.ID})

	require.NoError(t, s.IncrementArticleViews(ctx, a.ID, 3))
	got, _ := s.GetArticle(ctx, a.ID)
	assert.Equal(t, 3, got.Views)

	assert.ErrorIs(t, s.IncrementArticleViews(ctx, "missing", 1), ErrNotFound)
}

func TestCommentsOrderedOldestFirst(t *testing.T) {
	s, u := newTestStore(t)
	ctx := context.Background()
	a, _ := s.CreateArticle(ctx, models.NewArticle{Title: "T", Content: "C", AuthorID: u.ID})

	first, _ := s.CreateComment(ctx, models.NewComment{Content: "first", ArticleID: a.ID, AuthorID: u.ID})
	second, _ := s.CreateComment(ctx, models.NewComment{Content: "second", ArticleID: a.ID, AuthorID: u.ID, ParentID: &first.ID})

	comments, err := s.GetCommentsByArticleID(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, first.ID, comments[0].ID)
	assert.Equal(t, second.ID, comments[1].ID)
	assert.Nil(t, comments[0].ParentID)
	assert.Equal(t, first.ID, *comments[1].ParentID)
	assert.Equal(t, "sarah_dev", comments[0].Author.Username)

	ok, err := s.DeleteComment(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = s.GetComment(ctx, first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	ok, _ = s.DeleteComment(ctx, first.ID)
	assert.False(t, ok)
}

func TestToggleLikeTwiceRestoresState(t *testing.T) {
	s, u := newTestStore(t)
	ctx := context.Background()
	a, _ := s.CreateArticle(ctx, models.NewArticle{Title: "T", Content: "C", AuthorID: u.ID})

	res, err := s.ToggleLike(ctx, u.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LikeResult{Liked: true, LikesCount: 1}, res)

	likes, _ := s.GetUserLikes(ctx, u.ID)
	assert.Equal(t, []string{a.ID}, likes)

	res, err = s.ToggleLike(ctx, u.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LikeResult{Liked: false, LikesCount: 0}, res)

	likes, _ = s.GetUserLikes(ctx, u.ID)
	assert.Empty(t, likes)

	_, err = s.ToggleLike(ctx, u.ID, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestToggleLikeConcurrent(t *testing.T) {
	s, u := newTestStore(t)
	ctx := context.Background()
	a, _ := s.CreateArticle(ctx, models.NewArticle{Title: "T", Content: "C", AuthorID: u.ID})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.ToggleLike(ctx, u.ID, a.ID)
		}()
	}
	wg.Wait()

	// 偶数次切换后回到未点赞
	got, _ := s.GetArticle(ctx, a.ID)
	assert.Equal(t, 0, got.Likes)
	likes, _ := s.GetUserLikes(ctx, u.ID)
	assert.Empty(t, likes)
}

func TestToggleFollow(t *testing.T) {
	s, u := newTestStore(t)
	ctx := context.Background()
	mike, _ := s.CreateUser(ctx, models.NewUser{Username: "mike", Email: "mike@example.com", Password: "x"})
	alex, _ := s.CreateUser(ctx, models.NewUser{Username: "alex", Email: "alex@example.com", Password: "x"})

	res, err := s.ToggleFollow(ctx, u.ID, mike.ID)
	require.NoError(t, err)
	assert.True(t, res.Following)
	_, _ = s.ToggleFollow(ctx, alex.ID, mike.ID)

	followers, _ := s.GetFollowers(ctx, mike.ID)
	require.Len(t, followers, 2)
	assert.Equal(t, u.ID, followers[0].ID)
	assert.Equal(t, alex.ID, followers[1].ID)

	following, _ := s.GetFollowing(ctx, u.ID)
	require.Len(t, following, 1)
	assert.Equal(t, mike.ID, following[0].ID)

	res, err = s.ToggleFollow(ctx, u.ID, mike.ID)
	require.NoError(t, err)
	assert.False(t, res.Following)
	following, _ = s.GetFollowing(ctx, u.ID)
	assert.Empty(t, following)
}

func TestTags(t *testing.T) {
	s, u := newTestStore(t)
	ctx := context.Background()
	for _, name := range []string{"python", "ai", "react", "go"} {
		_, _ = s.SeedTag(ctx, name, "", "#000000")
	}
	_, _ = s.CreateArticle(ctx, models.NewArticle{Title: "1", Content: "c", AuthorID: u.ID, Tags: []string{"react", "go"}})
	_, _ = s.CreateArticle(ctx, models.NewArticle{Title: "2", Content: "c", AuthorID: u.ID, Tags: []string{"react", "ai"}})
	_, _ = s.CreateArticle(ctx, models.NewArticle{Title: "3", Content: "c", AuthorID: u.ID, Tags: []string{"react"}})

	all, err := s.GetTags(ctx)
	require.NoError(t, err)
	names := make([]string, len(all))
	for i, tag := range all {
		names[i] = tag.Name
	}
	assert.Equal(t, []string{"ai", "go", "python", "react"}, names)

	popular, err := s.GetPopularTags(ctx, 3)
	require.NoError(t, err)
	require.Len(t, popular, 3)
	assert.Equal(t, "react", popular[0].Name)
	assert.Equal(t, 3, popular[0].ArticlesCount)
	assert.Equal(t, "ai", popular[1].Name)
	assert.Equal(t, "go", popular[2].Name)

	many, _ := s.GetPopularTags(ctx, 10)
	assert.Len(t, many, 4)
	none, _ := s.GetPopularTags(ctx, 0)
	assert.Empty(t, none)

	again, err := s.CreateTag(ctx, "react")
	require.NoError(t, err)
	assert.Equal(t, 3, again.ArticlesCount)
	fresh, err := s.CreateTag(ctx, "rust")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultTagColor, *fresh.Color)
	assert.Zero(t, fresh.ArticlesCount)
}

func TestReconcileTagCounts(t *testing.T) {
	s, u := newTestStore(t)
	ctx := context.Background()
	_, _ = s.CreateArticle(ctx, models.NewArticle{Title: "1", Content: "c", AuthorID: u.ID, Tags: []string{"go"}})

	// 人为制造漂移
	s.mu.Lock()
	s.findTag("go").ArticlesCount = 7
	s.mu.Unlock()
	_, _ = s.SeedTag(ctx, "unused", "", "#fff")

	changed, err := s.ReconcileTagCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	assert.Equal(t, 1, tagCount(t, s, "go"))

	changed, _ = s.ReconcileTagCounts(ctx)
	assert.Zero(t, changed)
}
