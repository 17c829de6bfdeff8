package storage

import (
	"context"
	"errors"

	"codecommunity/internal/models"
)

var (
	// ErrNotFound 记录不存在，路由层转换为 404
	ErrNotFound = errors.New("storage: record not found")
	// ErrConflict 唯一约束冲突（用户名/邮箱/标签名）
	ErrConflict = errors.New("storage: unique constraint violated")
)

// DefaultPopularTagsLimit mirrors GET /api/tags/popular without a limit.
const DefaultPopularTagsLimit = 5

// ArticleFilter 文章列表过滤条件，零值字段不参与过滤
type ArticleFilter struct {
	AuthorID  string
	Tag       string
	Search    string
	Published *bool
}

// Storage is the source of truth for every entity. Getters and updaters report a
// missing record with ErrNotFound; deleters report it with false.
type Storage interface {
	// Users
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, in models.NewUser) (*models.User, error)
	UpdateUser(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error)

	// Articles
	GetArticle(ctx context.Context, id string) (*models.ArticleWithAuthor, error)
	GetArticles(ctx context.Context, f ArticleFilter) ([]models.ArticleWithAuthor, error)
	CreateArticle(ctx context.Context, in models.NewArticle) (*models.Article, error)
	UpdateArticle(ctx context.Context, id string, upd models.ArticleUpdate) (*models.Article, error)
	DeleteArticle(ctx context.Context, id string) (bool, error)
	IncrementArticleViews(ctx context.Context, id string, delta int) error

	// Comments
	GetComment(ctx context.Context, id string) (*models.Comment, error)
	GetCommentsByArticleID(ctx context.Context, articleID string) ([]models.CommentWithAuthor, error)
	CreateComment(ctx context.Context, in models.NewComment) (*models.Comment, error)
	DeleteComment(ctx context.Context, id string) (bool, error)

	// Likes
	ToggleLike(ctx context.Context, userID, articleID string) (models.LikeResult, error)
	GetUserLikes(ctx context.Context, userID string) ([]string, error)

	// Follows
	ToggleFollow(ctx context.Context, followerID, followingID string) (models.FollowResult, error)
	GetFollowers(ctx context.Context, userID string) ([]models.User, error)
	GetFollowing(ctx context.Context, userID string) ([]models.User, error)

	// Tags
	GetTags(ctx context.Context) ([]models.Tag, error)
	GetPopularTags(ctx context.Context, limit int) ([]models.Tag, error)
	CreateTag(ctx context.Context, name string) (*models.Tag, error)
	// SeedTag creates a tag with presentation fields; an existing tag is returned unchanged.
	SeedTag(ctx context.Context, name, description, color string) (*models.Tag, error)
	ReconcileTagCounts(ctx context.Context) (int, error)
}
