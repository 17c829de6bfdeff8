package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"codecommunity/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStorage persists entities through GORM (PostgreSQL in production).
// Toggles and tag-count maintenance run inside a transaction.
type GormStorage struct {
	db *gorm.DB
}

func NewGormStorage(db *gorm.DB) *GormStorage {
	return &GormStorage{db: db}
}

var _ Storage = (*GormStorage)(nil)

// translate 把 gorm 的错误映射为存储层的哨兵错误
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	default:
		return err
	}
}

// ---- Users ----

func (s *GormStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStorage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStorage) CreateUser(ctx context.Context, in models.NewUser) (*models.User, error) {
	u := models.User{
		ID:        uuid.NewString(),
		Username:  in.Username,
		Email:     in.Email,
		Password:  in.Password,
		Bio:       emptyToNil(in.Bio),
		Avatar:    emptyToNil(in.Avatar),
		Location:  emptyToNil(in.Location),
		Website:   emptyToNil(in.Website),
		CreatedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", translate(err))
	}
	return &u, nil
}

func (s *GormStorage) UpdateUser(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&u, "id = ?", id).Error; err != nil {
			return err
		}
		upd.Apply(&u)
		return tx.Save(&u).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// ---- Articles ----

func (s *GormStorage) GetArticle(ctx context.Context, id string) (*models.ArticleWithAuthor, error) {
	var a models.Article
	if err := s.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	decorated, err := s.decorate(ctx, []models.Article{a})
	if err != nil {
		return nil, err
	}
	if len(decorated) == 0 {
		return nil, ErrNotFound
	}
	return &decorated[0], nil
}

func (s *GormStorage) GetArticles(ctx context.Context, f ArticleFilter) ([]models.ArticleWithAuthor, error) {
	query := s.db.WithContext(ctx).Model(&models.Article{})
	if f.Published != nil {
		query = query.Where("published = ?", *f.Published)
	}
	if f.AuthorID != "" {
		query = query.Where("author_id = ?", f.AuthorID)
	}
	if f.Tag != "" {
		tagJSON, _ := json.Marshal([]string{f.Tag})
		query = query.Where("tags @> ?::jsonb", string(tagJSON))
	}
	if f.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(f.Search)) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(content) LIKE ?", pattern, pattern)
	}

	var articles []models.Article
	if err := query.Order("created_at DESC").Find(&articles).Error; err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	return s.decorate(ctx, articles)
}

// decorate 批量填充作者和评论数，作者缺失的文章被丢弃
func (s *GormStorage) decorate(ctx context.Context, articles []models.Article) ([]models.ArticleWithAuthor, error) {
	out := make([]models.ArticleWithAuthor, 0, len(articles))
	if len(articles) == 0 {
		return out, nil
	}

	authorIDs := make([]string, 0, len(articles))
	articleIDs := make([]string, 0, len(articles))
	for _, a := range articles {
		authorIDs = append(authorIDs, a.AuthorID)
		articleIDs = append(articleIDs, a.ID)
	}

	var authors []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", authorIDs).Find(&authors).Error; err != nil {
		return nil, fmt.Errorf("load authors: %w", err)
	}
	authorMap := make(map[string]models.User, len(authors))
	for _, u := range authors {
		authorMap[u.ID] = u
	}

	type countResult struct {
		ArticleID string
		Count     int
	}
	var counts []countResult
	if err := s.db.WithContext(ctx).Model(&models.Comment{}).
		Select("article_id, COUNT(*) as count").
		Where("article_id IN ?", articleIDs).
		Group("article_id").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("count comments: %w", err)
	}
	countMap := make(map[string]int, len(counts))
	for _, c := range counts {
		countMap[c.ArticleID] = c.Count
	}

	for _, a := range articles {
		author, ok := authorMap[a.AuthorID]
		if !ok {
			continue
		}
		if a.Tags == nil {
			a.Tags = []string{}
		}
		out = append(out, models.ArticleWithAuthor{
			Article:       a,
			Author:        author,
			CommentsCount: countMap[a.ID],
		})
	}
	return out, nil
}

func (s *GormStorage) CreateArticle(ctx context.Context, in models.NewArticle) (*models.Article, error) {
	now := time.Now()
	a := models.Article{
		ID:         uuid.NewString(),
		Title:      in.Title,
		Content:    in.Content,
		Excerpt:    emptyToNil(in.Excerpt),
		CoverImage: emptyToNil(in.CoverImage),
		AuthorID:   in.AuthorID,
		Tags:       models.NormalizeTags(in.Tags),
		Published:  in.Published,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// published 默认值为 false，显式 Select 避免 gorm 忽略零值
		if err := tx.Select("*").Create(&a).Error; err != nil {
			return err
		}
		return adjustTagCounts(tx, a.Tags, 1)
	})
	if err != nil {
		return nil, fmt.Errorf("create article: %w", translate(err))
	}
	return &a, nil
}

func (s *GormStorage) UpdateArticle(ctx context.Context, id string, upd models.ArticleUpdate) (*models.Article, error) {
	var a models.Article
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&a, "id = ?", id).Error; err != nil {
			return err
		}
		before := a.Tags
		upd.Apply(&a)
		a.UpdatedAt = time.Now()
		if err := tx.Save(&a).Error; err != nil {
			return err
		}
		if upd.Tags == nil {
			return nil
		}
		removed, added := diffTags(before, a.Tags)
		if err := adjustTagCounts(tx, removed, -1); err != nil {
			return err
		}
		return adjustTagCounts(tx, added, 1)
	})
	if err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (s *GormStorage) DeleteArticle(ctx context.Context, id string) (bool, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a models.Article
		if err := tx.First(&a, "id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Where("article_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("article_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&a).Error; err != nil {
			return err
		}
		return adjustTagCounts(tx, a.Tags, -1)
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete article: %w", err)
	}
	return true, nil
}

func (s *GormStorage) IncrementArticleViews(ctx context.Context, id string, delta int) error {
	res := s.db.WithContext(ctx).Model(&models.Article{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// adjustTagCounts 在事务内按标签名增减 articles_count，增量为正时缺失的标签会被创建
func adjustTagCounts(tx *gorm.DB, names []string, delta int) error {
	for _, name := range names {
		if delta > 0 {
			if _, err := firstOrCreateTag(tx, name); err != nil {
				return err
			}
		}
		err := tx.Model(&models.Tag{}).
			Where("name = ?", name).
			UpdateColumn("articles_count", gorm.Expr("GREATEST(articles_count + ?, 0)", delta)).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func firstOrCreateTag(tx *gorm.DB, name string) (*models.Tag, error) {
	desc := ""
	color := models.DefaultTagColor
	var tag models.Tag
	err := tx.Where(models.Tag{Name: name}).
		Attrs(models.Tag{ID: uuid.NewString(), Description: &desc, Color: &color}).
		FirstOrCreate(&tag).Error
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

// ---- Comments ----

func (s *GormStorage) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	var c models.Comment
	if err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *GormStorage) GetCommentsByArticleID(ctx context.Context, articleID string) ([]models.CommentWithAuthor, error) {
	var comments []models.Comment
	if err := s.db.WithContext(ctx).
		Where("article_id = ?", articleID).
		Order("created_at ASC").
		Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	out := make([]models.CommentWithAuthor, 0, len(comments))
	if len(comments) == 0 {
		return out, nil
	}
	authorIDs := make([]string, 0, len(comments))
	for _, c := range comments {
		authorIDs = append(authorIDs, c.AuthorID)
	}
	var authors []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", authorIDs).Find(&authors).Error; err != nil {
		return nil, fmt.Errorf("load comment authors: %w", err)
	}
	authorMap := make(map[string]models.User, len(authors))
	for _, u := range authors {
		authorMap[u.ID] = u
	}
	for _, c := range comments {
		if author, ok := authorMap[c.AuthorID]; ok {
			out = append(out, models.CommentWithAuthor{Comment: c, Author: author})
		}
	}
	return out, nil
}

func (s *GormStorage) CreateComment(ctx context.Context, in models.NewComment) (*models.Comment, error) {
	c := models.Comment{
		ID:        uuid.NewString(),
		Content:   in.Content,
		ArticleID: in.ArticleID,
		AuthorID:  in.AuthorID,
		ParentID:  emptyToNil(in.ParentID),
		CreatedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, fmt.Errorf("create comment: %w", translate(err))
	}
	return &c, nil
}

func (s *GormStorage) DeleteComment(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Comment{})
	if res.Error != nil {
		return false, fmt.Errorf("delete comment: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ---- Likes ----

func (s *GormStorage) ToggleLike(ctx context.Context, userID, articleID string) (models.LikeResult, error) {
	var result models.LikeResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var article models.Article
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&article, "id = ?", articleID).Error; err != nil {
			return err
		}

		var existing models.Like
		err := tx.Where("user_id = ? AND article_id = ?", userID, articleID).First(&existing).Error
		switch {
		case err == nil:
			// 已点赞，取消点赞
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
			if err := tx.Model(&article).UpdateColumn("likes", gorm.Expr("GREATEST(likes - 1, 0)")).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			like := models.Like{ID: uuid.NewString(), UserID: userID, ArticleID: articleID, CreatedAt: time.Now()}
			if err := tx.Create(&like).Error; err != nil {
				return err
			}
			if err := tx.Model(&article).UpdateColumn("likes", gorm.Expr("likes + 1")).Error; err != nil {
				return err
			}
			result.Liked = true
		default:
			return err
		}

		var refreshed models.Article
		if err := tx.Select("likes").First(&refreshed, "id = ?", articleID).Error; err != nil {
			return err
		}
		result.LikesCount = refreshed.Likes
		return nil
	})
	if err != nil {
		return models.LikeResult{}, translate(err)
	}
	return result, nil
}

func (s *GormStorage) GetUserLikes(ctx context.Context, userID string) ([]string, error) {
	ids := make([]string, 0)
	if err := s.db.WithContext(ctx).Model(&models.Like{}).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Pluck("article_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list likes: %w", err)
	}
	return ids, nil
}

// ---- Follows ----

func (s *GormStorage) ToggleFollow(ctx context.Context, followerID, followingID string) (models.FollowResult, error) {
	var result models.FollowResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Follow
		err := tx.Where("follower_id = ? AND following_id = ?", followerID, followingID).First(&existing).Error
		switch {
		case err == nil:
			return tx.Delete(&existing).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			result.Following = true
			return tx.Create(&models.Follow{
				ID:          uuid.NewString(),
				FollowerID:  followerID,
				FollowingID: followingID,
				CreatedAt:   time.Now(),
			}).Error
		default:
			return err
		}
	})
	if err != nil {
		return models.FollowResult{}, translate(err)
	}
	return result, nil
}

func (s *GormStorage) GetFollowers(ctx context.Context, userID string) ([]models.User, error) {
	users := make([]models.User, 0)
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Joins("JOIN follows ON follows.follower_id = users.id").
		Where("follows.following_id = ?", userID).
		Order("follows.created_at ASC").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("list followers: %w", err)
	}
	return users, nil
}

func (s *GormStorage) GetFollowing(ctx context.Context, userID string) ([]models.User, error) {
	users := make([]models.User, 0)
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Joins("JOIN follows ON follows.following_id = users.id").
		Where("follows.follower_id = ?", userID).
		Order("follows.created_at ASC").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("list following: %w", err)
	}
	return users, nil
}

// ---- Tags ----

func (s *GormStorage) GetTags(ctx context.Context) ([]models.Tag, error) {
	tags := make([]models.Tag, 0)
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

func (s *GormStorage) GetPopularTags(ctx context.Context, limit int) ([]models.Tag, error) {
	tags := make([]models.Tag, 0)
	if limit <= 0 {
		return tags, nil
	}
	if err := s.db.WithContext(ctx).
		Order("articles_count DESC, name ASC").
		Limit(limit).
		Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("list popular tags: %w", err)
	}
	return tags, nil
}

func (s *GormStorage) CreateTag(ctx context.Context, name string) (*models.Tag, error) {
	tag, err := firstOrCreateTag(s.db.WithContext(ctx), strings.TrimSpace(name))
	if err != nil {
		return nil, fmt.Errorf("create tag: %w", translate(err))
	}
	return tag, nil
}

func (s *GormStorage) SeedTag(ctx context.Context, name, description, color string) (*models.Tag, error) {
	var tag models.Tag
	err := s.db.WithContext(ctx).Where(models.Tag{Name: name}).
		Attrs(models.Tag{ID: uuid.NewString(), Description: &description, Color: &color}).
		FirstOrCreate(&tag).Error
	if err != nil {
		return nil, fmt.Errorf("seed tag: %w", translate(err))
	}
	return &tag, nil
}

func (s *GormStorage) ReconcileTagCounts(ctx context.Context) (int, error) {
	changed := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var articles []models.Article
		if err := tx.Select("id", "tags").Find(&articles).Error; err != nil {
			return err
		}
		counts := make(map[string]int)
		for _, a := range articles {
			for _, name := range a.Tags {
				counts[name]++
			}
		}

		var tags []models.Tag
		if err := tx.Find(&tags).Error; err != nil {
			return err
		}
		for _, tag := range tags {
			want := counts[tag.Name]
			if tag.ArticlesCount == want {
				continue
			}
			if err := tx.Model(&models.Tag{}).Where("id = ?", tag.ID).
				UpdateColumn("articles_count", want).Error; err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("reconcile tag counts: %w", err)
	}
	return changed, nil
}

// escapeLike 转义 LIKE 通配符
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
