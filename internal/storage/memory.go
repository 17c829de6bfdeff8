package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"codecommunity/internal/models"

	"github.com/google/uuid"
)

// MemStorage keeps every entity in process memory, one map per entity keyed by id.
// All methods are safe for concurrent use; toggles run under the write lock.
type MemStorage struct {
	mu       sync.RWMutex
	users    map[string]*models.User
	articles map[string]*models.Article
	comments map[string]*models.Comment
	likes    map[string]*models.Like
	follows  map[string]*models.Follow
	tags     map[string]*models.Tag

	// seq 记录插入顺序，创建时间相同时用于稳定排序
	seq     map[string]uint64
	nextSeq uint64
	now     func() time.Time
}

type MemOption func(*MemStorage)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) MemOption {
	return func(s *MemStorage) { s.now = now }
}

func NewMemStorage(opts ...MemOption) *MemStorage {
	s := &MemStorage{
		users:    make(map[string]*models.User),
		articles: make(map[string]*models.Article),
		comments: make(map[string]*models.Comment),
		likes:    make(map[string]*models.Like),
		follows:  make(map[string]*models.Follow),
		tags:     make(map[string]*models.Tag),
		seq:      make(map[string]uint64),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Storage = (*MemStorage)(nil)

func (s *MemStorage) newID() string {
	id := uuid.NewString()
	s.nextSeq++
	s.seq[id] = s.nextSeq
	return id
}

// ---- Users ----

func (s *MemStorage) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemStorage) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStorage) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStorage) CreateUser(_ context.Context, in models.NewUser) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &models.User{
		ID:        s.newID(),
		Username:  in.Username,
		Email:     in.Email,
		Password:  in.Password,
		Bio:       emptyToNil(in.Bio),
		Avatar:    emptyToNil(in.Avatar),
		Location:  emptyToNil(in.Location),
		Website:   emptyToNil(in.Website),
		CreatedAt: s.now(),
	}
	s.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (s *MemStorage) UpdateUser(_ context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	upd.Apply(u)
	cp := *u
	return &cp, nil
}

// ---- Articles ----

func (s *MemStorage) GetArticle(_ context.Context, id string) (*models.ArticleWithAuthor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.articles[id]
	if !ok {
		return nil, ErrNotFound
	}
	decorated, ok := s.decorate(a)
	if !ok {
		return nil, ErrNotFound
	}
	return &decorated, nil
}

func (s *MemStorage) GetArticles(_ context.Context, f ArticleFilter) ([]models.ArticleWithAuthor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(f.Search)
	out := make([]models.ArticleWithAuthor, 0, len(s.articles))
	for _, a := range s.articles {
		if f.Published != nil && a.Published != *f.Published {
			continue
		}
		if f.AuthorID != "" && a.AuthorID != f.AuthorID {
			continue
		}
		if f.Tag != "" && !a.HasTag(f.Tag) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(a.Title), search) &&
			!strings.Contains(strings.ToLower(a.Content), search) {
			continue
		}
		// 作者不存在的文章直接跳过
		if decorated, ok := s.decorate(a); ok {
			out = append(out, decorated)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return s.seq[out[i].ID] > s.seq[out[j].ID]
	})
	return out, nil
}

// decorate 填充作者和评论数，调用方需持有读锁
func (s *MemStorage) decorate(a *models.Article) (models.ArticleWithAuthor, bool) {
	author, ok := s.users[a.AuthorID]
	if !ok {
		return models.ArticleWithAuthor{}, false
	}
	count := 0
	for _, c := range s.comments {
		if c.ArticleID == a.ID {
			count++
		}
	}
	return models.ArticleWithAuthor{
		Article:       copyArticle(a),
		Author:        *author,
		CommentsCount: count,
	}, true
}

func (s *MemStorage) CreateArticle(_ context.Context, in models.NewArticle) (*models.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	a := &models.Article{
		ID:         s.newID(),
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
	s.articles[a.ID] = a
	s.adjustTagCounts(a.Tags, 1)

	cp := copyArticle(a)
	return &cp, nil
}

func (s *MemStorage) UpdateArticle(_ context.Context, id string, upd models.ArticleUpdate) (*models.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[id]
	if !ok {
		return nil, ErrNotFound
	}
	before := a.Tags
	upd.Apply(a)
	a.UpdatedAt = s.now()
	if upd.Tags != nil {
		removed, added := diffTags(before, a.Tags)
		s.adjustTagCounts(removed, -1)
		s.adjustTagCounts(added, 1)
	}
	cp := copyArticle(a)
	return &cp, nil
}

func (s *MemStorage) DeleteArticle(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[id]
	if !ok {
		return false, nil
	}
	delete(s.articles, id)
	s.adjustTagCounts(a.Tags, -1)

	for cid, c := range s.comments {
		if c.ArticleID == id {
			delete(s.comments, cid)
		}
	}
	for lid, l := range s.likes {
		if l.ArticleID == id {
			delete(s.likes, lid)
		}
	}
	return true, nil
}

func (s *MemStorage) IncrementArticleViews(_ context.Context, id string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[id]
	if !ok {
		return ErrNotFound
	}
	a.Views += delta
	return nil
}

// adjustTagCounts 按标签名调整 articlesCount，delta > 0 时自动创建缺失的标签
func (s *MemStorage) adjustTagCounts(names []string, delta int) {
	for _, name := range names {
		tag := s.findTag(name)
		if tag == nil {
			if delta <= 0 {
				continue
			}
			tag = s.insertTag(name)
		}
		tag.ArticlesCount += delta
		if tag.ArticlesCount < 0 {
			tag.ArticlesCount = 0
		}
	}
}

// ---- Comments ----

func (s *MemStorage) GetComment(_ context.Context, id string) (*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.comments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemStorage) GetCommentsByArticleID(_ context.Context, articleID string) ([]models.CommentWithAuthor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.CommentWithAuthor, 0)
	for _, c := range s.comments {
		if c.ArticleID != articleID {
			continue
		}
		author, ok := s.users[c.AuthorID]
		if !ok {
			continue
		}
		out = append(out, models.CommentWithAuthor{Comment: *c, Author: *author})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return s.seq[out[i].ID] < s.seq[out[j].ID]
	})
	return out, nil
}

func (s *MemStorage) CreateComment(_ context.Context, in models.NewComment) (*models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &models.Comment{
		ID:        s.newID(),
		Content:   in.Content,
		ArticleID: in.ArticleID,
		AuthorID:  in.AuthorID,
		ParentID:  emptyToNil(in.ParentID),
		CreatedAt: s.now(),
	}
	s.comments[c.ID] = c
	cp := *c
	return &cp, nil
}

func (s *MemStorage) DeleteComment(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.comments[id]; !ok {
		return false, nil
	}
	delete(s.comments, id)
	return true, nil
}

// ---- Likes ----

func (s *MemStorage) ToggleLike(_ context.Context, userID, articleID string) (models.LikeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	article, ok := s.articles[articleID]
	if !ok {
		return models.LikeResult{}, ErrNotFound
	}

	for id, l := range s.likes {
		if l.UserID == userID && l.ArticleID == articleID {
			// 已点赞，取消点赞
			delete(s.likes, id)
			article.Likes--
			if article.Likes < 0 {
				article.Likes = 0
			}
			return models.LikeResult{Liked: false, LikesCount: article.Likes}, nil
		}
	}

	like := &models.Like{
		ID:        s.newID(),
		UserID:    userID,
		ArticleID: articleID,
		CreatedAt: s.now(),
	}
	s.likes[like.ID] = like
	article.Likes++
	return models.LikeResult{Liked: true, LikesCount: article.Likes}, nil
}

func (s *MemStorage) GetUserLikes(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	likes := make([]*models.Like, 0)
	for _, l := range s.likes {
		if l.UserID == userID {
			likes = append(likes, l)
		}
	}
	sort.Slice(likes, func(i, j int) bool { return s.seq[likes[i].ID] < s.seq[likes[j].ID] })

	ids := make([]string, len(likes))
	for i, l := range likes {
		ids[i] = l.ArticleID
	}
	return ids, nil
}

// ---- Follows ----

func (s *MemStorage) ToggleFollow(_ context.Context, followerID, followingID string) (models.FollowResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, f := range s.follows {
		if f.FollowerID == followerID && f.FollowingID == followingID {
			delete(s.follows, id)
			return models.FollowResult{Following: false}, nil
		}
	}
	f := &models.Follow{
		ID:          s.newID(),
		FollowerID:  followerID,
		FollowingID: followingID,
		CreatedAt:   s.now(),
	}
	s.follows[f.ID] = f
	return models.FollowResult{Following: true}, nil
}

func (s *MemStorage) GetFollowers(_ context.Context, userID string) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.followUsers(func(f *models.Follow) (string, bool) {
		return f.FollowerID, f.FollowingID == userID
	}), nil
}

func (s *MemStorage) GetFollowing(_ context.Context, userID string) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.followUsers(func(f *models.Follow) (string, bool) {
		return f.FollowingID, f.FollowerID == userID
	}), nil
}

// followUsers 按关注时间顺序返回 pick 选中的一侧用户
func (s *MemStorage) followUsers(pick func(*models.Follow) (string, bool)) []models.User {
	follows := make([]*models.Follow, 0)
	for _, f := range s.follows {
		if _, ok := pick(f); ok {
			follows = append(follows, f)
		}
	}
	sort.Slice(follows, func(i, j int) bool { return s.seq[follows[i].ID] < s.seq[follows[j].ID] })

	users := make([]models.User, 0, len(follows))
	for _, f := range follows {
		id, _ := pick(f)
		if u, ok := s.users[id]; ok {
			users = append(users, *u)
		}
	}
	return users
}

// ---- Tags ----

func (s *MemStorage) GetTags(_ context.Context) ([]models.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tags := s.tagList()
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return tags, nil
}

func (s *MemStorage) GetPopularTags(_ context.Context, limit int) ([]models.Tag, error) {
	if limit <= 0 {
		return []models.Tag{}, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	tags := s.tagList()
	SortPopular(tags)
	if len(tags) > limit {
		tags = tags[:limit]
	}
	return tags, nil
}

func (s *MemStorage) CreateTag(_ context.Context, name string) (*models.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name = strings.TrimSpace(name)
	tag := s.findTag(name)
	if tag == nil {
		tag = s.insertTag(name)
	}
	cp := *tag
	return &cp, nil
}

func (s *MemStorage) SeedTag(_ context.Context, name, description, color string) (*models.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tag := s.findTag(name)
	if tag == nil {
		tag = s.insertTag(name)
		tag.Description = &description
		tag.Color = &color
	}
	cp := *tag
	return &cp, nil
}

func (s *MemStorage) ReconcileTagCounts(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int, len(s.tags))
	for _, a := range s.articles {
		for _, name := range a.Tags {
			counts[name]++
		}
	}
	changed := 0
	for _, tag := range s.tags {
		if tag.ArticlesCount != counts[tag.Name] {
			tag.ArticlesCount = counts[tag.Name]
			changed++
		}
	}
	return changed, nil
}

func (s *MemStorage) findTag(name string) *models.Tag {
	for _, t := range s.tags {
		if t.Name == name {
			return t
		}
	}
	return nil
}

func (s *MemStorage) insertTag(name string) *models.Tag {
	desc := ""
	color := models.DefaultTagColor
	tag := &models.Tag{
		ID:          s.newID(),
		Name:        name,
		Description: &desc,
		Color:       &color,
	}
	s.tags[tag.ID] = tag
	return tag
}

func (s *MemStorage) tagList() []models.Tag {
	tags := make([]models.Tag, 0, len(s.tags))
	for _, t := range s.tags {
		tags = append(tags, *t)
	}
	return tags
}

// SortPopular orders tags by articlesCount descending, then by name.
func SortPopular(tags []models.Tag) {
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].ArticlesCount != tags[j].ArticlesCount {
			return tags[i].ArticlesCount > tags[j].ArticlesCount
		}
		return tags[i].Name < tags[j].Name
	})
}

// ---- helpers ----

func copyArticle(a *models.Article) models.Article {
	cp := *a
	cp.Tags = append([]string(nil), a.Tags...)
	if cp.Tags == nil {
		cp.Tags = []string{}
	}
	return cp
}

// diffTags 返回 before 中被移除的和 after 中新增的标签
func diffTags(before, after []string) (removed, added []string) {
	inBefore := make(map[string]bool, len(before))
	for _, t := range before {
		inBefore[t] = true
	}
	inAfter := make(map[string]bool, len(after))
	for _, t := range after {
		inAfter[t] = true
		if !inBefore[t] {
			added = append(added, t)
		}
	}
	for _, t := range before {
		if !inAfter[t] {
			removed = append(removed, t)
		}
	}
	return removed, added
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}
