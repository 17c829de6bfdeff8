package models

import (
	"time"
)

type Article struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title      string    `gorm:"not null" json:"title"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Excerpt    *string   `gorm:"type:text" json:"excerpt"`
	CoverImage *string   `json:"coverImage"`
	AuthorID   string    `gorm:"type:varchar(36);not null;index" json:"authorId"`
	Tags       []string  `gorm:"type:jsonb;serializer:json" json:"tags"`
	Likes      int       `gorm:"default:0" json:"likes"`
	Views      int       `gorm:"default:0" json:"views"`
	Published  bool      `gorm:"default:false;index" json:"published"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// HasTag reports whether the article carries the tag name.
func (a *Article) HasTag(name string) bool {
	for _, t := range a.Tags {
		if t == name {
			return true
		}
	}
	return false
}

// ArticleWithAuthor 列表和详情接口返回的装饰结构
type ArticleWithAuthor struct {
	Article
	Author        User   `json:"author"`
	CommentsCount int    `json:"commentsCount"`
	IsLiked       *bool  `json:"isLiked,omitempty"`
	ContentHTML   string `json:"contentHtml,omitempty"`
}

type NewArticle struct {
	Title      string
	Content    string
	Excerpt    *string
	CoverImage *string
	AuthorID   string
	Tags       []string
	Published  bool
}

// ArticleUpdate 部分更新：nil 字段保持不变
type ArticleUpdate struct {
	Title      *string
	Content    *string
	Excerpt    *string
	CoverImage *string
	Tags       *[]string
	Published  *bool
}

// Apply merges the present fields into a. Tags are normalized with NormalizeTags.
func (p ArticleUpdate) Apply(a *Article) {
	if p.Title != nil {
		a.Title = *p.Title
	}
	if p.Content != nil {
		a.Content = *p.Content
	}
	if p.Excerpt != nil {
		a.Excerpt = p.Excerpt
	}
	if p.CoverImage != nil {
		a.CoverImage = p.CoverImage
	}
	if p.Tags != nil {
		a.Tags = NormalizeTags(*p.Tags)
	}
	if p.Published != nil {
		a.Published = *p.Published
	}
}

// NormalizeTags trims and de-duplicates tag names, keeping first-seen order.
// The result is never nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = trimTag(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
