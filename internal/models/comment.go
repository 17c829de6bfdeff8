package models

import (
	"time"
)

type Comment struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	ArticleID string    `gorm:"type:varchar(36);not null;index" json:"articleId"`
	AuthorID  string    `gorm:"type:varchar(36);not null;index" json:"authorId"`
	ParentID  *string   `gorm:"type:varchar(36);index" json:"parentId"` // Nullable for top-level comments
	CreatedAt time.Time `json:"createdAt"`
}

type CommentWithAuthor struct {
	Comment
	Author User `json:"author"`
}

type NewComment struct {
	Content   string
	ArticleID string
	AuthorID  string
	ParentID  *string
}
