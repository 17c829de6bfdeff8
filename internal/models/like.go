package models

import (
	"time"
)

// Like 用户点赞文章，(user_id, article_id) 唯一
type Like struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_like_user_article" json:"userId"`
	ArticleID string    `gorm:"type:varchar(36);not null;index;uniqueIndex:idx_like_user_article" json:"articleId"`
	CreatedAt time.Time `json:"createdAt"`
}

// LikeResult is returned by a like toggle.
type LikeResult struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likesCount"`
}
