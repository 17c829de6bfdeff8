package models

import (
	"time"
)

// Follow 关注关系（follower 关注 following）
type Follow struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	FollowerID  string    `gorm:"type:varchar(36);not null;index;uniqueIndex:idx_follow_pair" json:"followerId"`
	FollowingID string    `gorm:"type:varchar(36);not null;index;uniqueIndex:idx_follow_pair" json:"followingId"`
	CreatedAt   time.Time `json:"createdAt"`
}

type FollowResult struct {
	Following bool `json:"following"`
}
