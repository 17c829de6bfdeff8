package models

import (
	"time"
)

type User struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Username  string    `gorm:"uniqueIndex;not null" json:"username"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"not null" json:"-"` // bcrypt hash
	Bio       *string   `gorm:"type:text" json:"bio"`
	Avatar    *string   `json:"avatar"`
	Location  *string   `json:"location"`
	Website   *string   `json:"website"`
	CreatedAt time.Time `json:"createdAt"`
	// No DeletedAt for hard delete
}

// NewUser 创建用户时的输入，Password 已经是哈希值
type NewUser struct {
	Username string
	Email    string
	Password string
	Bio      *string
	Avatar   *string
	Location *string
	Website  *string
}

// UserUpdate 部分更新：nil 字段保持不变
type UserUpdate struct {
	Username *string
	Email    *string
	Password *string
	Bio      *string
	Avatar   *string
	Location *string
	Website  *string
}

// Apply merges the present fields into u.
func (p UserUpdate) Apply(u *User) {
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Password != nil {
		u.Password = *p.Password
	}
	if p.Bio != nil {
		u.Bio = p.Bio
	}
	if p.Avatar != nil {
		u.Avatar = p.Avatar
	}
	if p.Location != nil {
		u.Location = p.Location
	}
	if p.Website != nil {
		u.Website = p.Website
	}
}
