package models

import (
	"strings"
)

// DefaultTagColor is used for tags created implicitly by articles.
const DefaultTagColor = "#3b82f6"

type Tag struct {
	ID            string  `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name          string  `gorm:"uniqueIndex;not null" json:"name"`
	Description   *string `json:"description"`
	Color         *string `json:"color"`
	ArticlesCount int     `gorm:"default:0" json:"articlesCount"`
}

func trimTag(name string) string {
	return strings.TrimSpace(name)
}
