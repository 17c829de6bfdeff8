package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"go", "react"}, NormalizeTags([]string{" go", "react", "", "go ", "  "}))
	assert.NotNil(t, NormalizeTags(nil))
	assert.Empty(t, NormalizeTags(nil))
}

func TestArticleUpdateApply(t *testing.T) {
	a := Article{Title: "old", Content: "body", Tags: []string{"go"}, Published: false}
	title := "new"
	published := true
	tags := []string{"rust", "rust"}
	ArticleUpdate{Title: &title, Published: &published, Tags: &tags}.Apply(&a)

	assert.Equal(t, "new", a.Title)
	assert.Equal(t, "body", a.Content)
	assert.True(t, a.Published)
	assert.Equal(t, []string{"rust"}, a.Tags)
	assert.True(t, a.HasTag("rust"))
	assert.False(t, a.HasTag("go"))
}

func TestUserUpdateApply(t *testing.T) {
	bio := "old bio"
	u := User{Username: "sarah", Email: "s@example.com", Bio: &bio}
	email := "new@example.com"
	UserUpdate{Email: &email}.Apply(&u)

	assert.Equal(t, "sarah", u.Username)
	assert.Equal(t, "new@example.com", u.Email)
	assert.Equal(t, "old bio", *u.Bio)
}

func TestUserPasswordNeverSerialized(t *testing.T) {
	data, err := json.Marshal(User{ID: "1", Username: "sarah", Password: "$2a$10$hash"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "password")
	assert.NotContains(t, string(data), "hash")
}

func TestArticleWithAuthorJSON(t *testing.T) {
	data, err := json.Marshal(ArticleWithAuthor{Article: Article{ID: "a", Tags: []string{}}, CommentsCount: 2})
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "a", m["id"])
	assert.EqualValues(t, 2, m["commentsCount"])
	assert.NotContains(t, m, "isLiked")
	assert.NotContains(t, m, "contentHtml")
	assert.Contains(t, m, "author")
}
