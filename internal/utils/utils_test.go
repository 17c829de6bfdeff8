package utils

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("secret123")
	require.NoError(t, err)

	assert.NotEqual(t, "secret123", hash)
	assert.True(t, CheckPasswordHash("secret123", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
}

func TestRenderMarkdownSanitizes(t *testing.T) {
	out := string(RenderMarkdown("Hello **world**\n\n<script>alert(1)</script>"))

	assert.Contains(t, out, "<strong>world</strong>")
	assert.NotContains(t, out, "<script>")
	assert.Empty(t, RenderMarkdown(""))
}

func TestDeriveExcerpt(t *testing.T) {
	md := "# Title\n\nHello **world**\n\n```go\nfmt.Println(1)\n```\n"
	assert.Equal(t, "Title Hello world", DeriveExcerpt(md))

	long := DeriveExcerpt(strings.Repeat("word ", 100))
	assert.True(t, strings.HasSuffix(long, "…"))
	assert.LessOrEqual(t, utf8.RuneCountInString(long), ExcerptLength+1)
}

func TestFirstImage(t *testing.T) {
	md := "Intro\n\n![cover](https://img.example/c.png)\n\n![second](https://img.example/d.png)"
	assert.Equal(t, "https://img.example/c.png", FirstImage(md))
	assert.Empty(t, FirstImage("no images here"))
}

func TestCache(t *testing.T) {
	c, err := NewCache(8)
	require.NoError(t, err)

	c.Set("a", 1, time.Minute)
	assert.Equal(t, 1, c.Get("a"))

	c.Set("expired", 2, -time.Second)
	assert.Nil(t, c.Get("expired"))

	c.Delete("a")
	assert.Nil(t, c.Get("a"))

	c.Set("b", 3, time.Minute)
	c.Purge()
	assert.Nil(t, c.Get("b"))
}

func TestConv(t *testing.T) {
	assert.Equal(t, 3, PositiveIntOr("3", 5))
	assert.Equal(t, 5, PositiveIntOr("", 5))
	assert.Equal(t, 5, PositiveIntOr("abc", 5))
	assert.Equal(t, 5, PositiveIntOr("-2", 5))

	assert.True(t, *ParseOptionalBool("true"))
	assert.False(t, *ParseOptionalBool("false"))
	assert.Nil(t, ParseOptionalBool("yes"))
	assert.Nil(t, ParseOptionalBool(""))
}

func TestCalculateScore(t *testing.T) {
	now := time.Now()

	assert.Zero(t, CalculateScore(now, now, 0, 0, 0))

	fresh := CalculateScore(now.Add(-time.Hour), now, 10, 2, 100)
	old := CalculateScore(now.Add(-48*time.Hour), now, 10, 2, 100)
	assert.Greater(t, fresh, old)

	more := CalculateScore(now.Add(-time.Hour), now, 20, 2, 100)
	assert.Greater(t, more, fresh)
}
