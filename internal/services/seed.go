package services

import (
	"context"
	"errors"
	"strings"

	"codecommunity/internal/models"
	"codecommunity/internal/storage"
	"codecommunity/internal/utils"

	"go.uber.org/zap"
)

// SamplePassword is the login password of every seeded user.
const SamplePassword = "password123"

type seedTag struct {
	name  string
	color string
}

var defaultTags = []seedTag{
	{"javascript", "#f7df1e"},
	{"react", "#61dafb"},
	{"webdev", "#3b82f6"},
	{"python", "#3776ab"},
	{"devops", "#326ce5"},
	{"ai", "#ff6b6b"},
	{"programming", "#8b5cf6"},
	{"opensource", "#22c55e"},
}

type seedUser struct {
	username string
	email    string
	bio      string
	location string
	website  string
}

var sampleUsers = []seedUser{
	{"sarah_dev", "sarah@example.com", "Full-stack developer passionate about React and Node.js", "San Francisco, CA", "https://sarahdev.com"},
	{"mike_codes", "mike@example.com", "Backend engineer specializing in microservices and DevOps", "New York, NY", ""},
	{"alex_frontend", "alex@example.com", "Frontend specialist with expertise in modern JavaScript frameworks", "Seattle, WA", "https://alexfrontend.dev"},
}

type seedArticle struct {
	author  int
	title   string
	excerpt string
	content string
	tags    []string
}

var sampleArticles = []seedArticle{
	{
		author:  0,
		title:   "Getting Started with React 18: A Complete Guide",
		excerpt: "Explore the exciting new features in React 18 including automatic batching, concurrent features, and improved Suspense.",
		content: "React 18 introduces several features that improve the developer experience and application performance.\n\n" +
			"## Automatic Batching\n\nReact 18 batches multiple state updates into a single re-render, including updates inside promises, timeouts and native event handlers.\n\n" +
			"```javascript\nfunction handleClick() {\n  setCount(c => c + 1);\n  setFlag(f => !f);\n}\n```\n\n" +
			"## Concurrent Features\n\n- Transitions for non-urgent updates\n- Suspense improvements for better loading states\n- New hooks like useDeferredValue and useTransition\n",
		tags: []string{"react", "javascript", "webdev"},
	},
	{
		author:  1,
		title:   "Building Scalable Microservices with Node.js",
		excerpt: "Learn how to build scalable microservices architecture using Node.js with best practices and real-world examples.",
		content: "Microservices architecture has become a popular way to build scalable applications.\n\n" +
			"## What are Microservices?\n\nApplications built as a collection of loosely coupled, independently deployable services. Each service owns one business function.\n\n" +
			"## Key Benefits\n\n1. **Scalability**: scale individual services based on demand\n2. **Fault Isolation**: one failing service does not bring down the system\n3. **Team Independence**: teams ship their services separately\n",
		tags: []string{"nodejs", "microservices", "devops", "programming"},
	},
	{
		author:  2,
		title:   "Modern CSS Techniques for Better Web Design",
		excerpt: "Discover modern CSS techniques including Grid, Flexbox, custom properties, and container queries for better web design.",
		content: "CSS has evolved a lot over the past few years.\n\n" +
			"## CSS Grid\n\n```css\n.layout {\n  display: grid;\n  grid-template-columns: repeat(auto-fit, minmax(250px, 1fr));\n}\n```\n\n" +
			"## Custom Properties\n\nVariables make theming straightforward and can be changed at runtime.\n\n" +
			"## Container Queries\n\nComponents can now respond to the size of their container instead of the viewport.\n",
		tags: []string{"css", "webdev", "frontend"},
	},
}

// SeedSampleData 初始化默认标签和演示数据，可重复执行：已存在的用户不会重复创建文章
func SeedSampleData(ctx context.Context, store storage.Storage, log *zap.Logger) error {
	for _, t := range defaultTags {
		if _, err := store.SeedTag(ctx, t.name, "", t.color); err != nil {
			return err
		}
	}

	hash, err := utils.HashPassword(SamplePassword)
	if err != nil {
		return err
	}

	userIDs := make([]string, len(sampleUsers))
	fresh := make([]bool, len(sampleUsers))
	for i, su := range sampleUsers {
		existing, err := store.GetUserByEmail(ctx, su.email)
		if err == nil {
			userIDs[i] = existing.ID
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		u, err := store.CreateUser(ctx, models.NewUser{
			Username: su.username,
			Email:    su.email,
			Password: hash,
			Bio:      optional(su.bio),
			Location: optional(su.location),
			Website:  optional(su.website),
		})
		if err != nil {
			return err
		}
		userIDs[i] = u.ID
		fresh[i] = true
	}

	created := 0
	for _, sa := range sampleArticles {
		if !fresh[sa.author] {
			continue
		}
		if _, err := store.CreateArticle(ctx, models.NewArticle{
			Title:     sa.title,
			Content:   sa.content,
			Excerpt:   optional(sa.excerpt),
			AuthorID:  userIDs[sa.author],
			Tags:      sa.tags,
			Published: true,
		}); err != nil {
			return err
		}
		created++
	}

	log.Info("Sample data seeded", zap.Int("tags", len(defaultTags)), zap.Int("articles", created))
	return nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
