package main

import (
	"context"
	"fmt"
	"strings"

	"codecommunity/internal/client"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/spf13/cobra"
)

var seedTags = []string{"javascript", "react", "webdev", "python", "devops", "ai", "programming", "opensource", "go"}

// fakeUser 生成一个可登录的演示用户
func fakeUser(f *gofakeit.Faker) client.RegisterInput {
	bio := f.HackerPhrase()
	location := f.City()
	return client.RegisterInput{
		Username: strings.ToLower(f.Username()),
		Email:    strings.ToLower(f.Email()),
		Password: f.Password(true, true, true, false, false, 12),
		Bio:      &bio,
		Location: &location,
	}
}

func fakeArticle(f *gofakeit.Faker) client.ArticleInput {
	n := f.Number(1, 3)
	tags := make([]string, 0, n)
	for i := 0; i < n; i++ {
		tags = append(tags, f.RandomString(seedTags))
	}
	var body strings.Builder
	sections := f.Number(2, 4)
	for i := 0; i < sections; i++ {
		fmt.Fprintf(&body, "## %s\n\n%s\n\n", strings.TrimSuffix(f.Sentence(4), "."), f.Paragraph(1, 4, 12, " "))
	}
	return client.ArticleInput{
		Title:     strings.TrimSuffix(f.Sentence(6), "."),
		Content:   body.String(),
		Tags:      tags,
		Published: f.Number(0, 9) > 0,
	}
}

func newSeedCmd(a *app) *cobra.Command {
	var users, articles int
	var seed int64
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the server with fake users and articles",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), a.opts.timeout*5)
			defer cancel()

			f := gofakeit.New(seed)
			created := 0
			for i := 0; i < users; i++ {
				// 每个用户使用独立的客户端，不影响本地保存的会话
				api := client.New(a.opts.server)
				res, err := api.Register(ctx, fakeUser(f))
				if err != nil {
					return fmt.Errorf("register fake user: %w", err)
				}
				api.SetToken(res.Token)
				for j := 0; j < articles; j++ {
					if _, err := api.CreateArticle(ctx, fakeArticle(f)); err != nil {
						return fmt.Errorf("create fake article: %w", err)
					}
					created++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d users and %d articles\n", users, created)
			return nil
		},
	}
	cmd.Flags().IntVar(&users, "users", 5, "number of users")
	cmd.Flags().IntVar(&articles, "articles", 3, "articles per user")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 = random)")
	return cmd
}
