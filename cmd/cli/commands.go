package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"codecommunity/internal/client"

	"github.com/spf13/cobra"
)

type cliOptions struct {
	server      string
	sessionPath string
	timeout     time.Duration
}

// app 每条命令共享的客户端状态
type app struct {
	opts  *cliOptions
	store *client.Store
}

func (a *app) init() error {
	path := a.opts.sessionPath
	if path == "" {
		p, err := client.DefaultSessionPath()
		if err != nil {
			return err
		}
		path = p
	}
	a.store = client.NewStore(client.New(a.opts.server), &client.FileSessionStore{Path: path})
	return nil
}

func (a *app) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.opts.timeout)
}

func (a *app) me() (string, error) {
	state := a.store.Auth()
	if !state.IsAuthenticated || state.User == nil {
		return "", fmt.Errorf("not logged in, run `codecommunity login` first")
	}
	return state.User.ID, nil
}

func defaultServer() string {
	if v := os.Getenv("CODECOMMUNITY_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}
	a := &app{opts: opts}

	rootCmd := &cobra.Command{
		Use:           "codecommunity",
		Short:         "Command line client for the CodeCommunity API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.server, "server", defaultServer(), "API base URL")
	rootCmd.PersistentFlags().StringVar(&opts.sessionPath, "session", "", "session file (default: user config dir)")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 15*time.Second, "request timeout")

	rootCmd.AddCommand(
		newRegisterCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newFeedCmd(a),
		newLikeCmd(a),
		newFollowCmd(a),
		newSeedCmd(a),
	)
	return rootCmd
}

func newRegisterCmd(a *app) *cobra.Command {
	var in client.RegisterInput
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx()
			defer cancel()
			if err := a.store.Register(ctx, in); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered and logged in as %s\n", a.store.Auth().User.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Username, "username", "", "username")
	cmd.Flags().StringVar(&in.Email, "email", "", "email")
	cmd.Flags().StringVar(&in.Password, "password", "", "password (min 6 characters)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLoginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx()
			defer cancel()
			if err := a.store.Login(ctx, email, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", a.store.Auth().User.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email")
	cmd.Flags().StringVar(&password, "password", "", "password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx()
			defer cancel()
			a.store.Logout(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			state := a.store.Auth()
			if !state.IsAuthenticated || state.User == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> (%s), following %d\n",
				state.User.Username, state.User.Email, state.User.ID, len(state.Following))
			return nil
		},
	}
}

func newFeedCmd(a *app) *cobra.Command {
	var sortBy, tag, search, author string
	var drafts bool
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "List articles",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx()
			defer cancel()

			q := client.ArticleQuery{AuthorID: author}
			if !drafts {
				published := true
				q.Published = &published
			}
			if err := a.store.FetchArticles(ctx, q); err != nil {
				return err
			}
			a.store.SetFilter(client.ParseFilter(sortBy))
			a.store.SetSelectedTag(tag)
			a.store.SetSearchQuery(search)
			printArticles(cmd.OutOrStdout(), a.store)
			return nil
		},
	}
	cmd.Flags().StringVar(&sortBy, "sort", string(client.FilterRelevant), "relevant, latest, top, hot or following")
	cmd.Flags().StringVar(&tag, "tag", "", "only articles with this tag")
	cmd.Flags().StringVar(&search, "search", "", "case-insensitive title/content search")
	cmd.Flags().StringVar(&author, "author", "", "only articles by this author id")
	cmd.Flags().BoolVar(&drafts, "drafts", false, "include unpublished articles")
	return cmd
}

func printArticles(out io.Writer, store *client.Store) {
	w := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tAUTHOR\tLIKES\tVIEWS\tTAGS")
	for _, a := range store.VisibleArticles() {
		title := a.Title
		if a.IsLiked != nil && *a.IsLiked {
			title = "♥ " + title
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n", a.ID, title, a.Author.Username, a.Likes, a.Views, strings.Join(a.Tags, ","))
	}
	w.Flush()
}

func newLikeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "like [article-id]",
		Short: "Like or unlike an article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.me(); err != nil {
				return err
			}
			ctx, cancel := a.ctx()
			defer cancel()
			if err := a.store.FetchArticle(ctx, args[0]); err != nil {
				return err
			}
			if err := a.store.ToggleLike(ctx, args[0]); err != nil {
				return err
			}
			cur := a.store.Articles().Current
			verb := "Unliked"
			if cur.IsLiked != nil && *cur.IsLiked {
				verb = "Liked"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %q (%d likes)\n", verb, cur.Title, cur.Likes)
			return nil
		},
	}
}

func newFollowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "follow [username]",
		Short: "Follow or unfollow a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.me(); err != nil {
				return err
			}
			ctx, cancel := a.ctx()
			defer cancel()
			target, err := client.New(a.opts.server).GetUserByUsername(ctx, args[0])
			if err != nil {
				return err
			}
			following, err := a.store.ToggleFollow(ctx, target.ID)
			if err != nil {
				return err
			}
			if following {
				fmt.Fprintf(cmd.OutOrStdout(), "Now following %s\n", target.Username)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Unfollowed %s\n", target.Username)
			}
			return nil
		},
	}
}
