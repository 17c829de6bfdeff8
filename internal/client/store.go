package client

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"codecommunity/internal/models"
	"codecommunity/internal/utils"

	"go.uber.org/zap"
)

// ErrNotAuthenticated 需要登录的操作在未登录时返回
var ErrNotAuthenticated = errors.New("client: not authenticated")

type Status string

const (
	StatusIdle      Status = "idle"
	StatusPending   Status = "pending"
	StatusFulfilled Status = "fulfilled"
	StatusRejected  Status = "rejected"
)

// Filter 文章列表的排序方式
type Filter string

const (
	FilterRelevant  Filter = "relevant"
	FilterLatest    Filter = "latest"
	FilterTop       Filter = "top"
	FilterHot       Filter = "hot"
	FilterFollowing Filter = "following"
)

// ParseFilter returns FilterRelevant for unknown names.
func ParseFilter(s string) Filter {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case FilterLatest, FilterTop, FilterHot, FilterFollowing:
		return f
	}
	return FilterRelevant
}

type AuthState struct {
	User            *models.User `json:"user"`
	Token           string       `json:"token"`
	IsAuthenticated bool         `json:"isAuthenticated"`
	Following       []string     `json:"following"`
	Error           string       `json:"error"`
}

type ArticlesState struct {
	Articles    []models.ArticleWithAuthor
	Current     *models.ArticleWithAuthor
	Status      Status
	Error       string
	Filter      Filter
	SearchQuery string
	SelectedTag string
}

type UsersState struct {
	Profiles map[string]models.User
	Status   Status
	Error    string
}

// Event 每次状态变化都会通知订阅者
type Event struct {
	Slice  string
	Action string
	Status Status
}

const (
	SliceAuth     = "auth"
	SliceArticles = "articles"
	SliceUsers    = "users"
)

// Store 客户端状态，三个 slice 互相独立
type Store struct {
	api      *Client
	sessions SessionStore
	log      *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	auth     AuthState
	articles ArticlesState
	users    UsersState

	subMu   sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

type StoreOption func(*Store)

func WithLogger(log *zap.Logger) StoreOption {
	return func(s *Store) { s.log = log }
}

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore rehydrates the auth slice from sessions (nil disables persistence).
func NewStore(api *Client, sessions SessionStore, opts ...StoreOption) *Store {
	s := &Store{
		api:      api,
		sessions: sessions,
		log:      zap.NewNop(),
		now:      time.Now,
		auth:     AuthState{Following: []string{}},
		articles: ArticlesState{Status: StatusIdle, Filter: FilterRelevant},
		users:    UsersState{Profiles: map[string]models.User{}, Status: StatusIdle},
		subs:     map[int]func(Event){},
	}
	for _, opt := range opts {
		opt(s)
	}

	if sessions != nil {
		saved, err := sessions.Load()
		if err != nil {
			s.log.Warn("Failed to load saved session", zap.Error(err))
		} else if saved != nil {
			s.auth = *saved
			if s.auth.Following == nil {
				s.auth.Following = []string{}
			}
		}
	}
	if s.auth.Token != "" {
		api.SetToken(s.auth.Token)
	}
	return s
}

// Subscribe registers fn for every transition and returns its unsubscribe func.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) emit(slice, action string, status Status) {
	s.subMu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	ev := Event{Slice: slice, Action: action, Status: status}
	for _, fn := range fns {
		fn(ev)
	}
}

// ---- snapshots ----

func (s *Store) Auth() AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.auth
	out.Following = append([]string{}, s.auth.Following...)
	if s.auth.User != nil {
		u := *s.auth.User
		out.User = &u
	}
	return out
}

func (s *Store) Articles() ArticlesState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.articles
	out.Articles = append([]models.ArticleWithAuthor{}, s.articles.Articles...)
	if s.articles.Current != nil {
		cur := *s.articles.Current
		out.Current = &cur
	}
	return out
}

func (s *Store) Users() UsersState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.users
	out.Profiles = make(map[string]models.User, len(s.users.Profiles))
	for id, u := range s.users.Profiles {
		out.Profiles[id] = u
	}
	return out
}

// ---- auth slice ----

func (s *Store) Register(ctx context.Context, in RegisterInput) error {
	s.emit(SliceAuth, "register", StatusPending)
	res, err := s.api.Register(ctx, in)
	return s.finishAuth(ctx, "register", res, err)
}

func (s *Store) Login(ctx context.Context, email, password string) error {
	s.emit(SliceAuth, "login", StatusPending)
	res, err := s.api.Login(ctx, email, password)
	return s.finishAuth(ctx, "login", res, err)
}

func (s *Store) finishAuth(ctx context.Context, action string, res *AuthResult, err error) error {
	if err != nil {
		s.mu.Lock()
		s.auth.Error = errorText(err)
		s.persistLocked()
		s.mu.Unlock()
		s.emit(SliceAuth, action, StatusRejected)
		return err
	}

	s.api.SetToken(res.Token)
	following := []string{}
	if users, ferr := s.api.GetFollowing(ctx, res.User.ID); ferr == nil {
		for _, u := range users {
			following = append(following, u.ID)
		}
	} else {
		s.log.Warn("Failed to load following list", zap.Error(ferr))
	}

	s.mu.Lock()
	user := res.User
	s.auth = AuthState{User: &user, Token: res.Token, IsAuthenticated: true, Following: following}
	s.persistLocked()
	s.mu.Unlock()
	s.emit(SliceAuth, action, StatusFulfilled)
	return nil
}

// Logout clears local state even when the server call fails.
func (s *Store) Logout(ctx context.Context) {
	if err := s.api.Logout(ctx); err != nil {
		s.log.Debug("Server logout failed", zap.Error(err))
	}
	s.api.SetToken("")
	s.mu.Lock()
	s.auth = AuthState{Following: []string{}}
	s.persistLocked()
	s.mu.Unlock()
	s.emit(SliceAuth, "logout", StatusFulfilled)
}

// ToggleFollow 关注或取消关注 userID，返回新的关注状态
func (s *Store) ToggleFollow(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	me := s.auth.User
	s.mu.Unlock()
	if me == nil {
		return false, ErrNotAuthenticated
	}

	s.emit(SliceAuth, "toggleFollow", StatusPending)
	res, err := s.api.ToggleFollow(ctx, userID, me.ID)
	if err != nil {
		s.mu.Lock()
		s.auth.Error = errorText(err)
		s.persistLocked()
		s.mu.Unlock()
		s.emit(SliceAuth, "toggleFollow", StatusRejected)
		return false, err
	}

	s.mu.Lock()
	s.auth.Following = removeID(s.auth.Following, userID)
	if res.Following {
		s.auth.Following = append(s.auth.Following, userID)
	}
	s.persistLocked()
	s.mu.Unlock()
	s.emit(SliceAuth, "toggleFollow", StatusFulfilled)
	return res.Following, nil
}

func (s *Store) SetFollowing(ids []string) {
	s.mu.Lock()
	s.auth.Following = append([]string{}, ids...)
	s.persistLocked()
	s.mu.Unlock()
	s.emit(SliceAuth, "setFollowing", StatusFulfilled)
}

func (s *Store) ClearAuthError() {
	s.mu.Lock()
	s.auth.Error = ""
	s.persistLocked()
	s.mu.Unlock()
	s.emit(SliceAuth, "clearError", StatusFulfilled)
}

func (s *Store) persistLocked() {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.Save(s.auth); err != nil {
		s.log.Warn("Failed to persist session", zap.Error(err))
	}
}

// ---- articles slice ----

func (s *Store) setArticlesPending(action string) {
	s.mu.Lock()
	s.articles.Status = StatusPending
	s.articles.Error = ""
	s.mu.Unlock()
	s.emit(SliceArticles, action, StatusPending)
}

func (s *Store) rejectArticles(action string, err error) error {
	s.mu.Lock()
	s.articles.Status = StatusRejected
	s.articles.Error = errorText(err)
	s.mu.Unlock()
	s.emit(SliceArticles, action, StatusRejected)
	return err
}

// FetchArticles loads the list; the viewer defaults to the logged-in user.
func (s *Store) FetchArticles(ctx context.Context, q ArticleQuery) error {
	if q.ViewerID == "" {
		s.mu.Lock()
		if s.auth.User != nil {
			q.ViewerID = s.auth.User.ID
		}
		s.mu.Unlock()
	}

	s.setArticlesPending("fetchArticles")
	list, err := s.api.ListArticles(ctx, q)
	if err != nil {
		return s.rejectArticles("fetchArticles", err)
	}
	s.mu.Lock()
	s.articles.Articles = list
	s.articles.Status = StatusFulfilled
	s.mu.Unlock()
	s.emit(SliceArticles, "fetchArticles", StatusFulfilled)
	return nil
}

func (s *Store) FetchArticle(ctx context.Context, id string) error {
	s.setArticlesPending("fetchArticle")
	article, err := s.api.GetArticle(ctx, id)
	if err != nil {
		return s.rejectArticles("fetchArticle", err)
	}
	s.mu.Lock()
	s.articles.Current = article
	s.articles.Status = StatusFulfilled
	s.mu.Unlock()
	s.emit(SliceArticles, "fetchArticle", StatusFulfilled)
	return nil
}

// CreateArticle 作者默认为当前登录用户
func (s *Store) CreateArticle(ctx context.Context, in ArticleInput) (*models.Article, error) {
	if in.AuthorID == "" {
		s.mu.Lock()
		if s.auth.User != nil {
			in.AuthorID = s.auth.User.ID
		}
		s.mu.Unlock()
	}

	s.setArticlesPending("createArticle")
	article, err := s.api.CreateArticle(ctx, in)
	if err != nil {
		return nil, s.rejectArticles("createArticle", err)
	}
	s.mu.Lock()
	s.articles.Status = StatusFulfilled
	s.mu.Unlock()
	s.emit(SliceArticles, "createArticle", StatusFulfilled)
	return article, nil
}

// ToggleLike updates likes and isLiked in both the list and Current.
func (s *Store) ToggleLike(ctx context.Context, articleID string) error {
	s.mu.Lock()
	me := s.auth.User
	s.mu.Unlock()
	if me == nil {
		return ErrNotAuthenticated
	}

	s.emit(SliceArticles, "toggleLike", StatusPending)
	res, err := s.api.ToggleLike(ctx, articleID, me.ID)
	if err != nil {
		return s.rejectArticles("toggleLike", err)
	}

	s.mu.Lock()
	for i := range s.articles.Articles {
		if s.articles.Articles[i].ID == articleID {
			applyLike(&s.articles.Articles[i], res)
		}
	}
	if s.articles.Current != nil && s.articles.Current.ID == articleID {
		applyLike(s.articles.Current, res)
	}
	s.mu.Unlock()
	s.emit(SliceArticles, "toggleLike", StatusFulfilled)
	return nil
}

func applyLike(a *models.ArticleWithAuthor, res *models.LikeResult) {
	liked := res.Liked
	a.Likes = res.LikesCount
	a.IsLiked = &liked
}

func (s *Store) SetFilter(f Filter) {
	s.mu.Lock()
	s.articles.Filter = f
	s.mu.Unlock()
	s.emit(SliceArticles, "setFilter", StatusFulfilled)
}

func (s *Store) SetSearchQuery(q string) {
	s.mu.Lock()
	s.articles.SearchQuery = q
	s.mu.Unlock()
	s.emit(SliceArticles, "setSearchQuery", StatusFulfilled)
}

func (s *Store) SetSelectedTag(tag string) {
	s.mu.Lock()
	s.articles.SelectedTag = tag
	s.mu.Unlock()
	s.emit(SliceArticles, "setSelectedTag", StatusFulfilled)
}

func (s *Store) ClearCurrentArticle() {
	s.mu.Lock()
	s.articles.Current = nil
	s.mu.Unlock()
	s.emit(SliceArticles, "clearCurrentArticle", StatusFulfilled)
}

func (s *Store) ClearError() {
	s.mu.Lock()
	s.articles.Error = ""
	s.mu.Unlock()
	s.emit(SliceArticles, "clearError", StatusFulfilled)
}

// VisibleArticles applies the search query, selected tag and filter to the fetched list.
func (s *Store) VisibleArticles() []models.ArticleWithAuthor {
	s.mu.Lock()
	state := s.articles
	following := make(map[string]struct{}, len(s.auth.Following))
	for _, id := range s.auth.Following {
		following[id] = struct{}{}
	}
	out := make([]models.ArticleWithAuthor, 0, len(state.Articles))
	query := strings.ToLower(strings.TrimSpace(state.SearchQuery))
	for _, a := range state.Articles {
		if state.SelectedTag != "" && !a.HasTag(state.SelectedTag) {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(a.Title), query) && !strings.Contains(strings.ToLower(a.Content), query) {
			continue
		}
		if state.Filter == FilterFollowing {
			if _, ok := following[a.AuthorID]; !ok {
				continue
			}
		}
		out = append(out, a)
	}
	s.mu.Unlock()

	switch state.Filter {
	case FilterLatest, FilterFollowing:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	case FilterTop:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Likes > out[j].Likes })
	case FilterHot:
		now := s.now()
		scores := make(map[string]float64, len(out))
		for _, a := range out {
			scores[a.ID] = utils.CalculateScore(a.CreatedAt, now, a.Likes, a.CommentsCount, a.Views)
		}
		sort.SliceStable(out, func(i, j int) bool { return scores[out[i].ID] > scores[out[j].ID] })
	default:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Views > out[j].Views })
	}
	return out
}

// ---- users slice ----

func (s *Store) FetchProfile(ctx context.Context, id string) (*models.User, error) {
	s.setUsersStatus("fetchProfile", StatusPending, "")
	user, err := s.api.GetUser(ctx, id)
	if err != nil {
		s.setUsersStatus("fetchProfile", StatusRejected, errorText(err))
		return nil, err
	}
	s.mu.Lock()
	s.users.Profiles[user.ID] = *user
	s.users.Status = StatusFulfilled
	s.mu.Unlock()
	s.emit(SliceUsers, "fetchProfile", StatusFulfilled)
	return user, nil
}

func (s *Store) SetProfile(u models.User) {
	s.SetProfiles([]models.User{u})
}

func (s *Store) SetProfiles(users []models.User) {
	s.mu.Lock()
	for _, u := range users {
		s.users.Profiles[u.ID] = u
	}
	s.mu.Unlock()
	s.emit(SliceUsers, "setProfiles", StatusFulfilled)
}

// UpdateProfile 更新资料；更新的是自己时同步 auth slice
func (s *Store) UpdateProfile(ctx context.Context, id string, patch UserPatch) (*models.User, error) {
	s.setUsersStatus("updateProfile", StatusPending, "")
	user, err := s.api.UpdateUser(ctx, id, patch)
	if err != nil {
		s.setUsersStatus("updateProfile", StatusRejected, errorText(err))
		return nil, err
	}
	s.mu.Lock()
	s.users.Profiles[user.ID] = *user
	s.users.Status = StatusFulfilled
	if s.auth.User != nil && s.auth.User.ID == user.ID {
		u := *user
		s.auth.User = &u
		s.persistLocked()
	}
	s.mu.Unlock()
	s.emit(SliceUsers, "updateProfile", StatusFulfilled)
	return user, nil
}

func (s *Store) setUsersStatus(action string, status Status, msg string) {
	s.mu.Lock()
	s.users.Status = status
	s.users.Error = msg
	s.mu.Unlock()
	s.emit(SliceUsers, action, status)
}

func errorText(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
