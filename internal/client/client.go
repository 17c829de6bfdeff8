package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"codecommunity/internal/models"
)

// APIError 非 2xx 响应
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Client is a typed REST client for the CodeCommunity API. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken 设置 bearer token，空字符串表示匿名
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type RegisterInput struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Bio      *string `json:"bio,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
	Location *string `json:"location,omitempty"`
	Website  *string `json:"website,omitempty"`
}

type AuthResult struct {
	User  models.User `json:"user"`
	Token string      `json:"token"`
}

// ArticleQuery 对应 GET /api/articles 的查询参数
type ArticleQuery struct {
	AuthorID  string
	Tag       string
	Search    string
	Published *bool
	ViewerID  string
}

func (q ArticleQuery) values() url.Values {
	v := url.Values{}
	if q.AuthorID != "" {
		v.Set("authorId", q.AuthorID)
	}
	if q.Tag != "" {
		v.Set("tag", q.Tag)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Published != nil {
		v.Set("published", strconv.FormatBool(*q.Published))
	}
	if q.ViewerID != "" {
		v.Set("viewerId", q.ViewerID)
	}
	return v
}

type ArticleInput struct {
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	AuthorID   string   `json:"authorId,omitempty"`
	Excerpt    *string  `json:"excerpt,omitempty"`
	CoverImage *string  `json:"coverImage,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Published  bool     `json:"published"`
}

// UserPatch 部分更新，nil 字段不发送
type UserPatch struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
	Bio      *string `json:"bio,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
	Location *string `json:"location,omitempty"`
	Website  *string `json:"website,omitempty"`
}

func (c *Client) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	var out AuthResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var out AuthResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var out models.User
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListArticles(ctx context.Context, q ArticleQuery) ([]models.ArticleWithAuthor, error) {
	path := "/api/articles"
	if qs := q.values().Encode(); qs != "" {
		path += "?" + qs
	}
	var out []models.ArticleWithAuthor
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetArticle(ctx context.Context, id string) (*models.ArticleWithAuthor, error) {
	var out models.ArticleWithAuthor
	if err := c.do(ctx, http.MethodGet, "/api/articles/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateArticle(ctx context.Context, in ArticleInput) (*models.Article, error) {
	var out models.Article
	if err := c.do(ctx, http.MethodPost, "/api/articles", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteArticle(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/articles/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ToggleLike(ctx context.Context, articleID, userID string) (*models.LikeResult, error) {
	var out models.LikeResult
	body := map[string]string{"userId": userID}
	if err := c.do(ctx, http.MethodPost, "/api/articles/"+url.PathEscape(articleID)+"/like", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetComments(ctx context.Context, articleID string) ([]models.CommentWithAuthor, error) {
	var out []models.CommentWithAuthor
	if err := c.do(ctx, http.MethodGet, "/api/articles/"+url.PathEscape(articleID)+"/comments", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateComment(ctx context.Context, articleID, content string, parentID *string) (*models.Comment, error) {
	var out models.Comment
	body := map[string]interface{}{"content": content}
	if parentID != nil {
		body["parentId"] = *parentID
	}
	if err := c.do(ctx, http.MethodPost, "/api/articles/"+url.PathEscape(articleID)+"/comments", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetUser(ctx context.Context, id string) (*models.User, error) {
	var out models.User
	if err := c.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var out models.User
	if err := c.do(ctx, http.MethodGet, "/api/users?username="+url.QueryEscape(username), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateUser(ctx context.Context, id string, patch UserPatch) (*models.User, error) {
	var out models.User
	if err := c.do(ctx, http.MethodPut, "/api/users/"+url.PathEscape(id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetFollowing(ctx context.Context, userID string) ([]models.User, error) {
	var out []models.User
	if err := c.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(userID)+"/following", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ToggleFollow makes followerID follow (or unfollow) userID.
func (c *Client) ToggleFollow(ctx context.Context, userID, followerID string) (*models.FollowResult, error) {
	var out models.FollowResult
	body := map[string]string{"followerId": followerID}
	if err := c.do(ctx, http.MethodPost, "/api/users/"+url.PathEscape(userID)+"/follow", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetTags(ctx context.Context) ([]models.Tag, error) {
	var out []models.Tag
	if err := c.do(ctx, http.MethodGet, "/api/tags", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetPopularTags(ctx context.Context, limit int) ([]models.Tag, error) {
	var out []models.Tag
	path := "/api/tags/popular"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var payload struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Message != "" {
			apiErr.Message = payload.Message
		}
		return apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
