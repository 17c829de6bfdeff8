package handlers

import (
	"errors"
	"net/http"
	"strings"

	"codecommunity/internal/middleware"
	"codecommunity/internal/models"
	"codecommunity/internal/storage"
	"codecommunity/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ArticleHandler struct {
	*Deps
}

func NewArticleHandler(d *Deps) *ArticleHandler {
	return &ArticleHandler{Deps: d}
}

type createArticleRequest struct {
	Title      string   `json:"title" binding:"required"`
	Content    string   `json:"content" binding:"required"`
	AuthorID   string   `json:"authorId"`
	Excerpt    *string  `json:"excerpt"`
	CoverImage *string  `json:"coverImage"`
	Tags       []string `json:"tags"`
	Published  *bool    `json:"published"`
}

type updateArticleRequest struct {
	Title      *string   `json:"title" binding:"omitempty,min=1"`
	Content    *string   `json:"content" binding:"omitempty,min=1"`
	Excerpt    *string   `json:"excerpt"`
	CoverImage *string   `json:"coverImage"`
	Tags       *[]string `json:"tags"`
	Published  *bool     `json:"published"`
}

type likeRequest struct {
	UserID string `json:"userId"`
}

// viewerID 当前登录用户优先，其次是 viewerId 查询参数
func viewerID(c *gin.Context) string {
	if user := middleware.CurrentUser(c); user != nil {
		return user.ID
	}
	return strings.TrimSpace(c.Query("viewerId"))
}

// markLiked fills IsLiked for the viewer. Missing viewer leaves the field unset.
func (h *ArticleHandler) markLiked(c *gin.Context, articles []models.ArticleWithAuthor) error {
	viewer := viewerID(c)
	if viewer == "" {
		return nil
	}
	liked, err := h.Store.GetUserLikes(c.Request.Context(), viewer)
	if err != nil {
		return err
	}
	set := make(map[string]struct{}, len(liked))
	for _, id := range liked {
		set[id] = struct{}{}
	}
	for i := range articles {
		_, ok := set[articles[i].ID]
		articles[i].IsLiked = &ok
	}
	return nil
}

// List GET /api/articles
func (h *ArticleHandler) List(c *gin.Context) {
	filter := storage.ArticleFilter{
		AuthorID:  strings.TrimSpace(c.Query("authorId")),
		Tag:       strings.TrimSpace(c.Query("tag")),
		Search:    strings.TrimSpace(c.Query("search")),
		Published: utils.ParseOptionalBool(c.Query("published")),
	}
	articles, err := h.Store.GetArticles(c.Request.Context(), filter)
	if err != nil {
		h.storageError(c, err, "", "Failed to fetch articles")
		return
	}
	if err := h.markLiked(c, articles); err != nil {
		h.storageError(c, err, "", "Failed to fetch articles")
		return
	}
	c.JSON(http.StatusOK, articles)
}

// Detail GET /api/articles/:id
func (h *ArticleHandler) Detail(c *gin.Context) {
	id := c.Param("id")
	article, err := h.Store.GetArticle(c.Request.Context(), id)
	if err != nil {
		h.storageError(c, err, "Article not found", "Failed to fetch article")
		return
	}

	one := []models.ArticleWithAuthor{*article}
	if err := h.markLiked(c, one); err != nil {
		h.storageError(c, err, "", "Failed to fetch article")
		return
	}
	result := one[0]
	result.ContentHTML = string(utils.RenderMarkdown(result.Content))

	// 浏览量异步累加，当前响应返回读取时的值
	if h.Views != nil {
		h.Views.Record(id)
	}
	c.JSON(http.StatusOK, result)
}

// Create POST /api/articles
func (h *ArticleHandler) Create(c *gin.Context) {
	var req createArticleRequest
	if !bindJSON(c, &req, "Invalid article data") {
		return
	}
	ctx := c.Request.Context()

	authorID := actorID(c, req.AuthorID)
	if authorID == "" {
		respondError(c, http.StatusBadRequest, "Author ID required")
		return
	}
	if _, err := h.Store.GetUser(ctx, authorID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(c, http.StatusBadRequest, "Author not found")
			return
		}
		h.storageError(c, err, "", "Failed to create article")
		return
	}

	in := models.NewArticle{
		Title:      strings.TrimSpace(req.Title),
		Content:    req.Content,
		Excerpt:    req.Excerpt,
		CoverImage: req.CoverImage,
		AuthorID:   authorID,
		Tags:       req.Tags,
	}
	if req.Published != nil {
		in.Published = *req.Published
	}
	if in.Excerpt == nil || strings.TrimSpace(*in.Excerpt) == "" {
		if excerpt := utils.DeriveExcerpt(in.Content); excerpt != "" {
			in.Excerpt = &excerpt
		}
	}
	if in.CoverImage == nil || strings.TrimSpace(*in.CoverImage) == "" {
		if img := utils.FirstImage(in.Content); img != "" {
			in.CoverImage = &img
		}
	}

	article, err := h.Store.CreateArticle(ctx, in)
	if err != nil {
		h.storageError(c, err, "", "Failed to create article")
		return
	}
	h.InvalidateTags()
	h.Metrics.ArticleMutated("create")
	h.Log.Info("Article created", zap.String("articleId", article.ID), zap.String("authorId", authorID), zap.Strings("tags", article.Tags))
	c.JSON(http.StatusOK, article)
}

// Update PUT /api/articles/:id
func (h *ArticleHandler) Update(c *gin.Context) {
	var req updateArticleRequest
	if !bindJSON(c, &req, "Invalid article data") {
		return
	}
	article, err := h.Store.UpdateArticle(c.Request.Context(), c.Param("id"), models.ArticleUpdate{
		Title:      req.Title,
		Content:    req.Content,
		Excerpt:    req.Excerpt,
		CoverImage: req.CoverImage,
		Tags:       req.Tags,
		Published:  req.Published,
	})
	if err != nil {
		h.storageError(c, err, "Article not found", "Failed to update article")
		return
	}
	h.InvalidateTags()
	h.Metrics.ArticleMutated("update")
	c.JSON(http.StatusOK, article)
}

// Delete DELETE /api/articles/:id
func (h *ArticleHandler) Delete(c *gin.Context) {
	ok, err := h.Store.DeleteArticle(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.storageError(c, err, "Article not found", "Failed to delete article")
		return
	}
	if !ok {
		respondError(c, http.StatusNotFound, "Article not found")
		return
	}
	h.InvalidateTags()
	h.Metrics.ArticleMutated("delete")
	success(c)
}

// Like POST /api/articles/:id/like
func (h *ArticleHandler) Like(c *gin.Context) {
	var req likeRequest
	// 请求体可以为空，此时使用当前登录用户
	if c.Request.ContentLength != 0 && !bindJSON(c, &req, "Invalid data") {
		return
	}
	userID := actorID(c, req.UserID)
	if userID == "" {
		respondError(c, http.StatusBadRequest, "User ID required")
		return
	}

	result, err := h.Store.ToggleLike(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.storageError(c, err, "Article not found", "Failed to toggle like")
		return
	}
	h.Metrics.LikeToggled(result.Liked)
	c.JSON(http.StatusOK, result)
}
