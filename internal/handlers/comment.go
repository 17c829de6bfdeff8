package handlers

import (
	"errors"
	"net/http"
	"strings"

	"codecommunity/internal/models"
	"codecommunity/internal/storage"

	"github.com/gin-gonic/gin"
)

type CommentHandler struct {
	*Deps
}

func NewCommentHandler(d *Deps) *CommentHandler {
	return &CommentHandler{Deps: d}
}

type createCommentRequest struct {
	Content  string  `json:"content" binding:"required"`
	AuthorID string  `json:"authorId"`
	ParentID *string `json:"parentId"`
}

// List GET /api/articles/:id/comments
func (h *CommentHandler) List(c *gin.Context) {
	comments, err := h.Store.GetCommentsByArticleID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.storageError(c, err, "Article not found", "Failed to fetch comments")
		return
	}
	c.JSON(http.StatusOK, comments)
}

// Create POST /api/articles/:id/comments
func (h *CommentHandler) Create(c *gin.Context) {
	var req createCommentRequest
	if !bindJSON(c, &req, "Invalid comment data") {
		return
	}
	ctx := c.Request.Context()
	articleID := c.Param("id")

	if _, err := h.Store.GetArticle(ctx, articleID); err != nil {
		h.storageError(c, err, "Article not found", "Failed to create comment")
		return
	}

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
		h.storageError(c, err, "", "Failed to create comment")
		return
	}

	// 回复必须指向同一篇文章下的评论
	if req.ParentID != nil && strings.TrimSpace(*req.ParentID) != "" {
		parent, err := h.Store.GetComment(ctx, *req.ParentID)
		if errors.Is(err, storage.ErrNotFound) || (err == nil && parent.ArticleID != articleID) {
			respondError(c, http.StatusBadRequest, "Invalid parent comment")
			return
		}
		if err != nil {
			h.storageError(c, err, "", "Failed to create comment")
			return
		}
	}

	comment, err := h.Store.CreateComment(ctx, models.NewComment{
		Content:   req.Content,
		ArticleID: articleID,
		AuthorID:  authorID,
		ParentID:  req.ParentID,
	})
	if err != nil {
		h.storageError(c, err, "", "Failed to create comment")
		return
	}
	c.JSON(http.StatusOK, comment)
}

// Delete DELETE /api/comments/:id
func (h *CommentHandler) Delete(c *gin.Context) {
	ok, err := h.Store.DeleteComment(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.storageError(c, err, "Comment not found", "Failed to delete comment")
		return
	}
	if !ok {
		respondError(c, http.StatusNotFound, "Comment not found")
		return
	}
	success(c)
}
