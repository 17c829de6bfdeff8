package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"codecommunity/internal/models"
	"codecommunity/internal/storage"
	"codecommunity/internal/utils"

	"github.com/gin-gonic/gin"
)

const tagsCacheKey = "tags:all"

type TagHandler struct {
	*Deps
}

func NewTagHandler(d *Deps) *TagHandler {
	return &TagHandler{Deps: d}
}

type createTagRequest struct {
	Name string `json:"name" binding:"required"`
}

// List GET /api/tags
func (h *TagHandler) List(c *gin.Context) {
	if cached, ok := h.cached(tagsCacheKey); ok {
		c.JSON(http.StatusOK, cached)
		return
	}
	tags, err := h.Store.GetTags(c.Request.Context())
	if err != nil {
		h.storageError(c, err, "", "Failed to fetch tags")
		return
	}
	h.store(tagsCacheKey, tags)
	c.JSON(http.StatusOK, tags)
}

// Popular GET /api/tags/popular?limit=N
func (h *TagHandler) Popular(c *gin.Context) {
	limit := utils.PositiveIntOr(c.Query("limit"), storage.DefaultPopularTagsLimit)
	key := "tags:popular:" + strconv.Itoa(limit)
	if cached, ok := h.cached(key); ok {
		c.JSON(http.StatusOK, cached)
		return
	}
	tags, err := h.Store.GetPopularTags(c.Request.Context(), limit)
	if err != nil {
		h.storageError(c, err, "", "Failed to fetch popular tags")
		return
	}
	h.store(key, tags)
	c.JSON(http.StatusOK, tags)
}

// Create POST /api/tags
func (h *TagHandler) Create(c *gin.Context) {
	var req createTagRequest
	if !bindJSON(c, &req, "Invalid tag data") {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondError(c, http.StatusBadRequest, "Tag name required")
		return
	}
	tag, err := h.Store.CreateTag(c.Request.Context(), name)
	if err != nil {
		h.storageError(c, err, "", "Failed to create tag")
		return
	}
	h.InvalidateTags()
	c.JSON(http.StatusOK, tag)
}

func (h *TagHandler) cached(key string) ([]models.Tag, bool) {
	if h.TagCache == nil {
		return nil, false
	}
	tags, ok := h.TagCache.Get(key).([]models.Tag)
	return tags, ok
}

func (h *TagHandler) store(key string, tags []models.Tag) {
	if h.TagCache != nil {
		h.TagCache.Set(key, tags, TagCacheTTL)
	}
}
