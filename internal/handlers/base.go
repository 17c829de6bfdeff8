package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"codecommunity/internal/auth"
	"codecommunity/internal/metrics"
	"codecommunity/internal/middleware"
	"codecommunity/internal/services"
	"codecommunity/internal/storage"
	"codecommunity/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// TagCacheTTL 标签列表缓存时间
const TagCacheTTL = 30 * time.Second

// Deps 所有 handler 共享的依赖
type Deps struct {
	Store    storage.Storage
	Tokens   *auth.Tokens
	Log      *zap.Logger
	Metrics  *metrics.Metrics
	Views    *services.ViewRecorder
	TagCache *utils.Cache
}

// InvalidateTags drops every cached tag listing.
func (d *Deps) InvalidateTags() {
	if d.TagCache != nil {
		d.TagCache.Purge()
	}
}

// Error helper
func respondError(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"message": message})
}

// bindJSON 绑定并校验请求体，失败时直接返回 400
func bindJSON(c *gin.Context, obj interface{}, message string) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": message, "error": validationMessage(err)})
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", fe.Field()))
		case "email":
			parts = append(parts, fmt.Sprintf("%s must be a valid email", fe.Field()))
		case "min":
			parts = append(parts, fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// storageError 把存储层错误转换为 HTTP 响应
func (d *Deps) storageError(c *gin.Context, err error, notFound, failure string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		respondError(c, http.StatusNotFound, notFound)
	case errors.Is(err, storage.ErrConflict):
		respondError(c, http.StatusBadRequest, "User already exists")
	default:
		d.Log.Error(failure, zap.String("path", c.Request.URL.Path), zap.Error(err))
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, failure)
	}
}

// actorID 请求体中的 ID 优先，否则使用当前登录用户
func actorID(c *gin.Context, explicit string) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}
	if user := middleware.CurrentUser(c); user != nil {
		return user.ID
	}
	return ""
}

func success(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true})
}
