package middleware

import (
	"errors"
	"net/http"
	"strings"

	"codecommunity/internal/auth"
	"codecommunity/internal/models"
	"codecommunity/internal/storage"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const CheckUserKey = "user"

// SessionUserKey 会话中保存用户 ID 的键
const SessionUserKey = "user_id"

// AuthRequired ensures a user is logged in
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authenticated"})
			return
		}
		c.Next()
	}
}

// LoadUser retrieves the user from the session or a bearer token and sets it to context
func LoadUser(store storage.Storage, tokens *auth.Tokens, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := sessionUserID(c)
		if userID == "" {
			if raw := extractBearerToken(c); raw != "" {
				id, err := tokens.Parse(raw)
				if err != nil {
					log.Debug("Rejected bearer token", zap.Error(err))
				}
				userID = id
			}
		}

		if userID != "" {
			user, err := store.GetUser(c.Request.Context(), userID)
			if err == nil {
				c.Set(CheckUserKey, user)
			} else if !errors.Is(err, storage.ErrNotFound) {
				log.Warn("Failed to load current user", zap.String("userId", userID), zap.Error(err))
			}
		}
		c.Next()
	}
}

// CurrentUser 返回当前登录用户，未登录时为 nil
func CurrentUser(c *gin.Context) *models.User {
	if v, exists := c.Get(CheckUserKey); exists {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

func sessionUserID(c *gin.Context) string {
	session := sessions.Default(c)
	if id, ok := session.Get(SessionUserKey).(string); ok {
		return id
	}
	return ""
}

func extractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
