package handlers

import (
	"errors"
	"net/http"
	"strings"

	"codecommunity/internal/middleware"
	"codecommunity/internal/models"
	"codecommunity/internal/storage"
	"codecommunity/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	*Deps
}

func NewAuthHandler(d *Deps) *AuthHandler {
	return &AuthHandler{Deps: d}
}

type registerRequest struct {
	Username string  `json:"username" binding:"required"`
	Email    string  `json:"email" binding:"required,email"`
	Password string  `json:"password" binding:"required,min=6"`
	Bio      *string `json:"bio"`
	Avatar   *string `json:"avatar"`
	Location *string `json:"location"`
	Website  *string `json:"website"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type authResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req, "Invalid data") {
		return
	}
	ctx := c.Request.Context()
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	// 插入前检查邮箱和用户名是否已被占用
	taken, err := identityTaken(c, h.Store, req.Email, req.Username, "")
	if err != nil {
		h.storageError(c, err, "User not found", "Failed to register user")
		return
	}
	if taken {
		respondError(c, http.StatusBadRequest, "User already exists")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		h.storageError(c, err, "", "Failed to register user")
		return
	}

	user, err := h.Store.CreateUser(ctx, models.NewUser{
		Username: req.Username,
		Email:    req.Email,
		Password: hash,
		Bio:      req.Bio,
		Avatar:   req.Avatar,
		Location: req.Location,
		Website:  req.Website,
	})
	if err != nil {
		h.storageError(c, err, "User not found", "Failed to register user")
		return
	}
	h.Log.Info("User registered", zap.String("userId", user.ID), zap.String("username", user.Username))
	h.startSession(c, user)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req, "Invalid data") {
		return
	}

	user, err := h.Store.GetUserByEmail(c.Request.Context(), strings.TrimSpace(req.Email))
	if errors.Is(err, storage.ErrNotFound) {
		respondError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		h.storageError(c, err, "", "Failed to log in")
		return
	}
	if !utils.CheckPasswordHash(req.Password, user.Password) {
		respondError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	h.startSession(c, user)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		h.Log.Warn("Failed to clear session", zap.Error(err))
	}
	success(c)
}

func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.CurrentUser(c))
}

// startSession 写入 cookie 会话并签发 bearer token
func (h *AuthHandler) startSession(c *gin.Context, user *models.User) {
	token, err := h.Tokens.Issue(user.ID)
	if err != nil {
		h.storageError(c, err, "", "Failed to issue token")
		return
	}
	session := sessions.Default(c)
	session.Set(middleware.SessionUserKey, user.ID)
	if err := session.Save(); err != nil {
		h.Log.Warn("Failed to save session", zap.Error(err))
	}
	c.JSON(http.StatusOK, authResponse{User: user, Token: token})
}

// identityTaken reports whether email or username belongs to a user other than selfID.
func identityTaken(c *gin.Context, store storage.Storage, email, username, selfID string) (bool, error) {
	ctx := c.Request.Context()
	if email != "" {
		u, err := store.GetUserByEmail(ctx, email)
		if err == nil && u.ID != selfID {
			return true, nil
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return false, err
		}
	}
	if username != "" {
		u, err := store.GetUserByUsername(ctx, username)
		if err == nil && u.ID != selfID {
			return true, nil
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return false, err
		}
	}
	return false, nil
}
