package handlers

import (
	"net/http"
	"strings"

	"codecommunity/internal/models"
	"codecommunity/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UserHandler struct {
	*Deps
}

func NewUserHandler(d *Deps) *UserHandler {
	return &UserHandler{Deps: d}
}

type updateUserRequest struct {
	Username *string `json:"username" binding:"omitempty,min=1"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Password *string `json:"password" binding:"omitempty,min=6"`
	Bio      *string `json:"bio"`
	Avatar   *string `json:"avatar"`
	Location *string `json:"location"`
	Website  *string `json:"website"`
}

type followRequest struct {
	FollowerID string `json:"followerId"`
}

// Lookup GET /api/users?username=
func (h *UserHandler) Lookup(c *gin.Context) {
	username := strings.TrimSpace(c.Query("username"))
	if username == "" {
		respondError(c, http.StatusBadRequest, "Username required")
		return
	}
	user, err := h.Store.GetUserByUsername(c.Request.Context(), username)
	if err != nil {
		h.storageError(c, err, "User not found", "Failed to fetch user")
		return
	}
	c.JSON(http.StatusOK, user)
}

// Profile GET /api/users/:id
func (h *UserHandler) Profile(c *gin.Context) {
	user, err := h.Store.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.storageError(c, err, "User not found", "Failed to fetch user")
		return
	}
	c.JSON(http.StatusOK, user)
}

// Update PUT /api/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	var req updateUserRequest
	if !bindJSON(c, &req, "Invalid data") {
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")

	if _, err := h.Store.GetUser(ctx, id); err != nil {
		h.storageError(c, err, "User not found", "Failed to update user")
		return
	}

	var email, username string
	if req.Email != nil {
		email = strings.TrimSpace(*req.Email)
		req.Email = &email
	}
	if req.Username != nil {
		username = strings.TrimSpace(*req.Username)
		req.Username = &username
	}
	taken, err := identityTaken(c, h.Store, email, username, id)
	if err != nil {
		h.storageError(c, err, "", "Failed to update user")
		return
	}
	if taken {
		respondError(c, http.StatusBadRequest, "User already exists")
		return
	}

	upd := models.UserUpdate{
		Username: req.Username,
		Email:    req.Email,
		Bio:      req.Bio,
		Avatar:   req.Avatar,
		Location: req.Location,
		Website:  req.Website,
	}
	if req.Password != nil {
		hash, err := utils.HashPassword(*req.Password)
		if err != nil {
			h.storageError(c, err, "", "Failed to update user")
			return
		}
		upd.Password = &hash
	}

	user, err := h.Store.UpdateUser(ctx, id, upd)
	if err != nil {
		h.storageError(c, err, "User not found", "Failed to update user")
		return
	}
	c.JSON(http.StatusOK, user)
}

// Likes GET /api/users/:id/likes
func (h *UserHandler) Likes(c *gin.Context) {
	ids, err := h.Store.GetUserLikes(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.storageError(c, err, "User not found", "Failed to fetch likes")
		return
	}
	c.JSON(http.StatusOK, ids)
}

// Followers GET /api/users/:id/followers
func (h *UserHandler) Followers(c *gin.Context) {
	users, err := h.Store.GetFollowers(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.storageError(c, err, "User not found", "Failed to fetch followers")
		return
	}
	c.JSON(http.StatusOK, users)
}

// Following GET /api/users/:id/following
func (h *UserHandler) Following(c *gin.Context) {
	users, err := h.Store.GetFollowing(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.storageError(c, err, "User not found", "Failed to fetch following")
		return
	}
	c.JSON(http.StatusOK, users)
}

// Follow POST /api/users/:id/follow
func (h *UserHandler) Follow(c *gin.Context) {
	var req followRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req, "Invalid data") {
		return
	}
	followerID := actorID(c, req.FollowerID)
	if followerID == "" {
		respondError(c, http.StatusBadRequest, "Follower ID required")
		return
	}
	followingID := c.Param("id")
	if followerID == followingID {
		respondError(c, http.StatusBadRequest, "Cannot follow yourself")
		return
	}

	ctx := c.Request.Context()
	for _, id := range []string{followerID, followingID} {
		if _, err := h.Store.GetUser(ctx, id); err != nil {
			h.storageError(c, err, "User not found", "Failed to toggle follow")
			return
		}
	}

	result, err := h.Store.ToggleFollow(ctx, followerID, followingID)
	if err != nil {
		h.storageError(c, err, "User not found", "Failed to toggle follow")
		return
	}
	h.Metrics.FollowToggled(result.Following)
	h.Log.Debug("Follow toggled", zap.String("followerId", followerID), zap.String("followingId", followingID), zap.Bool("following", result.Following))
	c.JSON(http.StatusOK, result)
}
