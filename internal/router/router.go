package router

import (
	"net/http"
	"time"

	"codecommunity/internal/handlers"
	"codecommunity/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

// SessionName 登录会话 cookie 名称
const SessionName = "codecommunity_session"

type Options struct {
	SessionSecret string
	CORSOrigins   []string
	// Secure 生产环境只通过 HTTPS 发送 cookie
	Secure bool
}

// New builds the engine with the middleware chain and every route.
func New(opts Options, d *handlers.Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(d.Log))
	r.Use(middleware.RequestLogger(d.Log))
	if d.Metrics != nil {
		r.Use(middleware.Metrics(d.Metrics))
	}

	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Setup Sessions
	store := cookie.NewStore([]byte(opts.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 3600,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(SessionName, store))
	r.Use(middleware.LoadUser(d.Store, d.Tokens, d.Log))

	RegisterRoutes(r, d)
	return r
}

func RegisterRoutes(r *gin.Engine, d *handlers.Deps) {
	// Handlers
	authHandler := handlers.NewAuthHandler(d)
	articleHandler := handlers.NewArticleHandler(d)
	commentHandler := handlers.NewCommentHandler(d)
	userHandler := handlers.NewUserHandler(d)
	tagHandler := handlers.NewTagHandler(d)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	api := r.Group("/api")

	// 认证 (Auth)
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/logout", authHandler.Logout)
	api.GET("/auth/me", middleware.AuthRequired(), authHandler.Me)

	// 文章 (Articles)
	api.GET("/articles", articleHandler.List)
	api.GET("/articles/:id", articleHandler.Detail)
	api.POST("/articles", articleHandler.Create)
	api.PUT("/articles/:id", articleHandler.Update)
	api.DELETE("/articles/:id", articleHandler.Delete)
	api.POST("/articles/:id/like", articleHandler.Like)

	// 评论 (Comments)
	api.GET("/articles/:id/comments", commentHandler.List)
	api.POST("/articles/:id/comments", commentHandler.Create)
	api.DELETE("/comments/:id", commentHandler.Delete)

	// 用户 (Users)
	api.GET("/users", userHandler.Lookup)
	api.GET("/users/:id", userHandler.Profile)
	api.PUT("/users/:id", userHandler.Update)
	api.GET("/users/:id/likes", userHandler.Likes)
	api.GET("/users/:id/followers", userHandler.Followers)
	api.GET("/users/:id/following", userHandler.Following)
	api.POST("/users/:id/follow", userHandler.Follow)

	// 标签 (Tags)
	api.GET("/tags", tagHandler.List)
	api.GET("/tags/popular", tagHandler.Popular)
	api.POST("/tags", tagHandler.Create)
}
