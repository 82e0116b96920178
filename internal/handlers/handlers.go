package handlers

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"dermassist/client/internal/capture"
	"dermassist/client/internal/config"
	"dermassist/client/internal/middleware"
	"dermassist/client/internal/service"
	"dermassist/client/internal/storage"
)

// AccountRecovery is the password reset half of the backend.
type AccountRecovery interface {
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, resetToken, newPassword string) error
}

type Deps struct {
	Config   *config.AppConfig
	Log      zerolog.Logger
	Store    storage.Store
	Sessions *service.SessionService
	Theme    *service.ThemeService
	Accounts AccountRecovery
	History  *service.HistoryService
	Capture  *capture.Component
	Runner   *service.Runner
}

type HandlerSet struct {
	log      zerolog.Logger
	cfg      *config.AppConfig
	store    storage.Store
	sessions *service.SessionService
	theme    *service.ThemeService
	accounts AccountRecovery
	history  *service.HistoryService
	capture  *capture.Component
	runner   *service.Runner
	upgrader websocket.Upgrader
}

func NewHandlerSet(d Deps) HandlerSet {
	return HandlerSet{
		log:      d.Log,
		cfg:      d.Config,
		store:    d.Store,
		sessions: d.Sessions,
		theme:    d.Theme,
		accounts: d.Accounts,
		history:  d.History,
		capture:  d.Capture,
		runner:   d.Runner,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 5 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  64 * 1024,
		},
	}
}

func (h HandlerSet) Register(router *gin.Engine) {
	router.GET("/healthz", h.Health)

	router.GET("/", middleware.Guard(h.sessions, middleware.Protected), h.Home)
	router.GET("/profile", middleware.Guard(h.sessions, middleware.Protected), h.Profile)

	guest := router.Group("/", middleware.Guard(h.sessions, middleware.GuestOnly))
	{
		guest.GET("/login", h.LoginPage)
		guest.POST("/login", h.Login)
		guest.GET("/register", h.RegisterPage)
		guest.POST("/register", h.SignUp)
	}

	router.GET("/forgot-password", h.ForgotPasswordPage)
	router.POST("/forgot-password", h.ForgotPassword)
	router.GET("/reset-password", h.ResetPasswordPage)
	router.POST("/reset-password", h.ResetPassword)
	router.POST("/logout", h.Logout)

	router.GET("/about", h.static("about.html", "About"))
	router.GET("/safety", h.static("safety.html", "Safety & Privacy"))
	router.GET("/how-it-works", h.static("how_it_works.html", "How It Works"))
	router.POST("/theme/toggle", h.ToggleTheme)

	api := router.Group("/api")
	{
		api.GET("/capture", h.CaptureStatus)
		api.POST("/capture/upload", h.Upload)
		api.POST("/capture/mode", h.SetMode)
		api.POST("/capture/clear", h.ClearCapture)

		api.POST("/camera/open", h.OpenCamera)
		api.POST("/camera/retry", h.RetryCamera)
		api.POST("/camera/flip", h.FlipCamera)
		api.POST("/camera/shutter", h.Shutter)
		api.GET("/camera/feed", h.CameraFeed)

		api.POST("/analyze", h.Analyze)
		api.GET("/analysis", h.AnalysisStatus)
		api.POST("/analysis/dismiss", h.DismissAnalysisError)

		api.GET("/history", middleware.RequireSession(h.sessions), h.HistoryJSON)
	}

	router.NoRoute(func(c *gin.Context) {
		c.Redirect(http.StatusSeeOther, "/register")
	})
}

// render adds the data every page layout needs.
func (h HandlerSet) render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	snap := middleware.CurrentSession(c, h.sessions)
	data["Theme"] = h.theme.RootClass()
	data["Dark"] = h.theme.IsDark()
	data["Session"] = snap
	data["User"] = snap.User
	data["Path"] = c.Request.URL.Path
	c.HTML(status, name, data)
}

func (h HandlerSet) static(name, title string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.render(c, http.StatusOK, name, gin.H{"Title": title})
	}
}

func (h HandlerSet) ToggleTheme(c *gin.Context) {
	dark := h.theme.Toggle(c.Request.Context())
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"dark": dark})
		return
	}
	c.Redirect(http.StatusSeeOther, backTo(c))
}

func wantsJSON(c *gin.Context) bool {
	return c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON
}

// backTo returns the local page the request came from.
func backTo(c *gin.Context) string {
	ref := c.Request.Referer()
	if ref == "" {
		return "/"
	}
	if u, err := url.Parse(ref); err == nil && u.Host == c.Request.Host && u.Path != "" {
		return u.RequestURI()
	}
	return "/"
}
