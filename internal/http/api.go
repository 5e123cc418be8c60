package http

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"capitol-watch/internal/archiver"
	"capitol-watch/internal/auth"
	"capitol-watch/internal/news"
	"capitol-watch/internal/service"
	"capitol-watch/internal/storage"
	"capitol-watch/internal/trades"
)

//go:embed templates/*.html
var templateFS embed.FS

var newsCategories = []string{"general", "forex", "crypto", "merger"}

// Handler wires HTTP routes to domain services.
type Handler struct {
	users   service.UserService
	follows service.FollowService
	news    news.Service
	trades  trades.Service
	storage storage.Service
	bucket  string
	prefix  string
	tokens  *auth.TokenIssuer
	logger  *logrus.Logger
}

// NewHandler builds the router glue. store may be nil when no archive bucket is configured.
func NewHandler(
	users service.UserService,
	follows service.FollowService,
	newsSvc news.Service,
	tradeSvc trades.Service,
	store storage.Service,
	bucket, prefix string,
	tokens *auth.TokenIssuer,
	logger *logrus.Logger,
) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		users:   users,
		follows: follows,
		news:    newsSvc,
		trades:  tradeSvc,
		storage: store,
		bucket:  bucket,
		prefix:  prefix,
		tokens:  tokens,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestLogger(h.logger))
	router.Use(corsMiddleware())
	router.SetHTMLTemplate(template.Must(template.ParseFS(templateFS, "templates/*.html")))

	router.GET("/", h.index)
	router.POST("/register", h.register)
	router.POST("/login", h.login)
	router.POST("/follow", h.follow)
	router.DELETE("/follow", h.unfollow)
	router.GET("/followed", h.followed)
	router.GET("/news", h.latestNews)
	router.GET("/recent-trades", h.recentTrades)
	router.GET("/me", h.requireToken(), h.me)

	api := router.Group("/api")
	{
		api.GET("/trade-reports", h.listTradeReports)
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type followRequest struct {
	Username    string `json:"username"`
	Congressman string `json:"congressman"`
}

func (h *Handler) index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Title":      "Capitol Watch",
		"Categories": newsCategories,
	})
}

func (h *Handler) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	_, err := h.users.Register(c.Request.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "Registration successful!"})
	case errors.Is(err, service.ErrUserAlreadyExists):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Username already exists."})
	case errors.Is(err, service.ErrMissingCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Username and password are required."})
	default:
		h.internalError(c, "register", err)
	}
}

func (h *Handler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.ValidateLogin(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid username or password."})
			return
		}
		h.internalError(c, "login", err)
		return
	}

	resp := gin.H{"message": fmt.Sprintf("Login successful! Welcome, %s", user.Username)}
	if h.tokens != nil {
		token, err := h.tokens.Issue(user)
		if err != nil {
			h.internalError(c, "issue token", err)
			return
		}
		resp["token"] = token
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) follow(c *gin.Context) {
	var req followRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.follows.Follow(c.Request.Context(), req.Username, req.Congressman); err != nil {
		h.logger.WithFields(logrus.Fields{
			"username":    req.Username,
			"congressman": req.Congressman,
		}).Warnf("follow failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"message": "Error following congressman."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("You are now following %s.", strings.TrimSpace(req.Congressman))})
}

func (h *Handler) unfollow(c *gin.Context) {
	var req followRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.follows.Unfollow(c.Request.Context(), req.Username, req.Congressman); err != nil {
		h.logger.WithFields(logrus.Fields{
			"username":    req.Username,
			"congressman": req.Congressman,
		}).Warnf("unfollow failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"message": "Error unfollowing congressman."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("You are no longer following %s.", strings.TrimSpace(req.Congressman))})
}

func (h *Handler) followed(c *gin.Context) {
	names, err := h.follows.ListFollowed(c.Request.Context(), c.Query("username"))
	if err != nil {
		h.internalError(c, "list followed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"followed": names})
}

func (h *Handler) latestNews(c *gin.Context) {
	items, err := h.news.Latest(c.Request.Context(), c.Query("category"))
	if err != nil {
		h.internalError(c, "news", err)
		return
	}
	if len(items) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "No news available for this category."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"news": items})
}

func (h *Handler) recentTrades(c *gin.Context) {
	_, err := h.trades.RecentTrades(c.Request.Context(), c.Query("congressman"))
	if err != nil {
		if errors.Is(err, trades.ErrMissingCongressman) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Congressman is required."})
			return
		}
		h.internalError(c, "recent trades", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Trades fetched. Check logs for details."})
}

type meResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

func (h *Handler) me(c *gin.Context) {
	userID := c.GetInt64(userIDKey)
	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, meResponse{ID: user.ID, Username: user.Username})
}

type StorageObjectResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"last_modified,omitempty"`
}

func (h *Handler) listTradeReports(c *gin.Context) {
	if h.storage == nil || h.bucket == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage service not configured"})
		return
	}

	prefix := strings.Trim(h.prefix, "/")
	if congressman := strings.TrimSpace(c.Query("congressman")); congressman != "" {
		prefix = strings.TrimPrefix(prefix+"/"+archiver.Slug(congressman)+"/", "/")
	}

	objects, err := h.storage.ListObjects(c.Request.Context(), h.bucket, prefix)
	if err != nil {
		h.internalError(c, "list trade reports", err)
		return
	}

	resp := make([]StorageObjectResponse, len(objects))
	for i := range objects {
		resp[i] = objectToResponse(objects[i])
	}
	c.JSON(http.StatusOK, resp)
}

func objectToResponse(obj storage.ObjectInfo) StorageObjectResponse {
	resp := StorageObjectResponse{
		Key:  obj.Key,
		Size: obj.Size,
	}
	if obj.LastModified != nil && !obj.LastModified.IsZero() {
		v := obj.LastModified.Format(time.RFC3339)
		resp.LastModified = &v
	}
	return resp
}

func (h *Handler) internalError(c *gin.Context, op string, err error) {
	h.logger.WithField("op", op).Errorf("%s: %v", op, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
