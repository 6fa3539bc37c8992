package server

import (
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/stoa/internal/auth"
	"github.com/MarcoPoloResearchLab/stoa/internal/feed"
	"github.com/MarcoPoloResearchLab/stoa/internal/messages"
	"github.com/MarcoPoloResearchLab/stoa/internal/profiles"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const requestContextKey = "stoa_request_context"

var (
	errMissingBridge          = errors.New("session bridge dependency required")
	errMissingReader          = errors.New("timeline reader dependency required")
	errMissingFeedService     = errors.New("feed service dependency required")
	errMissingProfilesService = errors.New("profiles service dependency required")
	errMissingMessagesService = errors.New("messages service dependency required")
)

// Dependencies wires the proxy handlers to the domain services.
type Dependencies struct {
	Bridge        *auth.Bridge
	Reader        *feed.Reader
	FeedService   *feed.Service
	Profiles      *profiles.Service
	Messages      *messages.Service
	Logger        *zap.Logger
	PageSize      int
	MaxMediaBytes int64
}

// NewHTTPHandler builds the Gin router serving the proxied storefront pages.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Bridge == nil {
		return nil, errMissingBridge
	}
	if deps.Reader == nil {
		return nil, errMissingReader
	}
	if deps.FeedService == nil {
		return nil, errMissingFeedService
	}
	if deps.Profiles == nil {
		return nil, errMissingProfilesService
	}
	if deps.Messages == nil {
		return nil, errMissingMessagesService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pageSize := deps.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}
	maxMediaBytes := deps.MaxMediaBytes
	if maxMediaBytes <= 0 {
		maxMediaBytes = 5 << 20
	}

	templates, err := newTemplateSet()
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		bridge:        deps.Bridge,
		reader:        deps.Reader,
		feedService:   deps.FeedService,
		profiles:      deps.Profiles,
		messages:      deps.Messages,
		logger:        logger,
		templates:     templates,
		pageSize:      pageSize,
		maxMediaBytes: maxMediaBytes,
	}

	// Media is served by unguessable key and fetched by <img> tags, so it
	// skips the session handshake entirely.
	router.GET("/media/:key", handler.handleMedia)

	pages := router.Group("/")
	pages.Use(handler.resolveSession)
	pages.GET("/", handler.handleFeedPage)
	pages.GET("/page", handler.handleFeedFragment)
	pages.GET("/posts/new", handler.handleComposePage)
	pages.POST("/posts", handler.handleCreatePost)
	pages.POST("/posts/:id/like", handler.handleToggleLike)
	pages.POST("/posts/:id/comments", handler.handleAddComment)
	pages.GET("/profile", handler.handleOwnProfile)
	pages.POST("/profile", handler.handleUpdateProfile)
	pages.GET("/profile/:id", handler.handleProfilePage)
	pages.POST("/profile/:id/follow", handler.handleToggleFollow)
	pages.GET("/messages", handler.handleInbox)
	pages.GET("/messages/:id", handler.handleThread)
	pages.POST("/messages/:id", handler.handleSendMessage)

	return router, nil
}

type httpHandler struct {
	bridge        *auth.Bridge
	reader        *feed.Reader
	feedService   *feed.Service
	profiles      *profiles.Service
	messages      *messages.Service
	logger        *zap.Logger
	templates     map[string]*template.Template
	pageSize      int
	maxMediaBytes int64
}

// resolveSession runs the proxy handshake once per request. A rejected
// request still answers HTTP 200: the platform replaces non-2xx proxy
// responses with its own generic error page, so the sign-in prompt goes in
// the body instead.
func (h *httpHandler) resolveSession(c *gin.Context) {
	rc := h.bridge.Resolve(c.Writer, c.Request)
	c.Set(requestContextKey, rc)
	if rc.State == auth.StateRejected {
		h.renderLogin(c, rc)
		c.Abort()
		return
	}
	c.Next()
}

func (h *httpHandler) requestContext(c *gin.Context) auth.RequestContext {
	value, ok := c.Get(requestContextKey)
	if !ok {
		return auth.RequestContext{State: auth.StateRejected}
	}
	rc, ok := value.(auth.RequestContext)
	if !ok {
		return auth.RequestContext{State: auth.StateRejected}
	}
	return rc
}

// requireCustomer renders the sign-in prompt for handlers that act on behalf
// of a customer. Anonymous proxy-verified visitors can browse but not write.
func (h *httpHandler) requireCustomer(c *gin.Context, rc auth.RequestContext) bool {
	if rc.Authenticated() {
		return true
	}
	h.renderLogin(c, rc)
	c.Abort()
	return false
}

func (h *httpHandler) renderLogin(c *gin.Context, rc auth.RequestContext) {
	h.renderPage(c, "login", newPageData(rc, ""))
}

func (h *httpHandler) renderPage(c *gin.Context, page string, data any) {
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := h.render(c.Writer, page, data); err != nil {
		h.logger.Error("template render failed", zap.String("page", page), zap.Error(err))
	}
}

func (h *httpHandler) redirect(c *gin.Context, location string) {
	c.Redirect(http.StatusSeeOther, location)
}

// pageData carries the fields the shared layout needs on every page.
type pageData struct {
	BasePath      string
	Shop          string
	Bucket        string
	Authenticated bool
	Flash         string
}

func newPageData(rc auth.RequestContext, bucket string) pageData {
	if bucket == "" {
		bucket = string(feed.BucketFeed)
	}
	return pageData{
		BasePath:      rc.BasePath,
		Shop:          rc.Shop,
		Bucket:        bucket,
		Authenticated: rc.Authenticated(),
	}
}

// flashMessage maps a redirect notice flag to user-visible copy. Unknown
// flags render nothing.
func flashMessage(code string) string {
	switch code {
	case "body_required":
		return "Your post needs some text or an image."
	case "body_too_long":
		return "Posts are limited to 500 characters."
	case "comment_too_long":
		return "Comments are limited to 300 characters."
	case "media_required":
		return "Collection and trades posts need at least one image."
	case "media_type":
		return "Only JPEG, PNG, GIF, and WebP images are supported."
	case "media_too_large":
		return "One of your images is too large."
	case "name_too_long":
		return "Display names are limited to 80 characters."
	case "bio_too_long":
		return "Bios are limited to 500 characters."
	case "message_empty":
		return "Messages need some text."
	case "message_too_long":
		return "Messages are limited to 1000 characters."
	case "post_missing":
		return "That post is no longer available."
	default:
		return ""
	}
}
