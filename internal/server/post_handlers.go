package server

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/MarcoPoloResearchLab/stoa/internal/auth"
	"github.com/MarcoPoloResearchLab/stoa/internal/feed"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// handleComposePage renders the new-post form.
func (h *httpHandler) handleComposePage(c *gin.Context) {
	rc := h.requestContext(c)
	if !h.requireCustomer(c, rc) {
		return
	}
	data := newPageData(rc, string(feed.NormalizeBucket(c.Query("bucket"))))
	data.Flash = flashMessage(c.Query("notice"))
	h.renderPage(c, "compose", data)
}

// handleCreatePost accepts the multipart compose form. Validation failures
// redirect back to the form with a notice flag the page renders inline.
func (h *httpHandler) handleCreatePost(c *gin.Context) {
	rc := h.requestContext(c)
	if !h.requireCustomer(c, rc) {
		return
	}
	bucket := feed.NormalizeBucket(c.PostForm("bucket"))

	uploads, err := h.collectUploads(c)
	if err != nil {
		h.logger.Warn("multipart parse failed", zap.Error(err))
		h.redirectCompose(c, rc, bucket, "media_type")
		return
	}

	_, err = h.feedService.CreatePost(
		c.Request.Context(),
		rc.Shop,
		rc.CustomerID,
		c.PostForm("body"),
		string(bucket),
		uploads,
	)
	if err != nil {
		h.redirectCompose(c, rc, bucket, postNotice(err))
		return
	}
	h.redirect(c, rc.BasePath+"?bucket="+string(bucket))
}

// handleToggleLike flips the viewer's like and sends them back to the bucket
// they came from.
func (h *httpHandler) handleToggleLike(c *gin.Context) {
	rc := h.requestContext(c)
	if !h.requireCustomer(c, rc) {
		return
	}
	bucket := feed.NormalizeBucket(c.PostForm("bucket"))
	postID, ok := parsePostID(c.Param("id"))
	if !ok {
		h.redirectFeed(c, rc, bucket, "post_missing")
		return
	}
	if _, err := h.feedService.ToggleLike(c.Request.Context(), rc.Shop, postID, rc.CustomerID); err != nil {
		h.logger.Warn("like toggle failed", zap.Uint64("post_id", postID), zap.Error(err))
		h.redirectFeed(c, rc, bucket, "post_missing")
		return
	}
	h.redirectFeed(c, rc, bucket, "")
}

// handleAddComment appends a comment and returns to the bucket.
func (h *httpHandler) handleAddComment(c *gin.Context) {
	rc := h.requestContext(c)
	if !h.requireCustomer(c, rc) {
		return
	}
	bucket := feed.NormalizeBucket(c.PostForm("bucket"))
	postID, ok := parsePostID(c.Param("id"))
	if !ok {
		h.redirectFeed(c, rc, bucket, "post_missing")
		return
	}
	_, err := h.feedService.AddComment(c.Request.Context(), rc.Shop, postID, rc.CustomerID, c.PostForm("body"))
	if err != nil {
		h.redirectFeed(c, rc, bucket, postNotice(err))
		return
	}
	h.redirectFeed(c, rc, bucket, "")
}

// collectUploads reads the attached files, bounding each read at one byte
// over the cap so the service can reject oversized uploads without the
// handler buffering arbitrary input.
func (h *httpHandler) collectUploads(c *gin.Context) ([]feed.MediaUpload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, err
	}
	files := form.File["media"]
	uploads := make([]feed.MediaUpload, 0, len(files))
	for _, header := range files {
		if header.Size == 0 {
			continue
		}
		file, err := header.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(io.LimitReader(file, h.maxMediaBytes+1))
		file.Close()
		if err != nil {
			return nil, err
		}
		mime := header.Header.Get("Content-Type")
		if mime == "" || mime == "application/octet-stream" {
			mime = http.DetectContentType(data)
		}
		uploads = append(uploads, feed.MediaUpload{Mime: mime, Bytes: data})
	}
	return uploads, nil
}

func (h *httpHandler) redirectCompose(c *gin.Context, rc auth.RequestContext, bucket feed.Bucket, notice string) {
	target := rc.BasePath + "/posts/new?bucket=" + string(bucket)
	if notice != "" {
		target += "&notice=" + url.QueryEscape(notice)
	}
	h.redirect(c, target)
}

func (h *httpHandler) redirectFeed(c *gin.Context, rc auth.RequestContext, bucket feed.Bucket, notice string) {
	target := rc.BasePath + "?bucket=" + string(bucket)
	if notice != "" {
		target += "&notice=" + url.QueryEscape(notice)
	}
	h.redirect(c, target)
}

func parsePostID(raw string) (uint64, bool) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// postNotice maps feed write errors onto redirect notice flags.
func postNotice(err error) string {
	switch {
	case errors.Is(err, feed.ErrEmptyBody):
		return "body_required"
	case errors.Is(err, feed.ErrBodyTooLong):
		return "body_too_long"
	case errors.Is(err, feed.ErrCommentTooLong):
		return "comment_too_long"
	case errors.Is(err, feed.ErrMediaRequired):
		return "media_required"
	case errors.Is(err, feed.ErrMediaType):
		return "media_type"
	case errors.Is(err, feed.ErrMediaTooLarge):
		return "media_too_large"
	case errors.Is(err, feed.ErrPostNotFound):
		return "post_missing"
	default:
		return "post_missing"
	}
}
