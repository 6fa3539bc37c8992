package server

import (
	"github.com/MarcoPoloResearchLab/stoa/internal/feed"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type feedPageData struct {
	pageData
	Items      []feed.TimelineItem
	NextCursor string
}

func (h *httpHandler) readTimeline(c *gin.Context) feedPageData {
	rc := h.requestContext(c)
	bucket := feed.NormalizeBucket(c.Query("bucket"))
	page := h.reader.Read(
		c.Request.Context(),
		rc.Shop,
		rc.CustomerID,
		bucket,
		h.pageSize,
		c.Query("cursor"),
	)
	data := feedPageData{
		pageData:   newPageData(rc, string(bucket)),
		Items:      page.Items,
		NextCursor: page.NextCursor,
	}
	data.Flash = flashMessage(c.Query("notice"))
	return data
}

// handleFeedPage renders a full timeline page for one bucket.
func (h *httpHandler) handleFeedPage(c *gin.Context) {
	if rc := h.requestContext(c); rc.Authenticated() {
		if _, err := h.profiles.Ensure(c.Request.Context(), rc.Shop, rc.CustomerID); err != nil {
			h.logger.Warn("profile ensure failed", zap.Error(err))
		}
	}
	h.renderPage(c, "feed", h.readTimeline(c))
}

// handleFeedFragment serves the endless-scroll continuation: the same item
// markup as the full page, with the next cursor embedded for the client
// script.
func (h *httpHandler) handleFeedFragment(c *gin.Context) {
	h.renderPage(c, "feed_items", h.readTimeline(c))
}
