package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleMedia streams stored attachment bytes as-is under their recorded mime
// type. Keys are unguessable, so this endpoint needs no session.
func (h *httpHandler) handleMedia(c *gin.Context) {
	media, err := h.feedService.MediaByKey(c.Request.Context(), c.Param("key"))
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	c.Header("Cache-Control", "public, max-age=86400, immutable")
	c.Data(http.StatusOK, media.Mime, media.Bytes)
}
