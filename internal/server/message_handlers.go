package server

import (
	"errors"
	"net/url"

	"github.com/MarcoPoloResearchLab/stoa/internal/messages"
	"github.com/MarcoPoloResearchLab/stoa/internal/profiles"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type inboxPageData struct {
	pageData
	Conversations []messages.Conversation
}

type threadPageData struct {
	pageData
	PartnerID   string
	PartnerName string
	ViewerID    string
	Messages    []messages.Message
}

// handleInbox lists the viewer's conversations, newest first.
func (h *httpHandler) handleInbox(c *gin.Context) {
	rc := h.requestContext(c)
	if !h.requireCustomer(c, rc) {
		return
	}
	ctx := c.Request.Context()

	conversations, err := h.messages.Conversations(ctx, rc.Shop, rc.CustomerID)
	if err != nil {
		h.logger.Error("inbox load failed", zap.Error(err))
		conversations = nil
	}

	partnerIDs := make([]string, 0, len(conversations))
	for _, conversation := range conversations {
		partnerIDs = append(partnerIDs, conversation.PartnerID)
	}
	names, err := h.profiles.DisplayNames(ctx, rc.Shop, partnerIDs)
	if err != nil {
		h.logger.Warn("partner name lookup failed", zap.Error(err))
	}
	for index := range conversations {
		name := names[conversations[index].PartnerID]
		if name == "" {
			name = profiles.DefaultDisplayName(conversations[index].PartnerID)
		}
		conversations[index].PartnerName = name
	}

	data := inboxPageData{
		pageData:      newPageData(rc, ""),
		Conversations: conversations,
	}
	h.renderPage(c, "messages", data)
}

// handleThread renders the exchange with one partner plus the send form.
func (h *httpHandler) handleThread(c *gin.Context) {
	rc := h.requestContext(c)
	if !h.requireCustomer(c, rc) {
		return
	}
	ctx := c.Request.Context()
	partnerID := c.Param("id")

	thread, err := h.messages.Thread(ctx, rc.Shop, rc.CustomerID, partnerID)
	if err != nil {
		h.logger.Error("thread load failed", zap.Error(err))
		thread = nil
	}

	partnerName := profiles.DefaultDisplayName(partnerID)
	if names, err := h.profiles.DisplayNames(ctx, rc.Shop, []string{partnerID}); err == nil {
		if name := names[partnerID]; name != "" {
			partnerName = name
		}
	}

	data := threadPageData{
		pageData:    newPageData(rc, ""),
		PartnerID:   partnerID,
		PartnerName: partnerName,
		ViewerID:    rc.CustomerID,
		Messages:    thread,
	}
	data.Flash = flashMessage(c.Query("notice"))
	h.renderPage(c, "thread", data)
}

// handleSendMessage persists one message and reloads the thread; delivery is
// by the recipient's next page load, nothing is pushed.
func (h *httpHandler) handleSendMessage(c *gin.Context) {
	rc := h.requestContext(c)
	if !h.requireCustomer(c, rc) {
		return
	}
	partnerID := c.Param("id")

	_, err := h.messages.Send(c.Request.Context(), rc.Shop, rc.CustomerID, partnerID, c.PostForm("body"))
	notice := ""
	switch {
	case errors.Is(err, messages.ErrEmptyMessage):
		notice = "message_empty"
	case errors.Is(err, messages.ErrMessageTooLong):
		notice = "message_too_long"
	case errors.Is(err, messages.ErrSelfMessage):
		// Nothing sensible to flash; the thread page simply reloads.
	case err != nil:
		h.logger.Error("message send failed", zap.Error(err))
	}

	target := rc.BasePath + "/messages/" + url.PathEscape(partnerID)
	if notice != "" {
		target += "?notice=" + url.QueryEscape(notice)
	}
	h.redirect(c, target)
}
