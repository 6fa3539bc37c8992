package server

import (
	"errors"
	"net/url"

	"github.com/MarcoPoloResearchLab/stoa/internal/auth"
	"github.com/MarcoPoloResearchLab/stoa/internal/feed"
	"github.com/MarcoPoloResearchLab/stoa/internal/profiles"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type profilePageData struct {
	pageData
	Profile     profiles.Profile
	Counts      profiles.FollowCounts
	IsSelf      bool
	IsFollowing bool
	Items       []feed.TimelineItem
}

// handleOwnProfile renders the viewer's profile with the edit form.
func (h *httpHandler) handleOwnProfile(c *gin.Context) {
	rc := h.requestContext(c)
	if !h.requireCustomer(c, rc) {
		return
	}
	profile, err := h.profiles.Ensure(c.Request.Context(), rc.Shop, rc.CustomerID)
	if err != nil {
		h.logger.Error("profile load failed", zap.Error(err))
		profile = profiles.Profile{
			Shop:        rc.Shop,
			CustomerID:  rc.CustomerID,
			DisplayName: profiles.DefaultDisplayName(rc.CustomerID),
		}
	}
	h.renderProfile(c, rc, profile, true, flashMessage(c.Query("notice")))
}

// handleUpdateProfile saves the editable fields and returns to the profile.
func (h *httpHandler) handleUpdateProfile(c *gin.Context) {
	rc := h.requestContext(c)
	if !h.requireCustomer(c, rc) {
		return
	}
	_, err := h.profiles.Update(
		c.Request.Context(),
		rc.Shop,
		rc.CustomerID,
		c.PostForm("display_name"),
		c.PostForm("bio"),
	)
	notice := ""
	switch {
	case errors.Is(err, profiles.ErrDisplayNameTooLong):
		notice = "name_too_long"
	case errors.Is(err, profiles.ErrBioTooLong):
		notice = "bio_too_long"
	case err != nil:
		h.logger.Error("profile update failed", zap.Error(err))
	}
	target := rc.BasePath + "/profile"
	if notice != "" {
		target += "?notice=" + url.QueryEscape(notice)
	}
	h.redirect(c, target)
}

// handleProfilePage renders another customer's profile. A customer the shop
// has never seen still gets a presentable page; no row is created for them.
func (h *httpHandler) handleProfilePage(c *gin.Context) {
	rc := h.requestContext(c)
	customerID := c.Param("id")
	if customerID == rc.CustomerID {
		h.handleOwnProfile(c)
		return
	}

	profile, err := h.profiles.Get(c.Request.Context(), rc.Shop, customerID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			h.logger.Warn("profile lookup failed", zap.Error(err))
		}
		profile = profiles.Profile{
			Shop:        rc.Shop,
			CustomerID:  customerID,
			DisplayName: profiles.DefaultDisplayName(customerID),
		}
	}
	h.renderProfile(c, rc, profile, false, "")
}

// handleToggleFollow flips the follow edge toward the profiled customer.
func (h *httpHandler) handleToggleFollow(c *gin.Context) {
	rc := h.requestContext(c)
	if !h.requireCustomer(c, rc) {
		return
	}
	followeeID := c.Param("id")
	if _, err := h.profiles.ToggleFollow(c.Request.Context(), rc.Shop, rc.CustomerID, followeeID); err != nil {
		if !errors.Is(err, profiles.ErrSelfFollow) {
			h.logger.Warn("follow toggle failed", zap.Error(err))
		}
	}
	h.redirect(c, rc.BasePath+"/profile/"+url.PathEscape(followeeID))
}

func (h *httpHandler) renderProfile(c *gin.Context, rc auth.RequestContext, profile profiles.Profile, isSelf bool, flash string) {
	ctx := c.Request.Context()

	counts, err := h.profiles.Counts(ctx, rc.Shop, profile.CustomerID)
	if err != nil {
		h.logger.Warn("follow counts failed", zap.Error(err))
	}
	isFollowing := false
	if !isSelf && rc.Authenticated() {
		isFollowing, err = h.profiles.IsFollowing(ctx, rc.Shop, rc.CustomerID, profile.CustomerID)
		if err != nil {
			h.logger.Warn("follow lookup failed", zap.Error(err))
		}
	}

	data := profilePageData{
		pageData:    newPageData(rc, ""),
		Profile:     profile,
		Counts:      counts,
		IsSelf:      isSelf,
		IsFollowing: isFollowing,
		Items:       h.reader.ReadAuthor(ctx, rc.Shop, rc.CustomerID, profile.CustomerID, h.pageSize),
	}
	data.Flash = flash
	h.renderPage(c, "profile", data)
}
