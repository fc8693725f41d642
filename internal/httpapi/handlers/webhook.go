package handlers

import (
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/atomcoach/atom/internal/bot"
	"github.com/atomcoach/atom/internal/common"
	"github.com/atomcoach/atom/internal/transport"
	"github.com/gin-gonic/gin"
)

const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"message": "pong"})
}

// Webhook receives transport updates. Once a payload parses, the response is
// always 200 so the transport does not re-deliver; handling errors are logged
// and degrade to user-facing fallback copy inside the dispatcher.
func (h *Handler) Webhook(c *gin.Context) {
	if h.Cfg.WebhookSecret != "" {
		got := c.GetHeader(secretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.Cfg.WebhookSecret)) != 1 {
			common.Fail(c, http.StatusUnauthorized, 40100, "bad secret token")
			return
		}
	}

	var up transport.Update
	if err := c.ShouldBindJSON(&up); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	uid := up.UserID()
	if uid == 0 || up.Message == nil || up.Message.Text == "" {
		// Non-text updates (joins, edits, media) are outside this core.
		common.OK(c, nil)
		return
	}

	ev := bot.Event{UserID: uid, Text: up.Message.Text}
	if cmd, ok := transport.Command(up.Message.Text); ok {
		ev.Command = cmd
	}

	if err := h.Dispatcher.Handle(c.Request.Context(), ev); err != nil {
		log.Printf("dispatch failed user_id=%d update_id=%d err=%v", uid, up.UpdateID, err)
	}
	common.OK(c, nil)
}
