package transport

import "strings"

// Update is the inbound webhook payload (Telegram Bot API shape).
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from"`
	Chat      *Chat  `json:"chat"`
	Text      string `json:"text"`
}

type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
}

type Chat struct {
	ID int64 `json:"id"`
}

// UserID returns the sender id, or 0 when the update carries no usable
// message.
func (u *Update) UserID() int64 {
	if u == nil || u.Message == nil || u.Message.From == nil {
		return 0
	}
	return u.Message.From.ID
}

// Command extracts a leading slash command from text, without the slash and
// with any @botname suffix stripped. ok is false for plain text.
func Command(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	cmd := strings.Fields(text)[0][1:]
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	if cmd == "" {
		return "", false
	}
	return cmd, true
}
