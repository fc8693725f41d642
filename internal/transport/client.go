package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client sends replies and chat actions through the Bot API. One user chat
// per user id, so the chat id and the user id coincide.
type Client struct {
	BaseURL string
	Token   string
	HTTPC   *http.Client
}

func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		HTTPC:   &http.Client{Timeout: 30 * time.Second},
	}
}

type apiResp struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (c *Client) call(ctx context.Context, method string, payload any) error {
	if c.HTTPC == nil {
		return errors.New("transport: http client is nil")
	}
	if strings.TrimSpace(c.Token) == "" {
		return errors.New("transport: bot token is required")
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/%s", strings.TrimRight(c.BaseURL, "/"), c.Token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPC.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var decoded apiResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return err
	}
	if !decoded.OK {
		msg := decoded.Description
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return fmt.Errorf("transport: %s: %s", method, msg)
	}
	return nil
}

// SendMessage delivers a markdown-flavored reply to the user.
func (c *Client) SendMessage(ctx context.Context, userID int64, text string) error {
	return c.call(ctx, "sendMessage", map[string]any{
		"chat_id":    userID,
		"text":       text,
		"parse_mode": "Markdown",
	})
}

// SendTyping shows the typing indicator while a reply is being generated.
func (c *Client) SendTyping(ctx context.Context, userID int64) error {
	return c.call(ctx, "sendChatAction", map[string]any{
		"chat_id": userID,
		"action":  "typing",
	})
}
