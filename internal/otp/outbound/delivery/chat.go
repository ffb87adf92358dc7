package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type ChatConfig struct {
	// APIURL defaults to https://api.telegram.org.
	APIURL   string
	BotToken string
	Client   *http.Client
}

// Chat sends the code through the Telegram Bot API. The address is a chat id
// or an @username.
type Chat struct {
	sendURL string
	client  *http.Client
}

func NewChat(cfg ChatConfig) *Chat {
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.telegram.org"
	}
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	return &Chat{
		sendURL: strings.TrimRight(cfg.APIURL, "/") + "/bot" + cfg.BotToken + "/sendMessage",
		client:  cfg.Client,
	}
}

type chatRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type chatResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (c *Chat) Send(ctx context.Context, address, code string) error {
	payload, err := json.Marshal(chatRequest{
		ChatID: address,
		Text:   "Your verification code: " + code,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sendURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&out); err != nil {
		return fmt.Errorf("%w: status %d", ErrGatewayRejected, resp.StatusCode)
	}
	if !out.OK {
		return fmt.Errorf("%w: %s", ErrGatewayRejected, out.Description)
	}

	return nil
}
