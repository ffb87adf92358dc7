package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

var ErrGatewayRejected = errors.New("delivery: gateway rejected the message")

type SMSConfig struct {
	Endpoint string
	APIID    string
	Sender   string
	Client   *http.Client
}

// SMS posts a form to an sms.ru style HTTP gateway.
type SMS struct {
	endpoint string
	apiID    string
	sender   string
	client   *http.Client
}

func NewSMS(cfg SMSConfig) *SMS {
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	return &SMS{endpoint: cfg.Endpoint, apiID: cfg.APIID, sender: cfg.Sender, client: cfg.Client}
}

type smsResponse struct {
	Status     string `json:"status"`
	StatusText string `json:"status_text"`
}

func (s *SMS) Send(ctx context.Context, address, code string) error {
	form := url.Values{}
	form.Set("api_id", s.apiID)
	form.Set("to", strings.TrimPrefix(address, "+"))
	form.Set("msg", "Your verification code: "+code)
	form.Set("json", "1")
	if s.sender != "" {
		form.Set("from", s.sender)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: status %d", ErrGatewayRejected, resp.StatusCode)
	}

	var out smsResponse
	if err := json.Unmarshal(body, &out); err == nil && out.Status != "" && !strings.EqualFold(out.Status, "OK") {
		return fmt.Errorf("%w: %s %s", ErrGatewayRejected, out.Status, out.StatusText)
	}

	return nil
}
