// Package relayclient is the device-side gateway: it forwards turns and
// prediction requests to the relay over HTTP.
package relayclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/suPer8Hu/healthchat/internal/chatlog"
	"github.com/suPer8Hu/healthchat/internal/gateway"
)

type Client struct {
	BaseURL string
	token   string
	client  *resty.Client
}

type Option func(*Client)

// WithToken sends the session token as a bearer credential so the relay can
// attach the user's context documents.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.client.SetTimeout(d) }
}

func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:5000"
	}
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client: resty.New().
			SetTimeout(90*time.Second).
			SetHeader("Content-Type", "application/json"),
	}
	c.client.SetBaseURL(c.BaseURL)
	for _, opt := range opts {
		opt(c)
	}
	if c.token != "" {
		c.client.SetAuthToken(c.token)
	}
	return c
}

type chatReq struct {
	Message string      `json:"message"`
	History chatlog.Log `json:"history,omitempty"`
}

type chatResp struct {
	Response string `json:"response"`
}

type errorResp struct {
	Error string `json:"error"`
}

// Reply sends the newest user message with the earlier messages as history.
// The last entry of log must be the user's message.
func (c *Client) Reply(ctx context.Context, _ string, log chatlog.Log) (string, error) {
	if len(log) == 0 || log[len(log)-1].Sender != chatlog.SenderUser {
		return "", &gateway.GatewayError{Op: "chat", Err: errors.New("log does not end with a user message")}
	}
	last := log[len(log)-1]

	var out chatResp
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(chatReq{Message: last.Text, History: log[:len(log)-1]}).
		SetResult(&out).
		SetError(&errorResp{}).
		Post("/chat")
	if err != nil {
		return "", &gateway.GatewayError{Op: "chat", Err: err}
	}
	if resp.IsError() {
		return "", &gateway.GatewayError{Op: "chat", Err: statusErr(resp)}
	}
	return strings.TrimSpace(out.Response), nil
}

// Predict posts the readings to /predict. A 502 from the relay whose body
// names a malformed reply is surfaced as *gateway.MalformedReplyError.
func (c *Client) Predict(ctx context.Context, m gateway.HealthMetrics) (gateway.RiskAssessment, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(m).
		SetError(&errorResp{}).
		Post("/predict")
	if err != nil {
		return gateway.RiskAssessment{}, &gateway.GatewayError{Op: "predict", Err: err}
	}
	if resp.IsError() {
		serr := statusErr(resp)
		if e, ok := resp.Error().(*errorResp); ok && strings.Contains(e.Error, "malformed") {
			return gateway.RiskAssessment{}, &gateway.MalformedReplyError{Raw: resp.String(), Err: serr}
		}
		return gateway.RiskAssessment{}, &gateway.GatewayError{Op: "predict", Err: serr}
	}
	return gateway.ParseRiskAssessment(resp.String())
}

// StatusError is a non-2xx answer from the relay.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("relay: status %d", e.Status)
	}
	return fmt.Sprintf("relay: status %d: %s", e.Status, e.Message)
}

func statusErr(resp *resty.Response) error {
	msg := ""
	if e, ok := resp.Error().(*errorResp); ok && e != nil {
		msg = e.Error
	}
	return &StatusError{Status: resp.StatusCode(), Message: msg}
}
