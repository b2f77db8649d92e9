// Package emailjs delivers templated notification emails through the
// EmailJS REST API.
package emailjs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/strangerdangercoffee/portal/internal/domain"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("emailjs")

const sendPath = "/api/v1.0/email/send"

// Client sends one email per call. There is no retry: a notification is
// best effort and a duplicate email is worse than a missing one.
type Client struct {
	httpClient *http.Client
	baseURL    string
	serviceID  string
	publicKey  string
	privateKey string
	cb         *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// NewClient creates a Client. cb may be nil.
func NewClient(httpClient *http.Client, baseURL, serviceID, publicKey, privateKey string, cb *gobreaker.CircuitBreaker, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceID:  serviceID,
		publicKey:  publicKey,
		privateKey: privateKey,
		cb:         cb,
		logger:     logger,
	}
}

type sendRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	AccessToken    string            `json:"accessToken,omitempty"`
	TemplateParams map[string]string `json:"template_params"`
}

// Send renders templateID with params. Every failure is a
// *domain.ErrNotification carrying the provider status and text.
func (c *Client) Send(ctx context.Context, templateID string, params map[string]string) error {
	ctx, span := tracer.Start(ctx, "EmailJS.Send")
	defer span.End()
	span.SetAttributes(attribute.String("emailjs.template", templateID))

	send := func() (any, error) { return nil, c.post(ctx, templateID, params) }

	var err error
	if c.cb != nil {
		_, err = c.cb.Execute(send)
	} else {
		_, err = send()
	}
	if err == nil {
		return nil
	}

	var nerr *domain.ErrNotification
	if !errors.As(err, &nerr) {
		nerr = &domain.ErrNotification{Template: templateID, Text: err.Error()}
	}
	span.RecordError(nerr)
	span.SetStatus(codes.Error, nerr.Reason())
	c.logger.Warn("emailjs: send failed",
		zap.String("template", templateID),
		zap.Int("status", nerr.Status),
		zap.String("reason", nerr.Reason()),
		zap.String("text", nerr.Text),
	)
	return nerr
}

func (c *Client) post(ctx context.Context, templateID string, params map[string]string) error {
	body, err := json.Marshal(sendRequest{
		ServiceID:      c.serviceID,
		TemplateID:     templateID,
		UserID:         c.publicKey,
		AccessToken:    c.privateKey,
		TemplateParams: params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sendPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.ErrNotification{Template: templateID, Text: err.Error()}
	}
	defer resp.Body.Close()

	text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(text))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &domain.ErrNotification{Template: templateID, Status: resp.StatusCode, Text: msg}
	}

	c.logger.Debug("emailjs: sent",
		zap.String("template", templateID),
		zap.String("response", fmt.Sprintf("%d %s", resp.StatusCode, strings.TrimSpace(string(text)))),
	)
	return nil
}
