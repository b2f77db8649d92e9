package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/strangerdangercoffee/portal/internal/domain"
	"github.com/strangerdangercoffee/portal/internal/infra/resilience"

	"go.uber.org/zap"
)

// ============================================================
// HTTP helpers shared by PostgREST and GoTrue calls
// ============================================================

// postgres unique_violation and PostgREST "no rows for single object"
const (
	codeUniqueViolation = "23505"
	codeNoRows          = "PGRST116"
)

// apiError is a non-2xx response from Supabase.
type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase returned status %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase returned status %d: %s", e.Status, e.Message)
}

// parseAPIError pulls code and message out of either PostgREST
// ({code,message,details}) or GoTrue ({error,error_description,msg}) bodies.
func parseAPIError(status int, body []byte) *apiError {
	var payload struct {
		Code             any    `json:"code"`
		ErrorCode        string `json:"error_code"`
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	e := &apiError{Status: status}
	if err := json.Unmarshal(body, &payload); err != nil {
		e.Message = strings.TrimSpace(string(body))
		return e
	}

	if s, ok := payload.Code.(string); ok {
		e.Code = s
	} else if payload.ErrorCode != "" {
		e.Code = payload.ErrorCode
	}
	for _, m := range []string{payload.Message, payload.Msg, payload.ErrorDescription, payload.Error} {
		if m != "" {
			e.Message = m
			break
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

// classify turns an apiError into a permanent domain error when retrying
// cannot help. Anything else is returned as-is and retried.
func classify(e *apiError, resource, id string) error {
	switch {
	case e.Code == codeUniqueViolation || e.Status == http.StatusConflict:
		return resilience.Permanent(&domain.ErrConflict{Message: e.Message})
	case e.Code == codeNoRows:
		return resilience.Permanent(&domain.ErrNotFound{Resource: resource, ID: id})
	case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden:
		return resilience.Permanent(&domain.ErrUnauthorized{Message: e.Message})
	case e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity:
		return resilience.Permanent(&domain.ErrValidation{Message: e.Message})
	case e.Status == http.StatusNotFound:
		return resilience.Permanent(&domain.ErrExternalService{Service: "supabase/" + resource, Err: e})
	}
	return e
}

// send executes one request and returns the body of a 2xx response.
func (c *Client) send(ctx context.Context, method, url string, data any, bearer, apiKey, prefer string) ([]byte, error) {
	var reader *bytes.Reader
	if data != nil {
		jsonBody, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(jsonBody)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		c.logger.Error("supabase: failed to create request",
			zap.String("method", method),
			zap.String("url", url),
			zap.Error(err),
		)
		return nil, err
	}

	req.Header.Set("apikey", apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("url", url),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, parseAPIError(resp.StatusCode, body)
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
	)
	return body, nil
}

// rest calls PostgREST with the service role key.
func (c *Client) rest(ctx context.Context, method, path string, data any, prefer string) ([]byte, error) {
	if prefer == "" && method != http.MethodGet {
		prefer = "return=representation"
	}
	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
	apiKey := c.anonKey
	if apiKey == "" {
		apiKey = c.serviceRoleKey
	}
	return c.send(ctx, method, url, data, c.serviceRoleKey, apiKey, prefer)
}

// auth calls GoTrue with the anon key, acting as the user when userToken is set.
func (c *Client) auth(ctx context.Context, method, path string, data any, userToken string) ([]byte, error) {
	url := fmt.Sprintf("%s/auth/v1/%s", c.baseURL, path)
	bearer := userToken
	if bearer == "" {
		bearer = c.anonKey
	}
	return c.send(ctx, method, url, data, bearer, c.anonKey, "")
}

func notFound(resource, id string) error {
	return resilience.Permanent(&domain.ErrNotFound{Resource: resource, ID: id})
}

// asAPIError reports whether err is a Supabase HTTP error response.
func asAPIError(err error) (*apiError, bool) {
	e, ok := err.(*apiError)
	return e, ok
}

// isEmpty reports an empty PostgREST result.
func isEmpty(body []byte) bool {
	b := bytes.TrimSpace(body)
	return len(b) == 0 || string(b) == "[]" || string(b) == "null"
}

func readBody(resp *http.Response) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
