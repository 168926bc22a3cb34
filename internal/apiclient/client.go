package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/brk3/flux/internal/logger"
	"github.com/brk3/flux/internal/normalize"
	"github.com/brk3/flux/pkg/flux"
	"github.com/brk3/flux/pkg/versioninfo"
	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNoToken is returned without contacting the server when a call has no
// bearer token.
var ErrNoToken = errors.New("apiclient: no bearer token")

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) IsUnauthorized() bool { return e.StatusCode == http.StatusUnauthorized }
func (e *APIError) IsNotFound() bool     { return e.StatusCode == http.StatusNotFound }
func (e *APIError) IsServerError() bool  { return e.StatusCode >= 500 }

type Client struct {
	http *resty.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "flux/"+versioninfo.Version)
	c.JSONMarshal = json.Marshal
	c.JSONUnmarshal = json.Unmarshal

	c.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		logger.DebugContext(r.Context(), "API request", "method", r.Method, "url", r.URL)
		return nil
	})
	c.OnAfterResponse(func(_ *resty.Client, r *resty.Response) error {
		logger.DebugContext(r.Request.Context(), "API response",
			"method", r.Request.Method,
			"url", r.Request.URL,
			"status", r.StatusCode(),
			"duration", r.Time(),
		)
		return nil
	})
	return &Client{http: c}
}

// Bootstrap fetches the full snapshot for the token's user.
func (c *Client) Bootstrap(ctx context.Context, token string) (*flux.Snapshot, error) {
	return c.snapshot(ctx, token, http.MethodGet, "/bootstrap", nil)
}

func (c *Client) CreateHabit(ctx context.Context, token string, h flux.NewHabit) (*flux.Snapshot, error) {
	return c.snapshot(ctx, token, http.MethodPost, "/habits", h)
}

func (c *Client) CreateLog(ctx context.Context, token string, l flux.NewLog) (*flux.Snapshot, error) {
	return c.snapshot(ctx, token, http.MethodPost, "/logs", l)
}

// CreateTransfer moves the pending balance into a new transfer.
func (c *Client) CreateTransfer(ctx context.Context, token string) (*flux.Snapshot, error) {
	return c.snapshot(ctx, token, http.MethodPost, "/transfers", struct{}{})
}

func (c *Client) PatchUser(ctx context.Context, token string, p flux.UserPatch) (*flux.User, error) {
	return c.user(ctx, token, http.MethodPatch, "/user", p)
}

func (c *Client) CompleteOnboarding(ctx context.Context, token string) (*flux.User, error) {
	return c.user(ctx, token, http.MethodPost, "/onboarding/complete", struct{}{})
}

// Version needs no token.
func (c *Client) Version(ctx context.Context) (*versioninfo.VersionInfo, error) {
	var out versioninfo.VersionInfo
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/version")
	if err != nil {
		return nil, fmt.Errorf("GET /version: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, parseError(resp)
	}
	return &out, nil
}

func (c *Client) snapshot(ctx context.Context, token, method, path string, body any) (*flux.Snapshot, error) {
	raw, err := c.do(ctx, token, method, path, body)
	if err != nil {
		return nil, err
	}
	s, err := normalize.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return s, nil
}

func (c *Client) user(ctx context.Context, token, method, path string, body any) (*flux.User, error) {
	raw, err := c.do(ctx, token, method, path, body)
	if err != nil {
		return nil, err
	}
	u, err := normalize.DecodeUser(raw)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return u, nil
}

func (c *Client) do(ctx context.Context, token, method, path string, body any) ([]byte, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	req := c.http.R().SetContext(ctx).SetAuthToken(token)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if !resp.IsSuccess() {
		return nil, parseError(resp)
	}
	return resp.Body(), nil
}

type errorBody struct {
	Code    any    `json:"code"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func parseError(resp *resty.Response) *APIError {
	e := &APIError{StatusCode: resp.StatusCode()}
	var body errorBody
	if err := json.Unmarshal(resp.Body(), &body); err == nil {
		if body.Code != nil {
			e.Code = fmt.Sprint(body.Code)
		}
		e.Message = body.Error
		if e.Message == "" {
			e.Message = body.Message
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(e.StatusCode)
	}
	return e
}
