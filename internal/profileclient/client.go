// Package profileclient consumes the users API on behalf of the profile
// settings view.
package profileclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/profile"
	"github.com/gofiber/fiber/v2"
)

var (
	ErrNotFound     = errors.New("profile not found")
	ErrUnauthorized = errors.New("profile api rejected credentials")
)

// TokenSource supplies bearer tokens for the API.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// Client talks to /api/users/:email/profile over HTTP.
type Client struct {
	baseURL string
	timeout time.Duration
	tokens  TokenSource
}

func New(baseURL string, timeout time.Duration, tokens TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		tokens:  tokens,
	}
}

func (c *Client) profileURL(email string) string {
	return c.baseURL + "/api/users/" + url.PathEscape(email) + "/profile"
}

func (c *Client) GetProfile(ctx context.Context, email string) (*profile.Profile, error) {
	code, body, err := c.do(ctx, func(token string) *fiber.Agent {
		return c.agent(ctx, fiber.Get(c.profileURL(email)), token)
	})
	if err != nil {
		return nil, err
	}

	switch {
	case code == fiber.StatusNotFound:
		return nil, ErrNotFound
	case code != fiber.StatusOK:
		return nil, statusError(code, body)
	}

	var p profile.Profile
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile from api: %w", err)
	}
	return &p, nil
}

// UpdateProfile returns the API's verdict. Only transport problems and
// unexpected statuses are errors; a rejected update is a result with
// Success false.
func (c *Client) UpdateProfile(ctx context.Context, email string, fields profile.Fields) (*profile.UpdateResult, error) {
	code, body, err := c.do(ctx, func(token string) *fiber.Agent {
		return c.agent(ctx, fiber.Put(c.profileURL(email)), token).JSON(fields)
	})
	if err != nil {
		return nil, err
	}

	switch code {
	case fiber.StatusOK, fiber.StatusBadRequest, fiber.StatusNotFound, fiber.StatusUnprocessableEntity:
	default:
		return nil, statusError(code, body)
	}

	var res profile.UpdateResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("failed to decode update result: %w", err)
	}
	if code != fiber.StatusOK {
		res.Success = false
	}
	return &res, nil
}

// do sends the request built by build, retrying once with a renewed token
// when the API answers 401.
func (c *Client) do(ctx context.Context, build func(token string) *fiber.Agent) (int, []byte, error) {
	token, err := c.token(ctx)
	if err != nil {
		return 0, nil, err
	}

	code, body, err := send(ctx, build(token))
	if err != nil || code != fiber.StatusUnauthorized || c.tokens == nil {
		return code, body, err
	}

	token, err = c.tokens.Refresh(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	code, body, err = send(ctx, build(token))
	if err == nil && code == fiber.StatusUnauthorized {
		return 0, nil, ErrUnauthorized
	}
	return code, body, err
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", nil
	}
	return c.tokens.Token(ctx)
}

// agent applies auth headers and the request timeout, shortened to the
// caller's deadline when that comes first.
func (c *Client) agent(ctx context.Context, a *fiber.Agent, token string) *fiber.Agent {
	a.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if token != "" {
		a.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	return a.Timeout(timeout)
}

// send runs the agent unless ctx is already done.
func send(ctx context.Context, a *fiber.Agent) (int, []byte, error) {
	if err := ctx.Err(); err != nil {
		fiber.ReleaseAgent(a)
		return 0, nil, err
	}
	code, body, errs := a.Bytes()
	if len(errs) > 0 {
		return 0, nil, fmt.Errorf("profile api request failed: %w", errors.Join(errs...))
	}
	return code, body, nil
}

func statusError(code int, body []byte) error {
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		return fmt.Errorf("profile api returned %d: %s", code, payload.Message)
	}
	return fmt.Errorf("profile api returned %d", code)
}
