// Package identity wraps the external identity provider's HTTP API.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// User is the provider's view of an account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// SignupOutcome reports the result of account creation. When
// ConfirmationRequired is set the account cannot log in until the user
// completes out-of-band verification.
type SignupOutcome struct {
	UserID               string
	ConfirmationRequired bool
}

// ProviderError carries the provider's own failure message.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("identity provider error (%d): %s", e.StatusCode, e.Message)
}

// Client talks to a GoTrue-style identity endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an identity client.
func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}

type signupResponse struct {
	ID                 string `json:"id"`
	Email              string `json:"email"`
	ConfirmationSentAt string `json:"confirmation_sent_at"`
}

type errorResponse struct {
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
}

// SignIn exchanges credentials for the provider's user record.
func (c *Client) SignIn(ctx context.Context, email, password string) (User, error) {
	body, err := c.post(ctx, "/token?grant_type=password", credentials{Email: email, Password: password})
	if err != nil {
		return User{}, err
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return User{}, fmt.Errorf("failed to unmarshal sign-in response: %w", err)
	}
	if resp.User.ID == "" {
		return User{}, &ProviderError{StatusCode: http.StatusOK, Message: "sign-in response carried no user"}
	}

	c.logger.Info("user signed in", "user_id", resp.User.ID)
	return resp.User, nil
}

// SignUp creates an account. The provider typically requires email
// verification before the account can sign in.
func (c *Client) SignUp(ctx context.Context, email, password string) (SignupOutcome, error) {
	body, err := c.post(ctx, "/signup", credentials{Email: email, Password: password})
	if err != nil {
		return SignupOutcome{}, err
	}

	var resp signupResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return SignupOutcome{}, fmt.Errorf("failed to unmarshal sign-up response: %w", err)
	}
	if resp.ID == "" {
		return SignupOutcome{}, &ProviderError{StatusCode: http.StatusOK, Message: "sign-up response carried no user"}
	}

	c.logger.Info("user signed up", "user_id", resp.ID)
	return SignupOutcome{
		UserID:               resp.ID,
		ConfirmationRequired: resp.ConfirmationSentAt != "",
	}, nil
}

// post sends a JSON request and returns the raw success body. Non-2xx
// responses are decoded into the provider's message.
func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("content-type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp errorResponse
		message := resp.Status
		if json.Unmarshal(body, &errResp) == nil {
			if errResp.ErrorDescription != "" {
				message = errResp.ErrorDescription
			} else if errResp.Msg != "" {
				message = errResp.Msg
			}
		}
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: message}
	}

	return body, nil
}
