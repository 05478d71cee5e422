// Package gateway fronts the identity provider with input validation and
// login-time questionnaire-completion lookup.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"sakhi/internal/identity"
)

// Matches the address pattern the signup form enforces.
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)

// ValidationError reports malformed input caught before any provider call.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// AuthError wraps a provider-side rejection, carrying its message.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string { return e.Message }
func (e *AuthError) Unwrap() error { return e.Err }

// LoginResult is a successful authentication plus the user's
// questionnaire-completion state read from the store.
type LoginResult struct {
	UserID            string
	Email             string
	QuestionnaireDone bool
}

// SignupResult reports account creation. ConfirmationRequired means the
// caller must not assume immediate login capability.
type SignupResult struct {
	UserID               string
	ConfirmationRequired bool
}

// Provider is the identity provider surface the gateway needs.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (identity.User, error)
	SignUp(ctx context.Context, email, password string) (identity.SignupOutcome, error)
}

// CompletionChecker reports whether a user already submitted the questionnaire.
type CompletionChecker interface {
	HasQuestionnaireResponse(ctx context.Context, userID string) (bool, error)
}

// Gateway validates credentials locally and delegates to the provider.
type Gateway struct {
	provider Provider
	store    CompletionChecker
	logger   *slog.Logger
}

// New creates a credential gateway.
func New(provider Provider, store CompletionChecker, logger *slog.Logger) *Gateway {
	return &Gateway{provider: provider, store: store, logger: logger}
}

// Login authenticates and returns the user's completion state.
func (g *Gateway) Login(ctx context.Context, email, password string) (LoginResult, error) {
	if email == "" || password == "" {
		return LoginResult{}, &ValidationError{Message: "please enter both email and password"}
	}

	user, err := g.provider.SignIn(ctx, email, password)
	if err != nil {
		return LoginResult{}, &AuthError{Message: fmt.Sprintf("login failed: %v", err), Err: err}
	}

	done, err := g.store.HasQuestionnaireResponse(ctx, user.ID)
	if err != nil {
		// Completion is re-derived on the next evaluation; treat the user
		// as not yet completed rather than failing the login.
		g.logger.Warn("failed to check questionnaire completion", "user_id", user.ID, "error", err)
		done = false
	}

	return LoginResult{UserID: user.ID, Email: user.Email, QuestionnaireDone: done}, nil
}

// Signup validates the email syntax and creates the account.
func (g *Gateway) Signup(ctx context.Context, email, password string) (SignupResult, error) {
	if email == "" || password == "" {
		return SignupResult{}, &ValidationError{Message: "please enter both email and password"}
	}
	if !emailPattern.MatchString(email) {
		return SignupResult{}, &ValidationError{Message: "please enter a valid email address"}
	}

	outcome, err := g.provider.SignUp(ctx, email, password)
	if err != nil {
		return SignupResult{}, &AuthError{Message: fmt.Sprintf("signup failed: %v", err), Err: err}
	}

	return SignupResult{
		UserID:               outcome.UserID,
		ConfirmationRequired: outcome.ConfirmationRequired,
	}, nil
}
