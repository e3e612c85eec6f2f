package pennywise

import (
	"context"

	"github.com/pennywise-app/pennywise-go/internal/auth"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// authService implements the AuthService interface
type authService struct {
	client  *Client
	service *auth.Service

	// renewals coalesces concurrent refreshes and token lookups
	renewals singleflight.Group
}

// newAuthService creates a new auth service
func newAuthService(client *Client, service *auth.Service) *authService {
	return &authService{
		client:  client,
		service: service,
	}
}

// Login performs password authentication
func (a *authService) Login(ctx context.Context, email, password string) error {
	if err := a.service.Login(ctx, email, password); err != nil {
		return err
	}
	return a.adoptSession()
}

// SignUp registers a new account; a session is adopted when one is returned
func (a *authService) SignUp(ctx context.Context, email, password string) error {
	if err := a.service.SignUp(ctx, email, password); err != nil {
		return err
	}
	if _, err := a.service.GetSession(); err != nil {
		return nil
	}
	return a.adoptSession()
}

// Refresh renews the session with its refresh token
func (a *authService) Refresh(ctx context.Context) error {
	if err := a.service.Refresh(ctx); err != nil {
		return err
	}
	return a.adoptSession()
}

// Logout ends the session locally and remotely
func (a *authService) Logout(ctx context.Context) error {
	a.client.transport.SetSession(nil)
	return a.service.Logout(ctx)
}

// GetSession returns the current session
func (a *authService) GetSession() *Session {
	return a.client.transport.Session()
}

// SaveSession saves session to file
func (a *authService) SaveSession(path string) error {
	return a.service.SaveSession(path)
}

// LoadSession loads session from file. An expired session is still installed
// so the next call can renew it with its refresh token.
func (a *authService) LoadSession(path string) error {
	loadErr := a.service.LoadSession(path)
	if loadErr != nil && !errors.Is(loadErr, ErrSessionExpired) {
		return loadErr
	}
	session, err := a.service.GetSession()
	if err != nil {
		return err
	}
	a.client.transport.SetSession(session)
	return loadErr
}

// ensureSession makes the transport session usable for user-scoped calls:
// an expired session is refreshed and a bare token is resolved to its user.
func (a *authService) ensureSession(ctx context.Context) error {
	session := a.client.transport.Session()
	if session == nil || session.Token == "" {
		return ErrNotAuthenticated
	}
	if !session.Expired() && session.UserID != "" {
		return nil
	}

	_, err, _ := a.renewals.Do(session.Token, func() (interface{}, error) {
		if session.Expired() {
			a.service.SetSession(session)
			if session.RefreshToken == "" {
				return nil, ErrSessionExpired
			}
			a.client.logInfo("Refreshing expired session", "email", session.Email)
			return nil, a.Refresh(ctx)
		}

		if err := a.service.AdoptToken(ctx, session.Token); err != nil {
			return nil, err
		}
		resolved, err := a.service.GetSession()
		if err != nil {
			return nil, err
		}
		a.client.transport.SetSession(resolved)
		return nil, nil
	})
	return err
}

// adoptSession hands the auth session to the transport and persists it
func (a *authService) adoptSession() error {
	session, err := a.service.GetSession()
	if err != nil {
		return err
	}

	a.client.transport.SetSession(session)

	if a.client.options.SessionFile != "" {
		if err := a.service.SaveSession(a.client.options.SessionFile); err != nil {
			a.client.logWarn("Failed to save session", "error", err)
		}
	}
	return nil
}
