package auth

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pennywise-app/pennywise-go/internal/types"
	"github.com/pkg/errors"
)

const (
	tokenEndpoint  = "/auth/v1/token"
	signUpEndpoint = "/auth/v1/signup"
	logoutEndpoint = "/auth/v1/logout"
	userEndpoint   = "/auth/v1/user"
)

// Service handles authentication operations against the hosted auth API
type Service struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	headers    map[string]string
	logger     types.Logger

	// sessionKey encrypts the session file when set
	sessionKey string

	mu      sync.RWMutex
	session *types.Session
}

// NewService creates a new auth service
func NewService(baseURL, apiKey string, httpClient *http.Client, logger types.Logger) *Service {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: types.DefaultTimeout}
	}

	headers := map[string]string{
		"Accept":       "application/json",
		"Content-Type": "application/json",
		"User-Agent":   types.UserAgent,
	}
	if apiKey != "" {
		headers["apikey"] = apiKey
	}

	return &Service{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		headers:    headers,
		logger:     logger,
	}
}

// Login performs password authentication
func (s *Service) Login(ctx context.Context, email, password string) error {
	return s.token(ctx, "password", map[string]string{
		"email":    email,
		"password": password,
	}, email)
}

// Refresh exchanges the stored refresh token for a new session
func (s *Service) Refresh(ctx context.Context) error {
	current, err := s.GetSession()
	if err != nil {
		return err
	}
	if current.RefreshToken == "" {
		return types.ErrSessionExpired
	}
	return s.token(ctx, "refresh_token", map[string]string{
		"refresh_token": current.RefreshToken,
	}, current.Email)
}

// SignUp registers a new account and stores the returned session, if any
func (s *Service) SignUp(ctx context.Context, email, password string) error {
	var resp tokenResponse
	if err := s.request(ctx, http.MethodPost, signUpEndpoint, map[string]string{
		"email":    email,
		"password": password,
	}, "", &resp); err != nil {
		return err
	}

	// accounts requiring email confirmation come back without a token
	if resp.AccessToken == "" {
		if s.logger != nil {
			s.logger.Info("Sign up pending confirmation", "email", email)
		}
		return nil
	}

	s.setFromResponse(&resp, email)
	return nil
}

// Logout revokes the session remotely and forgets it locally
func (s *Service) Logout(ctx context.Context) error {
	current, err := s.GetSession()
	if err != nil {
		return nil
	}

	s.SetSession(nil)

	if err := s.request(ctx, http.MethodPost, logoutEndpoint, nil, current.Token, nil); err != nil {
		// the local session is already gone; a failed revoke only leaves the token to expire
		if s.logger != nil {
			s.logger.Warn("Remote logout failed", "error", err)
		}
	}
	return nil
}

// AdoptToken resolves the user behind a bare access token and installs a session for it
func (s *Service) AdoptToken(ctx context.Context, token string) error {
	var user struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := s.request(ctx, http.MethodGet, userEndpoint, nil, token, &user); err != nil {
		if errors.Is(err, types.ErrLoginFailed) {
			return errors.Wrap(types.ErrNotAuthenticated, "access token rejected")
		}
		return err
	}
	if user.ID == "" {
		return errors.Wrap(types.ErrNotAuthenticated, "no user behind access token")
	}

	session := &types.Session{
		Token:      token,
		UserID:     user.ID,
		Email:      user.Email,
		ExpiresAt:  tokenExpiry(token),
		DeviceUUID: uuid.New().String(),
	}
	// keep the refresh token when the token came from a stored session
	if current, err := s.GetSession(); err == nil && current.Token == token {
		session.RefreshToken = current.RefreshToken
		if !current.ExpiresAt.IsZero() {
			session.ExpiresAt = current.ExpiresAt
		}
		if current.DeviceUUID != "" {
			session.DeviceUUID = current.DeviceUUID
		}
	}
	s.SetSession(session)

	if s.logger != nil {
		s.logger.Info("Access token adopted", "email", user.Email)
	}
	return nil
}

// GetSession returns the current session
func (s *Service) GetSession() (*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil, types.ErrNotAuthenticated
	}
	return s.session, nil
}

// SetSession sets the current session
func (s *Service) SetSession(session *types.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
}

// SetSessionKey enables encryption of saved session files
func (s *Service) SetSessionKey(passphrase string) {
	s.sessionKey = passphrase
}

// SaveSession saves session to file
func (s *Service) SaveSession(path string) error {
	session, err := s.GetSession()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.Wrap(err, "failed to create session directory")
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal session")
	}
	if s.sessionKey != "" {
		if data, err = seal(data, s.sessionKey); err != nil {
			return err
		}
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.Wrap(err, "failed to write session file")
	}

	if s.logger != nil {
		s.logger.Info("Session saved", "path", path)
	}

	return nil
}

// LoadSession loads session from file
func (s *Service) LoadSession(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.ErrNotAuthenticated
		}
		return errors.Wrap(err, "failed to read session file")
	}
	if data, err = unseal(data, s.sessionKey); err != nil {
		return err
	}

	var session types.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return errors.Wrap(err, "failed to unmarshal session")
	}

	// an expired session is still loaded so Refresh can use its refresh token
	s.SetSession(&session)

	if session.Expired() {
		return types.ErrSessionExpired
	}

	if s.logger != nil {
		s.logger.Info("Session loaded", "path", path, "email", session.Email)
	}

	return nil
}

// RemoveSession deletes the session file
func RemoveSession(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove session file")
	}
	return nil
}

func (s *Service) token(ctx context.Context, grant string, body map[string]string, email string) error {
	var resp tokenResponse
	if err := s.request(ctx, http.MethodPost, tokenEndpoint+"?grant_type="+grant, body, "", &resp); err != nil {
		return err
	}

	if resp.AccessToken == "" {
		return errors.New("no token in login response")
	}

	s.setFromResponse(&resp, email)

	if s.logger != nil {
		s.logger.Info("Login successful", "email", email, "grant", grant)
	}
	return nil
}

func (s *Service) setFromResponse(resp *tokenResponse, email string) {
	if resp.User.Email != "" {
		email = resp.User.Email
	}

	expires := time.Now().Add(time.Hour)
	if resp.ExpiresIn > 0 {
		expires = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}

	s.SetSession(&types.Session{
		Token:        resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		UserID:       resp.User.ID,
		Email:        email,
		ExpiresAt:    expires,
		DeviceUUID:   uuid.New().String(),
	})
}

func (s *Service) request(ctx context.Context, method, endpoint string, body interface{}, bearer string, result interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to marshal auth request")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reader)
	if err != nil {
		return errors.Wrap(err, "failed to create auth request")
	}

	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	if s.logger != nil {
		s.logger.Debug("Auth request", "endpoint", endpoint)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "auth request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read auth response")
	}

	if s.logger != nil {
		s.logger.Debug("Auth response", "status", resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp types.PostgrestError
		_ = json.Unmarshal(respBody, &errResp)

		switch {
		case errResp.Error == "invalid_grant", resp.StatusCode == http.StatusUnauthorized:
			return errors.Wrap(types.ErrLoginFailed, errResp.Text())
		case resp.StatusCode == http.StatusTooManyRequests:
			return types.ErrRateLimited
		default:
			return &types.Error{
				Code:       "AUTH_FAILED",
				Message:    fmt.Sprintf("auth request failed with status %d: %s", resp.StatusCode, errResp.Text()),
				StatusCode: resp.StatusCode,
			}
		}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return errors.Wrap(err, "failed to parse auth response")
		}
	}
	return nil
}

// tokenExpiry reads the exp claim of a JWT access token without verifying it.
// Opaque tokens yield the zero time, which never expires locally.
func tokenExpiry(token string) time.Time {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}
	}
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return time.Time{}
	}
	var claims struct {
		Exp int64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil || claims.Exp == 0 {
		return time.Time{}
	}
	return time.Unix(claims.Exp, 0)
}

// tokenResponse represents the auth API token response
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}
