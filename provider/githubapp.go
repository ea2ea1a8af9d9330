package provider

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default GitHub App JWT lifetime. GitHub rejects app JWTs longer
// than ten minutes.
const DefaultAppJWTTTL = 9 * time.Minute

// AppConfig holds GitHub App credentials for installation token minting.
type AppConfig struct {
	// AppID is the numeric GitHub App ID.
	AppID int64

	// InstallationID identifies the installation on the target repository.
	InstallationID int64

	// PrivateKey is the App's RSA signing key in PEM form.
	PrivateKey []byte

	// BaseURL overrides the GitHub API endpoint (empty for github.com).
	BaseURL string

	// JWTTTL is the app JWT lifetime. Defaults to DefaultAppJWTTTL if zero.
	JWTTTL time.Duration
}

func (c AppConfig) jwtTTL() time.Duration {
	if c.JWTTTL == 0 {
		return DefaultAppJWTTTL
	}
	return c.JWTTTL
}

func (c AppConfig) apiBase() string {
	if c.BaseURL == "" {
		return "https://api.github.com"
	}
	return c.BaseURL
}

// AppTokenSource mints short-lived installation tokens for a GitHub App.
// Tokens are cached until shortly before expiry.
type AppTokenSource struct {
	cfg    AppConfig
	key    *rsa.PrivateKey
	client *http.Client

	token   string
	expires time.Time
}

// NewAppTokenSource parses the private key and returns a token source.
func NewAppTokenSource(cfg AppConfig) (*AppTokenSource, error) {
	if cfg.AppID == 0 || cfg.InstallationID == 0 {
		return nil, fmt.Errorf("app ID and installation ID are required")
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("parse app private key: %w", err)
	}

	return &AppTokenSource{
		cfg:    cfg,
		key:    key,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Token returns a valid installation token, minting a new one when the
// cached token is within a minute of expiry.
func (s *AppTokenSource) Token(ctx context.Context) (string, error) {
	if s.token != "" && time.Until(s.expires) > time.Minute {
		return s.token, nil
	}

	appJWT, err := s.signAppJWT()
	if err != nil {
		return "", err
	}

	token, expires, err := s.exchangeForInstallationToken(ctx, appJWT)
	if err != nil {
		return "", err
	}

	s.token = token
	s.expires = expires
	return token, nil
}

// signAppJWT creates the RS256 app JWT GitHub requires for the
// installation token exchange. The issued-at is backdated a minute to
// absorb clock skew.
func (s *AppTokenSource) signAppJWT() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    fmt.Sprintf("%d", s.cfg.AppID),
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.jwtTTL())),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign app JWT: %w", err)
	}
	return signed, nil
}

func (s *AppTokenSource) exchangeForInstallationToken(ctx context.Context, appJWT string) (string, time.Time, error) {
	url := fmt.Sprintf("%s/app/installations/%d/access_tokens", s.cfg.apiBase(), s.cfg.InstallationID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+appJWT)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", time.Time{}, &APIError{Provider: "github", Op: "mint installation token", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", time.Time{}, &APIError{
			Provider: "github", Op: "mint installation token",
			StatusCode: resp.StatusCode, Err: ErrUnauthorized,
		}
	}
	if resp.StatusCode != http.StatusCreated {
		return "", time.Time{}, &APIError{
			Provider: "github", Op: "mint installation token",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var body struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", time.Time{}, fmt.Errorf("decode token response: %w", err)
	}

	return body.Token, body.ExpiresAt, nil
}

// NewGitHubApp creates a GitHub provider authenticated as a GitHub App
// installation. The token is minted once up front; long-running callers
// should re-create the provider when it reports ErrUnauthorized.
func NewGitHubApp(ctx context.Context, cfg AppConfig, owner, repo string) (*GitHub, error) {
	source, err := NewAppTokenSource(cfg)
	if err != nil {
		return nil, err
	}

	token, err := source.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("mint installation token: %w", err)
	}

	return NewGitHub(token, owner, repo)
}
