package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/aliceafriedman/BikeCounters/internal/config"
	"github.com/aliceafriedman/BikeCounters/internal/models"
)

// AcquireToken exchanges the user's credentials for a bearer token with a
// password grant.
func (c *Client) AcquireToken(ctx context.Context, creds config.Credentials) (models.AuthToken, error) {
	u, err := url.Parse(c.opts.TokenURL)
	if err != nil || u.Scheme != "https" {
		return models.AuthToken{}, fmt.Errorf("%w: token endpoint must be an https url", ErrAuth)
	}

	form := url.Values{
		"grant_type": {"password"},
		"username":   {creds.Username},
		"password":   {creds.Password},
	}
	encoded := form.Encode()

	status, body, err := c.do(ctx, endpointToken, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.TokenURL, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Basic "+c.opts.ClientCredential)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return models.AuthToken{}, err
	}

	if !isSuccess(status) {
		return models.AuthToken{}, fmt.Errorf("%w: token endpoint returned %d", ErrAuth, status)
	}
	if !gjson.ValidBytes(body) {
		return models.AuthToken{}, fmt.Errorf("%w: token response is not valid JSON", ErrAuth)
	}
	access := gjson.GetBytes(body, "access_token").String()
	if access == "" {
		return models.AuthToken{}, fmt.Errorf("%w: token response has no access_token", ErrAuth)
	}

	c.logger.Debug("Acquired access token")
	return models.AuthToken{Value: access, AcquiredAt: time.Now()}, nil
}

// TokenSource hands out one token per run, re-acquiring it once lifetime
// has elapsed. A zero lifetime never refreshes within a run; Reset starts
// the next run with a fresh login.
type TokenSource struct {
	client   *Client
	creds    config.Credentials
	lifetime time.Duration
	now      func() time.Time

	mu    sync.Mutex
	token *models.AuthToken
}

func NewTokenSource(client *Client, creds config.Credentials, lifetime time.Duration) *TokenSource {
	return &TokenSource{
		client:   client,
		creds:    creds,
		lifetime: lifetime,
		now:      time.Now,
	}
}

// Reset drops the cached token so the next Token call logs in again.
func (s *TokenSource) Reset() {
	s.mu.Lock()
	s.token = nil
	s.mu.Unlock()
}

func (s *TokenSource) Token(ctx context.Context) (models.AuthToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != nil && (s.lifetime <= 0 || s.now().Sub(s.token.AcquiredAt) < s.lifetime) {
		return *s.token, nil
	}
	if s.token != nil {
		s.client.logger.WithField("lifetime", s.lifetime.String()).Info("Access token lifetime elapsed, re-authenticating")
	}

	tok, err := s.client.AcquireToken(ctx, s.creds)
	if err != nil {
		return models.AuthToken{}, err
	}
	tok.AcquiredAt = s.now()
	s.token = &tok
	return tok, nil
}
