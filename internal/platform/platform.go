// Package platform talks to the marketplace platform: it verifies signed
// user tokens issued by the platform and checks access grants against its
// access-control service.
package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/musician-app/apiserver/config"
)

// TokenHeader carries the platform-signed user token on embedded requests.
const TokenHeader = "X-Platform-User-Token"

// AccessChecker verifies a user's grants with the platform. Bundles and
// passes are two independent grant mechanisms; either can confirm access.
type AccessChecker interface {
	HasBundleAccess(ctx context.Context, platformUserID, bundleID string) (bool, error)
	HasPassAccess(ctx context.Context, platformUserID, passID string) (bool, error)
}

// TokenVerifier extracts the platform user id from a signed token.
type TokenVerifier interface {
	VerifyToken(tokenString string) (string, error)
}

// Client implements AccessChecker and TokenVerifier against the platform's
// HTTP API.
type Client struct {
	baseURL     string
	apiKey      string
	tokenSecret []byte
	httpClient  *http.Client
}

// NewClient constructs a platform client from config.
func NewClient(cfg config.PlatformConfig) (*Client, error) {
	if strings.TrimSpace(cfg.TokenSecret) == "" {
		return nil, errors.New("platform token secret is required")
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		tokenSecret: []byte(cfg.TokenSecret),
		httpClient:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// VerifyToken validates the platform-signed token and returns its subject,
// the platform user id.
func (c *Client) VerifyToken(tokenString string) (string, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return c.tokenSecret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("missing subject")
	}
	return claims.Subject, nil
}

// HasBundleAccess asks the platform whether the user holds the bundle grant.
func (c *Client) HasBundleAccess(ctx context.Context, platformUserID, bundleID string) (bool, error) {
	return c.checkAccess(ctx, "bundles", platformUserID, bundleID)
}

// HasPassAccess asks the platform whether the user holds the pass grant.
func (c *Client) HasPassAccess(ctx context.Context, platformUserID, passID string) (bool, error) {
	return c.checkAccess(ctx, "passes", platformUserID, passID)
}

func (c *Client) checkAccess(ctx context.Context, kind, platformUserID, grantID string) (bool, error) {
	if c.baseURL == "" {
		return false, errors.New("platform base url is not configured")
	}

	endpoint := fmt.Sprintf("%s/access/%s/%s?user_id=%s",
		c.baseURL, kind, url.PathEscape(grantID), url.QueryEscape(platformUserID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("platform access check failed: %s", resp.Status)
	}

	var body struct {
		HasAccess bool `json:"has_access"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, err
	}
	return body.HasAccess, nil
}
