package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/oauth2"

	"github.com/synaptica-ai/biomarkers/pkg/common/logger"
)

var ErrInvalidToken = errors.New("invalid bearer token")

// OIDCAuthenticator validates bearer tokens against the issuer's userinfo
// endpoint. Accepted tokens are remembered for a short while.
type OIDCAuthenticator struct {
	config      *oauth2.Config
	issuer      string
	userInfoURL string
	httpClient  *http.Client
	accepted    *gocache.Cache
}

func NewOIDCAuthenticator(issuer, clientID, clientSecret string, httpClient *http.Client) (*OIDCAuthenticator, error) {
	if issuer == "" || clientID == "" {
		return nil, fmt.Errorf("OIDC configuration incomplete")
	}
	issuer = strings.TrimRight(issuer, "/")

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  fmt.Sprintf("%s/authorize", issuer),
			TokenURL: fmt.Sprintf("%s/token", issuer),
		},
		Scopes: []string{"openid", "profile", "email"},
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &OIDCAuthenticator{
		config:      config,
		issuer:      issuer,
		userInfoURL: fmt.Sprintf("%s/userinfo", issuer),
		httpClient:  httpClient,
		accepted:    gocache.New(2*time.Minute, 5*time.Minute),
	}, nil
}

// ValidateToken returns the userinfo claims for token.
func (a *OIDCAuthenticator) ValidateToken(ctx context.Context, token string) (map[string]interface{}, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: token is empty", ErrInvalidToken)
	}
	key := fingerprint(token)
	if claims, ok := a.accepted.Get(key); ok {
		return claims.(map[string]interface{}), nil
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	client := a.config.Client(ctx, &oauth2.Token{AccessToken: token, TokenType: "Bearer"})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrInvalidToken
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned status %d", resp.StatusCode)
	}

	var claims map[string]interface{}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&claims); err != nil {
		return nil, fmt.Errorf("decoding userinfo: %w", err)
	}
	if sub, _ := claims["sub"].(string); sub == "" {
		return nil, fmt.Errorf("%w: userinfo without subject", ErrInvalidToken)
	}

	a.accepted.SetDefault(key, claims)
	logger.Log.WithField("sub", claims["sub"]).Debug("bearer token accepted")
	return claims, nil
}

func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
