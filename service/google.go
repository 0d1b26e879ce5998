package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/smartbook/backend/models"
	"github.com/zitadel/oidc/v3/pkg/client/rp"
	"github.com/zitadel/oidc/v3/pkg/oidc"
)

const googleIssuer = "https://accounts.google.com"

// GoogleIdentity is the verified subset of a Google ID token.
type GoogleIdentity struct {
	Email    string
	Name     string
	Picture  string
	Verified bool
}

// IdentityVerifier checks third-party ID tokens.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*GoogleIdentity, error)
}

// GoogleVerifier validates Google Sign-In ID tokens against Google's published keys.
type GoogleVerifier struct {
	verifier *rp.IDTokenVerifier
}

// NewGoogleVerifier runs OIDC discovery against Google for clientID.
func NewGoogleVerifier(ctx context.Context, clientID string) (*GoogleVerifier, error) {
	party, err := rp.NewRelyingPartyOIDC(ctx, googleIssuer, clientID, "", "",
		[]string{oidc.ScopeOpenID, oidc.ScopeEmail, oidc.ScopeProfile},
		rp.WithHTTPClient(&http.Client{Timeout: 10 * time.Second}),
	)
	if err != nil {
		return nil, fmt.Errorf("google discovery: %w", err)
	}
	return &GoogleVerifier{verifier: party.IDTokenVerifier()}, nil
}

func (g *GoogleVerifier) Verify(ctx context.Context, idToken string) (*GoogleIdentity, error) {
	claims, err := rp.VerifyIDToken[*oidc.IDTokenClaims](ctx, idToken, g.verifier)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid google token: %v", models.ErrUnauthorized, err)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: google token has no email", models.ErrUnauthorized)
	}
	return &GoogleIdentity{
		Email:    claims.Email,
		Name:     claims.Name,
		Picture:  claims.Picture,
		Verified: bool(claims.EmailVerified),
	}, nil
}
