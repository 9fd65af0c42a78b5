// Package googleauth проверяет Google ID token при федеративном входе.
package googleauth

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"

	"github.com/ignatzorin/vialert-backend/internal/metrics"
	"github.com/ignatzorin/vialert-backend/internal/service"
)

const Provider = "google_idtoken"

// Verifier проверяет подпись, срок и audience токена.
type Verifier struct {
	validator *idtoken.Validator
	clientID  string
}

var _ service.IDTokenVerifier = (*Verifier)(nil)

func NewVerifier(ctx context.Context, clientID string, opts ...option.ClientOption) (*Verifier, error) {
	if clientID == "" {
		return nil, fmt.Errorf("googleauth: GOOGLE_CLIENT_ID не задан")
	}
	v, err := idtoken.NewValidator(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("googleauth: %w", err)
	}
	return &Verifier{validator: v, clientID: clientID}, nil
}

func (v *Verifier) Verify(ctx context.Context, token string) (claims *service.FederatedClaims, err error) {
	started := time.Now()
	defer func() { metrics.ObserveExternal(Provider, started, err) }()

	payload, err := v.validator.Validate(ctx, token, v.clientID)
	if err != nil {
		return nil, err
	}
	return ClaimsFromPayload(payload)
}

// ClaimsFromPayload достаёт subject, email и имя. Неподтверждённый email не используется.
func ClaimsFromPayload(p *idtoken.Payload) (*service.FederatedClaims, error) {
	if p == nil || p.Subject == "" {
		return nil, fmt.Errorf("googleauth: в токене нет subject")
	}
	claims := &service.FederatedClaims{Subject: p.Subject}
	if verified, _ := p.Claims["email_verified"].(bool); verified {
		claims.Email, _ = p.Claims["email"].(string)
	}
	claims.Name, _ = p.Claims["name"].(string)
	return claims, nil
}
