package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/vialert-backend/internal/domain/entity"
	"github.com/ignatzorin/vialert-backend/internal/logger"
	"github.com/ignatzorin/vialert-backend/internal/pkg/apperror"
)

// FederatedClaims - проверенные данные внешнего провайдера.
type FederatedClaims struct {
	Subject string
	Email   string
	Name    string
}

// IDTokenVerifier проверяет ID token внешнего провайдера.
type IDTokenVerifier interface {
	Verify(ctx context.Context, idToken string) (*FederatedClaims, error)
}

// RevocationStore - отозванные refresh токены.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// AuthResult возвращает итог входа.
type AuthResult struct {
	Identity  Identity
	Profile   *entity.Profile
	TokenPair *TokenPair
}

// AuthService - анонимный и федеративный вход, обновление и выход.
type AuthService struct {
	profiles     *ProfileService
	tokenManager *TokenManager
	revocations  RevocationStore
	google       IDTokenVerifier
	now          func() time.Time
	log          *logrus.Entry
}

// NewAuthService создаёт сервис аутентификации. google может быть nil, если вход через Google не настроен.
func NewAuthService(profiles *ProfileService, tokenManager *TokenManager, revocations RevocationStore, google IDTokenVerifier) *AuthService {
	return &AuthService{
		profiles:     profiles,
		tokenManager: tokenManager,
		revocations:  revocations,
		google:       google,
		now:          time.Now,
		log:          logger.Component("auth"),
	}
}

// GoogleUserID - стабильный идентификатор пользователя Google (UUID v5 от subject).
func GoogleUserID(subject string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://accounts.google.com/"+subject))
}

// SignInAnonymous создаёт нового анонимного пользователя.
func (s *AuthService) SignInAnonymous(ctx context.Context) (*AuthResult, error) {
	return s.issue(ctx, Identity{UserID: uuid.New(), Provider: ProviderAnonymous})
}

// SignInGoogle проверяет ID token Google и выдаёт токены приложения.
func (s *AuthService) SignInGoogle(ctx context.Context, idToken string) (*AuthResult, error) {
	if s.google == nil {
		return nil, apperror.New(apperror.ErrCodeBadRequest, "вход через Google не настроен")
	}
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return nil, apperror.Validation("id_token обязателен")
	}

	claims, err := s.google.Verify(ctx, idToken)
	if err != nil {
		s.log.WithError(err).Warn("google id token отклонён")
		return nil, apperror.Wrap(err, apperror.ErrCodeUnauthorized, "недействительный Google ID token")
	}

	return s.issue(ctx, Identity{
		UserID:      GoogleUserID(claims.Subject),
		Provider:    ProviderGoogle,
		DisplayName: claims.Name,
		Email:       strings.ToLower(claims.Email),
	})
}

func (s *AuthService) issue(ctx context.Context, id Identity) (*AuthResult, error) {
	profile, err := s.profiles.Ensure(ctx, id.UserID)
	if err != nil {
		return nil, err
	}

	pair, err := s.tokenManager.GeneratePair(id)
	if err != nil {
		return nil, fmt.Errorf("auth service: не удалось выпустить токены: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"user_id":  id.UserID,
		"provider": id.Provider,
	}).Info("вход выполнен")

	return &AuthResult{Identity: id, Profile: profile, TokenPair: pair}, nil
}

// Refresh меняет refresh токен на новую пару. Старый токен отзывается.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := s.parseActiveRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperror.ErrInvalidToken
	}

	if err := s.revoke(ctx, claims); err != nil {
		return nil, err
	}

	return s.issue(ctx, Identity{
		UserID:      userID,
		Provider:    claims.Provider,
		DisplayName: claims.DisplayName,
		Email:       claims.Email,
	})
}

// SignOut отзывает refresh токен.
func (s *AuthService) SignOut(ctx context.Context, refreshToken string) error {
	claims, err := s.parseActiveRefresh(ctx, refreshToken)
	if err != nil {
		return err
	}
	if err := s.revoke(ctx, claims); err != nil {
		return err
	}
	s.log.WithField("user_id", claims.Subject).Info("выход выполнен")
	return nil
}

// Me возвращает текущего пользователя и его профиль.
func (s *AuthService) Me(ctx context.Context, id Identity) (*AuthResult, error) {
	profile, err := s.profiles.Ensure(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Identity: id, Profile: profile}, nil
}

func (s *AuthService) parseActiveRefresh(ctx context.Context, token string) (*RefreshClaims, error) {
	claims, err := s.tokenManager.ParseRefresh(token)
	if err != nil {
		return nil, apperror.ErrInvalidToken
	}
	if s.revocations == nil {
		return claims, nil
	}
	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}
	if revoked {
		return nil, apperror.ErrInvalidToken
	}
	return claims, nil
}

func (s *AuthService) revoke(ctx context.Context, claims *RefreshClaims) error {
	if s.revocations == nil || claims.ExpiresAt == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(s.now())
	if err := s.revocations.Revoke(ctx, claims.ID, ttl); err != nil {
		return fmt.Errorf("auth service: не удалось отозвать токен: %w", err)
	}
	return nil
}
