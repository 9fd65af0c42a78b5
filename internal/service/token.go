package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Провайдеры входа.
const (
	ProviderAnonymous = "anonymous"
	ProviderGoogle    = "google"
)

// Identity - текущий пользователь, как его видит токен.
type Identity struct {
	UserID      uuid.UUID `json:"id"`
	Provider    string    `json:"provider"`
	DisplayName string    `json:"display_name,omitempty"`
	Email       string    `json:"email,omitempty"`
}

// IsAnonymous - пользователь вошёл без учётной записи.
func (i Identity) IsAnonymous() bool {
	return i.Provider == ProviderAnonymous
}

// TokenPair хранит пару access/refresh токенов.
type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    time.Duration `json:"expires_in"`
}

// RefreshClaims - клеймы refresh токена; ID используется для отзыва.
type RefreshClaims struct {
	Provider    string `json:"provider"`
	DisplayName string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager отвечает за выпуск и проверку JWT.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenManager создаёт менеджер токенов.
func NewTokenManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// GeneratePair выпускает новую пару токенов.
func (m *TokenManager) GeneratePair(id Identity) (*TokenPair, error) {
	now := m.now()

	accessToken, err := m.createAccessToken(id, now)
	if err != nil {
		return nil, err
	}

	refreshToken, err := m.createRefreshToken(id, now)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    m.accessTTL,
	}, nil
}

// ParseRefresh проверяет refresh токен и возвращает клеймы.
func (m *TokenManager) ParseRefresh(token string) (*RefreshClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &RefreshClaims{}, func(t *jwt.Token) (interface{}, error) {
		return m.refreshSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, err
	}

	if claims, ok := parsed.Claims.(*RefreshClaims); ok && parsed.Valid {
		return claims, nil
	}

	return nil, jwt.ErrTokenInvalidClaims
}

// ParseAccess извлекает пользователя из access токена.
func (m *TokenManager) ParseAccess(token string) (Identity, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return m.accessSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil || !parsed.Valid {
		if err == nil {
			err = jwt.ErrTokenInvalidClaims
		}
		return Identity{}, err
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, jwt.ErrTokenInvalidClaims
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return Identity{}, jwt.ErrTokenInvalidClaims
	}

	userID, err := uuid.Parse(sub)
	if err != nil {
		return Identity{}, err
	}

	id := Identity{UserID: userID}
	id.Provider, _ = claims["provider"].(string)
	id.DisplayName, _ = claims["name"].(string)
	id.Email, _ = claims["email"].(string)
	return id, nil
}

// RefreshTTL - время жизни refresh токена.
func (m *TokenManager) RefreshTTL() time.Duration {
	return m.refreshTTL
}

// createAccessToken формирует access токен.
func (m *TokenManager) createAccessToken(id Identity, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":      id.UserID.String(),
		"provider": id.Provider,
		"iat":      now.Unix(),
		"exp":      now.Add(m.accessTTL).Unix(),
	}
	if id.DisplayName != "" {
		claims["name"] = id.DisplayName
	}
	if id.Email != "" {
		claims["email"] = id.Email
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.accessSecret)
}

// createRefreshToken формирует refresh токен со случайным ID.
func (m *TokenManager) createRefreshToken(id Identity, now time.Time) (string, error) {
	claims := RefreshClaims{
		Provider:    id.Provider,
		DisplayName: id.DisplayName,
		Email:       id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.refreshTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.refreshSecret)
}
