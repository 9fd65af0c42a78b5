package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/vialert-backend/internal/domain/entity"
	"github.com/ignatzorin/vialert-backend/internal/domain/repository"
	"github.com/ignatzorin/vialert-backend/internal/logger"
	"github.com/ignatzorin/vialert-backend/internal/pkg/apperror"
)

// ProfileSender доставляет владельцу свежий профиль.
type ProfileSender interface {
	SendProfile(userID uuid.UUID, profile *entity.Profile)
}

// ProfileService - профили доверия.
type ProfileService struct {
	repo   repository.ProfileRepository
	sender ProfileSender
	now    func() time.Time
	log    *logrus.Entry
}

func NewProfileService(repo repository.ProfileRepository, sender ProfileSender) *ProfileService {
	return &ProfileService{
		repo:   repo,
		sender: sender,
		now:    time.Now,
		log:    logger.Component("profiles"),
	}
}

// Ensure возвращает профиль, создавая {100, 0, 0} при первом обращении.
func (s *ProfileService) Ensure(ctx context.Context, userID uuid.UUID) (*entity.Profile, error) {
	if userID == uuid.Nil {
		return nil, apperror.ErrAuthRequired
	}

	p, err := s.repo.GetProfile(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, err
	}

	p, err = s.repo.CreateProfileIfAbsent(ctx, entity.NewProfile(userID, s.now()))
	if err != nil {
		return nil, err
	}
	s.log.WithField("user_id", userID).Info("создан профиль")
	return p, nil
}

// Get - синоним Ensure для чтения профиля текущего пользователя.
func (s *ProfileService) Get(ctx context.Context, userID uuid.UUID) (*entity.Profile, error) {
	return s.Ensure(ctx, userID)
}

// Push перечитывает профиль и отправляет его владельцу.
func (s *ProfileService) Push(ctx context.Context, userID uuid.UUID) {
	if s.sender == nil {
		return
	}
	p, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		if !apperror.IsNotFound(err) {
			s.log.WithError(err).WithField("user_id", userID).Warn("не удалось прочитать профиль для отправки")
		}
		return
	}
	s.sender.SendProfile(userID, p)
}
