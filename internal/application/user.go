package app

import (
	"context"

	"medvision/internal/domain/entity"
	"medvision/internal/domain/port"
)

type UserService struct {
	repo port.UserRepository
}

func NewUserService(repo port.UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.repo.Get(ctx, userID, chatID)
}

func (s *UserService) SetState(ctx context.Context, userID, chatID int64, state entity.UserState) (*entity.User, error) {
	user, err := s.repo.Get(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	user.SetState(state)
	if err := s.repo.Save(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// BeginTumorCheck ждёт от пользователя снимок МРТ.
func (s *UserService) BeginTumorCheck(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.SetState(ctx, userID, chatID, entity.StateAwaitingTumorPhoto)
}

// BeginFractureCheck ждёт рентгеновский снимок с рамками в подписи.
func (s *UserService) BeginFractureCheck(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.SetState(ctx, userID, chatID, entity.StateAwaitingFracturePhoto)
}

// StartProcessing переводит пользователя в обработку и возвращает состояние, из которого он пришёл.
func (s *UserService) StartProcessing(ctx context.Context, userID, chatID int64) (entity.UserState, error) {
	user, err := s.repo.Get(ctx, userID, chatID)
	if err != nil {
		return "", err
	}
	prev := user.State

	user.SetState(entity.StateProcessing)
	if err := s.repo.Save(ctx, user); err != nil {
		return "", err
	}
	return prev, nil
}

func (s *UserService) Cancel(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.SetState(ctx, userID, chatID, entity.StateMainMenu)
}

// Finish возвращает пользователя в главное меню после обработки снимка.
func (s *UserService) Finish(ctx context.Context, userID int64) error {
	return s.repo.UpdateState(ctx, userID, entity.StateMainMenu)
}
