package port

import (
	"context"

	"medvision/internal/domain/entity"
)

// UserRepository хранит состояние диалога с пользователем бота.
type UserRepository interface {
	// Get возвращает копию состояния; неизвестный пользователь создаётся в главном меню.
	Get(ctx context.Context, userID, chatID int64) (*entity.User, error)

	Save(ctx context.Context, user *entity.User) error

	// UpdateState меняет состояние уже известного пользователя, для неизвестного ничего не делает.
	UpdateState(ctx context.Context, userID int64, state entity.UserState) error
}
