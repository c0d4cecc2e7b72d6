package entity

import "time"

// UserState состояние пользователя в диалоге
type UserState string

const (
	StateMainMenu              UserState = "main_menu"               // В главном меню
	StateAwaitingTumorPhoto    UserState = "awaiting_tumor_photo"    // Ожидание снимка МРТ
	StateAwaitingFracturePhoto UserState = "awaiting_fracture_photo" // Ожидание рентгена с рамками в подписи
	StateProcessing            UserState = "processing"              // Обработка изображения
)

// User представляет пользователя бота
type User struct {
	ID     int64     // Telegram User ID
	ChatID int64     // Telegram Chat ID
	State  UserState // Текущее состояние пользователя

	UpdatedAt time.Time // Время последней смены состояния
}

// NewUser создаёт нового пользователя с начальным состоянием
func NewUser(userID, chatID int64) *User {
	return &User{
		ID:     userID,
		ChatID: chatID,
		State:  StateMainMenu,

		UpdatedAt: time.Now(),
	}
}

// SetState обновляет состояние пользователя
func (u *User) SetState(state UserState) {
	u.State = state
	u.UpdatedAt = time.Now()
}

// AwaitingPhoto сообщает, ждёт ли бот от пользователя снимок.
func (u *User) AwaitingPhoto() bool {
	return u.State == StateAwaitingTumorPhoto || u.State == StateAwaitingFracturePhoto
}
