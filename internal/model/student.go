package model

// Student публичный профиль студента курса
type Student struct {
	ID             string `json:"id"`
	CourseID       string `json:"-"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	TelegramChatID *int64 `json:"-"` // указатель - может быть nil
}
