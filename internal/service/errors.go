package service

import "errors"

// ErrValidation возвращается до любых изменений состояния, если запрос некорректен
var ErrValidation = errors.New("validation failed")
