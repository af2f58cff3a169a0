// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrPersistence — запись не удалось сохранить. Детали только в логе.
	ErrPersistence = errors.New("ошибка сохранения")
	// ErrThrottled — превышен лимит заявок с одного адреса.
	ErrThrottled = errors.New("слишком много заявок")
	// ErrArchiveDisabled — S3-архив не настроен.
	ErrArchiveDisabled = errors.New("архив экспортов не настроен")
)
