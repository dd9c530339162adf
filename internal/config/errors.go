package config

import "errors"

// Ошибки конфигурации.
var (
	// ErrInvalidConfig — файл конфигурации не разбирается или противоречив.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrUnknownHandler — шаг ссылается на незарегистрированный тип handler'а.
	ErrUnknownHandler = errors.New("unknown handler type")

	// ErrUnboundStep — задача ссылается на имя, которое не является ни шагом, ни задачей.
	ErrUnboundStep = errors.New("unbound step")

	// ErrInvalidSchedule — расписание невалидно или ссылается на неизвестную задачу.
	ErrInvalidSchedule = errors.New("invalid schedule")
)
