// Package dumperr описывает классы ошибок дампа.
//
// Все пакеты дампа оборачивают свои ошибки одним из sentinel-значений:
//
//	return fmt.Errorf("%w: unknown column type %q", dumperr.ErrCatalogDrift, t)
//
// Вызывающий код различает классы через errors.Is и решает, имеет ли смысл повтор.
package dumperr

import (
	"errors"
	"fmt"
)

var (
	// ErrCatalogDrift - тип колонки отсутствует в каталоге типов.
	// Каталог устарел относительно живой схемы, повтор бесполезен.
	ErrCatalogDrift = errors.New("catalog drift")

	// ErrMalformedPayload - двоичное значение (WKB, bit) не может быть декодировано
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrConnection - ошибка соединения или драйвера БД
	ErrConnection = errors.New("connection error")

	// ErrSink - ошибка записи в приемник (файл, поток)
	ErrSink = errors.New("sink error")

	// ErrConfig - некорректная конфигурация дампа
	ErrConfig = errors.New("invalid configuration")
)

// Ошибки валидации параметров подключения
var (
	ErrMissingConnectionConfig   = fmt.Errorf("%w: expected to be given connection options", ErrConfig)
	ErrMissingConnectionHost     = fmt.Errorf("%w: expected to be given host connection option", ErrConfig)
	ErrMissingConnectionDatabase = fmt.Errorf("%w: expected to be given database connection option", ErrConfig)
	ErrMissingConnectionUser     = fmt.Errorf("%w: expected to be given user connection option", ErrConfig)
	ErrMissingConnectionPassword = fmt.Errorf("%w: expected to be given password connection option", ErrConfig)
)

// Class возвращает имя класса ошибки для логов, аудита и результатов
func Class(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCatalogDrift):
		return "catalog_drift"
	case errors.Is(err, ErrMalformedPayload):
		return "malformed_payload"
	case errors.Is(err, ErrConnection):
		return "connection"
	case errors.Is(err, ErrSink):
		return "sink"
	case errors.Is(err, ErrConfig):
		return "config"
	default:
		return "unknown"
	}
}

// Retryable сообщает, может ли повтор операции дать другой результат.
// Повторяются только ошибки соединения.
func Retryable(err error) bool {
	return errors.Is(err, ErrConnection)
}

// Fatal сообщает, что ошибка логическая (каталог, данные, конфигурация)
// и не исправится повтором.
func Fatal(err error) bool {
	return errors.Is(err, ErrCatalogDrift) ||
		errors.Is(err, ErrMalformedPayload) ||
		errors.Is(err, ErrConfig)
}

// Connection оборачивает ошибку драйвера в ErrConnection
func Connection(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrConnection, op, err)
}

// Sink оборачивает ошибку записи в ErrSink
func Sink(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrSink, op, err)
}
