package domain

import (
	"errors"
	"fmt"
)

// ErrorKind классифицирует ошибки командного движка.
// Вызывающий код ветвится по виду ошибки, а не по тексту сообщения.
type ErrorKind string

const (
	// ErrorKindNotFound — агрегат или дочерняя запись не найдены для арендатора.
	ErrorKindNotFound ErrorKind = "not_found"
	// ErrorKindInvalidState — нарушено предусловие по статусу (например, мутация не-open заказа).
	ErrorKindInvalidState ErrorKind = "invalid_state"
	// ErrorKindValidationFailed — нарушено бизнес-правило входных данных.
	ErrorKindValidationFailed ErrorKind = "validation_failed"
	// ErrorKindPreconditionMissing — отсутствует обязательный контекст запроса (tenant, location).
	ErrorKindPreconditionMissing ErrorKind = "precondition_missing"
	// ErrorKindInternal — неожиданная ошибка инфраструктуры.
	ErrorKindInternal ErrorKind = "internal"
)

// Error — структурная ошибка доменного слоя с закрытым набором видов.
type Error struct {
	Kind       ErrorKind
	EntityType string
	EntityID   string
	Message    string
	cause      error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.EntityType != "":
		return fmt.Sprintf("%s %s: %s", e.EntityType, e.EntityID, e.Message)
	case e.Message != "":
		return e.Message
	case e.EntityType != "":
		return fmt.Sprintf("%s %s: %s", e.EntityType, e.EntityID, string(e.Kind))
	default:
		return string(e.Kind)
	}
}

// Unwrap возвращает исходную причину (для errors.Is по инфраструктурным ошибкам).
func (e *Error) Unwrap() error {
	return e.cause
}

// NewNotFound создаёт ошибку отсутствующей сущности.
func NewNotFound(entityType, entityID string) *Error {
	return &Error{Kind: ErrorKindNotFound, EntityType: entityType, EntityID: entityID, Message: "not found"}
}

// NewInvalidState создаёт ошибку нарушенного статусного предусловия.
func NewInvalidState(entityType, entityID, message string) *Error {
	return &Error{Kind: ErrorKindInvalidState, EntityType: entityType, EntityID: entityID, Message: message}
}

// NewValidationFailed создаёт ошибку нарушенного бизнес-правила.
func NewValidationFailed(message string) *Error {
	return &Error{Kind: ErrorKindValidationFailed, Message: message}
}

// NewPreconditionMissing создаёт ошибку отсутствующего контекста запроса.
func NewPreconditionMissing(message string) *Error {
	return &Error{Kind: ErrorKindPreconditionMissing, Message: message}
}

// NewInternal оборачивает неожиданную ошибку инфраструктуры.
func NewInternal(cause error) *Error {
	msg := "internal error"
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Kind: ErrorKindInternal, Message: msg, cause: cause}
}

// KindOf возвращает вид доменной ошибки; для чужих ошибок — ErrorKindInternal.
func KindOf(err error) ErrorKind {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	return ErrorKindInternal
}

// IsNotFound проверяет, что ошибка означает отсутствующую сущность.
func IsNotFound(err error) bool {
	return isKind(err, ErrorKindNotFound)
}

// IsInvalidState проверяет, что ошибка означает нарушенное статусное предусловие.
func IsInvalidState(err error) bool {
	return isKind(err, ErrorKindInvalidState)
}

// IsValidationFailed проверяет, что ошибка означает нарушенное бизнес-правило.
func IsValidationFailed(err error) bool {
	return isKind(err, ErrorKindValidationFailed)
}

// IsPreconditionMissing проверяет, что ошибка означает отсутствующий контекст запроса.
func IsPreconditionMissing(err error) bool {
	return isKind(err, ErrorKindPreconditionMissing)
}

func isKind(err error, kind ErrorKind) bool {
	var domainErr *Error
	return errors.As(err, &domainErr) && domainErr.Kind == kind
}
