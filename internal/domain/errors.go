package domain

import (
	"errors"
	"fmt"
)

// ErrorKind: стабильный код класса ошибки шлюза.
type ErrorKind string

const (
	KindUnknownResource  ErrorKind = "UNKNOWN_RESOURCE"
	KindNotFound         ErrorKind = "NOT_FOUND"
	KindPermissionDenied ErrorKind = "PERMISSION_DENIED"
	KindValidation       ErrorKind = "VALIDATION_ERROR"
	KindDataStore        ErrorKind = "DATA_STORE_ERROR"
	KindUnknownOperation ErrorKind = "UNKNOWN_OPERATION"
	KindMissingIdentity  ErrorKind = "MISSING_AGENT_ID"
	KindInternal         ErrorKind = "INTERNAL_ERROR"
)

// Error: единая ошибка шлюза. Сравнение через errors.Is идет по Kind.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is позволяет писать errors.Is(err, domain.ErrNotFound).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Образцы для errors.Is.
var (
	ErrUnknownResource  = &Error{Kind: KindUnknownResource}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied}
	ErrValidation       = &Error{Kind: KindValidation}
	ErrDataStore        = &Error{Kind: KindDataStore}
	ErrUnknownOperation = &Error{Kind: KindUnknownOperation}
	ErrMissingIdentity  = &Error{Kind: KindMissingIdentity}
	ErrInternal         = &Error{Kind: KindInternal}
)

// KindOf извлекает класс ошибки; все неклассифицированные ошибки, INTERNAL_ERROR.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func UnknownResource(uri string) *Error {
	return NewError(KindUnknownResource, "unknown resource: %s", uri)
}

func NotFound(entity, id string) *Error {
	return NewError(KindNotFound, "%s not found: %s", entity, id)
}

func PermissionDenied(agentID, module string, action Action) *Error {
	return NewError(KindPermissionDenied, "permission denied: agent %s is not allowed to %s in module %s", agentID, action, module)
}

func Validation(format string, args ...any) *Error {
	return NewError(KindValidation, format, args...)
}

// DataStore оборачивает сбой внешнего хранилища.
func DataStore(op string, err error) *Error {
	return &Error{Kind: KindDataStore, Message: "data store " + op + " failed", Err: err}
}

func UnknownOperation(name string) *Error {
	return NewError(KindUnknownOperation, "unknown tool: %s", name)
}
