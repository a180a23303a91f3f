package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
// Cada error devuelto por los casos de uso se puede clasificar con errors.Is contra uno de estos tipos.
var (
	ErrNotFound          = errors.New("recurso no encontrado")
	ErrInvalidInput      = errors.New("entrada inválida")
	ErrConflict          = errors.New("conflicto con el estado actual")
	ErrBusinessRule      = errors.New("regla de negocio violada")
	ErrInternal          = errors.New("error interno")
	ErrUnauthorized      = errors.New("no autorizado")
	ErrForbidden         = errors.New("acceso denegado")
	ErrInsufficientStock = fmt.Errorf("%w: stock insuficiente disponible", ErrBusinessRule)
)

// ErrValidation es el nombre usado por el ledger para entradas mal formadas.
var ErrValidation = ErrInvalidInput

// Error lleva un tipo estable (Kind) y un mensaje legible para el usuario final.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

// Unwrap permite errors.Is(err, domain.ErrBusinessRule), etc.
func (e *Error) Unwrap() error { return e.Kind }

// NewNotFound construye un ErrNotFound con mensaje.
func NewNotFound(msg string) error { return &Error{Kind: ErrNotFound, Message: msg} }

// NewValidation construye un error de validación con mensaje.
func NewValidation(msg string) error { return &Error{Kind: ErrValidation, Message: msg} }

// NewConflict construye un ErrConflict con mensaje.
func NewConflict(msg string) error { return &Error{Kind: ErrConflict, Message: msg} }

// NewBusinessRule construye un ErrBusinessRule con mensaje.
func NewBusinessRule(msg string) error { return &Error{Kind: ErrBusinessRule, Message: msg} }

// NewInsufficientStock construye un ErrInsufficientStock con mensaje.
func NewInsufficientStock(msg string) error { return &Error{Kind: ErrInsufficientStock, Message: msg} }

// NewForbidden construye un ErrForbidden con mensaje.
func NewForbidden(msg string) error { return &Error{Kind: ErrForbidden, Message: msg} }

// NewInternal envuelve una falla de infraestructura como ErrInternal conservando la causa.
func NewInternal(msg string, cause error) error {
	return fmt.Errorf("%w: %w", &Error{Kind: ErrInternal, Message: msg}, cause)
}

// Message devuelve el mensaje legible de un error de dominio, o el texto del error si no lo es.
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Error()
	}
	return err.Error()
}
