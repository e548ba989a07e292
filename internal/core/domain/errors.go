package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateRequest   = errors.New("la solicitud ya fue procesada")
	ErrInvalidCredentials = errors.New("usuario o contraseña incorrectos")
)

type Kind int

const (
	KindUnclassified Kind = iota
	KindConnectivity
	KindIntegrity
	KindValidation
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindIntegrity:
		return "integrity"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	default:
		return "unclassified"
	}
}

// ValidationError is a caller-correctable failure. Its message is shown as is.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NotFoundError reports a missing record. Msg, when set, replaces the
// default "<entity> <key> no existe" text.
type NotFoundError struct {
	Entity string
	Key    string
	Msg    string
}

// ProductNotFound is the miss of a product lookup by code.
func ProductNotFound(code string) *NotFoundError {
	return &NotFoundError{Entity: "producto", Key: code, Msg: fmt.Sprintf("código %s no existe", code)}
}

func (e *NotFoundError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return fmt.Sprintf("%s %s no existe", e.Entity, e.Key)
}

// UnknownCodeError rejects a sale line whose product code does not exist.
type UnknownCodeError struct {
	Code string
}

func (e *UnknownCodeError) Error() string {
	return fmt.Sprintf("código %s no existe", e.Code)
}

type InsufficientStockError struct {
	Code      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock insuficiente para %s, disponible: %d", e.Code, e.Available)
}

// ConnectivityError marks a failure to reach or authenticate against the store.
type ConnectivityError struct {
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("store unreachable: %v", e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// IsCallerCorrectable reports whether err is a domain failure whose message is
// already fit for the end user.
func IsCallerCorrectable(err error) bool {
	var (
		ve *ValidationError
		ne *NotFoundError
		ue *UnknownCodeError
		se *InsufficientStockError
	)
	return errors.As(err, &ve) || errors.As(err, &ne) || errors.As(err, &ue) || errors.As(err, &se) ||
		errors.Is(err, ErrDuplicateRequest) || errors.Is(err, ErrInvalidCredentials)
}

// KindOf maps domain errors to their taxonomy kind. Store-level failures other
// than ConnectivityError are classified by the classifier package.
func KindOf(err error) Kind {
	var (
		ce *ConnectivityError
		ne *NotFoundError
	)
	switch {
	case err == nil:
		return KindUnclassified
	case errors.As(err, &ce):
		return KindConnectivity
	case errors.As(err, &ne):
		return KindNotFound
	case IsCallerCorrectable(err):
		return KindValidation
	}
	return KindUnclassified
}
