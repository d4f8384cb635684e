package models

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes cart errors.
type ErrorKind int

const (
	// KindUnknown is anything that fits no other kind.
	KindUnknown ErrorKind = iota
	// KindConfiguration means the remote client is not usable (missing credentials).
	KindConfiguration
	// KindTransport is a network failure, timeout or malformed response.
	KindTransport
	// KindNotFound means the remote service has no such cart or line.
	KindNotFound
	// KindValidation is a caller or remote user error, surfaced as is.
	KindValidation
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindTransport:
		return "transport"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Resources a NotFound error can refer to.
const (
	ResourceCart       = "cart"
	ResourceLine       = "line"
	ResourceCollection = "collection"
)

// Messages shared between layers.
const (
	ErrMsgCartIDRequired  = "Cart ID is required"
	ErrMsgCartNotFound    = "Cart not found"
	ErrMsgItemNotFound    = "Item not found in cart"
	ErrMsgItemsRequired   = "Items are required"
	ErrMsgQuantityInvalid = "Quantity must be a positive integer"
	ErrMsgCartEmpty       = "Cart is empty"
	ErrMsgNotConfigured   = "Commerce client is not configured"
)

// CartError is the error every layer returns for classified failures.
type CartError struct {
	Kind     ErrorKind
	Resource string
	Op       string
	Message  string
	Cause    error
}

func (e *CartError) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *CartError) Unwrap() error { return e.Cause }

func NewConfigurationError(op, message string) *CartError {
	return &CartError{Kind: KindConfiguration, Op: op, Message: message}
}

func NewTransportError(op string, cause error) *CartError {
	return &CartError{Kind: KindTransport, Op: op, Message: "remote request failed", Cause: cause}
}

func NewNotFoundError(op, resource, message string) *CartError {
	return &CartError{Kind: KindNotFound, Resource: resource, Op: op, Message: message}
}

func NewValidationError(op, message string) *CartError {
	return &CartError{Kind: KindValidation, Op: op, Message: message}
}

func NewUnknownError(op, message string, cause error) *CartError {
	return &CartError{Kind: KindUnknown, Op: op, Message: message, Cause: cause}
}

// KindOf returns the kind of the first CartError in err's chain.
func KindOf(err error) ErrorKind {
	var ce *CartError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// IsNotFound reports a NotFound error for any resource.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsCartNotFound reports a NotFound error about the cart itself, which is the
// only not-found condition identifier repair and fallback-create react to.
func IsCartNotFound(err error) bool {
	var ce *CartError
	return errors.As(err, &ce) && ce.Kind == KindNotFound && ce.Resource == ResourceCart
}

// UserMessage is the message shown to shoppers: the remote-provided or
// validation message without the op prefix and cause.
func UserMessage(err error) string {
	var ce *CartError
	if errors.As(err, &ce) {
		return ce.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
