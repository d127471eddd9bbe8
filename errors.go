package zest

import (
	"errors"

	"github.com/pthm/zest/lib/extend"
)

// Sentinel errors for component operations.
var (
	ErrTargetNotFound   = errors.New("zest: no component found for attachment")
	ErrNotRegistered    = errors.New("zest: component not registered")
	ErrUnknownType      = errors.New("zest: unknown component type")
	ErrServerConstruct  = errors.New("zest: components are not designed to be attached without a live document, use the render path instead")
	ErrStaticComponent  = errors.New("zest: static component has no attach entry point")
	ErrDisposed         = errors.New("zest: component already disposed")
	ErrNoTemplate       = errors.New("zest: component has no template")
	ErrNoParent         = errors.New("zest: swap target has no parent")
	ErrInvalidOptions   = errors.New("zest: invalid component options")
	ErrInvalidFormat    = errors.New("zest: invalid options payload format")
	ErrSignatureInvalid = errors.New("zest: options signature verification failed")
	ErrDecryptFailed    = errors.New("zest: options decryption failed")
)

// IsNotFound checks if err reports a missing attach target, component or type.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTargetNotFound) ||
		errors.Is(err, ErrNotRegistered) ||
		errors.Is(err, ErrUnknownType)
}

// IsConfigError checks if err is a programming-time configuration error:
// a bad merge strategy or table operand, or an attach attempted without a
// live document.
func IsConfigError(err error) bool {
	return errors.Is(err, extend.ErrUnknownStrategy) ||
		errors.Is(err, extend.ErrIncompatible) ||
		errors.Is(err, ErrServerConstruct) ||
		errors.Is(err, ErrStaticComponent)
}

// IsDecryptionError checks if err is a decryption or signature error.
func IsDecryptionError(err error) bool {
	return errors.Is(err, ErrDecryptFailed) || errors.Is(err, ErrSignatureInvalid)
}
