package zest

import (
	"errors"
	"fmt"

	"github.com/pthm/zest/lib/encoding"
)

// Encoder seals directive options. Configure it with WithEncoder; directives
// then carry data-options-signed (or data-options-private with
// WithPrivateOptions) instead of plain JSON.
type Encoder = encoding.Encoder

// NewEncoder creates an encoder from a secret of any non-zero length.
func NewEncoder(secret []byte) (*Encoder, error) {
	return encoding.NewEncoder(secret)
}

// sealOptions seals o for the directive of id and returns the payload with
// the attribute that carries it.
func (rt *Runtime) sealOptions(id string, o Options) (payload, attr string, err error) {
	mode, attr := encoding.Signed, AttrOptionsSigned
	if rt.privateOptions {
		mode, attr = encoding.Private, AttrOptionsPrivate
	}
	payload, err = rt.encoder.Seal(id, o, mode)
	if err != nil {
		return "", "", wrapEncodingError(err)
	}
	return payload, attr, nil
}

// openOptions opens the sealed payload of d. The seal must have been made
// for d's target.
func (rt *Runtime) openOptions(d Directive) (Options, error) {
	if rt.encoder == nil {
		return nil, fmt.Errorf("%w: sealed options without an encoder", ErrInvalidOptions)
	}
	mode := encoding.Signed
	if d.Private {
		mode = encoding.Private
	}
	m, err := rt.encoder.Open(d.TargetID, d.Options, mode)
	if err != nil {
		return nil, wrapEncodingError(err)
	}
	return Options(m), nil
}

// wrapEncodingError maps encoding errors onto zest sentinel errors.
func wrapEncodingError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, encoding.ErrInvalidFormat):
		return fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	case errors.Is(err, encoding.ErrSignatureInvalid):
		return ErrSignatureInvalid
	case errors.Is(err, encoding.ErrDecryptFailed):
		return ErrDecryptFailed
	}
	return err
}
