// Package encoding seals component options for transport inside attach
// directives.
//
// Options are packed with msgpack and sealed in one of two modes:
//
//	Signed:  base64(packed) "." base64(HMAC-SHA256)   readable, tamper-evident
//	Private: base64(nonce || AES-256-GCM ciphertext)  opaque
//
// Every seal is bound to the id of the element its directive targets. A
// payload copied onto a directive for a different element does not open.
package encoding

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Sentinel errors.
var (
	ErrEmptyKey         = errors.New("encoding: empty key")
	ErrInvalidFormat    = errors.New("encoding: invalid payload format")
	ErrSignatureInvalid = errors.New("encoding: signature verification failed")
	ErrDecryptFailed    = errors.New("encoding: payload decryption failed")
)

// Mode selects how options are sealed.
type Mode int

const (
	Signed Mode = iota
	Private
)

func (m Mode) String() string {
	switch m {
	case Signed:
		return "signed"
	case Private:
		return "private"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

var b64 = base64.RawURLEncoding

// Encoder seals and opens option payloads. Signing and encryption use
// separate keys derived from one secret.
type Encoder struct {
	signKey []byte
	aead    cipher.AEAD
}

// NewEncoder derives the signing and encryption keys from secret, which may
// have any non-zero length.
func NewEncoder(secret []byte) (*Encoder, error) {
	if len(secret) == 0 {
		return nil, ErrEmptyKey
	}

	block, err := aes.NewCipher(derive(secret, "zest/seal"))
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Encoder{signKey: derive(secret, "zest/sign"), aead: aead}, nil
}

func derive(secret []byte, label string) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(label))
	return mac.Sum(nil)
}

// Seal packs options and seals them for the directive of target.
func (e *Encoder) Seal(target string, options map[string]any, mode Mode) (string, error) {
	packed, err := msgpack.Marshal(options)
	if err != nil {
		return "", fmt.Errorf("encoding: pack options: %w", err)
	}

	switch mode {
	case Signed:
		return b64.EncodeToString(packed) + "." + b64.EncodeToString(e.mac(target, packed)), nil
	case Private:
		nonce := make([]byte, e.aead.NonceSize())
		if _, err := rand.Read(nonce); err != nil {
			return "", err
		}
		return b64.EncodeToString(e.aead.Seal(nonce, nonce, packed, []byte(target))), nil
	}
	return "", fmt.Errorf("encoding: unknown mode %v", mode)
}

// Open checks sealed text against target and unpacks the options. An empty
// payload opens to an empty map.
func (e *Encoder) Open(target, sealed string, mode Mode) (map[string]any, error) {
	var packed []byte
	var err error
	switch mode {
	case Signed:
		packed, err = e.verify(target, sealed)
	case Private:
		packed, err = e.decrypt(target, sealed)
	default:
		err = fmt.Errorf("encoding: unknown mode %v", mode)
	}
	if err != nil {
		return nil, err
	}

	dec := msgpack.NewDecoder(bytes.NewReader(packed))
	dec.UseLooseInterfaceDecoding(true)

	var options map[string]any
	if err := dec.Decode(&options); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	if options == nil {
		options = map[string]any{}
	}
	return options, nil
}

// mac authenticates the target id and the packed options together.
func (e *Encoder) mac(target string, packed []byte) []byte {
	m := hmac.New(sha256.New, e.signKey)
	m.Write([]byte(target))
	m.Write([]byte{0})
	m.Write(packed)
	return m.Sum(nil)
}

func (e *Encoder) verify(target, sealed string) ([]byte, error) {
	data, sig, ok := strings.Cut(sealed, ".")
	if !ok {
		return nil, ErrInvalidFormat
	}
	packed, err := b64.DecodeString(data)
	if err != nil {
		return nil, ErrInvalidFormat
	}
	want, err := b64.DecodeString(sig)
	if err != nil || !hmac.Equal(want, e.mac(target, packed)) {
		return nil, ErrSignatureInvalid
	}
	return packed, nil
}

func (e *Encoder) decrypt(target, sealed string) ([]byte, error) {
	raw, err := b64.DecodeString(sealed)
	if err != nil || len(raw) < e.aead.NonceSize()+e.aead.Overhead() {
		return nil, ErrInvalidFormat
	}
	n := e.aead.NonceSize()
	packed, err := e.aead.Open(nil, raw[:n], raw[n:], []byte(target))
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return packed, nil
}
