package busdriver

import "errors"

// ErrClosed indicates an operation on a Driver that has already been closed.
var ErrClosed = errors.New("busdriver: closed")

var (
	errUnexpectedEnd = errors.New("busdriver: unexpected end-of-frame byte")
	errCRCMismatch   = errors.New("busdriver: CRC mismatch")
	errInvalidLength = errors.New("busdriver: invalid length byte")
	errInvalidState  = errors.New("busdriver: invalid decoder state")
)
