package picodoc

import (
	stderrors "errors"

	"github.com/picodoc/picodoc-go/internal/errors"
)

// Error is the error type produced by every compilation stage. It
// carries the source span, filename, and (for evaluation errors) the
// macro expansion chain.
type Error = errors.Error

// ErrorKind classifies an Error by the stage that produced it.
type ErrorKind = errors.Kind

const (
	KindLex    = errors.KindLex
	KindParse  = errors.KindParse
	KindEval   = errors.KindEval
	KindConfig = errors.KindConfig
)

// AsError unwraps err to a picodoc Error if it is one.
func AsError(err error) (*Error, bool) {
	var perr *Error
	if stderrors.As(err, &perr) {
		return perr, true
	}
	return nil, false
}
