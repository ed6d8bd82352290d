package errors

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	Is        = errors.Is
	As        = errors.As
	Wrap      = errors.Wrap
	Wrapf     = errors.Wrapf
	WithStack = errors.WithStack
	Cause     = errors.Cause
	Errorf    = fmt.Errorf
	New       = errors.New
)

func Log(err error, fmt string, args ...any) {
	if err != nil {
		log.Error().Err(err).Msgf(fmt, args...)
	}
}

func LogCtx(ctx context.Context, err error, fmt string, args ...any) {
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msgf(fmt, args...)
	}
}

func LogCallErr(fn func() error, fmt string, args ...any) {
	Log(fn(), fmt, args...)
}

func LogCallErrCtx(ctx context.Context, fn func() error, fmt string, args ...any) {
	LogCtx(ctx, fn(), fmt, args...)
}

// Chain wraps both err and its cause so that Is matches either.
func Chain(err error, cause error) error {
	return Errorf("%w: %w", err, cause)
}

type knownError struct {
	err error
}

func (e knownError) Error() string { return e.err.Error() }
func (e knownError) Unwrap() error { return e.err }

func (e knownError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "%+v", e.err)
			return
		}
		fmt.Fprintf(s, "%v", e.err)
	case 's':
		fmt.Fprintf(s, "%s", e.err)
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}

// Known marks err as an expected failure of the application domain.
// Anything not marked is treated as a bug at the process edge.
func Known(err error) error {
	if err == nil {
		return nil
	}
	return knownError{err: err}
}

// IsKnown reports whether err or anything it wraps was marked with
// Known.
func IsKnown(err error) bool {
	var k knownError
	return errors.As(err, &k)
}
