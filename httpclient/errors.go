package httpclient

import (
	"git.tatikoma.dev/corpix/keel/errors"
)

var (
	// ErrRequest reports a failure to exchange with the server at
	// all: connection refused, timeout, interrupted body.
	ErrRequest = errors.New("error when communicating with the server")

	// ErrResponse reports a server response with a non-2xx status or
	// an undecodable body.
	ErrResponse = errors.New("invalid response from the server")

	// ErrAuthentication reports a denied or failed login.
	ErrAuthentication = errors.New("authentication failed")

	// ErrNotAuthenticated reports an authenticated call made before
	// Authenticate succeeded.
	ErrNotAuthenticated = errors.New("no connection established")

	// ErrParameter reports improperly set server parameters.
	ErrParameter = errors.New("server parameters improperly set")
)
