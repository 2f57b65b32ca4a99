package nnsession

import "errors"

var (
	ErrNoConnection     = errors.New("nnsession: there is no open connection")
	ErrOpenFailed       = errors.New("nnsession: cannot open connection")
	ErrConnectionClosed = errors.New("nnsession: connection closed")
	ErrRequestTimeout   = errors.New("nnsession: request timed out")
)
