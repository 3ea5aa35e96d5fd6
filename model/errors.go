// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"errors"
)

var (
	ErrNetwork         = errors.New("network error")
	ErrAuth            = errors.New("authentication failed")
	ErrHTTP            = errors.New("http request failed")
	ErrCorruptArchive  = errors.New("corrupt archive")
	ErrIO              = errors.New("io error")
	ErrChecksum        = errors.New("checksum mismatch")
	ErrResourceInvalid = errors.New("invalid resource")
	ErrConfigInvalid   = errors.New("invalid configuration")
)

// ErrorKind is a short, stable name for the class of a failure, suitable for reports and metric labels
type ErrorKind string

const (
	ErrorKindNone            ErrorKind = ""
	ErrorKindNetwork         ErrorKind = "NetworkError"
	ErrorKindAuth            ErrorKind = "AuthError"
	ErrorKindHTTP            ErrorKind = "HTTPError"
	ErrorKindCorruptArchive  ErrorKind = "CorruptArchive"
	ErrorKindIO              ErrorKind = "IOError"
	ErrorKindChecksum        ErrorKind = "ChecksumError"
	ErrorKindResourceInvalid ErrorKind = "InvalidResource"
	ErrorKindUnknown         ErrorKind = "UnknownError"
)

// KindOf classifies err by the sentinel it wraps
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, ErrAuth):
		return ErrorKindAuth
	case errors.Is(err, ErrHTTP):
		return ErrorKindHTTP
	case errors.Is(err, ErrNetwork):
		return ErrorKindNetwork
	case errors.Is(err, ErrCorruptArchive):
		return ErrorKindCorruptArchive
	case errors.Is(err, ErrChecksum):
		return ErrorKindChecksum
	case errors.Is(err, ErrIO):
		return ErrorKindIO
	case errors.Is(err, ErrResourceInvalid):
		return ErrorKindResourceInvalid
	default:
		return ErrorKindUnknown
	}
}
