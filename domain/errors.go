//
// Copyright 2019-2020 Nestybox, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package domain

import "fmt"

//
// Error taxonomy of the agent. Every fallible operation surfaces one of the
// kinds below to the RPC boundary; the ipc layer translates kinds to grpc
// status codes, and the client reconstructs the typed error from them.
//

type ErrorKind int

const (
	ErrUnknown ErrorKind = iota
	ErrInvalidEnvironmentId
	ErrIo
	ErrInvalidFileDescriptor
	ErrInvalidSeekWhence
	ErrLock
	ErrProcessStartFailure
	ErrInvalidProcessId
	ErrProcessChannelNotPiped
	ErrUserNotFound
	ErrGroupNotFound
	ErrErrno
	ErrUnsupportedPlatform
	ErrInconsistent
)

var errorKindNames = map[ErrorKind]string{
	ErrUnknown:                "Unknown",
	ErrInvalidEnvironmentId:   "InvalidEnvironmentId",
	ErrIo:                     "IoError",
	ErrInvalidFileDescriptor:  "InvalidFileDescriptor",
	ErrInvalidSeekWhence:      "InvalidSeekWhence",
	ErrLock:                   "LockError",
	ErrProcessStartFailure:    "ProcessStartFailure",
	ErrInvalidProcessId:       "InvalidProcessId",
	ErrProcessChannelNotPiped: "ProcessChannelNotPiped",
	ErrUserNotFound:           "UserNotFound",
	ErrGroupNotFound:          "GroupNotFound",
	ErrErrno:                  "Errno",
	ErrUnsupportedPlatform:    "UnsupportedPlatform",
	ErrInconsistent:           "Inconsistent",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// ErrorKindFromName is the inverse of ErrorKind.String(). Unrecognized names
// map to ErrUnknown.
func ErrorKindFromName(name string) ErrorKind {
	for kind, kindName := range errorKindNames {
		if kindName == name {
			return kind
		}
	}
	return ErrUnknown
}

// Error is the agent's typed error value. Detail carries the OS message for
// io/spawn failures and the offending name for user/group lookups; Errno is
// only meaningful for ErrErrno.
type Error struct {
	Kind   ErrorKind
	Detail string
	Errno  int32
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrInvalidEnvironmentId:
		return "invalid environment id"
	case ErrIo:
		return fmt.Sprintf("i/o error: %s", e.Detail)
	case ErrInvalidFileDescriptor:
		return "invalid file descriptor"
	case ErrInvalidSeekWhence:
		return "invalid seek whence"
	case ErrLock:
		return "lock error"
	case ErrProcessStartFailure:
		return fmt.Sprintf("failed to start process: %s", e.Detail)
	case ErrInvalidProcessId:
		return "invalid process id"
	case ErrProcessChannelNotPiped:
		return "process channel not piped"
	case ErrUserNotFound:
		return fmt.Sprintf("user %s not found", e.Detail)
	case ErrGroupNotFound:
		return fmt.Sprintf("group %s not found", e.Detail)
	case ErrErrno:
		return fmt.Sprintf("unix error: %d", e.Errno)
	case ErrUnsupportedPlatform:
		return "unsupported platform"
	case ErrInconsistent:
		return "the agent state is inconsistent"
	}
	return "unknown error"
}

var (
	ErrorInvalidEnvironmentId  = &Error{Kind: ErrInvalidEnvironmentId}
	ErrorInvalidFileDescriptor = &Error{Kind: ErrInvalidFileDescriptor}
	ErrorInvalidSeekWhence     = &Error{Kind: ErrInvalidSeekWhence}
	ErrorInvalidProcessId      = &Error{Kind: ErrInvalidProcessId}
	ErrorChannelNotPiped       = &Error{Kind: ErrProcessChannelNotPiped}
	ErrorUnsupportedPlatform   = &Error{Kind: ErrUnsupportedPlatform}
	ErrorInconsistent          = &Error{Kind: ErrInconsistent}
	ErrorUnknown               = &Error{Kind: ErrUnknown}
)

func NewIoError(err error) *Error {
	return &Error{Kind: ErrIo, Detail: err.Error()}
}

func NewProcessStartFailure(msg string) *Error {
	return &Error{Kind: ErrProcessStartFailure, Detail: msg}
}

func NewUserNotFound(name string) *Error {
	return &Error{Kind: ErrUserNotFound, Detail: name}
}

func NewGroupNotFound(name string) *Error {
	return &Error{Kind: ErrGroupNotFound, Detail: name}
}

func NewErrnoError(errno int32) *Error {
	return &Error{Kind: ErrErrno, Errno: errno}
}
