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

package ipc

import (
	"errors"
	"strconv"
	"strings"

	grpcCodes "google.golang.org/grpc/codes"
	grpcStatus "google.golang.org/grpc/status"

	"github.com/twizmwazin/binharness/domain"
)

//
// Typed agent errors cross the wire as grpc statuses. The error kind rides
// in the status message, prefixed to the detail, so that the client can
// reconstruct the exact domain.Error the server produced; the status code
// is a coarser classification for generic grpc tooling.
//

func grpcCode(kind domain.ErrorKind) grpcCodes.Code {
	switch kind {
	case domain.ErrInvalidEnvironmentId, domain.ErrInvalidSeekWhence:
		return grpcCodes.InvalidArgument
	case domain.ErrInvalidFileDescriptor, domain.ErrInvalidProcessId,
		domain.ErrProcessChannelNotPiped, domain.ErrUserNotFound,
		domain.ErrGroupNotFound:
		return grpcCodes.NotFound
	case domain.ErrUnsupportedPlatform:
		return grpcCodes.Unimplemented
	case domain.ErrIo, domain.ErrErrno, domain.ErrProcessStartFailure,
		domain.ErrLock, domain.ErrInconsistent:
		return grpcCodes.Internal
	}
	return grpcCodes.Unknown
}

// StatusFromError converts an agent error to the grpc status carried back
// to the client.
func StatusFromError(err error) error {

	var agentErr *domain.Error
	if !errors.As(err, &agentErr) {
		agentErr = &domain.Error{Kind: domain.ErrUnknown, Detail: err.Error()}
	}

	detail := agentErr.Detail
	if agentErr.Kind == domain.ErrErrno {
		detail = strconv.Itoa(int(agentErr.Errno))
	}

	return grpcStatus.Errorf(
		grpcCode(agentErr.Kind),
		"%s: %s",
		agentErr.Kind, detail,
	)
}

// ErrorFromStatus is the client-side inverse of StatusFromError. Errors that
// did not originate from the agent (transport failures and the like) are
// returned unchanged.
func ErrorFromStatus(err error) error {

	if err == nil {
		return nil
	}

	st, ok := grpcStatus.FromError(err)
	if !ok {
		return err
	}

	name, detail, found := strings.Cut(st.Message(), ": ")
	kind := domain.ErrorKindFromName(name)
	if !found || (kind == domain.ErrUnknown && name != "Unknown") {
		return err
	}

	agentErr := &domain.Error{Kind: kind, Detail: detail}
	if kind == domain.ErrErrno {
		if errno, convErr := strconv.Atoi(detail); convErr == nil {
			agentErr.Errno = int32(errno)
			agentErr.Detail = ""
		}
	}

	return agentErr
}
