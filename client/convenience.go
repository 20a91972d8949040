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

package client

import (
	"context"
	"fmt"
	"strconv"

	"github.com/twizmwazin/binharness/domain"
)

//
// Convenience layer: POSIX-style open mode strings, numeric channel
// selectors and id-or-name user references, matching what callers of the
// agent are used to from local file and process APIs.
//

// ParseOpenMode translates a POSIX-style mode string ("r", "rb", "w", "a",
// "x", with "+" selecting update and "b" selecting binary) into the agent's
// mode/type pair. Unrecognized characters are ignored.
func ParseOpenMode(s string) (domain.FileOpenMode, domain.FileOpenType) {

	mode := domain.ModeRead
	for _, c := range s {
		switch c {
		case 'r':
			mode = domain.ModeRead
		case 'w':
			mode = domain.ModeWrite
		case 'x':
			mode = domain.ModeExclusiveWrite
		case 'a':
			mode = domain.ModeAppend
		case '+':
			mode = domain.ModeUpdate
		}
	}

	ftype := domain.TypeText
	for _, c := range s {
		if c == 'b' {
			ftype = domain.TypeBinary
		}
	}

	return mode, ftype
}

// ParseChannel maps the conventional stdio descriptor numbers 0, 1, 2 to
// process channels.
func ParseChannel(n int) (domain.ProcessChannel, error) {

	switch n {
	case 0:
		return domain.Stdin, nil
	case 1:
		return domain.Stdout, nil
	case 2:
		return domain.Stderr, nil
	}

	return 0, fmt.Errorf("invalid channel %d", n)
}

// ParseUserRef turns a user or group argument into a reference: a string
// that parses as an unsigned integer is a numeric id, anything else is a
// name to be resolved by the agent.
func ParseUserRef(s string) domain.UserRef {

	if id, err := strconv.ParseUint(s, 10, 32); err == nil {
		return domain.UserRefId(uint32(id))
	}

	return domain.UserRefName(s)
}

// OpenFile opens a remote file with a POSIX-style mode string.
func (c *Client) OpenFile(
	ctx context.Context,
	envId domain.EnvironmentId,
	path string,
	modeString string) (domain.FileId, error) {

	mode, ftype := ParseOpenMode(modeString)

	return c.FileOpen(ctx, envId, path, mode, ftype)
}

// ChannelFile resolves a process' stdio channel, given by descriptor
// number, to its file id.
func (c *Client) ChannelFile(
	ctx context.Context,
	envId domain.EnvironmentId,
	pid domain.ProcessId,
	channelNum int) (domain.FileId, error) {

	channel, err := ParseChannel(channelNum)
	if err != nil {
		return 0, err
	}

	return c.GetProcessChannel(ctx, envId, pid, channel)
}

// ChownNames changes ownership using id-or-name strings; empty strings
// leave the corresponding attribute unchanged.
func (c *Client) ChownNames(
	ctx context.Context,
	envId domain.EnvironmentId,
	path string,
	user string,
	group string) error {

	var usr, grp *domain.UserRef

	if user != "" {
		ref := ParseUserRef(user)
		usr = &ref
	}
	if group != "" {
		ref := ParseUserRef(group)
		grp = &ref
	}

	return c.Chown(ctx, envId, path, usr, grp)
}

// WaitSeconds waits with a timeout given in (possibly fractional) seconds.
// A negative timeout waits forever.
func (c *Client) WaitSeconds(
	ctx context.Context,
	envId domain.EnvironmentId,
	pid domain.ProcessId,
	timeout float64) (bool, error) {

	var timeoutMs *uint32
	if timeout >= 0 {
		ms := uint32(timeout * 1000)
		timeoutMs = &ms
	}

	return c.ProcessWait(ctx, envId, pid, timeoutMs)
}
