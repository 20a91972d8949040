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

//
// Shared identifier spaces handed out by the agent. File and process ids are
// allocated from disjoint monotonic counters and are never reissued within
// one agent lifetime.
//

type EnvironmentId = uint64
type ProcessId = uint64
type FileId = uint64

// DefaultEnvironment is the only environment this agent exposes. Requests
// referring to any other environment id are rejected.
const DefaultEnvironment EnvironmentId = 0

type ProcessChannel int

const (
	Stdin ProcessChannel = iota
	Stdout
	Stderr
)

func (c ProcessChannel) String() string {
	switch c {
	case Stdin:
		return "stdin"
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	}
	return "unknown"
}

// Redirection states what to do with one of a child process' stdio streams
// at spawn time: leave it attached to the agent's own stream, or capture it
// through a pipe that becomes a regular file id.
type Redirection int

const (
	RedirectNone Redirection = iota // inherit from the agent
	RedirectSave                    // capture through a pipe
)

type FileOpenMode int

const (
	ModeRead FileOpenMode = iota
	ModeWrite
	ModeExclusiveWrite
	ModeAppend
	ModeUpdate
)

func (m FileOpenMode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeWrite:
		return "write"
	case ModeExclusiveWrite:
		return "exclusive-write"
	case ModeAppend:
		return "append"
	case ModeUpdate:
		return "update"
	}
	return "unknown"
}

type FileOpenType int

const (
	TypeBinary FileOpenType = iota
	TypeText
)

func (t FileOpenType) String() string {
	if t == TypeText {
		return "text"
	}
	return "binary"
}

// ReadModes / WriteModes are the mode sets backing the file readability and
// writability predicates.
var (
	ReadModes  = []FileOpenMode{ModeRead, ModeUpdate}
	WriteModes = []FileOpenMode{ModeWrite, ModeExclusiveWrite, ModeUpdate, ModeAppend}
)

// EnvVar is one environment entry to be added to a spawned process.
type EnvVar struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// RunCommandConfig carries every knob of a process spawn request.
//
// Setuid / Setgid / Setpgid are only honored on POSIX targets; elsewhere
// they are ignored.
type RunCommandConfig struct {
	Argv       []string    `json:"argv"`
	Stdin      Redirection `json:"stdin"`
	Stdout     Redirection `json:"stdout"`
	Stderr     Redirection `json:"stderr"`
	Executable *string     `json:"executable,omitempty"`
	Env        []EnvVar    `json:"env,omitempty"`
	Cwd        *string     `json:"cwd,omitempty"`
	Setuid     *uint32     `json:"setuid,omitempty"`
	Setgid     *uint32     `json:"setgid,omitempty"`
	Setpgid    bool        `json:"setpgid"`
}

// FileStat mirrors the subset of stat(2) results exposed over the wire.
// Mode carries the low 16 bits of the file-mode word.
type FileStat struct {
	Mode  uint16 `json:"mode"`
	Uid   uint32 `json:"uid"`
	Gid   uint32 `json:"gid"`
	Size  int64  `json:"size"`
	Atime int64  `json:"atime"`
	Mtime int64  `json:"mtime"`
	Ctime int64  `json:"ctime"`
}

// UserRef identifies a user or group either by numeric id or by name. Names
// are resolved against the host user/group databases at chown time.
type UserRef struct {
	Id   *uint32 `json:"id,omitempty"`
	Name *string `json:"name,omitempty"`
}

func UserRefId(id uint32) UserRef {
	return UserRef{Id: &id}
}

func UserRefName(name string) UserRef {
	return UserRef{Name: &name}
}
