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
	"github.com/twizmwazin/binharness/domain"
)

//
// Wire messages of the agent service. Plain structs carried by the json
// codec; both the server and the client library build against these, so
// this file is the single source of wire truth.
//

// ServiceName is the fully-qualified grpc service identifier.
const ServiceName = "binharness.BhAgent"

// Method names, as they appear on the wire.
const (
	MethodGetEnvironments   = "GetEnvironments"
	MethodGetTempdir        = "GetTempdir"
	MethodRunCommand        = "RunCommand"
	MethodGetProcessIds     = "GetProcessIds"
	MethodGetProcessChannel = "GetProcessChannel"
	MethodProcessPoll       = "ProcessPoll"
	MethodProcessWait       = "ProcessWait"
	MethodProcessReturncode = "ProcessReturncode"
	MethodFileOpen          = "FileOpen"
	MethodFileClose         = "FileClose"
	MethodFileIsClosed      = "FileIsClosed"
	MethodFileIsReadable    = "FileIsReadable"
	MethodFileIsWritable    = "FileIsWritable"
	MethodFileIsSeekable    = "FileIsSeekable"
	MethodFileRead          = "FileRead"
	MethodFileReadLines     = "FileReadLines"
	MethodFileSeek          = "FileSeek"
	MethodFileTell          = "FileTell"
	MethodFileWrite         = "FileWrite"
	MethodFileSetBlocking   = "FileSetBlocking"
	MethodChown             = "Chown"
	MethodChmod             = "Chmod"
	MethodStat              = "Stat"
	MethodGetMetadata       = "GetMetadata"
	MethodSetMetadata       = "SetMetadata"
)

// MethodPath builds the full grpc method path for a method name.
func MethodPath(method string) string {
	return "/" + ServiceName + "/" + method
}

type GetEnvironmentsRequest struct{}

type GetEnvironmentsResponse struct {
	Environments []domain.EnvironmentId `json:"environments"`
}

type GetTempdirRequest struct {
	EnvId domain.EnvironmentId `json:"env_id"`
}

type GetTempdirResponse struct {
	Path string `json:"path"`
}

type RunCommandRequest struct {
	EnvId  domain.EnvironmentId    `json:"env_id"`
	Config domain.RunCommandConfig `json:"config"`
}

type RunCommandResponse struct {
	ProcessId domain.ProcessId `json:"process_id"`
}

type GetProcessIdsRequest struct {
	EnvId domain.EnvironmentId `json:"env_id"`
}

type GetProcessIdsResponse struct {
	ProcessIds []domain.ProcessId `json:"process_ids"`
}

type GetProcessChannelRequest struct {
	EnvId     domain.EnvironmentId  `json:"env_id"`
	ProcessId domain.ProcessId      `json:"process_id"`
	Channel   domain.ProcessChannel `json:"channel"`
}

type GetProcessChannelResponse struct {
	FileId domain.FileId `json:"file_id"`
}

type ProcessRequest struct {
	EnvId     domain.EnvironmentId `json:"env_id"`
	ProcessId domain.ProcessId     `json:"process_id"`
}

// ProcessStatusResponse carries the result of a poll or a returncode query;
// a nil exit code means the process has not been observed to exit.
type ProcessStatusResponse struct {
	ExitCode *int32 `json:"exit_code,omitempty"`
}

type ProcessWaitRequest struct {
	EnvId     domain.EnvironmentId `json:"env_id"`
	ProcessId domain.ProcessId     `json:"process_id"`
	TimeoutMs *uint32              `json:"timeout_ms,omitempty"`
}

type ProcessWaitResponse struct {
	TimedOut bool `json:"timed_out"`
}

type FileOpenRequest struct {
	EnvId domain.EnvironmentId `json:"env_id"`
	Path  string               `json:"path"`
	Mode  domain.FileOpenMode  `json:"mode"`
	Type  domain.FileOpenType  `json:"type"`
}

type FileOpenResponse struct {
	FileId domain.FileId `json:"file_id"`
}

// FileRequest addresses a single open file; shared by every operation whose
// only input is the file id.
type FileRequest struct {
	EnvId  domain.EnvironmentId `json:"env_id"`
	FileId domain.FileId        `json:"file_id"`
}

type EmptyResponse struct{}

type BoolResponse struct {
	Value bool `json:"value"`
}

type FileReadRequest struct {
	EnvId    domain.EnvironmentId `json:"env_id"`
	FileId   domain.FileId        `json:"file_id"`
	NumBytes *uint32              `json:"num_bytes,omitempty"`
}

type FileReadResponse struct {
	Data []byte `json:"data"`
}

type FileReadLinesRequest struct {
	EnvId  domain.EnvironmentId `json:"env_id"`
	FileId domain.FileId        `json:"file_id"`
	Hint   uint32               `json:"hint"`
}

type FileReadLinesResponse struct {
	Lines [][]byte `json:"lines"`
}

type FileSeekRequest struct {
	EnvId  domain.EnvironmentId `json:"env_id"`
	FileId domain.FileId        `json:"file_id"`
	Offset int64                `json:"offset"`
	Whence int32                `json:"whence"`
}

type FileTellResponse struct {
	Offset int64 `json:"offset"`
}

type FileWriteRequest struct {
	EnvId  domain.EnvironmentId `json:"env_id"`
	FileId domain.FileId        `json:"file_id"`
	Data   []byte               `json:"data"`
}

type FileSetBlockingRequest struct {
	EnvId    domain.EnvironmentId `json:"env_id"`
	FileId   domain.FileId        `json:"file_id"`
	Blocking bool                 `json:"blocking"`
}

type ChownRequest struct {
	EnvId domain.EnvironmentId `json:"env_id"`
	Path  string               `json:"path"`
	User  *domain.UserRef      `json:"user,omitempty"`
	Group *domain.UserRef      `json:"group,omitempty"`
}

type ChmodRequest struct {
	EnvId domain.EnvironmentId `json:"env_id"`
	Path  string               `json:"path"`
	Mode  uint32               `json:"mode"`
}

type StatRequest struct {
	EnvId domain.EnvironmentId `json:"env_id"`
	Path  string               `json:"path"`
}

type StatResponse struct {
	Stat domain.FileStat `json:"stat"`
}

type GetMetadataRequest struct {
	EnvId domain.EnvironmentId `json:"env_id"`
	Key   string               `json:"key"`
}

// GetMetadataResponse carries the stored value, or nil for a key that was
// never set.
type GetMetadataResponse struct {
	Value *string `json:"value,omitempty"`
}

type SetMetadataRequest struct {
	EnvId domain.EnvironmentId `json:"env_id"`
	Key   string               `json:"key"`
	Value string               `json:"value"`
}
