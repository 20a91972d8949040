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
// The registry is the agent's central state store: it owns every OS file and
// every child process the agent has created, and maps the opaque ids handed
// to clients back to those resources. Callers only ever see ids; no OS
// resource escapes the registry.
//

type RegistryServiceIface interface {
	Setup(ios IOServiceIface, prs ProcessServiceIface)

	// File surface.
	FileOpen(path string, mode FileOpenMode, ftype FileOpenType) (FileId, error)
	FileClose(fd FileId) error
	FileIsClosed(fd FileId) bool
	FileHasAnyMode(fd FileId, modes []FileOpenMode) (bool, error)
	FileRead(fd FileId, numBytes *uint32) ([]byte, error)
	FileReadLines(fd FileId, hint uint32) ([][]byte, error)
	FileSeek(fd FileId, offset int64, whence int32) error
	FileTell(fd FileId) (int64, error)
	FileIsSeekable(fd FileId) (bool, error)
	FileWrite(fd FileId, data []byte) error
	FileSetBlocking(fd FileId, blocking bool) error

	// Process surface.
	RunCommand(cfg *RunCommandConfig) (ProcessId, error)
	GetProcessIds() []ProcessId
	GetProcessChannel(pid ProcessId, channel ProcessChannel) (FileId, error)
	ProcessPoll(pid ProcessId) (*int32, error)
	ProcessWait(pid ProcessId, timeoutMs *uint32) (bool, error)
	ProcessReturnCode(pid ProcessId) (*int32, error)
}

// MetadataStoreIface is the per-agent string-to-string scratch space clients
// use to coordinate side-band state. No persistence, no TTL, no eviction.
type MetadataStoreIface interface {
	Get(key string) (string, bool)
	Set(key string, value string)
}
