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

import "os"

//
// ioNode interface serves as an abstract-class to represent all I/O resources
// with whom the agent operates: regular files opened on behalf of a client,
// and the pipe ends of captured child-process streams. All I/O transactions
// are carried out through the methods exposed by this interface.
//
// Two backing services exist:
//
// 1. IOOsFileService: regular host-FS files / pipes. To be utilized in
//    production scenarios.
//
// 2. IOMemFileService: in-memory files. Utilized for unit testing.
//

type IOServiceType = int

const (
	IOServiceUnknown IOServiceType = iota
	IOOsFileService                // production / regular purposes
	IOMemFileService               // unit-testing purposes
)

type IOServiceIface interface {
	// OpenNode opens path with the flag/permission combination implied by
	// the given access mode.
	OpenNode(path string, mode FileOpenMode) (IOnodeIface, error)

	// PipeNode wraps one end of an already-open OS pipe.
	PipeNode(f *os.File, name string) IOnodeIface

	GetServiceType() IOServiceType
	RemoveAllIOnodes() error
}

type IOnodeIface interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Seek(offset int64, whence int) (int64, error)
	Close() error

	Name() string

	// Fd exposes the underlying OS descriptor, when there is one. In-memory
	// nodes report false.
	Fd() (uintptr, bool)
}
