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

package sysio

import (
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/twizmwazin/binharness/domain"
)

// Ensure IOnodeFile implements IOnode's interfaces.
var _ domain.IOServiceIface = (*ioFileService)(nil)
var _ domain.IOnodeIface = (*IOnodeFile)(nil)

//
// I/O Service providing FS interaction capabilities.
//
type ioFileService struct {
	fsType domain.IOServiceType
	appFs  afero.Fs
}

func NewIOService(fsType domain.IOServiceType) domain.IOServiceIface {

	var fs = &ioFileService{}

	if fsType == domain.IOMemFileService {
		fs.appFs = afero.NewMemMapFs()
		fs.fsType = domain.IOMemFileService
	} else {
		fs.appFs = afero.NewOsFs()
		fs.fsType = domain.IOOsFileService
	}

	return fs
}

// openFlags maps an access mode to the open(2) flag combination backing it.
// Write deliberately omits O_TRUNC: a plain write-open leaves existing
// content in place.
func openFlags(mode domain.FileOpenMode) (int, error) {
	switch mode {
	case domain.ModeRead:
		return os.O_RDONLY, nil
	case domain.ModeWrite:
		return os.O_WRONLY | os.O_CREATE, nil
	case domain.ModeExclusiveWrite:
		return os.O_WRONLY | os.O_CREATE | os.O_EXCL, nil
	case domain.ModeAppend:
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND, nil
	case domain.ModeUpdate:
		return os.O_RDWR, nil
	}

	return 0, fmt.Errorf("unsupported access mode %v", mode)
}

func (s *ioFileService) OpenNode(
	path string,
	mode domain.FileOpenMode) (domain.IOnodeIface, error) {

	flags, err := openFlags(mode)
	if err != nil {
		return nil, err
	}

	file, err := s.appFs.OpenFile(path, flags, 0666)
	if err != nil {
		return nil, err
	}

	newFile := &IOnodeFile{
		name: path,
		file: file,
	}

	return newFile, nil
}

func (s *ioFileService) PipeNode(f *os.File, name string) domain.IOnodeIface {
	return &IOnodeFile{
		name: name,
		file: f,
	}
}

// Eliminate all nodes from a previously created file-system. Utilized
// exclusively for unit-testing purposes (i.e. afero.MemFs).
func (s *ioFileService) RemoveAllIOnodes() error {
	if err := s.appFs.RemoveAll("/"); err != nil {
		return err
	}

	return nil
}

func (s *ioFileService) GetServiceType() domain.IOServiceType {
	return s.fsType
}

//
// IOnode class specialization for FS interaction. An *os.File satisfies the
// afero.File interface, so disk files and child-process pipe ends are both
// represented by this same type.
//
type IOnodeFile struct {
	name string
	file afero.File
}

func (i *IOnodeFile) Read(p []byte) (n int, err error) {
	return i.file.Read(p)
}

func (i *IOnodeFile) Write(p []byte) (n int, err error) {
	return i.file.Write(p)
}

func (i *IOnodeFile) Seek(offset int64, whence int) (int64, error) {
	return i.file.Seek(offset, whence)
}

func (i *IOnodeFile) Close() error {
	return i.file.Close()
}

func (i *IOnodeFile) Name() string {
	return i.name
}

func (i *IOnodeFile) Fd() (uintptr, bool) {
	if f, ok := i.file.(interface{ Fd() uintptr }); ok {
		return f.Fd(), true
	}

	return 0, false
}
