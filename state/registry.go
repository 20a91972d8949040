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

package state

import (
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/twizmwazin/binharness/domain"
	"github.com/twizmwazin/binharness/sysio"
)

// Ensure the registry implements its domain interface.
var _ domain.RegistryServiceIface = (*registryService)(nil)

//
// The registry keeps one table per resource class. A file id resolves either
// to a disk file or to one of a child process' captured pipe ends; both live
// in the same table, tagged by kind, so no id can ever exist in two tables.
// File and process ids come from disjoint monotonic counters and are never
// reissued.
//
// Locking discipline: the table locks only guard insertion, removal and
// lookup. I/O happens under the per-entry lock, after the table lock has
// been dropped, so a slow read on one handle never blocks operations on
// unrelated handles.
//

type fileKind int

const (
	diskFile fileKind = iota
	processStream
)

type fileEntry struct {
	mu      sync.RWMutex
	node    domain.IOnodeIface
	kind    fileKind
	pid     domain.ProcessId // processStream only: owning process
	channel domain.ProcessChannel
	mode    domain.FileOpenMode
	ftype   domain.FileOpenType
}

type processEntry struct {
	proc domain.ProcessIface

	// One entry per captured stream. Populated before the entry is
	// published in the process table, immutable afterwards.
	streams map[domain.ProcessChannel]domain.FileId
}

type registryService struct {
	fileMu sync.RWMutex
	files  map[domain.FileId]*fileEntry

	procMu sync.RWMutex
	procs  map[domain.ProcessId]*processEntry

	nextFileId atomic.Uint64
	nextProcId atomic.Uint64

	ios domain.IOServiceIface
	prs domain.ProcessServiceIface
}

func NewRegistryService() domain.RegistryServiceIface {
	return &registryService{
		files: make(map[domain.FileId]*fileEntry),
		procs: make(map[domain.ProcessId]*processEntry),
	}
}

func (reg *registryService) Setup(
	ios domain.IOServiceIface,
	prs domain.ProcessServiceIface) {

	reg.ios = ios
	reg.prs = prs
}

func (reg *registryService) takeFileId() domain.FileId {
	return reg.nextFileId.Add(1) - 1
}

func (reg *registryService) takeProcId() domain.ProcessId {
	return reg.nextProcId.Add(1) - 1
}

// lookupFile resolves a file id to its entry. The entry pointer is copied
// out under the table read-lock; the caller serializes I/O through the
// entry's own lock.
func (reg *registryService) lookupFile(fd domain.FileId) (*fileEntry, error) {

	reg.fileMu.RLock()
	entry := reg.files[fd]
	reg.fileMu.RUnlock()

	if entry == nil {
		return nil, domain.ErrorInvalidFileDescriptor
	}

	return entry, nil
}

func (reg *registryService) FileOpen(
	path string,
	mode domain.FileOpenMode,
	ftype domain.FileOpenType) (domain.FileId, error) {

	node, err := reg.ios.OpenNode(path, mode)
	if err != nil {
		logrus.Debugf("Error opening %s: %v", path, err)
		return 0, domain.NewIoError(err)
	}

	fd := reg.takeFileId()

	entry := &fileEntry{
		node:  node,
		kind:  diskFile,
		mode:  mode,
		ftype: ftype,
	}

	reg.fileMu.Lock()
	reg.files[fd] = entry
	reg.fileMu.Unlock()

	logrus.Debugf("Opened %s: fd = %d, mode = %v, type = %v",
		path, fd, mode, ftype)

	return fd, nil
}

// FileClose removes a disk file from the table and releases the OS handle.
// Stream handles are not closeable through this surface; a close on one
// fails the same way a stale id does.
func (reg *registryService) FileClose(fd domain.FileId) error {

	reg.fileMu.Lock()
	entry := reg.files[fd]
	if entry == nil || entry.kind != diskFile {
		reg.fileMu.Unlock()
		return domain.ErrorInvalidFileDescriptor
	}
	delete(reg.files, fd)
	reg.fileMu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()

	logrus.Debugf("Closed fd %d", fd)

	if err := entry.node.Close(); err != nil {
		return domain.NewIoError(err)
	}

	return nil
}

// FileIsClosed reports whether the id does not name an open disk file. Stream
// handles share the file table but are tagged as process streams, so they
// report closed.
func (reg *registryService) FileIsClosed(fd domain.FileId) bool {

	reg.fileMu.RLock()
	entry := reg.files[fd]
	reg.fileMu.RUnlock()

	return entry == nil || entry.kind != diskFile
}

func (reg *registryService) FileHasAnyMode(
	fd domain.FileId,
	modes []domain.FileOpenMode) (bool, error) {

	entry, err := reg.lookupFile(fd)
	if err != nil {
		return false, err
	}

	for _, mode := range modes {
		if entry.mode == mode {
			return true, nil
		}
	}

	return false, nil
}

func (reg *registryService) FileRead(
	fd domain.FileId,
	numBytes *uint32) ([]byte, error) {

	entry, err := reg.lookupFile(fd)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	data, err := sysio.ReadGeneric(entry.node, numBytes, entry.ftype)
	if err != nil {
		return nil, domain.NewIoError(err)
	}

	return data, nil
}

func (reg *registryService) FileReadLines(
	fd domain.FileId,
	hint uint32) ([][]byte, error) {

	entry, err := reg.lookupFile(fd)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	lines, err := sysio.ReadLines(entry.node, hint)
	if err != nil {
		return nil, domain.NewIoError(err)
	}

	return lines, nil
}

func (reg *registryService) FileSeek(
	fd domain.FileId,
	offset int64,
	whence int32) error {

	var goWhence int
	switch whence {
	case 0:
		goWhence = io.SeekStart
	case 1:
		goWhence = io.SeekCurrent
	case 2:
		goWhence = io.SeekEnd
	default:
		return domain.ErrorInvalidSeekWhence
	}

	entry, err := reg.lookupFile(fd)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if _, err := entry.node.Seek(offset, goWhence); err != nil {
		return domain.NewIoError(err)
	}

	return nil
}

func (reg *registryService) FileTell(fd domain.FileId) (int64, error) {

	entry, err := reg.lookupFile(fd)
	if err != nil {
		return 0, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	pos, err := entry.node.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, domain.NewIoError(err)
	}

	return pos, nil
}

// FileIsSeekable probes the handle with a zero-length relative seek, which
// pipes reject.
func (reg *registryService) FileIsSeekable(fd domain.FileId) (bool, error) {

	entry, err := reg.lookupFile(fd)
	if err != nil {
		return false, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	_, err = entry.node.Seek(0, io.SeekCurrent)

	return err == nil, nil
}

func (reg *registryService) FileWrite(fd domain.FileId, data []byte) error {

	entry, err := reg.lookupFile(fd)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	n, err := entry.node.Write(data)
	if err != nil {
		return domain.NewIoError(err)
	}
	if n < len(data) {
		return domain.NewIoError(io.ErrShortWrite)
	}

	return nil
}

func (reg *registryService) FileSetBlocking(
	fd domain.FileId,
	blocking bool) error {

	entry, err := reg.lookupFile(fd)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	return sysio.SetBlockingNode(entry.node, blocking)
}

// RunCommand spawns a child process and registers a file id for every
// captured stream: stdin pipes are write-only, stdout/stderr pipes are
// read-only, all binary.
func (reg *registryService) RunCommand(
	cfg *domain.RunCommandConfig) (domain.ProcessId, error) {

	proc, err := reg.prs.ProcessSpawn(cfg)
	if err != nil {
		return 0, err
	}

	pid := reg.takeProcId()

	procEntry := &processEntry{
		proc:    proc,
		streams: make(map[domain.ProcessChannel]domain.FileId),
	}

	type stream struct {
		channel domain.ProcessChannel
		node    domain.IOnodeIface
		mode    domain.FileOpenMode
	}

	streams := []stream{
		{domain.Stdin, proc.Stdin(), domain.ModeWrite},
		{domain.Stdout, proc.Stdout(), domain.ModeRead},
		{domain.Stderr, proc.Stderr(), domain.ModeRead},
	}

	for _, s := range streams {
		if s.node == nil {
			logrus.Debugf("Process %d has no %v", pid, s.channel)
			continue
		}

		fd := reg.takeFileId()

		entry := &fileEntry{
			node:    s.node,
			kind:    processStream,
			pid:     pid,
			channel: s.channel,
			mode:    s.mode,
			ftype:   domain.TypeBinary,
		}

		reg.fileMu.Lock()
		reg.files[fd] = entry
		reg.fileMu.Unlock()

		procEntry.streams[s.channel] = fd

		logrus.Debugf("Saved %v for process %d: fd = %d", s.channel, pid, fd)
	}

	reg.procMu.Lock()
	reg.procs[pid] = procEntry
	reg.procMu.Unlock()

	logrus.Infof("Registered process: id = %d, os pid = %d", pid, proc.Pid())

	return pid, nil
}

func (reg *registryService) GetProcessIds() []domain.ProcessId {

	reg.procMu.RLock()
	ids := make([]domain.ProcessId, 0, len(reg.procs))
	for pid := range reg.procs {
		ids = append(ids, pid)
	}
	reg.procMu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

func (reg *registryService) GetProcessChannel(
	pid domain.ProcessId,
	channel domain.ProcessChannel) (domain.FileId, error) {

	entry, err := reg.lookupProcess(pid)
	if err != nil {
		return 0, err
	}

	fd, ok := entry.streams[channel]
	if !ok {
		logrus.Debugf("Process %d has no piped %v", pid, channel)
		return 0, domain.ErrorChannelNotPiped
	}

	return fd, nil
}

func (reg *registryService) ProcessPoll(pid domain.ProcessId) (*int32, error) {

	entry, err := reg.lookupProcess(pid)
	if err != nil {
		return nil, err
	}

	return entry.proc.Poll()
}

func (reg *registryService) ProcessWait(
	pid domain.ProcessId,
	timeoutMs *uint32) (bool, error) {

	entry, err := reg.lookupProcess(pid)
	if err != nil {
		return false, err
	}

	return entry.proc.WaitTimeout(timeoutMs)
}

func (reg *registryService) ProcessReturnCode(
	pid domain.ProcessId) (*int32, error) {

	entry, err := reg.lookupProcess(pid)
	if err != nil {
		return nil, err
	}

	return entry.proc.ReturnCode()
}

func (reg *registryService) lookupProcess(
	pid domain.ProcessId) (*processEntry, error) {

	reg.procMu.RLock()
	entry := reg.procs[pid]
	reg.procMu.RUnlock()

	if entry == nil {
		return nil, domain.ErrorInvalidProcessId
	}

	return entry, nil
}
