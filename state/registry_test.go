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
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twizmwazin/binharness/domain"
	"github.com/twizmwazin/binharness/process"
	"github.com/twizmwazin/binharness/sysio"
)

// bh-agent global services for all state's pkg unit-tests.
var ios domain.IOServiceIface
var prs domain.ProcessServiceIface

func TestMain(m *testing.M) {

	// Disable log generation during UT.
	logrus.SetOutput(io.Discard)

	//
	// Test-cases common settings.
	//
	ios = sysio.NewIOService(domain.IOMemFileService)
	prs = process.NewProcessService()

	prs.Setup(ios)

	// Run test-suite.
	m.Run()
}

func newTestRegistry(t *testing.T) domain.RegistryServiceIface {
	t.Cleanup(func() { ios.RemoveAllIOnodes() })

	reg := NewRegistryService()
	reg.Setup(ios, prs)

	return reg
}

func writeTestFile(
	t *testing.T,
	reg domain.RegistryServiceIface,
	path string,
	content []byte) {

	fd, err := reg.FileOpen(path, domain.ModeWrite, domain.TypeBinary)
	require.NoError(t, err)
	require.NoError(t, reg.FileWrite(fd, content))
	require.NoError(t, reg.FileClose(fd))
}

func TestFileWriteReadRoundtrip(t *testing.T) {
	reg := newTestRegistry(t)

	payload := []byte("agent round-trip payload\n")
	writeTestFile(t, reg, "/tmp/roundtrip", payload)

	fd, err := reg.FileOpen("/tmp/roundtrip", domain.ModeRead, domain.TypeBinary)
	require.NoError(t, err)

	data, err := reg.FileRead(fd, nil)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestFileHandlesNeverReissued(t *testing.T) {
	reg := newTestRegistry(t)

	seen := make(map[domain.FileId]bool)
	for i := 0; i < 64; i++ {
		fd, err := reg.FileOpen("/tmp/ids", domain.ModeWrite, domain.TypeBinary)
		require.NoError(t, err)
		require.False(t, seen[fd], "file id %d reissued", fd)
		seen[fd] = true
		require.NoError(t, reg.FileClose(fd))
	}
}

func TestFileCloseInvalidatesHandle(t *testing.T) {
	reg := newTestRegistry(t)

	fd, err := reg.FileOpen("/tmp/closed", domain.ModeWrite, domain.TypeBinary)
	require.NoError(t, err)

	assert.False(t, reg.FileIsClosed(fd))
	require.NoError(t, reg.FileClose(fd))
	assert.True(t, reg.FileIsClosed(fd))

	// Every operation on a closed handle fails the same way.
	assert.Equal(t, domain.ErrorInvalidFileDescriptor, reg.FileClose(fd))
	_, err = reg.FileRead(fd, nil)
	assert.Equal(t, domain.ErrorInvalidFileDescriptor, err)
	assert.Equal(t, domain.ErrorInvalidFileDescriptor,
		reg.FileWrite(fd, []byte("x")))
	_, err = reg.FileHasAnyMode(fd, domain.ReadModes)
	assert.Equal(t, domain.ErrorInvalidFileDescriptor, err)
}

func TestFileModePredicates(t *testing.T) {
	reg := newTestRegistry(t)

	writeTestFile(t, reg, "/tmp/modes", []byte("data"))

	tests := []struct {
		mode     domain.FileOpenMode
		readable bool
		writable bool
	}{
		{domain.ModeRead, true, false},
		{domain.ModeWrite, false, true},
		{domain.ModeAppend, false, true},
		{domain.ModeUpdate, true, true},
	}

	for _, tc := range tests {
		fd, err := reg.FileOpen("/tmp/modes", tc.mode, domain.TypeBinary)
		require.NoError(t, err)

		readable, err := reg.FileHasAnyMode(fd, domain.ReadModes)
		require.NoError(t, err)
		assert.Equal(t, tc.readable, readable, "mode %v readable", tc.mode)

		writable, err := reg.FileHasAnyMode(fd, domain.WriteModes)
		require.NoError(t, err)
		assert.Equal(t, tc.writable, writable, "mode %v writable", tc.mode)
	}
}

func TestFileSeekTell(t *testing.T) {
	reg := newTestRegistry(t)

	writeTestFile(t, reg, "/tmp/seek", []byte("01234567"))

	fd, err := reg.FileOpen("/tmp/seek", domain.ModeRead, domain.TypeBinary)
	require.NoError(t, err)

	require.NoError(t, reg.FileSeek(fd, 3, 0))
	pos, err := reg.FileTell(fd)
	require.NoError(t, err)
	assert.Equal(t, int64(3), pos)

	require.NoError(t, reg.FileSeek(fd, -1, 2))
	pos, err = reg.FileTell(fd)
	require.NoError(t, err)
	assert.Equal(t, int64(7), pos)

	seekable, err := reg.FileIsSeekable(fd)
	require.NoError(t, err)
	assert.True(t, seekable)
}

func TestFileSeekInvalidWhence(t *testing.T) {
	reg := newTestRegistry(t)

	writeTestFile(t, reg, "/tmp/whence", []byte("data"))

	fd, err := reg.FileOpen("/tmp/whence", domain.ModeRead, domain.TypeBinary)
	require.NoError(t, err)

	assert.Equal(t, domain.ErrorInvalidSeekWhence, reg.FileSeek(fd, 0, 3))
	assert.Equal(t, domain.ErrorInvalidSeekWhence, reg.FileSeek(fd, 0, -1))
}

func TestFileReadZeroBytes(t *testing.T) {
	reg := newTestRegistry(t)

	writeTestFile(t, reg, "/tmp/zero", []byte("data"))

	fd, err := reg.FileOpen("/tmp/zero", domain.ModeRead, domain.TypeBinary)
	require.NoError(t, err)

	n := uint32(0)
	data, err := reg.FileRead(fd, &n)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestFileReadLines(t *testing.T) {
	reg := newTestRegistry(t)

	writeTestFile(t, reg, "/tmp/lines", []byte("one\ntwo\npartial"))

	fd, err := reg.FileOpen("/tmp/lines", domain.ModeRead, domain.TypeBinary)
	require.NoError(t, err)

	lines, err := reg.FileReadLines(fd, 0)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, []byte("one\n"), lines[0])
	assert.Equal(t, []byte("two\n"), lines[1])
	assert.Equal(t, []byte("partial"), lines[2])
}

func TestTextReadGraphemes(t *testing.T) {
	reg := newTestRegistry(t)

	// 5 graphemes, 11 bytes.
	writeTestFile(t, reg, "/tmp/emoji", []byte("a😀b😂c"))

	fd, err := reg.FileOpen("/tmp/emoji", domain.ModeRead, domain.TypeText)
	require.NoError(t, err)

	n := uint32(4)
	data, err := reg.FileRead(fd, &n)
	require.NoError(t, err)
	assert.Equal(t, []byte("a😀b😂"), data)

	// The lookahead byte was seeked back; the tail is still readable.
	rest, err := reg.FileRead(fd, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("c"), rest)
}

func TestRunCommandEmptyArgv(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := reg.RunCommand(&domain.RunCommandConfig{})

	var agentErr *domain.Error
	require.ErrorAs(t, err, &agentErr)
	assert.Equal(t, domain.ErrProcessStartFailure, agentErr.Kind)
}

func TestRunCommandCapturesStdout(t *testing.T) {
	reg := newTestRegistry(t)

	pid, err := reg.RunCommand(&domain.RunCommandConfig{
		Argv:   []string{"echo", "hello"},
		Stdout: domain.RedirectSave,
	})
	require.NoError(t, err)

	fd, err := reg.GetProcessChannel(pid, domain.Stdout)
	require.NoError(t, err)

	// Stable channel mapping across calls.
	fd2, err := reg.GetProcessChannel(pid, domain.Stdout)
	require.NoError(t, err)
	assert.Equal(t, fd, fd2)

	// Stdin was not captured.
	_, err = reg.GetProcessChannel(pid, domain.Stdin)
	assert.Equal(t, domain.ErrorChannelNotPiped, err)

	timedOut, err := reg.ProcessWait(pid, nil)
	require.NoError(t, err)
	assert.False(t, timedOut)

	data, err := reg.FileRead(fd, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello\n"), data)

	code, err := reg.ProcessReturnCode(pid)
	require.NoError(t, err)
	require.NotNil(t, code)
	assert.Equal(t, int32(0), *code)

	// Stream handles live outside the closeable file table.
	assert.True(t, reg.FileIsClosed(fd))
	assert.Equal(t, domain.ErrorInvalidFileDescriptor, reg.FileClose(fd))

	// But mode predicates do apply to them.
	readable, err := reg.FileHasAnyMode(fd, domain.ReadModes)
	require.NoError(t, err)
	assert.True(t, readable)
}

func TestRunCommandStderrChannel(t *testing.T) {
	reg := newTestRegistry(t)

	pid, err := reg.RunCommand(&domain.RunCommandConfig{
		Argv:   []string{"sh", "-c", "echo oops >&2"},
		Stdout: domain.RedirectSave,
		Stderr: domain.RedirectSave,
	})
	require.NoError(t, err)

	timedOut, err := reg.ProcessWait(pid, nil)
	require.NoError(t, err)
	require.False(t, timedOut)

	// Diagnostics go to the stderr handle, not the stdout one.
	errFd, err := reg.GetProcessChannel(pid, domain.Stderr)
	require.NoError(t, err)
	outFd, err := reg.GetProcessChannel(pid, domain.Stdout)
	require.NoError(t, err)
	require.NotEqual(t, errFd, outFd)

	data, err := reg.FileRead(errFd, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("oops\n"), data)

	data, err = reg.FileRead(outFd, nil)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestProcessPollAndWaitTimeout(t *testing.T) {
	reg := newTestRegistry(t)

	pid, err := reg.RunCommand(&domain.RunCommandConfig{
		Argv: []string{"sleep", "1"},
	})
	require.NoError(t, err)

	code, err := reg.ProcessPoll(pid)
	require.NoError(t, err)
	assert.Nil(t, code)

	// Zero timeout reports expiry right away on a running process.
	timeout := uint32(0)
	timedOut, err := reg.ProcessWait(pid, &timeout)
	require.NoError(t, err)
	assert.True(t, timedOut)

	timeout = 200
	timedOut, err = reg.ProcessWait(pid, &timeout)
	require.NoError(t, err)
	assert.True(t, timedOut)

	timedOut, err = reg.ProcessWait(pid, nil)
	require.NoError(t, err)
	assert.False(t, timedOut)

	code, err = reg.ProcessPoll(pid)
	require.NoError(t, err)
	require.NotNil(t, code)
	assert.Equal(t, int32(0), *code)
}

func TestGetProcessIds(t *testing.T) {
	reg := newTestRegistry(t)

	assert.Empty(t, reg.GetProcessIds())

	var want []domain.ProcessId
	for i := 0; i < 3; i++ {
		pid, err := reg.RunCommand(&domain.RunCommandConfig{
			Argv: []string{"true"},
		})
		require.NoError(t, err)
		want = append(want, pid)
	}

	assert.Equal(t, want, reg.GetProcessIds())
}

func TestProcessUnknownId(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := reg.ProcessPoll(42)
	assert.Equal(t, domain.ErrorInvalidProcessId, err)

	_, err = reg.GetProcessChannel(42, domain.Stdout)
	assert.Equal(t, domain.ErrorInvalidProcessId, err)
}

func TestNonBlockingReadReturnsEmpty(t *testing.T) {
	reg := newTestRegistry(t)

	pid, err := reg.RunCommand(&domain.RunCommandConfig{
		Argv:   []string{"sh", "-c", "sleep 1; echo late"},
		Stdout: domain.RedirectSave,
	})
	require.NoError(t, err)

	fd, err := reg.GetProcessChannel(pid, domain.Stdout)
	require.NoError(t, err)

	require.NoError(t, reg.FileSetBlocking(fd, false))

	// Nothing written yet: empty result, not an error.
	n := uint32(16)
	data, err := reg.FileRead(fd, &n)
	require.NoError(t, err)
	assert.Empty(t, data)

	timedOut, err := reg.ProcessWait(pid, nil)
	require.NoError(t, err)
	require.False(t, timedOut)

	data, err = reg.FileRead(fd, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("late\n"), data)
}
