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

package ipc_test

import (
	"context"
	"io"
	"net"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/twizmwazin/binharness/client"
	"github.com/twizmwazin/binharness/domain"
	"github.com/twizmwazin/binharness/ipc"
	"github.com/twizmwazin/binharness/process"
	"github.com/twizmwazin/binharness/state"
	"github.com/twizmwazin/binharness/sysio"
)

func TestMain(m *testing.M) {

	// Disable log generation during UT.
	logrus.SetOutput(io.Discard)

	m.Run()
}

// startTestAgent serves a fully-wired agent over an in-memory listener and
// returns a connected client.
func startTestAgent(t *testing.T) *client.Client {

	ios := sysio.NewIOService(domain.IOOsFileService)
	prs := process.NewProcessService()
	reg := state.NewRegistryService()
	mds := state.NewMetadataStore()

	prs.Setup(ios)
	reg.Setup(ios, prs)

	srv := ipc.NewGrpcServer(reg, mds)

	lis := bufconn.Listen(1 << 20)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.Dial(
		"bufnet",
		grpc.WithContextDialer(
			func(ctx context.Context, addr string) (net.Conn, error) {
				return lis.Dial()
			}),
		grpc.WithInsecure(),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(ipc.CodecName)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return client.NewWithConn(conn)
}

func agentErrKind(t *testing.T, err error) domain.ErrorKind {
	var agentErr *domain.Error
	require.ErrorAs(t, err, &agentErr)
	return agentErr.Kind
}

func TestGetEnvironments(t *testing.T) {
	c := startTestAgent(t)
	ctx := context.Background()

	envs, err := c.GetEnvironments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.EnvironmentId{0}, envs)
}

func TestGetTempdir(t *testing.T) {
	c := startTestAgent(t)
	ctx := context.Background()

	dir, err := c.GetTempdir(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "/tmp", dir)
}

func TestInvalidEnvironmentId(t *testing.T) {
	c := startTestAgent(t)
	ctx := context.Background()

	_, err := c.GetTempdir(ctx, 1)
	assert.Equal(t, domain.ErrInvalidEnvironmentId, agentErrKind(t, err))

	_, err = c.FileOpen(ctx, 7, "/tmp/x", domain.ModeRead, domain.TypeBinary)
	assert.Equal(t, domain.ErrInvalidEnvironmentId, agentErrKind(t, err))

	_, err = c.ProcessPoll(ctx, 99, 0)
	assert.Equal(t, domain.ErrInvalidEnvironmentId, agentErrKind(t, err))
}

func TestFileRoundTripOverRpc(t *testing.T) {
	c := startTestAgent(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "roundtrip")
	payload := []byte("bytes over the wire\n")

	fd, err := c.OpenFile(ctx, 0, path, "wb")
	require.NoError(t, err)
	require.NoError(t, c.FileWrite(ctx, 0, fd, payload))
	require.NoError(t, c.FileClose(ctx, 0, fd))

	fd, err = c.OpenFile(ctx, 0, path, "rb")
	require.NoError(t, err)

	data, err := c.FileRead(ctx, 0, fd, nil)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	closed, err := c.FileIsClosed(ctx, 0, fd)
	require.NoError(t, err)
	assert.False(t, closed)

	require.NoError(t, c.FileClose(ctx, 0, fd))

	closed, err = c.FileIsClosed(ctx, 0, fd)
	require.NoError(t, err)
	assert.True(t, closed)

	err = c.FileClose(ctx, 0, fd)
	assert.Equal(t, domain.ErrInvalidFileDescriptor, agentErrKind(t, err))
}

func TestFileSeekTellOverRpc(t *testing.T) {
	c := startTestAgent(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "seek")

	fd, err := c.OpenFile(ctx, 0, path, "wb")
	require.NoError(t, err)
	require.NoError(t, c.FileWrite(ctx, 0, fd, []byte("01234567")))
	require.NoError(t, c.FileClose(ctx, 0, fd))

	fd, err = c.OpenFile(ctx, 0, path, "rb")
	require.NoError(t, err)

	require.NoError(t, c.FileSeek(ctx, 0, fd, 3, 0))
	pos, err := c.FileTell(ctx, 0, fd)
	require.NoError(t, err)
	assert.Equal(t, int64(3), pos)

	err = c.FileSeek(ctx, 0, fd, 0, 5)
	assert.Equal(t, domain.ErrInvalidSeekWhence, agentErrKind(t, err))
}

func TestSpawnAndReadOutput(t *testing.T) {
	c := startTestAgent(t)
	ctx := context.Background()

	pid, err := c.RunCommand(ctx, 0, &domain.RunCommandConfig{
		Argv:   []string{"echo", "hello"},
		Stdout: domain.RedirectSave,
	})
	require.NoError(t, err)

	fd, err := c.ChannelFile(ctx, 0, pid, 1)
	require.NoError(t, err)

	timedOut, err := c.ProcessWait(ctx, 0, pid, nil)
	require.NoError(t, err)
	assert.False(t, timedOut)

	data, err := c.FileRead(ctx, 0, fd, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello\n"), data)

	code, err := c.ProcessReturncode(ctx, 0, pid)
	require.NoError(t, err)
	require.NotNil(t, code)
	assert.Equal(t, int32(0), *code)

	pids, err := c.GetProcessIds(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []domain.ProcessId{pid}, pids)
}

func TestTextReadOverRpc(t *testing.T) {
	c := startTestAgent(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "text")

	fd, err := c.OpenFile(ctx, 0, path, "wb")
	require.NoError(t, err)
	require.NoError(t, c.FileWrite(ctx, 0, fd, []byte("a😀b😂c")))
	require.NoError(t, c.FileClose(ctx, 0, fd))

	fd, err = c.OpenFile(ctx, 0, path, "r")
	require.NoError(t, err)

	n := uint32(4)
	data, err := c.FileRead(ctx, 0, fd, &n)
	require.NoError(t, err)
	assert.Equal(t, []byte("a😀b😂"), data)
}

func TestStatChmodRoundTrip(t *testing.T) {
	c := startTestAgent(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "perm")

	fd, err := c.OpenFile(ctx, 0, path, "wb")
	require.NoError(t, err)
	require.NoError(t, c.FileClose(ctx, 0, fd))

	require.NoError(t, c.Chmod(ctx, 0, path, 0o640))

	st, err := c.Stat(ctx, 0, path)
	require.NoError(t, err)
	assert.Equal(t, uint16(0o640), st.Mode&0o7777)
	assert.Equal(t, int64(0), st.Size)
}

func TestChownUnknownUser(t *testing.T) {
	c := startTestAgent(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "owned")

	fd, err := c.OpenFile(ctx, 0, path, "wb")
	require.NoError(t, err)
	require.NoError(t, c.FileClose(ctx, 0, fd))

	err = c.ChownNames(ctx, 0, path, "nonesuch-bh-user", "")
	require.Error(t, err)

	var agentErr *domain.Error
	require.ErrorAs(t, err, &agentErr)
	assert.Equal(t, domain.ErrUserNotFound, agentErr.Kind)
	assert.Equal(t, "nonesuch-bh-user", agentErr.Detail)
}

func TestMetadataOverRpc(t *testing.T) {
	c := startTestAgent(t)
	ctx := context.Background()

	value, err := c.GetMetadata(ctx, 0, "absent")
	require.NoError(t, err)
	assert.Nil(t, value)

	require.NoError(t, c.SetMetadata(ctx, 0, "session", "abc123"))

	value, err = c.GetMetadata(ctx, 0, "session")
	require.NoError(t, err)
	require.NotNil(t, value)
	assert.Equal(t, "abc123", *value)
}
