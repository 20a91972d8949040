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

	"google.golang.org/grpc"

	"github.com/twizmwazin/binharness/domain"
	"github.com/twizmwazin/binharness/ipc"
)

//
// Thin RPC client of the agent. Each method performs exactly one unary call
// against the service surface defined in the ipc package and surfaces the
// server's typed errors as *domain.Error values.
//

type Client struct {
	conn *grpc.ClientConn
}

// Connect dials the agent at addr (host:port). The connection is
// established lazily; the first RPC performs the actual dial.
func Connect(addr string) (*Client, error) {

	conn, err := grpc.Dial(
		addr,
		grpc.WithInsecure(),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(ipc.CodecName)),
	)
	if err != nil {
		return nil, err
	}

	return &Client{conn: conn}, nil
}

// NewWithConn wraps an already-dialed connection. The connection must have
// been dialed with the agent's codec call option; used by tests running
// over an in-memory listener.
func NewWithConn(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(
	ctx context.Context,
	method string,
	req interface{},
	resp interface{}) error {

	err := c.conn.Invoke(ctx, ipc.MethodPath(method), req, resp)
	return ipc.ErrorFromStatus(err)
}

func (c *Client) GetEnvironments(
	ctx context.Context) ([]domain.EnvironmentId, error) {

	var resp ipc.GetEnvironmentsResponse
	err := c.invoke(ctx, ipc.MethodGetEnvironments,
		&ipc.GetEnvironmentsRequest{}, &resp)
	if err != nil {
		return nil, err
	}

	return resp.Environments, nil
}

func (c *Client) GetTempdir(
	ctx context.Context,
	envId domain.EnvironmentId) (string, error) {

	var resp ipc.GetTempdirResponse
	err := c.invoke(ctx, ipc.MethodGetTempdir,
		&ipc.GetTempdirRequest{EnvId: envId}, &resp)
	if err != nil {
		return "", err
	}

	return resp.Path, nil
}

func (c *Client) RunCommand(
	ctx context.Context,
	envId domain.EnvironmentId,
	cfg *domain.RunCommandConfig) (domain.ProcessId, error) {

	var resp ipc.RunCommandResponse
	err := c.invoke(ctx, ipc.MethodRunCommand,
		&ipc.RunCommandRequest{EnvId: envId, Config: *cfg}, &resp)
	if err != nil {
		return 0, err
	}

	return resp.ProcessId, nil
}

func (c *Client) GetProcessIds(
	ctx context.Context,
	envId domain.EnvironmentId) ([]domain.ProcessId, error) {

	var resp ipc.GetProcessIdsResponse
	err := c.invoke(ctx, ipc.MethodGetProcessIds,
		&ipc.GetProcessIdsRequest{EnvId: envId}, &resp)
	if err != nil {
		return nil, err
	}

	return resp.ProcessIds, nil
}

func (c *Client) GetProcessChannel(
	ctx context.Context,
	envId domain.EnvironmentId,
	pid domain.ProcessId,
	channel domain.ProcessChannel) (domain.FileId, error) {

	var resp ipc.GetProcessChannelResponse
	err := c.invoke(ctx, ipc.MethodGetProcessChannel,
		&ipc.GetProcessChannelRequest{
			EnvId:     envId,
			ProcessId: pid,
			Channel:   channel,
		}, &resp)
	if err != nil {
		return 0, err
	}

	return resp.FileId, nil
}

// ProcessPoll reports the process' exit code, or nil while it is still
// running.
func (c *Client) ProcessPoll(
	ctx context.Context,
	envId domain.EnvironmentId,
	pid domain.ProcessId) (*int32, error) {

	var resp ipc.ProcessStatusResponse
	err := c.invoke(ctx, ipc.MethodProcessPoll,
		&ipc.ProcessRequest{EnvId: envId, ProcessId: pid}, &resp)
	if err != nil {
		return nil, err
	}

	return resp.ExitCode, nil
}

// ProcessWait blocks until the process exits or the timeout elapses,
// returning true iff it timed out. A nil timeout waits forever.
func (c *Client) ProcessWait(
	ctx context.Context,
	envId domain.EnvironmentId,
	pid domain.ProcessId,
	timeoutMs *uint32) (bool, error) {

	var resp ipc.ProcessWaitResponse
	err := c.invoke(ctx, ipc.MethodProcessWait,
		&ipc.ProcessWaitRequest{
			EnvId:     envId,
			ProcessId: pid,
			TimeoutMs: timeoutMs,
		}, &resp)
	if err != nil {
		return false, err
	}

	return resp.TimedOut, nil
}

func (c *Client) ProcessReturncode(
	ctx context.Context,
	envId domain.EnvironmentId,
	pid domain.ProcessId) (*int32, error) {

	var resp ipc.ProcessStatusResponse
	err := c.invoke(ctx, ipc.MethodProcessReturncode,
		&ipc.ProcessRequest{EnvId: envId, ProcessId: pid}, &resp)
	if err != nil {
		return nil, err
	}

	return resp.ExitCode, nil
}

func (c *Client) FileOpen(
	ctx context.Context,
	envId domain.EnvironmentId,
	path string,
	mode domain.FileOpenMode,
	ftype domain.FileOpenType) (domain.FileId, error) {

	var resp ipc.FileOpenResponse
	err := c.invoke(ctx, ipc.MethodFileOpen,
		&ipc.FileOpenRequest{
			EnvId: envId,
			Path:  path,
			Mode:  mode,
			Type:  ftype,
		}, &resp)
	if err != nil {
		return 0, err
	}

	return resp.FileId, nil
}

func (c *Client) FileClose(
	ctx context.Context,
	envId domain.EnvironmentId,
	fd domain.FileId) error {

	var resp ipc.EmptyResponse
	return c.invoke(ctx, ipc.MethodFileClose,
		&ipc.FileRequest{EnvId: envId, FileId: fd}, &resp)
}

func (c *Client) FileIsClosed(
	ctx context.Context,
	envId domain.EnvironmentId,
	fd domain.FileId) (bool, error) {

	var resp ipc.BoolResponse
	err := c.invoke(ctx, ipc.MethodFileIsClosed,
		&ipc.FileRequest{EnvId: envId, FileId: fd}, &resp)
	if err != nil {
		return false, err
	}

	return resp.Value, nil
}

func (c *Client) FileIsReadable(
	ctx context.Context,
	envId domain.EnvironmentId,
	fd domain.FileId) (bool, error) {

	var resp ipc.BoolResponse
	err := c.invoke(ctx, ipc.MethodFileIsReadable,
		&ipc.FileRequest{EnvId: envId, FileId: fd}, &resp)
	if err != nil {
		return false, err
	}

	return resp.Value, nil
}

func (c *Client) FileIsWritable(
	ctx context.Context,
	envId domain.EnvironmentId,
	fd domain.FileId) (bool, error) {

	var resp ipc.BoolResponse
	err := c.invoke(ctx, ipc.MethodFileIsWritable,
		&ipc.FileRequest{EnvId: envId, FileId: fd}, &resp)
	if err != nil {
		return false, err
	}

	return resp.Value, nil
}

func (c *Client) FileIsSeekable(
	ctx context.Context,
	envId domain.EnvironmentId,
	fd domain.FileId) (bool, error) {

	var resp ipc.BoolResponse
	err := c.invoke(ctx, ipc.MethodFileIsSeekable,
		&ipc.FileRequest{EnvId: envId, FileId: fd}, &resp)
	if err != nil {
		return false, err
	}

	return resp.Value, nil
}

// FileRead reads numBytes bytes (binary type) or grapheme clusters (text
// type) from the file; a nil count reads to end of stream.
func (c *Client) FileRead(
	ctx context.Context,
	envId domain.EnvironmentId,
	fd domain.FileId,
	numBytes *uint32) ([]byte, error) {

	var resp ipc.FileReadResponse
	err := c.invoke(ctx, ipc.MethodFileRead,
		&ipc.FileReadRequest{
			EnvId:    envId,
			FileId:   fd,
			NumBytes: numBytes,
		}, &resp)
	if err != nil {
		return nil, err
	}

	return resp.Data, nil
}

func (c *Client) FileReadLines(
	ctx context.Context,
	envId domain.EnvironmentId,
	fd domain.FileId,
	hint uint32) ([][]byte, error) {

	var resp ipc.FileReadLinesResponse
	err := c.invoke(ctx, ipc.MethodFileReadLines,
		&ipc.FileReadLinesRequest{EnvId: envId, FileId: fd, Hint: hint},
		&resp)
	if err != nil {
		return nil, err
	}

	return resp.Lines, nil
}

func (c *Client) FileSeek(
	ctx context.Context,
	envId domain.EnvironmentId,
	fd domain.FileId,
	offset int64,
	whence int32) error {

	var resp ipc.EmptyResponse
	return c.invoke(ctx, ipc.MethodFileSeek,
		&ipc.FileSeekRequest{
			EnvId:  envId,
			FileId: fd,
			Offset: offset,
			Whence: whence,
		}, &resp)
}

func (c *Client) FileTell(
	ctx context.Context,
	envId domain.EnvironmentId,
	fd domain.FileId) (int64, error) {

	var resp ipc.FileTellResponse
	err := c.invoke(ctx, ipc.MethodFileTell,
		&ipc.FileRequest{EnvId: envId, FileId: fd}, &resp)
	if err != nil {
		return 0, err
	}

	return resp.Offset, nil
}

func (c *Client) FileWrite(
	ctx context.Context,
	envId domain.EnvironmentId,
	fd domain.FileId,
	data []byte) error {

	var resp ipc.EmptyResponse
	return c.invoke(ctx, ipc.MethodFileWrite,
		&ipc.FileWriteRequest{EnvId: envId, FileId: fd, Data: data}, &resp)
}

func (c *Client) FileSetBlocking(
	ctx context.Context,
	envId domain.EnvironmentId,
	fd domain.FileId,
	blocking bool) error {

	var resp ipc.EmptyResponse
	return c.invoke(ctx, ipc.MethodFileSetBlocking,
		&ipc.FileSetBlockingRequest{
			EnvId:    envId,
			FileId:   fd,
			Blocking: blocking,
		}, &resp)
}

func (c *Client) Chown(
	ctx context.Context,
	envId domain.EnvironmentId,
	path string,
	usr *domain.UserRef,
	grp *domain.UserRef) error {

	var resp ipc.EmptyResponse
	return c.invoke(ctx, ipc.MethodChown,
		&ipc.ChownRequest{
			EnvId: envId,
			Path:  path,
			User:  usr,
			Group: grp,
		}, &resp)
}

func (c *Client) Chmod(
	ctx context.Context,
	envId domain.EnvironmentId,
	path string,
	mode uint32) error {

	var resp ipc.EmptyResponse
	return c.invoke(ctx, ipc.MethodChmod,
		&ipc.ChmodRequest{EnvId: envId, Path: path, Mode: mode}, &resp)
}

func (c *Client) Stat(
	ctx context.Context,
	envId domain.EnvironmentId,
	path string) (domain.FileStat, error) {

	var resp ipc.StatResponse
	err := c.invoke(ctx, ipc.MethodStat,
		&ipc.StatRequest{EnvId: envId, Path: path}, &resp)
	if err != nil {
		return domain.FileStat{}, err
	}

	return resp.Stat, nil
}

// GetMetadata returns the stored value for key, or nil if the key was never
// set.
func (c *Client) GetMetadata(
	ctx context.Context,
	envId domain.EnvironmentId,
	key string) (*string, error) {

	var resp ipc.GetMetadataResponse
	err := c.invoke(ctx, ipc.MethodGetMetadata,
		&ipc.GetMetadataRequest{EnvId: envId, Key: key}, &resp)
	if err != nil {
		return nil, err
	}

	return resp.Value, nil
}

func (c *Client) SetMetadata(
	ctx context.Context,
	envId domain.EnvironmentId,
	key string,
	value string) error {

	var resp ipc.EmptyResponse
	return c.invoke(ctx, ipc.MethodSetMetadata,
		&ipc.SetMetadataRequest{EnvId: envId, Key: key, Value: value}, &resp)
}
