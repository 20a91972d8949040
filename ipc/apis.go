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
	"context"
	"net"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/twizmwazin/binharness/domain"
	"github.com/twizmwazin/binharness/sysio"
)

// agentTempDir is the scratch location reported to clients.
// TODO: make this configurable.
const agentTempDir = "/tmp"

type ipcService struct {
	addr       string
	listener   net.Listener
	grpcServer *grpc.Server
	reg        domain.RegistryServiceIface
	mds        domain.MetadataStoreIface
}

func NewIpcService() domain.IpcServiceIface {
	return &ipcService{}
}

func (ips *ipcService) Setup(
	addr string,
	reg domain.RegistryServiceIface,
	mds domain.MetadataStoreIface) {

	ips.addr = addr
	ips.reg = reg
	ips.mds = mds
}

// NewGrpcServer builds a grpc server with the agent service registered.
// Used by Init and by tests serving on an in-memory listener.
func NewGrpcServer(
	reg domain.RegistryServiceIface,
	mds domain.MetadataStoreIface) *grpc.Server {

	s := grpc.NewServer()
	s.RegisterService(&agentServiceDesc, &ipcService{reg: reg, mds: mds})

	return s
}

// Init binds the listen address and serves RPCs until Stop() is called.
func (ips *ipcService) Init() error {

	lis, err := net.Listen("tcp", ips.addr)
	if err != nil {
		return err
	}
	ips.listener = lis

	ips.grpcServer = NewGrpcServer(ips.reg, ips.mds)

	logrus.Infof("Serving agent RPCs on %s", lis.Addr())

	return ips.grpcServer.Serve(lis)
}

func (ips *ipcService) Stop() {
	if ips.grpcServer != nil {
		ips.grpcServer.GracefulStop()
	}
}

// checkEnvId rejects any environment other than the default singleton.
func checkEnvId(envId domain.EnvironmentId) error {
	if envId != domain.DefaultEnvironment {
		return domain.ErrorInvalidEnvironmentId
	}
	return nil
}

//
// Service descriptor. The agent has no generated protobuf stubs; the
// descriptor and its per-method shims are maintained by hand against the
// message types in messages.go.
//

// agentServer is the registration anchor for the hand-maintained descriptor.
type agentServer interface{}

func unary[Req any](
	method string,
	handle func(*ipcService, context.Context, *Req) (interface{}, error),
) grpc.MethodDesc {

	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(
			srv interface{},
			ctx context.Context,
			dec func(interface{}) error,
			interceptor grpc.UnaryServerInterceptor) (interface{}, error) {

			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}

			handler := func(
				ctx context.Context,
				req interface{}) (interface{}, error) {

				resp, err := handle(srv.(*ipcService), ctx, req.(*Req))
				if err != nil {
					return nil, StatusFromError(err)
				}
				return resp, nil
			}

			if interceptor == nil {
				return handler(ctx, in)
			}

			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: MethodPath(method),
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var agentServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*agentServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodGetEnvironments, (*ipcService).getEnvironments),
		unary(MethodGetTempdir, (*ipcService).getTempdir),
		unary(MethodRunCommand, (*ipcService).runCommand),
		unary(MethodGetProcessIds, (*ipcService).getProcessIds),
		unary(MethodGetProcessChannel, (*ipcService).getProcessChannel),
		unary(MethodProcessPoll, (*ipcService).processPoll),
		unary(MethodProcessWait, (*ipcService).processWait),
		unary(MethodProcessReturncode, (*ipcService).processReturncode),
		unary(MethodFileOpen, (*ipcService).fileOpen),
		unary(MethodFileClose, (*ipcService).fileClose),
		unary(MethodFileIsClosed, (*ipcService).fileIsClosed),
		unary(MethodFileIsReadable, (*ipcService).fileIsReadable),
		unary(MethodFileIsWritable, (*ipcService).fileIsWritable),
		unary(MethodFileIsSeekable, (*ipcService).fileIsSeekable),
		unary(MethodFileRead, (*ipcService).fileRead),
		unary(MethodFileReadLines, (*ipcService).fileReadLines),
		unary(MethodFileSeek, (*ipcService).fileSeek),
		unary(MethodFileTell, (*ipcService).fileTell),
		unary(MethodFileWrite, (*ipcService).fileWrite),
		unary(MethodFileSetBlocking, (*ipcService).fileSetBlocking),
		unary(MethodChown, (*ipcService).chown),
		unary(MethodChmod, (*ipcService).chmod),
		unary(MethodStat, (*ipcService).stat),
		unary(MethodGetMetadata, (*ipcService).getMetadata),
		unary(MethodSetMetadata, (*ipcService).setMetadata),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "binharness/agent",
}

//
// Handlers. Each validates the environment id, dispatches into the registry
// (or the POSIX adapters), and returns either a result message or a typed
// agent error.
//

func (ips *ipcService) getEnvironments(
	ctx context.Context,
	req *GetEnvironmentsRequest) (interface{}, error) {

	// This agent only exposes the default environment.
	return &GetEnvironmentsResponse{
		Environments: []domain.EnvironmentId{domain.DefaultEnvironment},
	}, nil
}

func (ips *ipcService) getTempdir(
	ctx context.Context,
	req *GetTempdirRequest) (interface{}, error) {

	if err := checkEnvId(req.EnvId); err != nil {
		return nil, err
	}

	return &GetTempdirResponse{Path: agentTempDir}, nil
}

func (ips *ipcService) runCommand(
	ctx context.Context,
	req *RunCommandRequest) (interface{}, error) {

	if err := checkEnvId(req.EnvId); err != nil {
		return nil, err
	}

	logrus.Debugf("RunCommand request: argv = %v", req.Config.Argv)

	pid, err := ips.reg.RunCommand(&req.Config)
	if err != nil {
		return nil, err
	}

	return &RunCommandResponse{ProcessId: pid}, nil
}

func (ips *ipcService) getProcessIds(
	ctx context.Context,
	req *GetProcessIdsRequest) (interface{}, error) {

	if err := checkEnvId(req.EnvId); err != nil {
		return nil, err
	}

	return &GetProcessIdsResponse{ProcessIds: ips.reg.GetProcessIds()}, nil
}

func (ips *ipcService) getProcessChannel(
	ctx context.Context,
	req *GetProcessChannelRequest) (interface{}, error) {

	if err := checkEnvId(req.EnvId); err != nil {
		return nil, err
	}

	if req.Channel < domain.Stdin || req.Channel > domain.Stderr {
		return nil, domain.ErrorChannelNotPiped
	}

	fd, err := ips.reg.GetProcessChannel(req.ProcessId, req.Channel)
	if err != nil {
		return nil, err
	}

	return &GetProcessChannelResponse{FileId: fd}, nil
}

func (ips *ipcService) processPoll(
	ctx context.Context,
	req *ProcessRequest) (interface{}, error) {

	if err := checkEnvId(req.EnvId); err != nil {
		return nil, err
	}

	code, err := ips.reg.ProcessPoll(req.ProcessId)
	if err != nil {
		return nil, err
	}

	return &ProcessStatusResponse{ExitCode: code}, nil
}

func (ips *ipcService) processWait(
	ctx context.Context,
	req *ProcessWaitRequest) (interface{}, error) {

	if err := checkEnvId(req.EnvId); err != nil {
		return nil, err
	}

	timedOut, err := ips.reg.ProcessWait(req.ProcessId, req.TimeoutMs)
	if err != nil {
		return nil, err
	}

	return &ProcessWaitResponse{TimedOut: timedOut}, nil
}

func (ips *ipcService) processReturncode(
	ctx context.Context,
	req *ProcessRequest) (interface{}, error) {

	if err := checkEnvId(req.EnvId); err != nil {
		return nil, err
	}

	code, err := ips.reg.ProcessReturnCode(req.ProcessId)
	if err != nil {
		return nil, err
	}

	return &ProcessStatusResponse{ExitCode: code}, nil
}

func (ips *ipcService) fileOpen(
	ctx context.Context,
	req *FileOpenRequest) (interface{}, error) {

	if err := checkEnvId(req.EnvId); err != nil {
		return nil, err
	}

	logrus.Debugf("FileOpen request: path = %s, mode = %v, type = %v",
		req.Path, req.Mode, req.Type)

	fd, err := ips.reg.FileOpen(req.Path, req.Mode, req.Type)
	if err != nil {
		return nil, err
	}

	return &FileOpenResponse{FileId: fd}, nil
}

func (ips *ipcService) fileClose(
	ctx context.Context,
	req *FileRequest) (interface{}, error) {

	if err := checkEnvId(req.EnvId); err != nil {
		return nil, err
	}

	if err := ips.reg.FileClose(req.FileId); err != nil {
		return nil, err
	}

	return &EmptyResponse{}, nil
}

func (ips *ipcService) fileIsClosed(
	ctx context.Context,
	req *FileRequest) (interface{}, error) {

	if err := checkEnvId(req.EnvId); err != nil {
		return nil, err
	}

	return &BoolResponse{Value: ips.reg.FileIsClosed(req.FileId)}, nil
}

func (ips *ipcService) fileIsReadable(
	ctx context.Context,
	req *FileRequest) (interface{}, error) {

	if err := checkEnvId(req.EnvId); err != nil {
		return nil, err
	}

	readable, err := ips.reg.FileHasAnyMode(req.FileId, domain.ReadModes)
	if err != nil {
		return nil, err
	}

	return &BoolResponse{Value: readable}, nil
}

func (ips *ipcService) fileIsWritable(
	ctx context.Context,
	req *FileRequest) (interface{}, error) {

	if err := checkEnvId(req.EnvId); err != nil {
		return nil, err
	}

	writable, err := ips.reg.FileHasAnyMode(req.FileId, domain.WriteModes)
	if err != nil {
		return nil, err
	}

	return &BoolResponse{Value: writable}, nil
}

func (ips *ipcService) fileIsSeekable(
	ctx context.Context,
	req *FileRequest) (interface{}, error) {

	if err := checkEnvId(req.EnvId); err != nil {
		return nil, err
	}

	seekable, err := ips.reg.FileIsSeekable(req.FileId)
	if err != nil {
		return nil, err
	}

	return &BoolResponse{Value: seekable}, nil
}

func (ips *ipcService) fileRead(
	ctx context.Context,
	req *FileReadRequest) (interface{}, error) {

	if err := checkEnvId(req.EnvId); err != nil {
		return nil, err
	}

	data, err := ips.reg.FileRead(req.FileId, req.NumBytes)
	if err != nil {
		return nil, err
	}

	return &FileReadResponse{Data: data}, nil
}

func (ips *ipcService) fileReadLines(
	ctx context.Context,
	req *FileReadLinesRequest) (interface{}, error) {

	if err := checkEnvId(req.EnvId); err != nil {
		return nil, err
	}

	lines, err := ips.reg.FileReadLines(req.FileId, req.Hint)
	if err != nil {
		return nil, err
	}

	return &FileReadLinesResponse{Lines: lines}, nil
}

func (ips *ipcService) fileSeek(
	ctx context.Context,
	req *FileSeekRequest) (interface{}, error) {

	if err := checkEnvId(req.EnvId); err != nil {
		return nil, err
	}

	if err := ips.reg.FileSeek(req.FileId, req.Offset, req.Whence); err != nil {
		return nil, err
	}

	return &EmptyResponse{}, nil
}

func (ips *ipcService) fileTell(
	ctx context.Context,
	req *FileRequest) (interface{}, error) {

	if err := checkEnvId(req.EnvId); err != nil {
		return nil, err
	}

	offset, err := ips.reg.FileTell(req.FileId)
	if err != nil {
		return nil, err
	}

	return &FileTellResponse{Offset: offset}, nil
}

func (ips *ipcService) fileWrite(
	ctx context.Context,
	req *FileWriteRequest) (interface{}, error) {

	if err := checkEnvId(req.EnvId); err != nil {
		return nil, err
	}

	if err := ips.reg.FileWrite(req.FileId, req.Data); err != nil {
		return nil, err
	}

	return &EmptyResponse{}, nil
}

func (ips *ipcService) fileSetBlocking(
	ctx context.Context,
	req *FileSetBlockingRequest) (interface{}, error) {

	if err := checkEnvId(req.EnvId); err != nil {
		return nil, err
	}

	if err := ips.reg.FileSetBlocking(req.FileId, req.Blocking); err != nil {
		return nil, err
	}

	return &EmptyResponse{}, nil
}

func (ips *ipcService) chown(
	ctx context.Context,
	req *ChownRequest) (interface{}, error) {

	if err := checkEnvId(req.EnvId); err != nil {
		return nil, err
	}

	if err := sysio.Chown(req.Path, req.User, req.Group); err != nil {
		return nil, err
	}

	return &EmptyResponse{}, nil
}

func (ips *ipcService) chmod(
	ctx context.Context,
	req *ChmodRequest) (interface{}, error) {

	if err := checkEnvId(req.EnvId); err != nil {
		return nil, err
	}

	if err := sysio.Chmod(req.Path, req.Mode); err != nil {
		return nil, err
	}

	return &EmptyResponse{}, nil
}

func (ips *ipcService) stat(
	ctx context.Context,
	req *StatRequest) (interface{}, error) {

	if err := checkEnvId(req.EnvId); err != nil {
		return nil, err
	}

	st, err := sysio.Stat(req.Path)
	if err != nil {
		return nil, err
	}

	return &StatResponse{Stat: st}, nil
}

func (ips *ipcService) getMetadata(
	ctx context.Context,
	req *GetMetadataRequest) (interface{}, error) {

	if err := checkEnvId(req.EnvId); err != nil {
		return nil, err
	}

	value, ok := ips.mds.Get(req.Key)
	if !ok {
		return &GetMetadataResponse{}, nil
	}

	return &GetMetadataResponse{Value: &value}, nil
}

func (ips *ipcService) setMetadata(
	ctx context.Context,
	req *SetMetadataRequest) (interface{}, error) {

	if err := checkEnvId(req.EnvId); err != nil {
		return nil, err
	}

	ips.mds.Set(req.Key, req.Value)

	return &EmptyResponse{}, nil
}
