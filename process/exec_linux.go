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

//go:build linux

package process

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/twizmwazin/binharness/domain"
)

// setSysProcAttr applies the credential / process-group knobs of a spawn
// request. The group id comes from the caller's setgid value, never from
// setuid.
func setSysProcAttr(cmd *exec.Cmd, cfg *domain.RunCommandConfig) {

	attr := &syscall.SysProcAttr{
		Setpgid: cfg.Setpgid,
	}

	if cfg.Setuid != nil || cfg.Setgid != nil {
		cred := &syscall.Credential{
			Uid: uint32(os.Getuid()),
			Gid: uint32(os.Getgid()),
		}
		if cfg.Setuid != nil {
			cred.Uid = *cfg.Setuid
		}
		if cfg.Setgid != nil {
			cred.Gid = *cfg.Setgid
		}
		attr.Credential = cred
	}

	cmd.SysProcAttr = attr
}

// exitStatus normalizes a terminated process' status: a normal exit yields
// the exit code, a signal delivery yields the signal number, anything else
// yields the raw wait status.
func exitStatus(state *os.ProcessState) int32 {

	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok {
		return int32(state.ExitCode())
	}

	switch {
	case ws.Exited():
		return int32(ws.ExitStatus())
	case ws.Signaled():
		return int32(ws.Signal())
	default:
		return int32(ws)
	}
}
