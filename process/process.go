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

package process

import (
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/twizmwazin/binharness/domain"
)

// pollInterval is the granularity of the timed wait. No finer timing is
// guaranteed.
const pollInterval = 100 * time.Millisecond

type processService struct {
	ios domain.IOServiceIface
}

func NewProcessService() domain.ProcessServiceIface {
	return &processService{}
}

func (ps *processService) Setup(ios domain.IOServiceIface) {
	ps.ios = ios
}

// ProcessSpawn launches the command described by cfg. Each stream marked for
// capture gets a dedicated OS pipe; the child's end is handed to exec and
// closed in the agent once the process has started, while the agent's end is
// wrapped as an ioNode for later registration under a file id.
func (ps *processService) ProcessSpawn(
	cfg *domain.RunCommandConfig) (domain.ProcessIface, error) {

	if len(cfg.Argv) == 0 {
		return nil, domain.NewProcessStartFailure("empty argv")
	}

	cmd := exec.Command(cfg.Argv[0], cfg.Argv[1:]...)

	if cfg.Executable != nil {
		cmd.Path = *cfg.Executable
		cmd.Err = nil
	}
	if cfg.Cwd != nil {
		cmd.Dir = *cfg.Cwd
	}
	if len(cfg.Env) > 0 {
		cmd.Env = os.Environ()
		for _, kv := range cfg.Env {
			cmd.Env = append(cmd.Env, kv.Key+"="+kv.Value)
		}
	}

	setSysProcAttr(cmd, cfg)

	p := &process{ps: ps}

	// Pipe ends belonging to the child; closed in the agent after a
	// successful start, or torn down wholesale on failure.
	var childEnds []*os.File
	var parentEnds []*os.File

	closeFiles := func(files []*os.File) {
		for _, f := range files {
			f.Close()
		}
	}

	if cfg.Stdin == domain.RedirectSave {
		r, w, err := os.Pipe()
		if err != nil {
			return nil, domain.NewProcessStartFailure(err.Error())
		}
		cmd.Stdin = r
		childEnds = append(childEnds, r)
		parentEnds = append(parentEnds, w)
		p.stdin = ps.ios.PipeNode(w, "stdin")
	}

	if cfg.Stdout == domain.RedirectSave {
		r, w, err := os.Pipe()
		if err != nil {
			closeFiles(childEnds)
			closeFiles(parentEnds)
			return nil, domain.NewProcessStartFailure(err.Error())
		}
		cmd.Stdout = w
		childEnds = append(childEnds, w)
		parentEnds = append(parentEnds, r)
		p.stdout = ps.ios.PipeNode(r, "stdout")
	}

	if cfg.Stderr == domain.RedirectSave {
		r, w, err := os.Pipe()
		if err != nil {
			closeFiles(childEnds)
			closeFiles(parentEnds)
			return nil, domain.NewProcessStartFailure(err.Error())
		}
		cmd.Stderr = w
		childEnds = append(childEnds, w)
		parentEnds = append(parentEnds, r)
		p.stderr = ps.ios.PipeNode(r, "stderr")
	}

	if err := cmd.Start(); err != nil {
		closeFiles(childEnds)
		closeFiles(parentEnds)
		return nil, domain.NewProcessStartFailure(err.Error())
	}

	// The child owns its pipe ends now; keeping them open in the agent
	// would hold captured output streams open past the child's exit.
	closeFiles(childEnds)

	p.cmd = cmd

	logrus.Debugf("Spawned process: pid = %d, argv = %v", cmd.Process.Pid,
		cfg.Argv)

	go p.reap()

	return p, nil
}

//
// process wraps a running (or exited) child. A single reaper goroutine
// performs the one allowed Wait() on the underlying command and records the
// normalized exit status; poll and returncode read that record without ever
// touching the OS process again.
//
type process struct {
	mu      sync.RWMutex
	cmd     *exec.Cmd
	status  *int32
	waitErr error // non-exit Wait() failure: termination state undetermined
	stdin   domain.IOnodeIface
	stdout  domain.IOnodeIface
	stderr  domain.IOnodeIface
	ps      *processService
}

func (p *process) reap() {

	err := p.cmd.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd.ProcessState == nil {
		logrus.Warnf("Wait failed for pid %d: %v", p.cmd.Process.Pid, err)
		p.waitErr = err
		return
	}

	code := exitStatus(p.cmd.ProcessState)
	p.status = &code

	logrus.Debugf("Reaped process: pid = %d, status = %d",
		p.cmd.Process.Pid, code)
}

func (p *process) Pid() int {
	return p.cmd.Process.Pid
}

func (p *process) Poll() (*int32, error) {

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.waitErr != nil {
		return nil, domain.ErrorUnknown
	}

	return p.status, nil
}

func (p *process) WaitTimeout(timeoutMs *uint32) (bool, error) {

	var limit *time.Duration
	if timeoutMs != nil {
		d := time.Duration(*timeoutMs) * time.Millisecond
		limit = &d
	}

	var elapsed time.Duration
	for {
		status, err := p.Poll()
		if err != nil {
			return false, err
		}
		if status != nil {
			return false, nil
		}

		elapsed += pollInterval
		if limit != nil && elapsed >= *limit {
			return true, nil
		}
		time.Sleep(pollInterval)
	}
}

func (p *process) ReturnCode() (*int32, error) {
	return p.Poll()
}

func (p *process) Stdin() domain.IOnodeIface {
	return p.stdin
}

func (p *process) Stdout() domain.IOnodeIface {
	return p.stdout
}

func (p *process) Stderr() domain.IOnodeIface {
	return p.stderr
}
