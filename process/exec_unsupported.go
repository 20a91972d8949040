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

//go:build !linux

package process

import (
	"os"
	"os/exec"

	"github.com/twizmwazin/binharness/domain"
)

// Credential and process-group knobs are ignored on non-POSIX targets.
func setSysProcAttr(cmd *exec.Cmd, cfg *domain.RunCommandConfig) {
}

func exitStatus(state *os.ProcessState) int32 {
	return int32(state.ExitCode())
}
