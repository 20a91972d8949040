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

type ProcessIface interface {
	// Pid returns the OS process id of the spawned child.
	Pid() int

	// Poll reports the normalized exit status, or nil while the process is
	// still running. It never blocks. An undetermined termination state is
	// an error.
	Poll() (*int32, error)

	// WaitTimeout blocks until the process exits or the given timeout (in
	// milliseconds) elapses, polling at a 100 ms granularity. It returns
	// true iff the timeout elapsed first. A nil timeout waits forever.
	WaitTimeout(timeoutMs *uint32) (bool, error)

	// ReturnCode returns the last observed exit status without re-polling;
	// nil if the process has not been observed to exit.
	ReturnCode() (*int32, error)

	// Captured stream pipe ends; nil for streams that were not redirected
	// at spawn time.
	Stdin() IOnodeIface
	Stdout() IOnodeIface
	Stderr() IOnodeIface
}

type ProcessServiceIface interface {
	Setup(ios IOServiceIface)

	// ProcessSpawn launches the command described by cfg. Captured streams
	// are exposed through the returned process' Stdin/Stdout/Stderr nodes.
	ProcessSpawn(cfg *RunCommandConfig) (ProcessIface, error)
}
