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
	"bytes"

	"github.com/twizmwazin/binharness/domain"
)

// ReadLines reads the remaining stream content and splits it into
// newline-terminated lines, terminators retained. A trailing partial line is
// returned as a final element. The hint parameter is carried for wire
// compatibility with a future maximum-bytes budget and is not honored.
func ReadLines(node domain.IOnodeIface, hint uint32) ([][]byte, error) {

	data, err := ReadAll(node)
	if err != nil {
		return nil, err
	}

	var lines [][]byte
	for len(data) > 0 {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			lines = append(lines, data)
			break
		}
		lines = append(lines, data[:idx+1])
		data = data[idx+1:]
	}

	return lines, nil
}
