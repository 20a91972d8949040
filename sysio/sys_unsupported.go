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

package sysio

import (
	"github.com/twizmwazin/binharness/domain"
)

func Stat(path string) (domain.FileStat, error) {
	return domain.FileStat{}, domain.ErrorUnsupportedPlatform
}

func Chown(path string, usr *domain.UserRef, grp *domain.UserRef) error {
	return domain.ErrorUnsupportedPlatform
}

func Chmod(path string, mode uint32) error {
	return domain.ErrorUnsupportedPlatform
}

func SetBlockingNode(node domain.IOnodeIface, blocking bool) error {
	return domain.ErrorUnsupportedPlatform
}

func NodeIsBlocking(node domain.IOnodeIface) bool {
	return true
}

func isWouldBlock(err error) bool {
	return false
}
