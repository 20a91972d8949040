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

package sysio

import (
	"errors"
	"os/user"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/twizmwazin/binharness/domain"
)

//
// POSIX adapters: filesystem metadata calls and descriptor-flag handling.
// The non-POSIX build of this file fails every operation with an
// "unsupported platform" error.
//

// Stat returns the stat(2) record of the given path. Mode carries the low
// 16 bits of the file-mode word.
func Stat(path string) (domain.FileStat, error) {

	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return domain.FileStat{}, errnoError(err)
	}

	return domain.FileStat{
		Mode:  uint16(st.Mode),
		Uid:   st.Uid,
		Gid:   st.Gid,
		Size:  st.Size,
		Atime: st.Atim.Sec,
		Mtime: st.Mtim.Sec,
		Ctime: st.Ctim.Sec,
	}, nil
}

// Chown changes the owner and/or group of path. Either reference may be
// given by numeric id or by name; names are resolved against the host
// user/group databases. A nil reference leaves that attribute unchanged.
func Chown(path string, usr *domain.UserRef, grp *domain.UserRef) error {

	uid := -1
	gid := -1

	if usr != nil {
		id, err := resolveUserId(usr)
		if err != nil {
			return err
		}
		uid = id
	}

	if grp != nil {
		id, err := resolveGroupId(grp)
		if err != nil {
			return err
		}
		gid = id
	}

	if err := unix.Chown(path, uid, gid); err != nil {
		return errnoError(err)
	}

	return nil
}

// Chmod applies POSIX permission bits to path.
func Chmod(path string, mode uint32) error {

	if err := unix.Chmod(path, mode); err != nil {
		return domain.NewIoError(err)
	}

	return nil
}

// SetBlockingNode toggles the O_NONBLOCK flag on the node's descriptor.
func SetBlockingNode(node domain.IOnodeIface, blocking bool) error {

	fd, ok := node.Fd()
	if !ok {
		return domain.NewIoError(
			errors.New("node is not backed by an OS descriptor"))
	}

	if err := unix.SetNonblock(int(fd), !blocking); err != nil {
		return errnoError(err)
	}

	return nil
}

// NodeIsBlocking inspects the O_NONBLOCK flag on the node's descriptor.
// Nodes without an OS descriptor always behave as blocking.
func NodeIsBlocking(node domain.IOnodeIface) bool {

	fd, ok := node.Fd()
	if !ok {
		return true
	}

	flags, err := unix.FcntlInt(fd, unix.F_GETFL, 0)
	if err != nil {
		return true
	}

	return flags&unix.O_NONBLOCK == 0
}

func resolveUserId(ref *domain.UserRef) (int, error) {

	if ref.Id != nil {
		return int(*ref.Id), nil
	}

	u, err := user.Lookup(*ref.Name)
	if err != nil {
		return 0, domain.NewUserNotFound(*ref.Name)
	}

	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return 0, domain.ErrorInconsistent
	}

	return uid, nil
}

func resolveGroupId(ref *domain.UserRef) (int, error) {

	if ref.Id != nil {
		return int(*ref.Id), nil
	}

	g, err := user.LookupGroup(*ref.Name)
	if err != nil {
		return 0, domain.NewGroupNotFound(*ref.Name)
	}

	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return 0, domain.ErrorInconsistent
	}

	return gid, nil
}

func errnoError(err error) error {

	var errno unix.Errno
	if errors.As(err, &errno) {
		return domain.NewErrnoError(int32(errno))
	}

	return domain.NewIoError(err)
}

func isWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}
