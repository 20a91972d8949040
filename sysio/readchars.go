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
	"io"
	"unicode/utf8"

	"github.com/rivo/uniseg"

	"github.com/twizmwazin/binharness/domain"
)

// readAllLimit bounds a read-to-end on a non-blocking descriptor, where
// "end" never arrives.
const readAllLimit = 1 << 20

// readChunkSize is the step size of the read-to-end loop.
const readChunkSize = 32 * 1024

// ReadGeneric services a file-read request against an open node. A nil
// numBytes reads to end of stream; otherwise the count is bytes in binary
// mode and whole grapheme clusters in text mode. A would-block condition on
// the underlying descriptor terminates the read successfully with whatever
// has been assembled so far (usually nothing).
func ReadGeneric(
	node domain.IOnodeIface,
	numBytes *uint32,
	ftype domain.FileOpenType) ([]byte, error) {

	if numBytes == nil {
		// Text parsing of a read-to-end happens on the client; the server
		// returns raw bytes either way.
		return ReadAll(node)
	}

	if ftype == domain.TypeText {
		return ReadChars(node, int(*numBytes))
	}

	return ReadBytes(node, int(*numBytes))
}

// ReadBytes reads up to n bytes from the node, stopping early at end of
// stream or on a would-block condition.
func ReadBytes(node domain.IOnodeIface, n int) ([]byte, error) {

	buf := make([]byte, n)
	total := 0

	for total < n {
		m, err := node.Read(buf[total:])
		total += m
		if err != nil {
			if err == io.EOF || isWouldBlock(err) {
				break
			}
			return nil, err
		}
		if m == 0 {
			break
		}
	}

	return buf[:total], nil
}

// ReadAll reads the remaining stream content. On a non-blocking descriptor
// the read stops at the first would-block condition and is additionally
// capped at readAllLimit bytes.
func ReadAll(node domain.IOnodeIface) ([]byte, error) {

	blocking := NodeIsBlocking(node)

	var result []byte
	chunk := make([]byte, readChunkSize)

	for {
		buf := chunk
		if !blocking && readAllLimit-len(result) < len(buf) {
			buf = chunk[:readAllLimit-len(result)]
		}
		m, err := node.Read(buf)
		result = append(result, buf[:m]...)
		if err != nil {
			if err == io.EOF || isWouldBlock(err) {
				break
			}
			return nil, err
		}
		if !blocking && len(result) >= readAllLimit {
			break
		}
	}

	return result, nil
}

// ReadChars reads up to n whole grapheme clusters from the node and returns
// their UTF-8 encoding. The stream is consumed byte by byte so that a
// multi-byte sequence straddling a buffer boundary is completed before being
// counted. Cluster n is only known to be complete once the first rune of
// cluster n+1 has been decoded; that lookahead rune is seeked back into the
// stream when the node supports it, and dropped otherwise (pipe ends).
func ReadChars(node domain.IOnodeIface, n int) ([]byte, error) {

	if n <= 0 {
		return []byte{}, nil
	}

	var assembled []byte // complete UTF-8 prefix
	var pending []byte   // bytes of a rune still being decoded
	single := make([]byte, 1)

	for {
		m, err := node.Read(single)
		if m == 1 {
			pending = append(pending, single[0])

			// A malformed sequence is flushed once it can no longer grow
			// into a valid rune, so the raw bytes are not lost.
			if utf8.FullRune(pending) || len(pending) >= utf8.UTFMax {
				assembled = append(assembled, pending...)
				runeLen := len(pending)
				pending = pending[:0]

				if uniseg.GraphemeClusterCount(string(assembled)) > n {
					// The last rune opened cluster n+1.
					assembled = assembled[:len(assembled)-runeLen]
					node.Seek(int64(-runeLen), io.SeekCurrent)
					return assembled, nil
				}
			}
		}
		if err != nil {
			if err == io.EOF || isWouldBlock(err) {
				// A truncated trailing sequence is returned as-is.
				return append(assembled, pending...), nil
			}
			return nil, err
		}
	}
}
