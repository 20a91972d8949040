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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twizmwazin/binharness/domain"
)

func TestOpenNodeReadRequiresExisting(t *testing.T) {
	t.Cleanup(func() { ios.RemoveAllIOnodes() })

	_, err := ios.OpenNode("/nonesuch", domain.ModeRead)
	assert.Error(t, err)
}

func TestOpenNodeWriteCreates(t *testing.T) {
	t.Cleanup(func() { ios.RemoveAllIOnodes() })

	node, err := ios.OpenNode("/created", domain.ModeWrite)
	require.NoError(t, err)
	_, err = node.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, node.Close())
}

func TestOpenNodeExclusiveCollision(t *testing.T) {
	t.Cleanup(func() { ios.RemoveAllIOnodes() })

	node, err := ios.OpenNode("/exclusive", domain.ModeExclusiveWrite)
	require.NoError(t, err)
	require.NoError(t, node.Close())

	_, err = ios.OpenNode("/exclusive", domain.ModeExclusiveWrite)
	assert.Error(t, err)
}

func TestOpenNodeUpdateReadsAndWrites(t *testing.T) {
	t.Cleanup(func() { ios.RemoveAllIOnodes() })

	node, err := ios.OpenNode("/update", domain.ModeWrite)
	require.NoError(t, err)
	_, err = node.Write([]byte("abcdef"))
	require.NoError(t, err)
	require.NoError(t, node.Close())

	node, err = ios.OpenNode("/update", domain.ModeUpdate)
	require.NoError(t, err)

	_, err = node.Write([]byte("AB"))
	require.NoError(t, err)

	_, err = node.Seek(0, io.SeekStart)
	require.NoError(t, err)

	data, err := ReadAll(node)
	require.NoError(t, err)
	assert.Equal(t, []byte("ABcdef"), data)
}

func TestMemNodeHasNoDescriptor(t *testing.T) {
	t.Cleanup(func() { ios.RemoveAllIOnodes() })

	node, err := ios.OpenNode("/nofd", domain.ModeWrite)
	require.NoError(t, err)

	_, ok := node.Fd()
	assert.False(t, ok)

	// Without a descriptor the node always behaves as blocking.
	assert.True(t, NodeIsBlocking(node))
}
