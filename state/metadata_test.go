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

package state

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetadataGetSet(t *testing.T) {
	mds := NewMetadataStore()

	_, ok := mds.Get("missing")
	assert.False(t, ok)

	mds.Set("key", "value")
	value, ok := mds.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "value", value)

	// Last write wins.
	mds.Set("key", "updated")
	value, _ = mds.Get("key")
	assert.Equal(t, "updated", value)

	// Empty values are distinguishable from absent keys.
	mds.Set("empty", "")
	value, ok = mds.Get("empty")
	assert.True(t, ok)
	assert.Equal(t, "", value)
}

func TestMetadataConcurrentAccess(t *testing.T) {
	mds := NewMetadataStore()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("key-%d-%d", n, j)
				mds.Set(key, "v")
				_, _ = mds.Get(key)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		for j := 0; j < 100; j++ {
			_, ok := mds.Get(fmt.Sprintf("key-%d-%d", i, j))
			assert.True(t, ok)
		}
	}
}
