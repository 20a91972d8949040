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
	"sync"

	iradix "github.com/hashicorp/go-immutable-radix"

	"github.com/twizmwazin/binharness/domain"
)

// metadataStore is the agent's side-band string-to-string scratch space.
// Backed by an immutable radix tree: writers swap the tree under the write
// lock; readers hold the read lock only to copy the current root, then walk
// that snapshot without the lock.
type metadataStore struct {
	sync.RWMutex
	tree *iradix.Tree
}

func NewMetadataStore() domain.MetadataStoreIface {
	return &metadataStore{
		tree: iradix.New(),
	}
}

func (ms *metadataStore) Get(key string) (string, bool) {

	ms.RLock()
	root := ms.tree.Root()
	ms.RUnlock()

	value, ok := root.Get([]byte(key))
	if !ok {
		return "", false
	}

	return value.(string), true
}

func (ms *metadataStore) Set(key string, value string) {

	ms.Lock()
	ms.tree, _, _ = ms.tree.Insert([]byte(key), value)
	ms.Unlock()
}
