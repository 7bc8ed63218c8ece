/*
 * Copyright 2024 caiflower Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package session

import (
	"errors"
	"regexp"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var idPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestNewID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := NewID()
		require.NoError(t, err)
		assert.Regexp(t, idPattern, id)
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestMemoryStoreLifecycle(t *testing.T) {
	s := NewMemoryStore(0)

	id, err := s.Create()
	require.NoError(t, err)
	assert.Regexp(t, idPattern, id)
	assert.True(t, s.Exists(id))
	assert.False(t, s.Exists(""))
	assert.False(t, s.Exists("nope"))
	assert.Equal(t, 1, s.Count())

	assert.Equal(t, "", s.Get(id, "username"))
	assert.True(t, s.Set(id, "username", "lemon"))
	assert.Equal(t, "lemon", s.Get(id, "username"))
	assert.False(t, s.Set("nope", "username", "lemon"))

	assert.True(t, s.DeleteKey(id, "username"))
	assert.False(t, s.DeleteKey(id, "username"))
	assert.False(t, s.DeleteKey("nope", "username"))
	assert.Equal(t, "", s.Get(id, "username"))

	assert.True(t, s.Destroy(id))
	assert.False(t, s.Destroy(id))
	assert.False(t, s.Exists(id))
	assert.Equal(t, 0, s.Count())
}

func TestMemoryStoreTTL(t *testing.T) {
	s := NewMemoryStore(50 * time.Millisecond)

	id, err := s.Create()
	require.NoError(t, err)
	require.True(t, s.Set(id, "k", "v"))

	// access keeps the session alive
	for i := 0; i < 4; i++ {
		time.Sleep(20 * time.Millisecond)
		assert.True(t, s.Exists(id))
	}

	time.Sleep(120 * time.Millisecond)
	assert.False(t, s.Exists(id))
	assert.Equal(t, "", s.Get(id, "k"))
}

func TestMemoryStoreConcurrentUpdate(t *testing.T) {
	s := NewMemoryStore(0)
	id, err := s.Create()
	require.NoError(t, err)

	wg := sync.WaitGroup{}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update(id, func(data map[string]string) {
				n, _ := strconv.Atoi(data["hits"])
				data["hits"] = strconv.Itoa(n + 1)
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, "50", s.Get(id, "hits"))
	assert.False(t, s.Update("nope", func(map[string]string) {}))
}

func TestMemoryStoreCreateFailure(t *testing.T) {
	s := NewMemoryStore(0)
	s.newID = func() (string, error) {
		return "", errors.New("no entropy")
	}

	id, err := s.Create()
	assert.Error(t, err)
	assert.Empty(t, id)
	assert.Equal(t, 0, s.Count())
}

func TestMemoryStoreCreateCollision(t *testing.T) {
	s := NewMemoryStore(0)
	ids := []string{"same", "same", "other"}
	s.newID = func() (string, error) {
		id := ids[0]
		ids = ids[1:]
		return id, nil
	}

	first, err := s.Create()
	require.NoError(t, err)
	second, err := s.Create()
	require.NoError(t, err)
	assert.Equal(t, "same", first)
	assert.Equal(t, "other", second)
}
