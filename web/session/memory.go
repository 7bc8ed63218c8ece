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
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps sessions in process memory on top of go-cache.
// With a zero TTL sessions live until destroyed; otherwise every access pushes expiry out by TTL.
type MemoryStore struct {
	lock  sync.Mutex
	cache *cache.Cache
	ttl   time.Duration
	newID func() (string, error)
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{ttl: ttl, newID: NewID}
	if ttl <= 0 {
		s.ttl = cache.NoExpiration
		s.cache = cache.New(cache.NoExpiration, 0)
		return s
	}

	cleanup := ttl / 2
	if cleanup < time.Second {
		cleanup = time.Second
	}
	s.cache = cache.New(ttl, cleanup)
	return s
}

func (s *MemoryStore) Create() (string, error) {
	for {
		id, err := s.newID()
		if err != nil {
			return "", err
		}

		s.lock.Lock()
		err = s.cache.Add(id, map[string]string{}, s.ttl)
		s.lock.Unlock()
		if err == nil {
			return id, nil
		}
	}
}

// data must be called with the lock held.
func (s *MemoryStore) data(id string) (map[string]string, bool) {
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, false
	}
	m := v.(map[string]string)
	if s.ttl != cache.NoExpiration {
		s.cache.Set(id, m, s.ttl)
	}
	return m, true
}

func (s *MemoryStore) Exists(id string) bool {
	if id == "" {
		return false
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	_, ok := s.data(id)
	return ok
}

func (s *MemoryStore) Get(id, key string) string {
	s.lock.Lock()
	defer s.lock.Unlock()
	if m, ok := s.data(id); ok {
		return m[key]
	}
	return ""
}

// Set reports false when the session does not exist.
func (s *MemoryStore) Set(id, key, value string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	m, ok := s.data(id)
	if !ok {
		return false
	}
	m[key] = value
	return true
}

// DeleteKey reports whether the key was present.
func (s *MemoryStore) DeleteKey(id, key string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	m, ok := s.data(id)
	if !ok {
		return false
	}
	if _, ok = m[key]; !ok {
		return false
	}
	delete(m, key)
	return true
}

func (s *MemoryStore) Destroy(id string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, ok := s.cache.Get(id); !ok {
		return false
	}
	s.cache.Delete(id)
	return true
}

// Update runs fn on the session data under the store lock, for read-then-write sequences.
func (s *MemoryStore) Update(id string, fn func(data map[string]string)) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	m, ok := s.data(id)
	if !ok {
		return false
	}
	fn(m)
	return true
}

func (s *MemoryStore) Count() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.cache.ItemCount()
}
