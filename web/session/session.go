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
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// IDBytes is the amount of entropy in a session id; ids are its hex form.
const IDBytes = 32

// Store keeps per-session string data. Every method is safe for concurrent use and each call
// is atomic with respect to other calls on the same store.
type Store interface {
	Create() (string, error)
	Exists(id string) bool
	Get(id, key string) string
	Set(id, key, value string) bool
	DeleteKey(id, key string) bool
	Destroy(id string) bool
	Count() int
}

// NewID returns 64 hex characters from crypto/rand.
func NewID() (string, error) {
	b := make([]byte, IDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(b), nil
}
