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

package safego

import (
	"github.com/caiflower/hussar/pkg/e"
	golocalv1 "github.com/caiflower/hussar/pkg/golocal/v1"
)

// Go runs fn on a new goroutine with the caller's trace values and a panic guard.
func Go(fn func()) {
	values := golocalv1.Snapshot()
	go func() {
		defer golocalv1.Clean()
		defer e.OnError("safeGo")

		golocalv1.Restore(values)
		fn()
	}()
}
