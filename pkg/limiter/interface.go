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

package limiter

import "time"

// Limiter hands out request tokens. The server only uses the non-blocking form so a
// saturated limiter answers 429 instead of parking a connection worker.
type Limiter interface {
	TakeToken()
	TakeTokenNonBlocking() bool
	TakeTokenWithTimeout(timeout time.Duration) bool
}

var _ Limiter = (*XTokenBucket)(nil)
