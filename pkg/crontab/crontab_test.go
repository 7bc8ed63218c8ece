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

package crontab

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddFunc(t *testing.T) {
	c := NewCronTabManger("test")
	c.Start()
	defer c.Close()

	var runs int32
	id, err := c.AddFunc("* * * * * *", func() {
		atomic.AddInt32(&runs, 1)
	})
	require.NoError(t, err)
	_, err = c.AddFunc("@every 1s", func() {
		panic("boom")
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&runs) >= 1
	}, 3*time.Second, 50*time.Millisecond)

	c.RemoveCronJob(id)
	assert.Len(t, c.GetCron().Entries(), 1)
}

func TestAddFuncBadSpec(t *testing.T) {
	c := NewCronTabManger("test")
	_, err := c.AddFunc("not a spec", func() {})
	assert.Error(t, err)
}
