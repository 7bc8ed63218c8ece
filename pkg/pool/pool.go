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

package pool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/caiflower/hussar/pkg/e"
)

var ErrPoolClosed = errors.New("pool closed")

// Pool is a fixed set of workers fed by a bounded queue.
// Dispatch blocks once the queue is full, so producers are back-pressured.
type Pool struct {
	workers   int
	tasks     chan func()
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	running   int64
}

// New starts workers goroutines; workers <= 0 means runtime.NumCPU() and queueSize <= 0 means workers*4.
func New(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = workers * 4
	}

	p := &Pool{
		workers: workers,
		tasks:   make(chan func(), queueSize),
		done:    make(chan struct{}),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work()
	}
	return p
}

func (p *Pool) work() {
	defer p.wg.Done()
	for {
		select {
		case fn := <-p.tasks:
			p.run(fn)
		case <-p.done:
			for {
				select {
				case fn := <-p.tasks:
					p.run(fn)
				default:
					return
				}
			}
		}
	}
}

func (p *Pool) run(fn func()) {
	atomic.AddInt64(&p.running, 1)
	defer atomic.AddInt64(&p.running, -1)
	defer e.OnError("pool worker")
	fn()
}

// Dispatch queues fn, waiting for room when every slot is taken.
func (p *Pool) Dispatch(fn func()) error {
	return p.DispatchContext(context.Background(), fn)
}

func (p *Pool) DispatchContext(ctx context.Context, fn func()) error {
	if fn == nil {
		return fmt.Errorf("nil func error")
	}
	select {
	case <-p.done:
		return ErrPoolClosed
	default:
	}

	select {
	case p.tasks <- fn:
		return nil
	case <-p.done:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryDispatch queues fn only if a slot is free.
func (p *Pool) TryDispatch(fn func()) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.tasks <- fn:
		return true
	default:
		return false
	}
}

func (p *Pool) Workers() int {
	return p.workers
}

func (p *Pool) Running() int {
	return int(atomic.LoadInt64(&p.running))
}

func (p *Pool) Queued() int {
	return len(p.tasks)
}

// Close stops accepting work, runs what is already queued and waits for the workers.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
}

// DoFunc applies fn to every element using at most poolSize goroutines and waits for all of them.
func DoFunc[T any](poolSize int, fn func(T), slices ...T) error {
	if fn == nil {
		return fmt.Errorf("nil func error")
	}
	if len(slices) == 0 {
		return nil
	}

	waitGroup := sync.WaitGroup{}
	waitGroup.Add(len(slices))
	c := make(chan T, len(slices))
	for _, v := range slices {
		c <- v
	}
	close(c)

	if poolSize <= 0 || poolSize > len(slices) {
		poolSize = len(slices)
	}
	for i := 0; i < poolSize; i++ {
		go func() {
			for v := range c {
				func() {
					defer waitGroup.Done()
					defer e.OnError("pool DoFunc")
					fn(v)
				}()
			}
		}()
	}

	waitGroup.Wait()
	return nil
}
