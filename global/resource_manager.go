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

package global

import (
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"

	"github.com/caiflower/hussar/pkg/logger"
)

// DefaultResourceManager
// 用于守护进程的优雅退出，如HTTP Server、session store、logger

type Resource interface {
	Close()
}

type DaemonResource interface {
	Resource
	Name() string
	Start() error
}

type managed struct {
	resource Resource
	daemon   DaemonResource
	order    int
}

func (m *managed) name() string {
	if m.daemon != nil {
		return m.daemon.Name()
	}
	return "resource"
}

func (m *managed) start() error {
	if m.daemon != nil {
		return m.daemon.Start()
	}
	return nil
}

func (m *managed) close() {
	if m.daemon != nil {
		m.daemon.Close()
	} else {
		m.resource.Close()
	}
}

const (
	daemonOrder   = 100000
	resourceOrder = 0
)

// ResourceManager starts daemons in ascending order and closes everything in reverse when a
// termination signal arrives or Shutdown is called.
type ResourceManager struct {
	lock     sync.Mutex
	managed  []*managed
	running  bool
	shutdown chan struct{}
	once     sync.Once
}

var DefaultResourceManager = NewResourceManager()

func NewResourceManager() *ResourceManager {
	return &ResourceManager{shutdown: make(chan struct{})}
}

// Add registers a plain resource. Resources close after the daemons.
func (rm *ResourceManager) Add(resource Resource) {
	rm.lock.Lock()
	defer rm.lock.Unlock()

	for _, m := range rm.managed {
		if m.resource == resource {
			return
		}
	}
	rm.managed = append(rm.managed, &managed{resource: resource, order: resourceOrder})
}

func (rm *ResourceManager) AddDaemonWithOrder(daemon DaemonResource, order int) {
	rm.lock.Lock()
	defer rm.lock.Unlock()

	for _, m := range rm.managed {
		if m.daemon == daemon {
			return
		}
	}
	rm.managed = append(rm.managed, &managed{daemon: daemon, order: order})
}

func (rm *ResourceManager) AddDaemon(daemon DaemonResource) {
	rm.AddDaemonWithOrder(daemon, daemonOrder)
}

// Signal starts the daemons and blocks until SIGHUP, SIGINT, SIGTERM or SIGQUIT, or until
// Shutdown. A daemon failing to start stops the ones already started and is returned.
func (rm *ResourceManager) Signal() error {
	rm.lock.Lock()
	if rm.running {
		rm.lock.Unlock()
		return nil
	}
	rm.running = true
	sort.SliceStable(rm.managed, func(i, j int) bool {
		return rm.managed[i].order < rm.managed[j].order
	})
	list := append([]*managed(nil), rm.managed...)
	rm.lock.Unlock()

	for i, m := range list {
		if err := m.start(); err != nil {
			logger.Error("Start '%s' failed. Error: %s", m.name(), err.Error())
			destroy(list[:i])
			return err
		}
	}

	sign := make(chan os.Signal, 1)
	signal.Notify(sign, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sign)

	select {
	case s := <-sign:
		logger.Info("Accept signal %s. The application is shutting down...", s)
	case <-rm.shutdown:
		logger.Info("Shutdown requested. The application is shutting down...")
	}
	destroy(list)

	rm.lock.Lock()
	rm.running = false
	rm.lock.Unlock()
	return nil
}

// Shutdown releases a blocked Signal call.
func (rm *ResourceManager) Shutdown() {
	rm.once.Do(func() {
		close(rm.shutdown)
	})
}

func destroy(list []*managed) {
	for i := len(list) - 1; i >= 0; i-- {
		list[i].close()
	}
}
