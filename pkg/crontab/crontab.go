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
	"github.com/caiflower/hussar/pkg/e"
	"github.com/caiflower/hussar/pkg/logger"
	"github.com/robfig/cron/v3"
)

const timeFormat = "2006-01-02 15:04:05"

type CronManger struct {
	name string
	cron *cron.Cron
}

// NewCronTabManger accepts six-field specs (with seconds) as well as descriptors like "@every 1m".
func NewCronTabManger(name string) *CronManger {
	return &CronManger{name: name, cron: cron.New(cron.WithSeconds())}
}

func (c *CronManger) GetCron() *cron.Cron {
	return c.cron
}

func (c *CronManger) Start() {
	c.cron.Start()
}

// Close stops scheduling and waits for running jobs.
func (c *CronManger) Close() {
	<-c.cron.Stop().Done()
}

func (c *CronManger) AddCronJob(spec string, job cron.Job) (cron.EntryID, error) {
	eid, err := c.cron.AddJob(spec, job)
	if err != nil {
		logger.Error("[Crontab] %s add crontab failed. spec=%s. err=%v", c.name, spec, err)
		return eid, err
	}
	logger.Info("[Crontab] %s add crontab. spec=%s. jobId=%v. nextTime=%s", c.name, spec, eid, c.cron.Entry(eid).Next.Format(timeFormat))
	return eid, nil
}

// AddFunc schedules fn; a panic in fn is logged and the schedule continues.
func (c *CronManger) AddFunc(spec string, fn func()) (cron.EntryID, error) {
	return c.AddCronJob(spec, cron.FuncJob(func() {
		defer e.OnError("crontab " + c.name)
		fn()
	}))
}

func (c *CronManger) RemoveCronJob(id cron.EntryID) {
	c.cron.Remove(id)
}
