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
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/caiflower/hussar/pkg/logger"
	"github.com/caiflower/hussar/pkg/tools"
	"github.com/go-redis/redis/v8"
)

// createdField marks an empty session; redis drops hashes without fields.
const createdField = ":created"

type RedisConfig struct {
	Addrs        []string      `yaml:"addrs"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	KeyPrefix    string        `yaml:"keyPrefix" default:"hussar:session:"`
	TTL          time.Duration `yaml:"ttl"`
	Timeout      time.Duration `yaml:"timeout" default:"3s"`
	PoolSize     int           `yaml:"poolSize"`
	MinIdleConns int           `yaml:"minIdleConns" default:"4"`
}

// RedisStore keeps every session in a redis hash named KeyPrefix+id, so sessions survive
// restarts and can be shared by several server processes.
type RedisStore struct {
	client  redis.UniversalClient
	prefix  string
	ttl     time.Duration
	timeout time.Duration
}

// setIfExists writes one field only when the session hash is still there.
var setIfExists = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
if tonumber(ARGV[3]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return 1
`)

func NewRedisStore(config RedisConfig) (*RedisStore, error) {
	if err := tools.SetDefaults(&config); err != nil {
		return nil, err
	}
	if len(config.Addrs) == 0 {
		return nil, errors.New("redis session store needs at least one address")
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        config.Addrs,
		Password:     config.Password,
		DB:           config.DB,
		ReadTimeout:  config.Timeout,
		WriteTimeout: config.Timeout,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %v: %w", config.Addrs, err)
	}

	logger.Info("[session] redis store connected. addrs=%v prefix=%s ttl=%s", config.Addrs, config.KeyPrefix, config.TTL)
	return NewRedisStoreWithClient(client, config.KeyPrefix, config.TTL, config.Timeout), nil
}

func NewRedisStoreWithClient(client redis.UniversalClient, prefix string, ttl, timeout time.Duration) *RedisStore {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl, timeout: timeout}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *RedisStore) touch(ctx context.Context, id string) {
	if s.ttl > 0 {
		s.client.PExpire(ctx, s.key(id), s.ttl)
	}
}

func (s *RedisStore) Create() (string, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	for {
		id, err := NewID()
		if err != nil {
			return "", err
		}
		ok, err := s.client.HSetNX(ctx, s.key(id), createdField, time.Now().Unix()).Result()
		if err != nil {
			return "", fmt.Errorf("create session: %w", err)
		}
		if !ok {
			continue
		}
		s.touch(ctx, id)
		return id, nil
	}
}

func (s *RedisStore) Exists(id string) bool {
	if id == "" {
		return false
	}
	ctx, cancel := s.ctx()
	defer cancel()

	n, err := s.client.Exists(ctx, s.key(id)).Result()
	if err != nil {
		logger.Warn("[session] exists %s failed. Error: %s", id, err.Error())
		return false
	}
	if n == 1 {
		s.touch(ctx, id)
	}
	return n == 1
}

func (s *RedisStore) Get(id, key string) string {
	if key == createdField {
		return ""
	}
	ctx, cancel := s.ctx()
	defer cancel()

	v, err := s.client.HGet(ctx, s.key(id), key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("[session] get %s failed. Error: %s", id, err.Error())
		}
		return ""
	}
	return v
}

func (s *RedisStore) Set(id, key, value string) bool {
	if key == createdField {
		return false
	}
	ctx, cancel := s.ctx()
	defer cancel()

	n, err := setIfExists.Run(ctx, s.client, []string{s.key(id)}, key, value, s.ttl.Milliseconds()).Int()
	if err != nil {
		logger.Warn("[session] set %s failed. Error: %s", id, err.Error())
		return false
	}
	return n == 1
}

func (s *RedisStore) DeleteKey(id, key string) bool {
	if key == createdField {
		return false
	}
	ctx, cancel := s.ctx()
	defer cancel()

	n, err := s.client.HDel(ctx, s.key(id), key).Result()
	if err != nil {
		logger.Warn("[session] delete key %s failed. Error: %s", id, err.Error())
		return false
	}
	return n == 1
}

func (s *RedisStore) Destroy(id string) bool {
	ctx, cancel := s.ctx()
	defer cancel()

	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		logger.Warn("[session] destroy %s failed. Error: %s", id, err.Error())
		return false
	}
	return n == 1
}

// Count scans the key space, so keep it to stats and tests.
func (s *RedisStore) Count() int {
	ctx, cancel := s.ctx()
	defer cancel()

	count := 0
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		logger.Warn("[session] count failed. Error: %s", err.Error())
	}
	return count
}

func (s *RedisStore) Close() {
	if err := s.client.Close(); err != nil {
		logger.Warn("[session] close redis client failed. Error: %s", err.Error())
	}
}
