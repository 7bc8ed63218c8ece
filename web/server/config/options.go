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

package config

import (
	"net"
	"strconv"
	"time"

	"github.com/caiflower/hussar/pkg/tools"
)

// DefaultPort is what the command line binds when no port is given.
const DefaultPort = 8443

type Option func(*Options) *Options

type Options struct {
	Name               string        `yaml:"name" default:"hussar"`
	Host               string        `yaml:"host" default:"127.0.0.1"`
	Port               int           `yaml:"port"`      // 0 选择任意空闲端口
	Workers            int           `yaml:"workers"`   // 0 使用 runtime.NumCPU
	QueueSize          int           `yaml:"queueSize"` // 0 为 Workers*4
	TLSKeyFile         string        `yaml:"tlsKeyFile"`
	TLSCertFile        string        `yaml:"tlsCertFile"`
	Verbose            int           `yaml:"verbose"`
	ReadTimeout        time.Duration `yaml:"readTimeout" default:"20s"`
	WriteTimeout       time.Duration `yaml:"writeTimeout" default:"35s"`
	KeepAliveTimeout   time.Duration `yaml:"keepAliveTimeout" default:"10s"`
	HandshakeTimeout   time.Duration `yaml:"handshakeTimeout" default:"10s"`
	ReadBufferSize     int           `yaml:"readBufferSize" default:"4096"`
	MaxHeaderBytes     int           `yaml:"maxHeaderBytes" default:"1048576"`
	MaxRequestBodySize int           `yaml:"maxRequestBodySize" default:"10485760"` // 10MB
	SingleRead         bool          `yaml:"singleRead"`                            // 一次读取即一个请求
	LimiterEnabled     bool          `yaml:"limiterEnabled"`
	Qps                int           `yaml:"qps" default:"1000"`
	MetricsPath        string        `yaml:"metricsPath"`
	StatsCron          string        `yaml:"statsCron"`
	Session            SessionConfig `yaml:"session"`
}

type SessionConfig struct {
	Store      string        `yaml:"store" default:"memory"` // memory or redis
	TTL        time.Duration `yaml:"ttl"`                    // 0 永不过期
	RedisAddrs []string      `yaml:"redisAddrs"`
	RedisDB    int           `yaml:"redisDB"`
	Password   string        `yaml:"password"`
	KeyPrefix  string        `yaml:"keyPrefix" default:"hussar:session:"`
}

func NewOptions(opts []Option) *Options {
	options := &Options{}
	_ = tools.SetDefaults(options)

	for _, opt := range opts {
		options = opt(options)
	}
	return options
}

func (o *Options) Addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

func (o *Options) TLSEnabled() bool {
	return o.TLSKeyFile != "" && o.TLSCertFile != ""
}

func WithName(name string) Option {
	return func(opts *Options) *Options {
		opts.Name = name
		return opts
	}
}

func WithHost(host string) Option {
	return func(opts *Options) *Options {
		opts.Host = host
		return opts
	}
}

func WithPort(port int) Option {
	return func(opts *Options) *Options {
		opts.Port = port
		return opts
	}
}

func WithWorkers(workers, queueSize int) Option {
	return func(opts *Options) *Options {
		opts.Workers = workers
		opts.QueueSize = queueSize
		return opts
	}
}

func WithTLS(keyFile, certFile string) Option {
	return func(opts *Options) *Options {
		opts.TLSKeyFile = keyFile
		opts.TLSCertFile = certFile
		return opts
	}
}

func WithVerbose(verbose int) Option {
	return func(opts *Options) *Options {
		opts.Verbose = verbose
		return opts
	}
}

func WithReadTimeout(readTimeout time.Duration) Option {
	return func(opts *Options) *Options {
		opts.ReadTimeout = readTimeout
		return opts
	}
}

func WithWriteTimeout(writeTimeout time.Duration) Option {
	return func(opts *Options) *Options {
		opts.WriteTimeout = writeTimeout
		return opts
	}
}

func WithKeepAliveTimeout(keepAliveTimeout time.Duration) Option {
	return func(opts *Options) *Options {
		opts.KeepAliveTimeout = keepAliveTimeout
		return opts
	}
}

func WithHandshakeTimeout(handshakeTimeout time.Duration) Option {
	return func(opts *Options) *Options {
		opts.HandshakeTimeout = handshakeTimeout
		return opts
	}
}

func WithReadBufferSize(size int) Option {
	return func(opts *Options) *Options {
		opts.ReadBufferSize = size
		return opts
	}
}

func WithMaxHeaderBytes(size int) Option {
	return func(opts *Options) *Options {
		opts.MaxHeaderBytes = size
		return opts
	}
}

func WithMaxRequestBodySize(size int) Option {
	return func(opts *Options) *Options {
		opts.MaxRequestBodySize = size
		return opts
	}
}

func WithSingleRead(singleRead bool) Option {
	return func(opts *Options) *Options {
		opts.SingleRead = singleRead
		return opts
	}
}

func WithQps(enable bool, qps int) Option {
	return func(opts *Options) *Options {
		opts.Qps = qps
		opts.LimiterEnabled = enable
		return opts
	}
}

func WithMetricsPath(path string) Option {
	return func(opts *Options) *Options {
		opts.MetricsPath = path
		return opts
	}
}

func WithStatsCron(spec string) Option {
	return func(opts *Options) *Options {
		opts.StatsCron = spec
		return opts
	}
}

func WithSessionTTL(ttl time.Duration) Option {
	return func(opts *Options) *Options {
		opts.Session.TTL = ttl
		return opts
	}
}
