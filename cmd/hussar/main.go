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

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/caiflower/hussar/global"
	globalconfig "github.com/caiflower/hussar/global/config"
	"github.com/caiflower/hussar/pkg/logger"
	"github.com/caiflower/hussar/web/router"
	"github.com/caiflower/hussar/web/server"
	"github.com/caiflower/hussar/web/server/config"
	"github.com/caiflower/hussar/web/session"
)

// verbosity counts -v flags; -vv counts twice.
type verbosity struct {
	level *int
	step  int
}

func (v verbosity) String() string {
	if v.level == nil {
		return "0"
	}
	return strconv.Itoa(*v.level)
}

func (v verbosity) Set(s string) error {
	on, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	if on {
		*v.level += v.step
	}
	return nil
}

func (v verbosity) IsBoolFlag() bool {
	return true
}

// parseArgs loads the config file named by -config (or CONFIG_PATH/default.yaml) and lays the
// flags that were given on top of it.
func parseArgs(name string, args []string, output io.Writer) (*globalconfig.DefaultConfig, error) {
	var (
		configFile string
		host       string
		port       int
		threads    int
		key        string
		cert       string
		docRoot    string
		verbose    int
	)

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintf(output, "Usage: %s [-hv] [options]\n", name)
		fs.PrintDefaults()
	}
	fs.StringVar(&configFile, "config", "", "yaml config file")
	fs.StringVar(&host, "host", "127.0.0.1", "address to bind")
	fs.IntVar(&port, "port", config.DefaultPort, "port to bind")
	fs.IntVar(&threads, "threads", 0, "worker threads, 0 for one per cpu")
	fs.StringVar(&key, "key", "key.pem", "tls private key, empty for plain http")
	fs.StringVar(&cert, "cert", "cert.pem", "tls certificate, empty for plain http")
	fs.StringVar(&docRoot, "docroot", "docroot", "document root")
	fs.Var(verbosity{level: &verbose, step: 1}, "v", "verbose console output")
	fs.Var(verbosity{level: &verbose, step: 2}, "vv", "forensic console output")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &globalconfig.DefaultConfig{}
	var err error
	if configFile != "" {
		err = globalconfig.LoadConfig(configFile, cfg)
	} else {
		err = globalconfig.LoadDefaultConfig(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	given := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		given[f.Name] = true
	})
	options := &cfg.ServerConfig
	if given["host"] {
		options.Host = host
	}
	if given["port"] || options.Port == 0 {
		options.Port = port
	}
	if given["threads"] {
		options.Workers = threads
	}
	if given["key"] || (options.TLSKeyFile == "" && configFile == "") {
		options.TLSKeyFile = key
	}
	if given["cert"] || (options.TLSCertFile == "" && configFile == "") {
		options.TLSCertFile = cert
	}
	if given["docroot"] {
		cfg.DocRoot = docRoot
	}
	if given["v"] || given["vv"] {
		options.Verbose = verbose
	}
	if given["v"] || given["vv"] || cfg.LoggerConfig.Level == "" {
		cfg.LoggerConfig.Level = logger.LevelForVerbosity(options.Verbose)
	}
	return cfg, nil
}

func newStore(cfg config.SessionConfig) (session.Store, error) {
	if cfg.Store != "redis" {
		return session.NewMemoryStore(cfg.TTL), nil
	}
	return session.NewRedisStore(session.RedisConfig{
		Addrs:     cfg.RedisAddrs,
		Password:  cfg.Password,
		DB:        cfg.RedisDB,
		KeyPrefix: cfg.KeyPrefix,
		TTL:       cfg.TTL,
	})
}

func main() {
	cfg, err := parseArgs(os.Args[0], os.Args[1:], os.Stderr)
	if err == flag.ErrHelp {
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	logger.InitLogger(&cfg.LoggerConfig)
	global.DefaultResourceManager.Add(logger.DefaultLogger())

	store, err := newStore(cfg.ServerConfig.Session)
	if err != nil {
		logger.Error("create session store failed. Error: %s", err.Error())
		logger.DefaultLogger().Close()
		os.Exit(1)
	}
	if closer, ok := store.(global.Resource); ok {
		global.DefaultResourceManager.Add(closer)
	}

	r := router.NewRouter()
	(&app{store: store, docRoot: cfg.DocRoot, uploadDir: cfg.UploadDir}).register(r)

	s := server.NewHttpServer(cfg.ServerConfig, r, store)
	global.DefaultResourceManager.AddDaemon(s)
	if err = global.DefaultResourceManager.Signal(); err != nil {
		logger.DefaultLogger().Close()
		os.Exit(1)
	}
}
