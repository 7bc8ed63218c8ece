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
	"os"
	"path/filepath"

	"github.com/caiflower/hussar/pkg/logger"
	"github.com/caiflower/hussar/pkg/tools"
	serverconfig "github.com/caiflower/hussar/web/server/config"
)

type DefaultConfig struct {
	LoggerConfig logger.Config        `yaml:"logger"`
	ServerConfig serverconfig.Options `yaml:"server"`
	DocRoot      string               `yaml:"docRoot" default:"docroot"`
	UploadDir    string               `yaml:"uploadDir" default:"upload"`
}

// ConfigPath is the directory searched for default.yaml, taken from CONFIG_PATH.
func ConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return "./etc"
}

func LoadDefaultConfig(v *DefaultConfig) error {
	return LoadConfig(filepath.Join(ConfigPath(), "default.yaml"), v)
}

// LoadConfig reads file into v; a missing file leaves v with its defaults.
func LoadConfig(file string, v *DefaultConfig) error {
	if _, err := os.Stat(file); os.IsNotExist(err) {
		return tools.SetDefaults(v)
	}
	return tools.LoadConfig(file, v)
}
