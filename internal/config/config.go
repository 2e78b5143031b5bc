/*
 * Copyright 2015 Google Inc. All Rights Reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config holds the indexer's construction-time settings. Every
// field has a hard-coded default so the indexer never requires a config
// file to start; Load optionally layers a TOML/YAML file and
// environment variables over those defaults the way vvfs/config.LoadConfig
// does in virtual-vectorfs.
package config

import (
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the indexer's tunable surface.
type Config struct {
	// StorageDir is the project storage root (§6): it holds the four table
	// subdirectories and the PCH artifact files.
	StorageDir string `mapstructure:"storageDir"`

	// Workers bounds the parse job worker pool. Defaults to the number of
	// logical CPUs. Dirty jobs run on goroutines of their own and are not
	// counted against this bound.
	Workers int `mapstructure:"workers"`

	// FlushInterval is the flusher's idle wait timeout (§4.B step 1).
	FlushInterval time.Duration `mapstructure:"flushInterval"`

	// SyncInterval records the job-completion count that forces an
	// out-of-cadence flush notification (§4.E, SYNCINTERVAL in the
	// original implementation). The coordinator does not read this field;
	// it uses its own fixed count of 10.
	SyncInterval int `mapstructure:"syncInterval"`

	// DefaultArgs are appended to every translation unit's own arguments
	// (Indexer::setDefaultArgs).
	DefaultArgs []string `mapstructure:"defaultArgs"`

	// Debug enables debug-level logging.
	Debug bool `mapstructure:"debug"`
}

// Default returns the indexer's hard-coded defaults.
func Default() Config {
	return Config{
		StorageDir:    ".navc",
		Workers:       runtime.NumCPU(),
		FlushInterval: 10 * time.Second,
		SyncInterval:  10,
	}
}

// Load starts from Default and, if configPath is non-empty or a config
// file is discoverable on the usual search path, layers it (and matching
// environment variables) over the defaults via viper. When configPath is
// empty, finding no config file is not an error: the defaults already
// stand. A non-empty configPath that cannot be read is an error.
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("navc")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetDefault("storageDir", cfg.StorageDir)
	v.SetDefault("workers", cfg.Workers)
	v.SetDefault("flushInterval", cfg.FlushInterval)
	v.SetDefault("syncInterval", cfg.SyncInterval)

	v.SetEnvPrefix("navc")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
