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

package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/charlesturner7c5/rtags/internal/config"
	"github.com/charlesturner7c5/rtags/internal/indexer"
	"github.com/charlesturner7c5/rtags/internal/logging"
)

func main() {
	var configPath string
	var debug bool
	flag.StringVar(&configPath, "config", "", "path to navc.yaml (optional; defaults apply otherwise)")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
	flag.Parse()

	indexDirs := flag.Args()
	if len(indexDirs) == 0 {
		indexDirs = []string{"."}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		panic(err)
	}
	if debug {
		cfg.Debug = true
	}

	logger := logging.New(cfg.Debug)

	ix, err := indexer.Open(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("opening indexer")
	}
	defer ix.Close()

	ix.SetDefaultArgs(cfg.DefaultArgs)

	if err := ix.IndexCompileDB(indexDirs); err != nil {
		logger.Error().Err(err).Msg("seeding initial index")
	}

	for _, dir := range indexDirs {
		logger.Info().Str("dir", dir).Msg("indexing")
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info().Msg("shutting down")
}
