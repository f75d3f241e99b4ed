/*
 * Minio Cloud Storage, (C) 2016, 2017, 2018 Minio, Inc.
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

// Command parisync is a minimal standalone driver for the sync core.
// Real configuration file parsing, the content-file wire format and
// progress rendering are out of scope for this repo (spec.md §1); this
// binary exists only to exercise cmd.Sync end to end against a JSON
// content snapshot, the way an integration test harness would.
package main

import (
	"flag"
	"os"

	"github.com/minio/parisync/cmd"
	"github.com/minio/parisync/cmd/logger"
)

func main() {
	var (
		blockSize     = flag.Int("block-size", 4096, "bytes per strip")
		level         = flag.Int("level", 1, "number of parity levels")
		contentPath   = flag.String("content", "content.json", "path to the JSON content snapshot")
		autosaveBytes = flag.Int64("autosave", 0, "bytes between autosaves, 0 disables")
		prehash       = flag.Bool("prehash", false, "run the prehash pass before syncing")
		quiet         = flag.Bool("quiet", false, "suppress non-error output")
		jsonLog       = flag.Bool("json", false, "emit logs as JSON")
	)
	flag.Parse()

	logger.Init(os.Getenv("GOPATH"))
	if *quiet {
		logger.EnableQuiet()
	}
	if *jsonLog {
		logger.EnableJSON()
	}

	dataDisks := flag.Args()
	if len(dataDisks) == 0 {
		logger.Println("usage: parisync [flags] datadisk1 [datadisk2 ...]")
		os.Exit(2)
	}

	store := &cmd.FileContentStore{Path: *contentPath}
	index, err := store.Load()
	if err != nil {
		logger.LogIf(err, -1, -1)
		os.Exit(1)
	}
	if index == nil {
		index = cmd.NewBlockIndex(len(dataDisks), 0)
	}

	parityPaths := make([]string, *level)
	for l := range parityPaths {
		parityPaths[l] = *contentPath + ".parity" + string(rune('0'+l))
	}

	state := &cmd.State{
		Index:    index,
		DataDisk: dataDisks,
		Parity:   parityPaths,
	}

	cfg := cmd.Config{
		BlockSize:     *blockSize,
		Level:         *level,
		FileMode:      0o600,
		AutosaveBytes: *autosaveBytes,
		Opt: cmd.Options{
			Prehash:      *prehash,
			IoErrorLimit: 10,
		},
	}
	cfg.Opt.ForceAutosaveAt = -1

	rc := cmd.Sync(cfg, store, state, 0, index.BlockMax)
	os.Exit(normalizeExit(rc))
}

func normalizeExit(rc int) int {
	if rc == 0 {
		return 0
	}
	return 1
}
