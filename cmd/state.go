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

package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/minio/parisync/cmd/logger"
)

// Sync is the invoked API: state_sync(state, blockstart, blockcount)
// from spec.md §6. It enforces the entry preconditions, drives
// HashPass then SyncEngine, and returns 0 on clean success or -1 on
// any unrecoverable or bailed error (inverted when
// cfg.Opt.ExpectRecoverable is set). Callers that want a process-level
// FatalIf on -1 (a standalone CLI, say) make that call themselves;
// this function only logs and classifies, it never exits the process,
// so the exit contract stays testable.
func Sync(cfg Config, store ContentStore, state *State, blockStart, blockCount int64) int {
	if blockStart > state.Index.BlockMax {
		logger.LogIf(fmt.Errorf("blockstart %d exceeds blockmax %d", blockStart, state.Index.BlockMax), blockStart, -1)
		return -1
	}

	ledger := NewErrorLedger(cfg.Opt.IoErrorLimit, state.Index.BlockMax)

	usedParityMax := state.Index.BlockMax * int64(cfg.BlockSize)
	parity := make([]*ParityHandle, cfg.Level)
	var openErr error
	for l := 0; l < cfg.Level; l++ {
		// A degenerate single-disk-array test configuration can point
		// a parity level at a path that's also a data disk; the "too
		// small" precondition doesn't mean much when parity shares
		// physical media with the data it protects, so skip_self
		// waives it instead of forcing a full rebuild (spec.md §6
		// lists the flag without defining this case).
		forceFull := cfg.Opt.ForceFull || (cfg.Opt.SkipSelf && parityIsSelf(state.Parity[l], state.DataDisk))
		ph, _, err := CreateParity(l, state.Parity[l], cfg.FileMode, usedParityMax, forceFull)
		if err != nil {
			openErr = err
			break
		}
		ph.SetSkipFallocate(cfg.Opt.SkipFallocate)
		parity[l] = ph
	}
	if openErr != nil {
		for _, ph := range parity {
			if ph != nil {
				ph.Close()
			}
		}
		logger.LogIf(openErr, blockStart, -1)
		return -1
	}
	defer func() {
		for _, ph := range parity {
			ph.Close()
		}
	}()

	hasher := NewHasher(cfg.HashSeed, cfg.PrevHashSeed)
	codec, err := NewRaidCodec(state.Index.DiskCount, cfg.Level)
	if err != nil {
		logger.LogIf(err, blockStart, -1)
		return -1
	}

	skipSync := false
	if cfg.Opt.Prehash {
		hp := NewHashPass(state.Index, hasher, cfg.BlockSize, ledger)
		var herr error
		skipSync, herr = hp.Run(blockStart, blockStart+blockCount)
		if herr != nil {
			logger.LogIf(herr, blockStart, -1)
			return -1
		}
		if skipSync {
			return ledger.ExitCode(cfg.Opt.ExpectRecoverable)
		}
		if err := store.Save(state); err != nil {
			logger.LogIf(err, blockStart, -1)
			return -1
		}
	}

	autosaver := NewAutosaver(cfg.AutosaveBytes, cfg.Opt.ForceAutosaveAt, store)
	engine := NewSyncEngine(cfg, state, hasher, codec, parity, ledger, autosaver)

	if _, runErr := engine.Run(blockStart, blockCount); runErr != nil {
		var se *SyncError
		if errors.As(runErr, &se) {
			logger.LogIf(runErr, se.Offset, se.Disk)
		} else {
			logger.LogIf(runErr, blockStart, -1)
		}
		return -1
	}

	for l, ph := range parity {
		if err := ph.Sync(); err != nil {
			logger.LogIf(err, -1, l)
			return -1
		}
	}
	if err := store.Save(state); err != nil {
		logger.LogIf(err, -1, -1)
		return -1
	}

	logger.Println(ledger.Summary(nil))
	return ledger.ExitCode(cfg.Opt.ExpectRecoverable)
}

// parityIsSelf reports whether parityPath is rooted on one of the
// configured data disks, the degenerate single-disk-array
// configuration Config.Opt.SkipSelf exists to tolerate.
func parityIsSelf(parityPath string, dataDisks []string) bool {
	dir := filepath.Dir(parityPath)
	for _, d := range dataDisks {
		if d != "" && d == dir {
			return true
		}
	}
	return false
}
