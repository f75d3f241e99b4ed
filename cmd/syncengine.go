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
	"time"

	"github.com/minio/parisync/cmd/logger"
)

// SyncEngine runs the main per-offset loop: read, classify, optionally
// recover, compute parity, commit (spec.md §4.7). It is scoped to one
// sync invocation; every handle it opens is closed on every exit path
// (spec.md §5 "Resource ownership").
type SyncEngine struct {
	cfg    Config
	state  *State
	index  *BlockIndex
	hasher *Hasher
	codec  *RaidCodec
	ledger *ErrorLedger
	save   *Autosaver

	data   []DataHandle
	parity []*ParityHandle

	diskCount int
	zero      []byte

	cancelled func() bool
}

// failedEntry records one disk's failed-parity or failed-hash block
// at the current offset (spec.md §4.7 "Per-offset state"). Each disk
// adds at most one entry, so the list never exceeds D entries; it is a
// plain slice, allocated afresh for every offset.
type failedEntry struct {
	disk  int
	block *Block
}

type rehandleEntry struct {
	block *Block
	hash  [HashSize]byte
	valid bool
}

// NewSyncEngine builds an engine over state using the given codec,
// hasher, already-open parity handles and ledger.
func NewSyncEngine(cfg Config, state *State, hasher *Hasher, codec *RaidCodec, parity []*ParityHandle, ledger *ErrorLedger, save *Autosaver) *SyncEngine {
	diskCount := state.Index.DiskCount
	return &SyncEngine{
		cfg:       cfg,
		state:     state,
		index:     state.Index,
		hasher:    hasher,
		codec:     codec,
		ledger:    ledger,
		save:      save,
		data:      make([]DataHandle, diskCount),
		parity:    parity,
		diskCount: diskCount,
		zero:      make([]byte, cfg.BlockSize),
	}
}

// SetCancelFunc installs the cooperative cancellation check consulted
// between offsets (spec.md §5: "no suspension points outside of
// blocking I/O ... cancellation token ... checked between offsets").
func (e *SyncEngine) SetCancelFunc(f func() bool) { e.cancelled = f }

// Run executes the loop over [blockStart, blockStart+blockCount) and
// closes every handle on return. Returns -1 on a cancelled or fatal
// run, 0 on clean completion of the loop (the caller, Sync, still
// must apply the final parity Sync() and ExitCode logic).
func (e *SyncEngine) Run(blockStart, blockCount int64) (result int, err error) {
	defer func() {
		for j := range e.data {
			if cerr := e.data[j].Close(); cerr != nil {
				logger.LogIf(cerr, -1, j)
				if err == nil {
					result, err = -1, newSyncError(KindFatal, -1, j, cerr)
				}
			}
		}
	}()

	blockMax := blockStart + blockCount
	for i := blockStart; i < blockMax; i++ {
		if e.cancelled != nil && e.cancelled() {
			return -1, nil
		}
		if !e.index.blockIsEnabled(i) {
			continue
		}
		if err := e.syncOffset(i); err != nil {
			var se *SyncError
			if errors.As(err, &se) && se.Kind == KindFatal {
				return -1, err
			}
			return -1, err
		}
		e.ledger.AdvanceOffset()

		if e.save != nil {
			remaining := blockMax - i - 1
			if e.save.ShouldTrigger(i, remaining) {
				if err := e.save.Trigger(e.parity, e.state); err != nil {
					return -1, err
				}
			}
		}
	}
	return 0, nil
}

// syncOffset runs every phase of spec.md §4.7 for one offset.
func (e *SyncEngine) syncOffset(i int64) error {
	D := e.diskCount
	L := len(e.parity)
	blockSize := e.cfg.BlockSize

	buffers := make([][]byte, 2*D+L)
	for k := range buffers {
		buffers[k] = make([]byte, blockSize)
	}
	dataBuf := buffers[0:D]
	parityBuf := buffers[D : D+L]
	savedBuf := buffers[D+L : D+L+D]

	info := &e.index.Info[i]

	var failed []failedEntry
	rehandle := make([]rehandleEntry, D)

	var fileError, ioError, silentError, fixedError bool
	parityNeedsUpdate := info.Bad

	for j := 0; j < D; j++ {
		if e.state.DataDisk[j] == "" {
			copy(dataBuf[j], e.zero)
			rehandle[j] = rehandleEntry{}
			continue
		}
		b := e.index.BlockAt(j, i)

		if blockHasInvalidParity(b) {
			failed = append(failed, failedEntry{disk: j, block: b})
			if b.State != BlockCHG {
				parityNeedsUpdate = true
			}
		}

		if !b.HasFile() {
			copy(dataBuf[j], e.zero)
			continue
		}
		f := e.index.FileAt(j, b)

		if !e.data[j].IsOpenFor(f.Path) {
			if cerr := e.data[j].Close(); cerr != nil {
				e.ledger.RecordFatalError()
				return newSyncError(KindFatal, i, j, cerr)
			}
		}
		if !e.data[j].IsOpenFor(f.Path) {
			stat, operr := e.data[j].Open(f.Path)
			switch {
			case errors.Is(operr, ErrIO):
				e.ledger.RecordFatalError()
				return newSyncError(KindFatal, i, j, operr)
			case errors.Is(operr, ErrNotFound), errors.Is(operr, ErrPermission):
				fileError = true
				e.ledger.RecordFileError()
				logger.Warn("disk %d offset %d: file vanished or inaccessible, rerun sync", j, i)
				continue
			case operr != nil:
				e.ledger.RecordFatalError()
				return newSyncError(KindFatal, i, j, operr)
			}
			if !stat.Matches(f) {
				fileError = true
				e.ledger.RecordFileError()
				logger.Warn("disk %d offset %d: file changed since snapshot, rerun sync", j, i)
				continue
			}
		}

		n, rerr := e.data[j].Read(b.FilePos, dataBuf[j], blockSize)
		if rerr != nil {
			if errors.Is(rerr, ErrIO) {
				if limitExceeded := e.ledger.RecordIoError(); limitExceeded {
					e.ledger.RecordFatalError()
					return newSyncError(KindFatal, i, j, rerr)
				}
				ioError = true
				continue
			}
			e.ledger.RecordFatalError()
			return newSyncError(KindFatal, i, j, rerr)
		}
		for k := n; k < blockSize; k++ {
			dataBuf[j][k] = 0
		}

		key := CurrentKey
		if info.Rehash {
			key = PreviousKey
		}
		computed := e.hasher.Hash(key, dataBuf[j], blockSize)
		if info.Rehash {
			rehandle[j] = rehandleEntry{block: b, hash: e.hasher.Hash(CurrentKey, dataBuf[j], blockSize), valid: true}
		}

		if blockHasUpdatedHash(b) {
			switch {
			case computed == b.Hash:
				// OK, nothing more to do for this block.
			case blockHasInvalidParity(b):
				// REP: data changed under us since the content file
				// carried its expected hash.
				fileError = true
				e.ledger.RecordFileError()
				if f.IsCopy() {
					logger.Warn("disk %d offset %d: %s changed under us (recognized duplicate, check the other copy)", j, i, f.Path)
				} else {
					logger.Warn("disk %d offset %d: %s changed under us, rerun sync", j, i, f.Path)
				}
			default:
				// BLK: silent corruption.
				failed = append(failed, failedEntry{disk: j, block: b})
				silentError = true
				e.ledger.RecordSilentError()
			}
		} else {
			// CHG: no reliable expected hash yet.
			if parityNeedsUpdate {
				b.Hash = computed
			} else {
				if hashIsReal(b.Hash) && computed != b.Hash {
					parityNeedsUpdate = true
				} else if !hashIsReal(b.Hash) {
					parityNeedsUpdate = true
				}
				b.Hash = computed
			}
		}
	}

	if silentError && !fileError && !ioError {
		recovered, err := e.recover(i, D, L, dataBuf, parityBuf, savedBuf, failed, info.Rehash)
		if err != nil {
			var se *SyncError
			if errors.As(err, &se) && se.Kind == KindFatal {
				return err
			}
			ioError = true
		} else {
			fixedError = recovered
		}
	}

	if !fileError && !ioError && (!silentError || fixedError) {
		if parityNeedsUpdate {
			if err := e.codec.Gen(buffers[:D+L]); err != nil {
				e.ledger.RecordFatalError()
				return err
			}
			parityIOFailed := false
			for l := 0; l < L; l++ {
				werr := e.parity[l].Write(i, parityBuf[l], blockSize)
				if werr != nil {
					if errors.Is(werr, ErrIO) {
						if limitExceeded := e.ledger.RecordIoError(); limitExceeded {
							e.ledger.RecordFatalError()
							return newSyncError(KindFatal, i, l, werr)
						}
						ioError = true
						parityIOFailed = true
						continue
					}
					e.ledger.RecordFatalError()
					return newSyncError(KindFatal, i, l, werr)
				}
			}
			if parityIOFailed {
				goto markBad
			}
			e.save.NoteBytesWritten(int64(L * blockSize))
		}

		for j := 0; j < D; j++ {
			if e.state.DataDisk[j] == "" {
				continue
			}
			b := e.index.BlockAt(j, i)
			switch b.State {
			case BlockDeleted:
				b.State = BlockEmpty
				b.FileRef = noFile
			default:
				if b.HasFile() {
					b.State = BlockBLK
				}
			}
		}

		if parityNeedsUpdate && !silentError && !ioError {
			for j := 0; j < D; j++ {
				if rehandle[j].valid {
					rehandle[j].block.Hash = rehandle[j].hash
				}
			}
			*info = InfoEntry{LastSyncTime: time.Now(), Bad: false, Rehash: false, JustSynced: true}
		}
	}

markBad:
	if silentError || ioError {
		info.Bad = true
	}
	e.state.NeedWrite = true
	return nil
}

// recover implements spec.md §4.7's recovery phase: reconstruct up to
// L failed data strips from surviving data and parity, verifying each
// recovered BLK block's hash before trusting it. Grounded on the
// teacher's ErasureStorage.HealFile (erasure-healfile.go), which
// reads surviving shards, calls into the Reed-Solomon codec, and only
// treats the heal as successful where recomputed checksums match.
// rehash mirrors the offset's Info.Rehash: a BLK hash carried into a
// rehash offset was computed under the previous key, so verification
// must use the same key or a perfect reconstruction looks like a
// mismatch.
func (e *SyncEngine) recover(i int64, D, L int, dataBuf, parityBuf, savedBuf [][]byte, failed []failedEntry, rehash bool) (fixed bool, err error) {
	var failedMap []int
	for _, fe := range failed {
		if fe.block.State == BlockCHG && hashIsZero(fe.block.Hash) {
			// Restored to zeros in place; not part of the RS repair.
			copy(dataBuf[fe.disk], e.zero)
			continue
		}
		failedMap = append(failedMap, fe.disk)
		savedBuf[fe.disk] = append(savedBuf[fe.disk][:0], dataBuf[fe.disk]...)
	}
	if len(failedMap) == 0 {
		return true, nil
	}
	if len(failedMap) > L {
		return false, nil
	}

	for l := 0; l < L; l++ {
		if rerr := e.parity[l].Read(i, parityBuf[l], e.cfg.BlockSize); rerr != nil {
			if errors.Is(rerr, ErrIO) {
				if limitExceeded := e.ledger.RecordIoError(); limitExceeded {
					e.ledger.RecordFatalError()
					return false, newSyncError(KindFatal, i, l, rerr)
				}
				return false, newSyncError(KindIoTransient, i, l, rerr)
			}
			e.ledger.RecordFatalError()
			return false, newSyncError(KindFatal, i, l, rerr)
		}
	}

	strips := make([][]byte, D+L)
	copy(strips, dataBuf)
	copy(strips[D:], parityBuf)
	if err := e.codec.Rec(strips, failedMap); err != nil {
		return false, err
	}

	// Rec reconstructs by assigning freshly allocated shards into
	// strips' own backing array (spec.md §4.5 note): copy the rebuilt
	// bytes back into dataBuf, which is what Gen and the hash check
	// below actually read.
	allMatched := true
	for _, disk := range failedMap {
		b := e.index.BlockAt(disk, i)
		recovered := strips[disk]
		if len(recovered) < e.cfg.BlockSize {
			padded := make([]byte, e.cfg.BlockSize)
			copy(padded, recovered)
			recovered = padded
		}
		copy(dataBuf[disk], recovered)
		if b.State != BlockBLK {
			// CHG/REP/DELETED: recovery is only for verifiable BLK
			// content, restore the pre-recovery buffer.
			copy(dataBuf[disk], savedBuf[disk])
			continue
		}
		key := CurrentKey
		if rehash {
			key = PreviousKey
		}
		recomputed := e.hasher.Hash(key, dataBuf[disk], e.cfg.BlockSize)
		if recomputed != b.Hash {
			allMatched = false
		}
	}
	return allMatched, nil
}
