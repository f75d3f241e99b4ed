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

	"github.com/minio/parisync/cmd/logger"
)

// HashPass is the optional pre-phase that verifies/computes hashes of
// CHG blocks by reading data only, never touching parity, so an I/O
// failure here aborts before any parity write (spec.md §4.6).
type HashPass struct {
	index      *BlockIndex
	hasher     *Hasher
	blockSize  int
	ledger     *ErrorLedger
	ioErrLimit int64
}

// NewHashPass builds a pre-hash pass over index.
func NewHashPass(index *BlockIndex, hasher *Hasher, blockSize int, ledger *ErrorLedger) *HashPass {
	return &HashPass{index: index, hasher: hasher, blockSize: blockSize, ledger: ledger}
}

// Run executes the pass over [blockStart, blockMax). It returns
// skipSync=true if any error occurred, signalling the outer driver
// must not run the sync phase at all (spec.md §4.6 step 4/"Output").
func (hp *HashPass) Run(blockStart, blockMax int64) (skipSync bool, err error) {
	var handles = make([]DataHandle, hp.index.DiskCount)
	defer func() {
		for j := range handles {
			if cerr := handles[j].Close(); cerr != nil {
				// EIO on close during prehash is fatal, mirroring
				// the sync engine's own close policy (spec.md §4.7
				// step 5).
				err = newSyncError(KindFatal, -1, j, cerr)
			}
		}
	}()

	fileErrors := 0
	for j := 0; j < hp.index.DiskCount; j++ {
		for i := blockStart; i < blockMax; i++ {
			b := hp.index.BlockAt(j, i)
			if !b.HasFile() || blockHasUpdatedHash(b) {
				continue
			}
			f := hp.index.FileAt(j, b)

			if !handles[j].IsOpenFor(f.Path) {
				if cerr := handles[j].Close(); cerr != nil {
					return true, newSyncError(KindFatal, i, j, cerr)
				}
				stat, operr := handles[j].Open(f.Path)
				if operr != nil {
					if errors.Is(operr, ErrIO) {
						return true, newSyncError(KindFatal, i, j, operr)
					}
					// ENOENT/EACCES: file changed under us, skip block.
					hp.ledger.RecordFileError()
					fileErrors++
					continue
				}
				if !stat.Matches(f) {
					hp.ledger.RecordFileError()
					fileErrors++
					continue
				}
			}

			buf := make([]byte, hp.blockSize)
			n, rerr := handles[j].Read(b.FilePos, buf, hp.blockSize)
			if rerr != nil {
				if errors.Is(rerr, ErrIO) {
					return true, newSyncError(KindFatal, i, j, rerr)
				}
				return true, newSyncError(KindFatal, i, j, rerr)
			}
			for k := n; k < hp.blockSize; k++ {
				buf[k] = 0
			}

			key := CurrentKey
			if hp.index.Info[i].Rehash {
				key = PreviousKey
			}
			b.Hash = hp.hasher.Hash(key, buf, hp.blockSize)
			b.State = BlockREP

			logger.Printf("hashpass: disk %d offset %d -> REP\n", j, i)
		}
	}
	return fileErrors > 0, nil
}
