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

import "github.com/minio/parisync/cmd/logger"

// Autosaver periodically flushes parity and a metadata snapshot
// during a long sync run, so a crash mid-run leaves a recoverable
// image (spec.md §4.7 Autosave, §5 ordering guarantees).
type Autosaver struct {
	limit          int64
	bytesWritten   int64
	forceAt        int64 // test hook: opt.force_autosave_at, -1 disables
	store          ContentStore
}

// NewAutosaver builds an autosaver triggering every limit bytes
// written (0 disables periodic autosave; forceAt, if >= 0, is a test
// hook that forces one extra autosave at that offset).
func NewAutosaver(limit int64, forceAt int64, store ContentStore) *Autosaver {
	return &Autosaver{limit: limit, forceAt: forceAt, store: store}
}

// NoteBytesWritten accumulates bytes written toward the next trigger.
func (a *Autosaver) NoteBytesWritten(n int64) { a.bytesWritten += n }

// ShouldTrigger reports whether an autosave should fire before
// continuing past offset i, given remaining blocks left in the run
// (spec.md §4.7: no autosave fires near the very end of the range).
func (a *Autosaver) ShouldTrigger(i, remainingBlocks int64) bool {
	if a.limit > 0 && a.bytesWritten >= a.limit && remainingBlocks >= a.limit {
		return true
	}
	return i == a.forceAt
}

// Trigger fsyncs every parity handle then persists the metadata
// snapshot, in that order — metadata is never written before parity
// is durable (spec.md §5 "Metadata write (autosave) is preceded by
// sync() on every parity file").
func (a *Autosaver) Trigger(parity []*ParityHandle, state *State) error {
	for _, p := range parity {
		if err := p.Sync(); err != nil {
			return newSyncError(KindFatal, -1, -1, err)
		}
	}
	if err := a.store.Save(state); err != nil {
		return newSyncError(KindFatal, -1, -1, err)
	}
	a.bytesWritten = 0
	logger.Printf("autosave: checkpoint written\n")
	return nil
}
