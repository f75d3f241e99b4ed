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
	"sort"
	"time"

	humanize "github.com/dustin/go-humanize"
)

// ErrKind classifies an I/O failure observed by the engine (spec.md
// §7, §9). The original OS error is always wrapped, never discarded,
// so diagnostics can still show the underlying errno-equivalent.
type ErrKind int

// Error kinds. Fatal aborts the run; the rest
// are per-offset and let the loop continue.
const (
	KindNone ErrKind = iota
	KindIoTransient
	KindSilentData
	KindConcurrent
	KindRecovered
	KindFatal
)

func (k ErrKind) String() string {
	switch k {
	case KindIoTransient:
		return "io-transient"
	case KindSilentData:
		return "silent-data"
	case KindConcurrent:
		return "concurrent-modification"
	case KindRecovered:
		return "recovered"
	case KindFatal:
		return "fatal"
	default:
		return "none"
	}
}

// SyncError is the tagged error type every fallible operation in this
// package returns or wraps, replacing C-style errno returns with a
// classified, wrapped error (spec.md §9).
type SyncError struct {
	Kind   ErrKind
	Offset int64
	Disk   int
	Err    error
}

func (e *SyncError) Error() string {
	if e.Disk >= 0 {
		return fmt.Sprintf("%s at offset %d disk %d: %v", e.Kind, e.Offset, e.Disk, e.Err)
	}
	return fmt.Sprintf("%s at offset %d: %v", e.Kind, e.Offset, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

func newSyncError(kind ErrKind, offset int64, disk int, err error) *SyncError {
	return &SyncError{Kind: kind, Offset: offset, Disk: disk, Err: err}
}

// Sentinel errors the engine classifies against with errors.Is,
// instead of matching OS-specific error strings.
var (
	ErrNotFound   = errors.New("file not found")
	ErrPermission = errors.New("permission denied")
	ErrIO         = errors.New("input/output error")
	ErrOther      = errors.New("unclassified I/O error")
)

// ErrorLedger accumulates the four run-wide counters spec.md §4.8 and
// §7 require, plus a per-offset "bad" mark recorded directly on
// BlockIndex.Info. It is the sole place counters are mutated; no
// locking is required because the engine is single-threaded and
// progress queries happen only between offsets (spec.md §5).
type ErrorLedger struct {
	FileErrors   int64
	IoErrors     int64
	SilentErrors int64
	FatalErrors  int64

	ioErrorLimit int64
	started      time.Time
	blocksDone   int64
	blockMax     int64
}

// NewErrorLedger creates a ledger bounding transient I/O errors at
// ioErrorLimit (spec.md §7: "EIO past io_error_limit" escalates to
// Fatal).
func NewErrorLedger(ioErrorLimit int64, blockMax int64) *ErrorLedger {
	return &ErrorLedger{ioErrorLimit: ioErrorLimit, started: time.Now(), blockMax: blockMax}
}

// RecordFileError increments the Concurrent-modification / permission
// counter (spec.md §7 Concurrent).
func (l *ErrorLedger) RecordFileError() { l.FileErrors++ }

// RecordSilentError increments the silent-corruption counter
// (spec.md §7 SilentData).
func (l *ErrorLedger) RecordSilentError() { l.SilentErrors++ }

// RecordFatalError increments the fatal counter (spec.md §7 Fatal).
func (l *ErrorLedger) RecordFatalError() { l.FatalErrors++ }

// RecordIoError increments the transient I/O counter and reports
// whether the configured per-run limit has now been exceeded, which
// the caller must treat as Fatal (spec.md §4.7 step 8, §7).
func (l *ErrorLedger) RecordIoError() (limitExceeded bool) {
	l.IoErrors++
	return l.ioErrorLimit > 0 && l.IoErrors > l.ioErrorLimit
}

// AdvanceOffset marks one more offset processed, for the progress/ETA
// counters the original tracks (SPEC_FULL.md §5 item 3).
func (l *ErrorLedger) AdvanceOffset() { l.blocksDone++ }

// HasErrors reports whether any of the four counters is non-zero
// (spec.md §4.8 exit contract, before ExpectRecoverable inversion).
func (l *ErrorLedger) HasErrors() bool {
	return l.FileErrors != 0 || l.IoErrors != 0 || l.SilentErrors != 0 || l.FatalErrors != 0
}

// ExitCode applies spec.md §4.8's truth table: success (0) iff all
// counters are zero, unless expectRecoverable inverts it for the
// self-test mode (success iff any counter is non-zero).
func (l *ErrorLedger) ExitCode(expectRecoverable bool) int {
	hasErrors := l.HasErrors()
	if expectRecoverable {
		hasErrors = !hasErrors
	}
	if hasErrors {
		return -1
	}
	return 0
}

// diskErrorCount tallies errors attributable to one data disk, used
// only by Summary's per-disk breakdown.
type diskErrorCount struct {
	disk  int
	count int64
}

type byCount []diskErrorCount

func (d byCount) Len() int      { return len(d) }
func (d byCount) Swap(i, j int) { d[i], d[j] = d[j], d[i] }
func (d byCount) Less(i, j int) bool { return d[i].count > d[j].count }

// Summary renders the user-visible counter summary spec.md §7
// requires ("lists each counter and instructs the user to run status
// / fix when non-zero"). perDisk is an optional disk-index -> error
// count map; nil omits the per-disk breakdown.
func (l *ErrorLedger) Summary(perDisk map[int]int64) string {
	elapsed := time.Since(l.started)
	rate := float64(l.blocksDone) / elapsed.Seconds()
	out := fmt.Sprintf(
		"sync: %s blocks in %s (%.1f blocks/s)\n"+
			"  file errors:   %d\n"+
			"  io errors:     %d\n"+
			"  silent errors: %d\n"+
			"  fatal errors:  %d\n",
		humanize.Comma(l.blocksDone), elapsed.Round(time.Second), rate,
		l.FileErrors, l.IoErrors, l.SilentErrors, l.FatalErrors,
	)
	if l.HasErrors() {
		out += "run 'status' and 'fix' to repair the reported offsets\n"
	}
	if len(perDisk) > 0 {
		counts := make([]diskErrorCount, 0, len(perDisk))
		for disk, n := range perDisk {
			counts = append(counts, diskErrorCount{disk: disk, count: n})
		}
		sort.Sort(byCount(counts))
		out += "  by disk:\n"
		for _, c := range counts {
			if c.count == 0 {
				continue
			}
			out += fmt.Sprintf("    disk %d: %d errors\n", c.disk, c.count)
		}
	}
	return out
}
