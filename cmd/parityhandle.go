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
	"os"

	"golang.org/x/sys/unix"
)

// ParityHandle owns one parity level's file for the duration of a
// sync run (spec.md §4.4). All writes preceding a Sync() are durable
// once Sync() returns (write ordering contract).
type ParityHandle struct {
	f            *os.File
	level        int
	skipFallocate bool
}

// CreateParity opens or creates the parity file for level l at path,
// returning its resulting size. If the file is smaller than
// usedParityMax and forceFull is not set, this is a precondition
// failure the caller must treat as Fatal (spec.md §6). When forceFull
// is set, a short file is resized up to usedParityMax immediately,
// rather than left to grow incidentally from later strip writes —
// a Read of a strip past the old end of file would otherwise return
// io.EOF instead of the zero-filled hole spec.md §6 describes.
func CreateParity(l int, path string, mode os.FileMode, usedParityMax int64, forceFull bool) (*ParityHandle, int64, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, mode)
	if err != nil {
		return nil, 0, newSyncError(KindFatal, 0, -1, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, newSyncError(KindFatal, 0, -1, err)
	}
	size := fi.Size()
	if size < usedParityMax && !forceFull {
		f.Close()
		return nil, 0, newSyncError(KindFatal, 0, -1, errParityTooSmall)
	}
	ph := &ParityHandle{f: f, level: l}
	if forceFull && size < usedParityMax {
		newSize, err := ph.Resize(usedParityMax)
		if err != nil {
			f.Close()
			return nil, 0, err
		}
		size = newSize
	}
	return ph, size, nil
}

// SetSkipFallocate disables the Fallocate fast-path in Resize,
// honoring opt.skip_fallocate (spec.md §6).
func (p *ParityHandle) SetSkipFallocate(skip bool) { p.skipFallocate = skip }

// Resize truncates or extends the parity file to newSize, returning
// the size actually achieved. Holes beyond used_paritymax are
// permitted (spec.md §6 "Parity file layout").
func (p *ParityHandle) Resize(newSize int64) (int64, error) {
	if !p.skipFallocate && newSize > 0 {
		if err := unix.Fallocate(int(p.f.Fd()), 0, 0, newSize); err != nil {
			// Fallocate isn't implemented on every filesystem; fall
			// back to a plain truncate rather than fail the resize.
			if err := p.f.Truncate(newSize); err != nil {
				return 0, newSyncError(KindFatal, 0, -1, err)
			}
			return newSize, nil
		}
		return newSize, nil
	}
	if err := p.f.Truncate(newSize); err != nil {
		return 0, newSyncError(KindFatal, 0, -1, err)
	}
	return newSize, nil
}

// Read reads the strip at offset i into buf.
func (p *ParityHandle) Read(i int64, buf []byte, blockSize int) error {
	_, err := p.f.ReadAt(buf[:blockSize], i*int64(blockSize))
	if err != nil {
		return classifyIOError(err)
	}
	return nil
}

// Write writes the strip at offset i from buf.
func (p *ParityHandle) Write(i int64, buf []byte, blockSize int) error {
	_, err := p.f.WriteAt(buf[:blockSize], i*int64(blockSize))
	if err != nil {
		return classifyIOError(err)
	}
	return nil
}

// Sync is the durability barrier: every Write preceding this call is
// guaranteed durable once Sync returns (spec.md §4.4, §5 ordering
// guarantees). Uses Fdatasync to avoid the extra metadata flush a
// full fsync would force on every autosave.
func (p *ParityHandle) Sync() error {
	if err := unix.Fdatasync(int(p.f.Fd())); err != nil {
		return newSyncError(KindFatal, 0, -1, err)
	}
	return nil
}

// Close releases the underlying descriptor.
func (p *ParityHandle) Close() error {
	if p.f == nil {
		return nil
	}
	f := p.f
	p.f = nil
	return f.Close()
}

var errParityTooSmall = &parityTooSmallError{}

type parityTooSmallError struct{}

func (*parityTooSmallError) Error() string {
	return "parity file smaller than used_paritymax, rerun with force_full"
}
