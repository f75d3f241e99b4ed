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
	"io"
	"os"
	"syscall"
)

// DataStat is the subset of file identity the engine compares against
// the File record to detect concurrent modification (spec.md §4.3
// invariant).
type DataStat struct {
	Size      int64
	MtimeSec  int64
	MtimeNsec int32
	Inode     uint64
}

// Matches reports whether the observed stat still agrees with the
// File record loaded at snapshot time.
func (s DataStat) Matches(f *File) bool {
	return s.Size == f.Size && s.MtimeSec == f.MtimeSec && s.MtimeNsec == f.MtimeNsec && s.Inode == f.Inode
}

// DataHandle owns at most one open data-disk file descriptor at a
// time, reused across consecutive blocks belonging to the same file
// (spec.md §5 "Resource ownership"). The zero value is a closed
// handle.
type DataHandle struct {
	f        *os.File
	openPath string
}

// Open opens file for reading and stats it. Errors are classified
// into the taxonomy spec.md §4.3 requires: IO, NotFound, Permission,
// Other.
func (h *DataHandle) Open(path string) (DataStat, error) {
	f, err := os.Open(path)
	if err != nil {
		return DataStat{}, classifyOpenError(err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return DataStat{}, classifyOpenError(err)
	}
	h.f = f
	h.openPath = path
	return statOf(fi), nil
}

// IsOpenFor reports whether the handle currently holds path open.
func (h *DataHandle) IsOpenFor(path string) bool {
	return h.f != nil && h.openPath == path
}

// Read reads one block at the given block index into buf, returning
// the number of bytes actually read. Short reads happen only on a
// file's last block; the caller must zero-fill the remainder before
// hashing or computing parity (spec.md §4.3).
func (h *DataHandle) Read(blockIndex int64, buf []byte, blockSize int) (int, error) {
	n, err := h.f.ReadAt(buf[:blockSize], blockIndex*int64(blockSize))
	if err != nil && err != io.EOF {
		return n, classifyIOError(err)
	}
	return n, nil
}

// Close releases the held descriptor, if any. Any failure here is
// fatal per spec.md §4.3 ("must never fail under read-only
// workloads; any failure is fatal").
func (h *DataHandle) Close() error {
	if h.f == nil {
		return nil
	}
	f := h.f
	h.f = nil
	h.openPath = ""
	if err := f.Close(); err != nil {
		return classifyIOError(err)
	}
	return nil
}

func statOf(fi os.FileInfo) DataStat {
	st := DataStat{Size: fi.Size()}
	if sys, ok := fi.Sys().(*syscall.Stat_t); ok {
		st.MtimeSec = int64(sys.Mtim.Sec)
		st.MtimeNsec = int32(sys.Mtim.Nsec)
		st.Inode = sys.Ino
	}
	return st
}

func classifyOpenError(err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, os.ErrPermission):
		return ErrPermission
	case errors.Is(err, syscall.EIO):
		return ErrIO
	default:
		return ErrOther
	}
}

func classifyIOError(err error) error {
	if errors.Is(err, syscall.EIO) {
		return ErrIO
	}
	return ErrOther
}
