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
	"io"
	"os"
	"path/filepath"

	"github.com/minio/sha256-simd"

	"github.com/minio/parisync/cmd/logger"
)

// wholeFileDigest returns the SHA-256 of the file at path, using the
// AVX2/SHA-extension accelerated implementation the teacher's S3
// multipart ETag path relies on (sha256-simd is a drop-in replacement
// for crypto/sha256). The block hasher (hasher.go) keys per-strip
// parity hashes; this is a separate, unkeyed whole-file digest, used
// only to double-check a (name,size,mtime) copy match, never to
// detect the match itself.
func wholeFileDigest(path string) ([32]byte, error) {
	var sum [32]byte
	f, err := os.Open(path)
	if err != nil {
		return sum, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return sum, err
	}
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

// copyKey is the (name, size, mtime) tuple spec.md §3/§GLOSSARY
// defines FILE_IS_COPY against — deliberately cheaper than a content
// digest, and deliberately just a heuristic (two distinct files can
// share a basename, size and mtime without being copies).
type copyKey struct {
	name      string
	size      int64
	mtimeSec  int64
	mtimeNsec int32
}

// DetectCopies scans the files already recorded for one data disk and
// marks any File whose (name, size, mtime) tuple matches an earlier
// file with FileIsCopy (spec.md §3, §GLOSSARY "FILE_IS_COPY"):
// diagnostics only, never changes block state. root is the data
// disk's filesystem root the paths are relative to.
//
// This runs once before a sync, not per-offset: it is an external
// loader-side heuristic, not part of the per-block state machine.
func DetectCopies(root string, files []File) error {
	seen := make(map[copyKey]int, len(files))
	for i := range files {
		if files[i].Path == "" {
			continue
		}
		key := copyKey{
			name:      filepath.Base(files[i].Path),
			size:      files[i].Size,
			mtimeSec:  files[i].MtimeSec,
			mtimeNsec: files[i].MtimeNsec,
		}
		prev, ok := seen[key]
		if !ok {
			seen[key] = i
			continue
		}
		files[i].Flags |= FileIsCopy
		if err := warnIfContentDiffers(root, files[prev], files[i]); err != nil {
			return err
		}
	}
	return nil
}

// warnIfContentDiffers logs when two files the (name,size,mtime)
// heuristic flagged as copies turn out to hold different content —
// the heuristic is believed, never verified (spec.md §GLOSSARY), so
// this is diagnostic only and never clears FileIsCopy.
func warnIfContentDiffers(root string, a, b File) error {
	sumA, err := wholeFileDigest(filepath.Join(root, a.Path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	sumB, err := wholeFileDigest(filepath.Join(root, b.Path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if sumA != sumB {
		logger.Warn("%s and %s share (name,size,mtime) but differ in content, FILE_IS_COPY is a false positive", a.Path, b.Path)
	}
	return nil
}
