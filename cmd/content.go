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
	"encoding/json"
	"os"
)

// Config holds the configuration fields spec.md §6 enumerates as
// consumed by the core. Parsing a config file or command line is an
// external collaborator's job (spec.md §1 Non-goals); this struct is
// the boundary.
type Config struct {
	BlockSize int

	Level int // L: number of parity levels, at least 1

	HashSeed     uint64
	PrevHashSeed uint64

	FileMode os.FileMode

	// AutosaveBytes is bytes between autosaves; 0 disables.
	AutosaveBytes int64

	Opt Options
}

// Options carries the test/operational hooks spec.md §6 lists.
type Options struct {
	Prehash           bool
	SkipSelf          bool
	SkipFallocate     bool
	ForceFull         bool
	ForceAutosaveAt   int64 // -1 disables the test hook
	IoErrorLimit      int64
	ExpectRecoverable bool
}

// ContentStore is the external collaborator that (de)serializes the
// content metadata file: block states, hashes, InfoArray entries, and
// a dirty flag (spec.md §6). The on-disk wire format is intentionally
// not specified here — only the two operations the core depends on.
type ContentStore interface {
	// Load returns the BlockIndex with block states/hashes set as of
	// the last snapshot. The loader is responsible for the
	// clear_past_hash invariant: hashes of CHG and DELETED blocks must
	// already be cleared by the time Load returns (spec.md §4.7
	// Pre-conditions).
	Load() (*BlockIndex, error)
	// Save persists state's BlockIndex, marking it clean. Called by
	// Autosaver mid-run and once more at the end of a successful
	// Sync.
	Save(state *State) error
}

// jsonSnapshot is the wire shape for FileContentStore's persisted form;
// it exists purely so tests and the standalone entry point have a
// working ContentStore without depending on the real binary content
// format, which remains an external collaborator.
type jsonSnapshot struct {
	DiskCount int         `json:"disk_count"`
	BlockMax  int64       `json:"block_max"`
	Blocks    [][]Block   `json:"blocks"`
	Files     [][]File    `json:"files"`
	Info      []InfoEntry `json:"info"`
}

// FileContentStore persists the BlockIndex as JSON at Path. It is a
// stand-in for the real content-file (de)serializer (spec.md §1 lists
// it as out of scope); good enough for tests and the thin CLI in
// main.go.
type FileContentStore struct {
	Path string
}

// Load implements ContentStore.
func (s *FileContentStore) Load() (*BlockIndex, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	var snap jsonSnapshot
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return nil, err
	}
	return &BlockIndex{
		Blocks:    snap.Blocks,
		Files:     snap.Files,
		Info:      snap.Info,
		BlockMax:  snap.BlockMax,
		DiskCount: snap.DiskCount,
	}, nil
}

// Save implements ContentStore.
func (s *FileContentStore) Save(state *State) error {
	bi := state.Index
	snap := jsonSnapshot{
		DiskCount: bi.DiskCount,
		BlockMax:  bi.BlockMax,
		Blocks:    bi.Blocks,
		Files:     bi.Files,
		Info:      bi.Info,
	}
	tmp := s.Path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	if err := enc.Encode(&snap); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return err
	}
	state.NeedWrite = false
	return nil
}

// State is the enclosing array state: the BlockIndex plus the
// run-scoped bookkeeping the engine needs (spec.md §3 "Ownership").
type State struct {
	Index    *BlockIndex
	DataDisk []string // per-disk root path, index-aligned with Index rows
	Parity   []string // per-level parity file path

	NeedWrite bool
}
