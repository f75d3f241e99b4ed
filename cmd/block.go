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

import "time"

// BlockState is the tagged state of a (disk, offset) slot, per the
// block state machine: EMPTY, BLK, CHG, REP, DELETED.
type BlockState uint8

// Block states. Transitions only ever run forward along
// {Empty,Chg,Rep,Deleted} -> Blk, or Deleted -> Empty.
const (
	BlockEmpty BlockState = iota
	BlockBLK
	BlockCHG
	BlockREP
	BlockDeleted
)

func (s BlockState) String() string {
	switch s {
	case BlockEmpty:
		return "EMPTY"
	case BlockBLK:
		return "BLK"
	case BlockCHG:
		return "CHG"
	case BlockREP:
		return "REP"
	case BlockDeleted:
		return "DELETED"
	default:
		return "UNKNOWN"
	}
}

// FileFlag marks bits carried on a File record.
type FileFlag uint32

// FileIsCopy marks a file recognized as a duplicate of another by
// (name, size, mtime). Diagnostics only; never changes sync behavior.
const FileIsCopy FileFlag = 1 << 0

// File is the back-reference target of a Block: the file that
// occupies a run of blocks on one data disk.
type File struct {
	Path      string
	Size      int64
	MtimeSec  int64
	MtimeNsec int32
	Inode     uint64
	Flags     FileFlag
}

// IsCopy reports whether this file was detected as a duplicate of
// another by name/size/mtime. Affects diagnostics only.
func (f *File) IsCopy() bool { return f.Flags&FileIsCopy != 0 }

// noFile is the sentinel index meaning "no File owns this block".
const noFile = -1

// Block is the per-(disk, offset) metadata record. FileRef is an
// arena index into the owning array's Files slice, or noFile for
// EMPTY/DELETED slots — this avoids the owning-handle cycles the
// original C sources had between block, file and disk.
type Block struct {
	State   BlockState
	Hash    [HashSize]byte
	FileRef int
	FilePos int64
}

// HasFile reports whether a file occupies this slot.
func (b *Block) HasFile() bool { return b.FileRef != noFile }

// blockHasUpdatedHash reports true iff b.Hash is the hash we expect
// the on-disk bytes to produce right now (spec.md §4.1).
func blockHasUpdatedHash(b *Block) bool {
	return b.State == BlockBLK || b.State == BlockREP
}

// blockHasInvalidParity reports true iff parity at this offset does
// not yet reflect b (spec.md §4.1).
func blockHasInvalidParity(b *Block) bool {
	return b.State == BlockCHG || b.State == BlockREP || b.State == BlockDeleted
}

// InfoEntry is the packed per-offset metadata record.
type InfoEntry struct {
	LastSyncTime time.Time
	Bad          bool
	Rehash       bool
	JustSynced   bool
}

// BlockIndex maps (disk, offset) to Block records. Offsets share a
// single index space across all disks; disk j's row is Blocks[j].
//
// BlockIndex, its Blocks rows and the Files arena are owned by the
// enclosing array State, mutated exclusively by SyncEngine and
// HashPass (spec.md §3 "Ownership / lifecycle").
type BlockIndex struct {
	Blocks    [][]Block // [disk][offset]
	Files     [][]File  // [disk][fileIndex], addressed by Block.FileRef
	Info      []InfoEntry
	BlockMax  int64
	DiskCount int
}

// NewBlockIndex allocates an index for diskCount disks and blockMax
// offsets, all slots starting EMPTY.
func NewBlockIndex(diskCount int, blockMax int64) *BlockIndex {
	bi := &BlockIndex{
		Blocks:    make([][]Block, diskCount),
		Files:     make([][]File, diskCount),
		Info:      make([]InfoEntry, blockMax),
		BlockMax:  blockMax,
		DiskCount: diskCount,
	}
	for j := range bi.Blocks {
		row := make([]Block, blockMax)
		for i := range row {
			row[i].FileRef = noFile
		}
		bi.Blocks[j] = row
	}
	return bi
}

// BlockAt returns a pointer to the block at (disk, i) so callers can
// mutate state/hash in place.
func (bi *BlockIndex) BlockAt(disk int, i int64) *Block {
	return &bi.Blocks[disk][i]
}

// FileAt resolves a block's FileRef to its File record. Panics if the
// block has no file; callers must check HasFile first.
func (bi *BlockIndex) FileAt(disk int, b *Block) *File {
	return &bi.Files[disk][b.FileRef]
}

// blockIsEnabled is true when offset i needs a visit this run: some
// disk has a file at i, and some disk's contribution to parity at i
// is stale (spec.md §4.7 "Enablement predicate").
func (bi *BlockIndex) blockIsEnabled(i int64) bool {
	var hasFile, hasInvalid bool
	for j := 0; j < bi.DiskCount; j++ {
		b := &bi.Blocks[j][i]
		if b.HasFile() {
			hasFile = true
		}
		if blockHasInvalidParity(b) {
			hasInvalid = true
		}
		if hasFile && hasInvalid {
			return true
		}
	}
	return false
}
