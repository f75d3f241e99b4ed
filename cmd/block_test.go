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

import "testing"

func TestBlockHasUpdatedHash(t *testing.T) {
	cases := []struct {
		state BlockState
		want  bool
	}{
		{BlockEmpty, false},
		{BlockBLK, true},
		{BlockCHG, false},
		{BlockREP, true},
		{BlockDeleted, false},
	}
	for _, c := range cases {
		b := &Block{State: c.state}
		if got := blockHasUpdatedHash(b); got != c.want {
			t.Errorf("state %v: blockHasUpdatedHash = %v, want %v", c.state, got, c.want)
		}
	}
}

func TestBlockHasInvalidParity(t *testing.T) {
	cases := []struct {
		state BlockState
		want  bool
	}{
		{BlockEmpty, false},
		{BlockBLK, false},
		{BlockCHG, true},
		{BlockREP, true},
		{BlockDeleted, true},
	}
	for _, c := range cases {
		b := &Block{State: c.state}
		if got := blockHasInvalidParity(b); got != c.want {
			t.Errorf("state %v: blockHasInvalidParity = %v, want %v", c.state, got, c.want)
		}
	}
}

func TestBlockIsEnabled(t *testing.T) {
	bi := NewBlockIndex(2, 4)

	// Offset 0: both disks EMPTY, no file anywhere -> not enabled.
	if bi.blockIsEnabled(0) {
		t.Fatal("offset 0 should not be enabled with no files and no invalid parity")
	}

	// Offset 1: disk0 has a file in BLK state (parity valid), disk1 empty -> not enabled.
	bi.Files[0] = append(bi.Files[0], File{Path: "a", Size: 4})
	b := bi.BlockAt(0, 1)
	b.State = BlockBLK
	b.FileRef = 0
	if bi.blockIsEnabled(1) {
		t.Fatal("offset 1 should not be enabled: parity already consistent")
	}

	// Offset 2: disk0 CHG with a file -> enabled (has file + invalid parity).
	b2 := bi.BlockAt(0, 2)
	b2.State = BlockCHG
	b2.FileRef = 0
	if !bi.blockIsEnabled(2) {
		t.Fatal("offset 2 should be enabled: CHG block present")
	}
}

func TestFileIsCopy(t *testing.T) {
	f := File{}
	if f.IsCopy() {
		t.Fatal("fresh File should not be marked as a copy")
	}
	f.Flags |= FileIsCopy
	if !f.IsCopy() {
		t.Fatal("File with FileIsCopy flag should report IsCopy")
	}
}
