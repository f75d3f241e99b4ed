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

func TestHasherDeterministic(t *testing.T) {
	h := NewHasher(1, 2)
	buf := []byte("AAAA")
	a := h.Hash(CurrentKey, buf, 4)
	b := h.Hash(CurrentKey, buf, 4)
	if a != b {
		t.Fatal("hashing the same buffer twice under the same key must be deterministic")
	}
}

func TestHasherKeyDependent(t *testing.T) {
	h1 := NewHasher(1, 2)
	h2 := NewHasher(3, 4)
	buf := []byte("AAAA")
	if h1.Hash(CurrentKey, buf, 4) == h2.Hash(CurrentKey, buf, 4) {
		t.Fatal("different current keys must produce different hashes (key rotation invalidates replay)")
	}
}

func TestHasherCurrentVsPrevious(t *testing.T) {
	h := NewHasher(1, 2)
	buf := []byte("AAAA")
	if h.Hash(CurrentKey, buf, 4) == h.Hash(PreviousKey, buf, 4) {
		t.Fatal("current and previous keys must produce distinguishable hashes")
	}
}

func TestHasherShortReadZeroPad(t *testing.T) {
	h := NewHasher(1, 2)
	short := []byte("AB")
	padded := []byte("AB\x00\x00")
	if h.Hash(CurrentKey, short, 4) != h.Hash(CurrentKey, padded, 4) {
		t.Fatal("hashing a short buffer to length 4 must match hashing the zero-padded version")
	}
}

func TestHashIsZeroAndReal(t *testing.T) {
	var zero [HashSize]byte
	if !hashIsZero(zero) {
		t.Fatal("all-zero hash should report hashIsZero")
	}
	if hashIsReal(zero) {
		t.Fatal("all-zero hash should not report hashIsReal")
	}
	if hashIsReal(invalidHash) {
		t.Fatal("invalid sentinel should not report hashIsReal")
	}
	h := NewHasher(1, 2).Hash(CurrentKey, []byte("AAAA"), 4)
	if !hashIsReal(h) {
		t.Fatal("a real computed hash should report hashIsReal")
	}
}
