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
	"encoding/binary"

	"github.com/minio/highwayhash"
)

// HashSize is the width of a block content hash, 128 bits.
const HashSize = 16

// HashKey selects which of the two keyed hash functions to use: the
// current key (post key-rotation) or the previous one. Blocks loaded
// with InfoEntry.Rehash set carry a hash computed under the previous
// key and must be re-verified and republished under the current key.
type HashKey uint8

// Hash key selectors.
const (
	CurrentKey HashKey = iota
	PreviousKey
)

// invalidHash is the sentinel meaning "no trustworthy hash is known
// for this block" (spec.md §3, CHG state). It is distinguished from
// the all-zero hash, which means "block was verified all-zeros".
var invalidHash = [HashSize]byte{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// Hasher computes a keyed content hash over a block buffer. Two keys
// (current, previous) and their seeds are configured once up front;
// key rotation invalidates replay because hashes computed under the
// old key will not match unless explicitly requested via PreviousKey.
type Hasher struct {
	currentKey  [32]byte
	previousKey [32]byte
	currentSeed uint64
	prevSeed    uint64
}

// NewHasher derives the two HighwayHash keys from the configured
// 64-bit seeds. HighwayHash requires a 32-byte key; the seed is
// expanded deterministically so that two runs with the same seed
// produce the same key, and different seeds never collide.
func NewHasher(hashSeed, prevHashSeed uint64) *Hasher {
	h := &Hasher{currentSeed: hashSeed, prevSeed: prevHashSeed}
	expandSeed(hashSeed, h.currentKey[:])
	expandSeed(prevHashSeed, h.previousKey[:])
	return h
}

func expandSeed(seed uint64, key []byte) {
	for i := 0; i < len(key); i += 8 {
		binary.LittleEndian.PutUint64(key[i:], seed)
		// Splitmix64-style avalanche so successive 8-byte lanes of
		// the key are not simple repeats of the seed.
		seed += 0x9e3779b97f4a7c15
		seed = (seed ^ (seed >> 30)) * 0xbf58476d1ce4e5b9
		seed = (seed ^ (seed >> 27)) * 0x94d049bb133111eb
		seed = seed ^ (seed >> 31)
	}
}

// Hash computes the keyed hash of buf[:length], zero-padding the
// logical block up to length if buf is shorter (the caller is
// expected to have already zero-filled short reads, but Hasher does
// not trust that and re-derives over the declared length).
func (h *Hasher) Hash(key HashKey, buf []byte, length int) [HashSize]byte {
	k := h.currentKey
	if key == PreviousKey {
		k = h.previousKey
	}
	hh, err := highwayhash.New128(k[:])
	if err != nil {
		// Only fails if the key is not 32 bytes, which cannot happen
		// here; treat as a programmer error.
		panic("hasher: invalid highwayhash key length: " + err.Error())
	}
	if length <= len(buf) {
		hh.Write(buf[:length])
	} else {
		hh.Write(buf)
		var pad [64]byte
		remaining := length - len(buf)
		for remaining > 0 {
			n := remaining
			if n > len(pad) {
				n = len(pad)
			}
			hh.Write(pad[:n])
			remaining -= n
		}
	}
	var out [HashSize]byte
	copy(out[:], hh.Sum(nil))
	return out
}

// hashIsZero reports whether h is the all-zeros hash (spec.md §3:
// CHG "was all-zeros").
func hashIsZero(h [HashSize]byte) bool {
	return h == [HashSize]byte{}
}

// hashIsReal reports whether h is neither zero nor the invalid
// sentinel — i.e. it is an actual carried content hash.
func hashIsReal(h [HashSize]byte) bool {
	return !hashIsZero(h) && h != invalidHash
}
