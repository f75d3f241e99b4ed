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

	"github.com/klauspost/reedsolomon"
)

// RaidCodec wraps a Reed-Solomon encoder sized for D data strips and L
// parity strips (spec.md §4.5). A codec is immutable once built and
// safe to reuse across every offset of a run.
type RaidCodec struct {
	enc reedsolomon.Encoder
	d   int
	l   int
}

// NewRaidCodec builds a codec for d data disks and l parity levels.
// l == 1 is a pure XOR parity (WithFastOneParityMatrix makes
// reedsolomon use a plain XOR row for a single parity shard).
func NewRaidCodec(d, l int) (*RaidCodec, error) {
	if d <= 0 || l <= 0 {
		return nil, errors.New("raidcodec: d and l must be positive")
	}
	enc, err := reedsolomon.New(d, l, reedsolomon.WithFastOneParityMatrix())
	if err != nil {
		return nil, newSyncError(KindFatal, 0, -1, err)
	}
	return &RaidCodec{enc: enc, d: d, l: l}, nil
}

// Gen recomputes all L parity strips from the D data strips in
// strips[0:D]; results are written into strips[D:D+L] in place
// (spec.md §4.5 gen).
func (c *RaidCodec) Gen(strips [][]byte) error {
	if len(strips) != c.d+c.l {
		return newSyncError(KindFatal, 0, -1, errors.New("raidcodec: strip count mismatch"))
	}
	if err := c.enc.Encode(strips); err != nil {
		return newSyncError(KindFatal, 0, -1, err)
	}
	return nil
}

// Rec reconstructs the data strips listed in failedMap (indices into
// [0, D)) using the surviving data and all parity strips, assuming
// parity is correct. strips is mutated in place: the original content
// of a failed entry is overwritten with the reconstructed strip
// (spec.md §4.5 rec — callers that need the pre-rec buffer must save
// a copy themselves, per spec.md §4.7 recovery phase step 2).
func (c *RaidCodec) Rec(strips [][]byte, failedMap []int) error {
	if len(strips) != c.d+c.l {
		return newSyncError(KindFatal, 0, -1, errors.New("raidcodec: strip count mismatch"))
	}
	if len(failedMap) > c.l {
		return newSyncError(KindFatal, 0, -1, errors.New("raidcodec: more failed strips than parity levels"))
	}
	present := make([]bool, len(strips))
	for i, s := range strips {
		present[i] = s != nil
	}
	for _, idx := range failedMap {
		present[idx] = false
		// reedsolomon.Reconstruct requires the slot itself to be nil
		// or zero-length to know it must rebuild it.
		strips[idx] = nil
	}
	if err := c.enc.ReconstructData(strips); err != nil {
		return newSyncError(KindFatal, 0, -1, err)
	}
	return nil
}

// DataShards and ParityShards expose D and L for callers sizing
// buffer sets (spec.md §5 "Buffer set: 2·D + L + 1").
func (c *RaidCodec) DataShards() int   { return c.d }
func (c *RaidCodec) ParityShards() int { return c.l }
