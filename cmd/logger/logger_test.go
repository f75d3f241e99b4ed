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

package logger

import "testing"

func TestLevelString(t *testing.T) {
	if Error.String() != "ERROR" {
		t.Fatalf("Error.String() = %q, want ERROR", Error.String())
	}
	if Fatal.String() != "FATAL" {
		t.Fatalf("Fatal.String() = %q, want FATAL", Fatal.String())
	}
	if Level(0).String() != "" {
		t.Fatalf("an unknown level should stringify to empty, got %q", Level(0).String())
	}
}

func TestLogIfNilErrorIsNoop(t *testing.T) {
	// Must not panic, must not touch os.Exit: passing a nil error is
	// the common case on every hot path that calls LogIf defensively.
	LogIf(nil, 0, 0)
}

func TestTrimTraceStripsConfiguredPrefixes(t *testing.T) {
	Init("")
	in := "github.com/minio/parisync/cmd/syncengine.go"
	out := trimTrace(in)
	if out == in {
		t.Fatal("trimTrace should strip the module's own import path prefix")
	}
}
