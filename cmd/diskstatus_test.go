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
	"path/filepath"
	"testing"
)

func TestGetArrayStatusCountsOfflineDisks(t *testing.T) {
	dir := t.TempDir()
	status := GetArrayStatus([]string{dir, filepath.Join(dir, "does-not-exist")})
	if status.OnlineDisks != 1 {
		t.Fatalf("OnlineDisks = %d, want 1", status.OnlineDisks)
	}
	if status.OfflineDisks != 1 {
		t.Fatalf("OfflineDisks = %d, want 1", status.OfflineDisks)
	}
}

func TestSortValidDiskStatusesDropsOffline(t *testing.T) {
	statuses := []DiskStatus{
		{Path: "a", Online: true, Free: 200},
		{Path: "b", Online: false},
		{Path: "c", Online: true, Free: 100},
	}
	valid := sortValidDiskStatuses(statuses)
	if len(valid) != 2 {
		t.Fatalf("len(valid) = %d, want 2", len(valid))
	}
	if valid[0].Path != "c" || valid[1].Path != "a" {
		t.Fatalf("valid disks not sorted ascending by free space: %+v", valid)
	}
}

func TestStatSelf(t *testing.T) {
	dir := t.TempDir()
	if !StatSelf(dir) {
		t.Fatal("an existing directory should report true")
	}
	if StatSelf(filepath.Join(dir, "nope")) {
		t.Fatal("a missing path should report false")
	}
}
