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
	"os"
	"sort"
	"syscall"
)

// DiskStatus is a snapshot of one configured data disk's availability,
// taken before a sync run starts. Unlike the teacher's DiskInfo (which
// describes an XL object-storage volume), a data disk here is just an
// independent filesystem root the array reads blocks from (spec.md
// §1: "data disks remain independent filesystems").
type DiskStatus struct {
	Path    string
	Online  bool
	Total   uint64
	Free    uint64
}

// byDiskFree sorts disk statuses ascending by free space, the same
// ordering the teacher's byDiskTotal gave getStorageInfo so the
// smallest disk is reported first.
type byDiskFree []DiskStatus

func (d byDiskFree) Len() int      { return len(d) }
func (d byDiskFree) Swap(i, j int) { d[i], d[j] = d[j], d[i] }
func (d byDiskFree) Less(i, j int) bool { return d[i].Free < d[j].Free }

// getDiskStatuses stats every configured data disk root. A disk whose
// root cannot be stat'd is reported offline rather than aborting the
// whole call, mirroring the teacher's getDisksInfo tolerance of a nil
// StorageAPI.
func getDiskStatuses(dataDisks []string) []DiskStatus {
	statuses := make([]DiskStatus, len(dataDisks))
	for i, path := range dataDisks {
		statuses[i] = DiskStatus{Path: path}
		if path == "" {
			continue
		}
		var st syscall.Statfs_t
		if err := syscall.Statfs(path, &st); err != nil {
			continue
		}
		statuses[i].Online = true
		statuses[i].Total = uint64(st.Blocks) * uint64(st.Bsize)
		statuses[i].Free = uint64(st.Bfree) * uint64(st.Bsize)
	}
	return statuses
}

// sortValidDiskStatuses drops offline disks and returns the rest
// sorted by ascending free space, the way the teacher's
// sortValidDisksInfo filtered zero-total entries before sorting.
func sortValidDiskStatuses(statuses []DiskStatus) []DiskStatus {
	var valid []DiskStatus
	for _, s := range statuses {
		if !s.Online {
			continue
		}
		valid = append(valid, s)
	}
	sort.Sort(byDiskFree(valid))
	return valid
}

// ArrayStatus aggregates online/offline counts across all configured
// data disks, the sync-core analogue of the teacher's StorageInfo.
type ArrayStatus struct {
	OnlineDisks  int
	OfflineDisks int
	MinFreeBytes uint64
}

// GetArrayStatus reports disk availability for dataDisks, for the
// caller to decide whether to proceed with Sync at all (an offline
// data disk will surface as file_error for every block it owns, but
// failing fast here gives a clearer diagnostic than letting it run).
func GetArrayStatus(dataDisks []string) ArrayStatus {
	statuses := getDiskStatuses(dataDisks)
	valid := sortValidDiskStatuses(statuses)

	var status ArrayStatus
	for _, s := range statuses {
		if s.Online {
			status.OnlineDisks++
		} else {
			status.OfflineDisks++
		}
	}
	if len(valid) > 0 {
		status.MinFreeBytes = valid[0].Free
	}
	return status
}

// StatSelf reports whether path exists and is a directory, used to
// validate a configured data-disk root before it is ever opened for a
// block read.
func StatSelf(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
