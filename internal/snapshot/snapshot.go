// Package snapshot implements the SMD state-snapshot model: the on-disk
// Files map, its per-file entries, and their JSON persistence format.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
)

// State is the lifecycle tag assigned to a FileEntry by the Scanner and
// consumed by the Reconciler.
type State string

// The four lifecycle states a FileEntry can carry.
const (
	StateUnchanged State = "Unchanged"
	StateCreated   State = "Created"
	StateEdited    State = "Edited"
	StateDeleted   State = "Deleted"
)

// HashSize is the fixed length of a FileEntry's content digest (SHA-1).
const HashSize = 20

// Hash is a fixed-size SHA-1 digest. It marshals as a JSON array of 20
// decimal byte values (Go's encoding/json has no base64 special-case for
// fixed-size byte arrays, only for slices), matching the wire schema in
// spec §3/§6 exactly.
type Hash [HashSize]byte

// FileEntry is the metadata record for one regular file.
//
// Invariant: Size is the byte length used when computing Hash. State is
// Unchanged iff the entry reflects a file whose (Mtime, Hash) match the
// persisted snapshot. A Deleted entry may refer to a path no longer present
// on disk.
type FileEntry struct {
	Mtime int64  `json:"mtime"` // whole seconds since the Unix epoch
	Size  uint64 `json:"size"`
	Hash  Hash   `json:"hash"`
	State State  `json:"state"`
}

// Files is a mapping from relative file path (POSIX-style, never absolute,
// never empty, no ".." components) to FileEntry. Serializes directly as a
// JSON object, matching spec §3's `{ "<path>": {...}, ... }` schema — no
// wrapper type is needed since Go maps marshal to JSON objects natively.
type Files map[string]FileEntry

// Clone returns a deep copy of f (FileEntry holds no pointers, so copying
// the map copies everything). The Scanner and Reconciler build fresh maps
// for their output and never mutate the maps passed in to them.
func (f Files) Clone() Files {
	out := make(Files, len(f))
	for path, entry := range f {
		out[path] = entry
	}

	return out
}

// filePermissions matches the persisted-state file's access mode: owner
// read/write only, since it names every path under the storage directory.
const filePermissions = 0o600

// Load reads a Files snapshot from path. A missing path, or a path that
// does not name a regular file, yields an empty snapshot — not an error.
// A present file that fails to parse as JSON is a fatal error for the
// caller.
func Load(path string) (Files, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Files{}, nil
		}

		return nil, fmt.Errorf("snapshot: stat %s: %w", path, err)
	}

	if !info.Mode().IsRegular() {
		return Files{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", path, err)
	}

	var files Files
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, fmt.Errorf("snapshot: parse %s: %w", path, err)
	}

	if files == nil {
		files = Files{}
	}

	return files, nil
}

// Store serializes snapshot to path, forcing every entry's State to
// Unchanged first (the ground-truth invariant: a persisted file with any
// other state is corruption). The write truncates the destination and MUST
// flush before returning success; atomicity is not required.
func Store(path string, snapshot Files) error {
	return StorePreserving(path, snapshot, nil)
}

// StorePreserving serializes snapshot to path like Store, except entries
// whose path is a key in preserve keep the State the caller already set on
// them instead of being forced to Unchanged. Used when a transfer phase left
// some paths incomplete (spec §9 Open Question 3): those must retry on the
// next scan, not be persisted as synced.
func StorePreserving(path string, snapshot Files, preserve map[string]bool) error {
	toWrite := make(Files, len(snapshot))

	for p, entry := range snapshot {
		if !preserve[p] {
			entry.State = StateUnchanged
		}

		toWrite[p] = entry
	}

	data, err := json.Marshal(toWrite)
	if err != nil {
		return fmt.Errorf("snapshot: marshal: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermissions)
	if err != nil {
		return fmt.Errorf("snapshot: open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", path, err)
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("snapshot: sync %s: %w", path, err)
	}

	return nil
}
