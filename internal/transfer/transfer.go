// Package transfer implements the SMD transfer unit and the chunked
// file reader/writer that stores received payloads to disk. Both are
// "external collaborators" by spec §1/§6 — in scope only by the contract
// the session state machine requires of them.
package transfer

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"smd/internal/snapshot"
)

// Unit is the (relative-path, file-entry, byte-buffer) triple exchanged as
// one Upload or Download payload. It is produced transiently by the sender
// and consumed by the receiver; it is never persisted as a unit.
type Unit struct {
	Filename string             `json:"filename"`
	File     snapshot.FileEntry `json:"file"`
	Data     []byte             `json:"data"`
}

// readBufferSize bounds the in-memory buffer used to stream a file's bytes
// into a Unit. Files are transferred whole (spec §1 Non-goals exclude
// delta/partial transfer), but reading is still done via io.Copy against a
// bounded intermediate buffer rather than os.ReadFile's single allocation
// convenience, matching the teacher's streaming download/upload helpers.
const readBufferSize = 64 * 1024

// Read builds a Unit from the raw bytes of storageDir/relPath. It fails if
// the file's length differs from entry.Size. The hash in entry is carried
// over as the Scanner set it; Read does not recompute it.
func Read(storageDir, relPath string, entry snapshot.FileEntry) (Unit, error) {
	full := filepath.Join(storageDir, relPath)

	f, err := os.Open(full)
	if err != nil {
		return Unit{}, fmt.Errorf("transfer: open %s: %w", relPath, err)
	}
	defer f.Close()

	var buf bytes.Buffer

	if _, err := io.CopyBuffer(&buf, f, make([]byte, readBufferSize)); err != nil {
		return Unit{}, fmt.Errorf("transfer: read %s: %w", relPath, err)
	}

	if uint64(buf.Len()) != entry.Size {
		return Unit{}, fmt.Errorf("transfer: %s: read %d bytes, expected %d", relPath, buf.Len(), entry.Size)
	}

	return Unit{Filename: relPath, File: entry, Data: buf.Bytes()}, nil
}

// storedFilePermissions is the mode applied to files written by Write.
const storedFilePermissions = 0o644

// storedDirPermissions is the mode applied to parent directories Write
// creates on demand.
const storedDirPermissions = 0o755

// Write stores u.Data to storageDir/u.Filename, creating parent
// directories as needed. u.Filename must already have been validated by the
// caller (membership in the relevant todo); Write itself does not
// re-validate placement beyond refusing to escape storageDir.
func Write(storageDir string, u Unit) error {
	full := filepath.Join(storageDir, u.Filename)

	rel, err := filepath.Rel(storageDir, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("transfer: refusing to write outside storage directory: %q", u.Filename)
	}

	if err := os.MkdirAll(filepath.Dir(full), storedDirPermissions); err != nil {
		return fmt.Errorf("transfer: creating parent directories for %s: %w", u.Filename, err)
	}

	f, err := os.OpenFile(full, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, storedFilePermissions)
	if err != nil {
		return fmt.Errorf("transfer: open %s for write: %w", u.Filename, err)
	}
	defer f.Close()

	if _, err := io.CopyBuffer(f, bytes.NewReader(u.Data), make([]byte, readBufferSize)); err != nil {
		return fmt.Errorf("transfer: write %s: %w", u.Filename, err)
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("transfer: sync %s: %w", u.Filename, err)
	}

	return nil
}

// Remove deletes storageDir/relPath, used by the Delete phase when the
// session state machine decides to actually unlink (spec §9 Open
// Question 2). Missing files are not an error.
func Remove(storageDir, relPath string) error {
	full := filepath.Join(storageDir, relPath)

	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("transfer: remove %s: %w", relPath, err)
	}

	return nil
}
