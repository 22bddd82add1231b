// Package workspace implements the server-side user/workspace resolver:
// mapping a connection's advertised identity to an on-disk sync directory
// and initializing it.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// maxUsernameLength bounds usernames to a sane filesystem component length.
// Spec §9 Open Question 4 asks for stricter validation than "path parent
// exists"; this implementation adopts a concrete limit.
const maxUsernameLength = 255

// stateFileName is the per-user persisted snapshot, kept outside the
// storage tree per spec §4.3's recommendation.
const stateFileName = "smd_state.json"

// storageSubdir is the subdirectory within a user's sync directory holding
// the files actually being synchronized.
const storageSubdir = "storage"

// dirPermissions applies to both the sync directory and the storage
// subdirectory.
const dirPermissions = 0o700

// ErrInvalidUsername is returned by Validate when a username fails the
// resolver's contract.
var ErrInvalidUsername = errors.New("workspace: invalid username")

// Validate rejects usernames containing a path separator, equal to "." or
// "..", empty, non-ASCII, non-UTF-8, or longer than maxUsernameLength.
// Spec §4.5 additionally requires the Connect payload to be valid UTF-8 and
// ASCII-only; Validate enforces both the Connect contract and the
// resolver's own path-safety contract in one place.
func Validate(username string) error {
	if username == "" {
		return fmt.Errorf("%w: empty", ErrInvalidUsername)
	}

	if len(username) > maxUsernameLength {
		return fmt.Errorf("%w: exceeds %d bytes", ErrInvalidUsername, maxUsernameLength)
	}

	if username == "." || username == ".." {
		return fmt.Errorf("%w: reserved name %q", ErrInvalidUsername, username)
	}

	if strings.ContainsAny(username, "/\\") {
		return fmt.Errorf("%w: contains a path separator", ErrInvalidUsername)
	}

	for _, r := range username {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			return fmt.Errorf("%w: must be printable ASCII", ErrInvalidUsername)
		}
	}

	return nil
}

// Workspace is the resolved, initialized set of paths for one user's sync
// session, matching the "Session context" of spec §3.
type Workspace struct {
	Username         string
	SyncDirectory    string
	StorageDirectory string
	StateFilePath    string
}

// Resolve validates username and derives its Workspace under root,
// creating the sync and storage directories if either is absent.
func Resolve(root, username string) (Workspace, error) {
	if err := Validate(username); err != nil {
		return Workspace{}, err
	}

	syncDir := filepath.Join(root, username)
	storageDir := filepath.Join(syncDir, storageSubdir)

	if err := os.MkdirAll(storageDir, dirPermissions); err != nil {
		return Workspace{}, fmt.Errorf("workspace: initializing %s: %w", syncDir, err)
	}

	return Workspace{
		Username:         username,
		SyncDirectory:    syncDir,
		StorageDirectory: storageDir,
		StateFilePath:    filepath.Join(syncDir, stateFileName),
	}, nil
}

// ResolveClient derives a client-side Workspace from a user-chosen root
// directory (spec §6: "Client mirrors storage/<relative-file-path> under a
// user-chosen root"). Unlike Resolve, root itself is the sync directory —
// there is no per-username subdirectory, since a client only ever serves
// one local workspace. username still passes through Validate since it is
// used verbatim as the Connect payload.
func ResolveClient(root, username string) (Workspace, error) {
	if err := Validate(username); err != nil {
		return Workspace{}, err
	}

	storageDir := filepath.Join(root, storageSubdir)

	if err := os.MkdirAll(storageDir, dirPermissions); err != nil {
		return Workspace{}, fmt.Errorf("workspace: initializing %s: %w", root, err)
	}

	return Workspace{
		Username:         username,
		SyncDirectory:    root,
		StorageDirectory: storageDir,
		StateFilePath:    filepath.Join(root, stateFileName),
	}, nil
}
