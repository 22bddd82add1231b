// Package reconciler implements the SMD three-way reconciliation algorithm:
// given the server's and the client's annotated snapshots, it derives the
// two work lists — server_todo (files the server must fetch from the
// client) and client_todo (files the client must fetch from the server).
package reconciler

import (
	"io"
	"log/slog"

	"smd/internal/snapshot"
)

// Result is the pair of work lists produced by Reconcile.
type Result struct {
	ServerTodo snapshot.Files
	ClientTodo snapshot.Files
}

// Reconciler applies the tag-pair policy table (spec §4.4) to a pair of
// annotated snapshots. It holds no state of its own; Reconcile is pure
// given its two inputs (Testable Property 5: determinism).
type Reconciler struct {
	logger *slog.Logger
}

// New creates a Reconciler. A nil logger discards all output.
func New(logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Reconciler{logger: logger}
}

// Reconcile compares server and client, returning server_todo and
// client_todo. Every path in the union of both key sets is visited exactly
// once; for any given path, at most one of the two output snapshots
// contains it (Testable Property 6: exclusivity).
func (r *Reconciler) Reconcile(server, client snapshot.Files) Result {
	result := Result{
		ServerTodo: snapshot.Files{},
		ClientTodo: snapshot.Files{},
	}

	paths := unionKeys(server, client)

	for path := range paths {
		s, sOK := server[path]
		c, cOK := client[path]

		r.reconcilePath(path, s, sOK, c, cOK, &result)
	}

	r.logger.Debug("reconcile: complete",
		"paths", len(paths),
		"server_todo", len(result.ServerTodo),
		"client_todo", len(result.ClientTodo),
	)

	return result
}

// reconcilePath applies the decision table to a single path. s/c are only
// meaningful when sOK/cOK are true; an absent side is represented by "—" in
// spec §4.4's table.
func (r *Reconciler) reconcilePath(
	path string, s snapshot.FileEntry, sOK bool, c snapshot.FileEntry, cOK bool, result *Result,
) {
	switch {
	case sOK && cOK:
		r.reconcileBothPresent(path, s, c, result)
	case sOK && !cOK:
		// server present, client absent.
		if s.State != snapshot.StateUnchanged {
			result.ClientTodo[path] = s
		}
	case !sOK && cOK:
		// client present, server absent.
		if c.State != snapshot.StateUnchanged {
			result.ServerTodo[path] = c
		}
	default:
		// Neither side has the path: nothing to do.
	}
}

// reconcileBothPresent handles every (server tag, client tag) combination
// where both sides carry an entry for path.
func (r *Reconciler) reconcileBothPresent(path string, s, c snapshot.FileEntry, result *Result) {
	sUnchanged := s.State == snapshot.StateUnchanged
	cUnchanged := c.State == snapshot.StateUnchanged
	sDeleted := s.State == snapshot.StateDeleted
	cDeleted := c.State == snapshot.StateDeleted

	switch {
	case sUnchanged && cUnchanged:
		return

	case sUnchanged && !cUnchanged:
		result.ServerTodo[path] = c
		return

	case !sUnchanged && cUnchanged:
		result.ClientTodo[path] = s
		return

	case sDeleted && cDeleted:
		// Both sides already agree the file is gone: nothing to do.
		// (spec §9 Open Question 1.)
		return

	case sDeleted && !cDeleted:
		// Client still has live (Created/Edited) content; it wins over an
		// explicit server-side deletion — the server must fetch it back.
		// (spec §9 Open Question 1.)
		result.ServerTodo[path] = c
		return

	case !sDeleted && cDeleted:
		// Symmetric: server's live content wins over the client's deletion.
		result.ClientTodo[path] = s
		return

	default:
		// Both Created/Edited: compare hashes, tie-break on mtime, server wins ties.
		r.reconcileConflict(path, s, c, result)
	}
}

// reconcileConflict resolves the Created/Edited vs Created/Edited case:
// equal hashes mean no transfer is needed; otherwise the side with the
// greater mtime wins and is copied into the loser's todo, with ties going
// to the server.
func (r *Reconciler) reconcileConflict(path string, s, c snapshot.FileEntry, result *Result) {
	if s.Hash == c.Hash {
		return
	}

	if c.Mtime > s.Mtime {
		result.ServerTodo[path] = c
		r.logger.Debug("reconcile: conflict resolved in client's favor", "path", path)

		return
	}

	result.ClientTodo[path] = s
	r.logger.Debug("reconcile: conflict resolved in server's favor", "path", path)
}

// unionKeys returns the set of paths appearing in either snapshot.
func unionKeys(a, b snapshot.Files) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))

	for p := range a {
		out[p] = struct{}{}
	}

	for p := range b {
		out[p] = struct{}{}
	}

	return out
}
