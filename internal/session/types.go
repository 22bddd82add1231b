// Package session implements the SMD session state machine shared by the
// server and client drivers: Connect, Update, Delete, Upload, Download,
// Disconnect, executed in that fixed order over one TCP connection.
package session

import "smd/internal/snapshot"

// UpdateAnswer is the server's single response to a client's
// UpdateRequest, carrying both work lists the Reconciler produced.
type UpdateAnswer struct {
	ServerTodo snapshot.Files `json:"server_todo"`
	ClientTodo snapshot.Files `json:"client_todo"`
}

// Stats totals one session's transfer activity, surfaced to the ledger and
// to the CLI's summary line.
type Stats struct {
	BytesUploaded   int64
	BytesDownloaded int64
	FilesUploaded   int
	FilesDownloaded int
}
