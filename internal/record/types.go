// Package record persists the results of environment delta computations.
package record

import (
	"time"

	"pyenvdelta/internal/delta"
	"pyenvdelta/internal/envsnap"
)

// Record is one stored computation.
type Record struct {
	ID           string           `msgpack:"id" json:"id"`                      // delta fingerprint
	Name         string           `msgpack:"name" json:"name"`                  // job name
	Version      string           `msgpack:"version" json:"version"`            // Python version
	InstallerURL string           `msgpack:"installer_url" json:"installerUrl"` // installer actually used
	Workspace    string           `msgpack:"workspace" json:"workspace"`
	Before       envsnap.Snapshot `msgpack:"before" json:"before"`
	After        envsnap.Snapshot `msgpack:"after" json:"after"`
	Delta        delta.Delta      `msgpack:"delta" json:"delta"`
	Timestamp    time.Time        `msgpack:"timestamp" json:"timestamp"`
}

// Summary is a lightweight view for listing records.
type Summary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	Variables int       `json:"variables"`
	Timestamp time.Time `json:"timestamp"`
}

// New builds a Record for a computed delta, identified by its fingerprint.
func New(name, version, installerURL, workspace string, before, after envsnap.Snapshot, d delta.Delta, now time.Time) Record {
	return Record{
		ID:           delta.Fingerprint(d),
		Name:         name,
		Version:      version,
		InstallerURL: installerURL,
		Workspace:    workspace,
		Before:       before,
		After:        after,
		Delta:        d,
		Timestamp:    now.UTC(),
	}
}

func (r Record) summary() Summary {
	return Summary{
		ID:        r.ID,
		Name:      r.Name,
		Version:   r.Version,
		Variables: len(r.Delta),
		Timestamp: r.Timestamp,
	}
}
