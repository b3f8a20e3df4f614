package store

import (
	"database/sql"
	"time"

	"github.com/matheus3301/stash/internal/model"
)

// PendingWebpage is a link preview waiting to be resolved.
type PendingWebpage struct {
	MessageID model.MessageID
	FolderID  model.FolderID
	URL       string
}

func putWebpage(tx *sql.Tx, id model.MessageID, wp *model.Webpage, now time.Time) error {
	_, err := tx.Exec(`
		INSERT INTO webpages (message_id, url, title, description, pending, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id) DO UPDATE SET
			url = excluded.url,
			title = excluded.title,
			description = excluded.description,
			pending = excluded.pending,
			created_at = excluded.created_at`,
		id, wp.URL, wp.Title, wp.Description, wp.Pending, now.UnixMilli())
	return err
}

// PendingWebpages returns the previews created before cutoff that are still
// pending, oldest first.
func (db *DB) PendingWebpages(cutoff time.Time, limit int) ([]PendingWebpage, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT w.message_id, m.folder_id, w.url
		FROM webpages w JOIN messages m ON m.id = w.message_id
		WHERE w.pending = 1 AND w.created_at <= ?
		ORDER BY w.created_at
		LIMIT ?`, cutoff.UnixMilli(), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []PendingWebpage
	for rows.Next() {
		var p PendingWebpage
		if err := rows.Scan(&p.MessageID, &p.FolderID, &p.URL); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ResolveWebpage fills in a preview and clears its pending flag.
func (db *DB) ResolveWebpage(id model.MessageID, title, description string) error {
	_, err := db.Exec(`UPDATE webpages SET title = ?, description = ?, pending = 0 WHERE message_id = ?`,
		title, description, id)
	return err
}
