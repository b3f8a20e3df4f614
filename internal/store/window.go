package store

import "github.com/matheus3301/stash/internal/model"

// ExtendWindow records that the client has loaded a folder down to oldest.
// Zero means the whole folder. The window only grows.
func (db *DB) ExtendWindow(folderID model.FolderID, oldest model.MessageID) error {
	_, err := db.Exec(`
		INSERT INTO loaded_windows (folder_id, oldest_id) VALUES (?, ?)
		ON CONFLICT(folder_id) DO UPDATE SET oldest_id = MIN(oldest_id, excluded.oldest_id)`,
		folderID, oldest)
	return err
}

// Windows returns the loaded window of every opened folder.
func (db *DB) Windows() (map[model.FolderID]model.MessageID, error) {
	rows, err := db.Query(`SELECT folder_id, oldest_id FROM loaded_windows`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[model.FolderID]model.MessageID)
	for rows.Next() {
		var f model.FolderID
		var oldest model.MessageID
		if err := rows.Scan(&f, &oldest); err != nil {
			return nil, err
		}
		out[f] = oldest
	}
	return out, rows.Err()
}

// ResetWindows forgets every loaded window, as when a client signs out.
func (db *DB) ResetWindows() error {
	_, err := db.Exec(`DELETE FROM loaded_windows`)
	return err
}
