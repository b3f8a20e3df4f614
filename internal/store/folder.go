package store

import "github.com/matheus3301/stash/internal/model"

// Folders returns every folder in display order.
func (db *DB) Folders() ([]model.Folder, error) {
	rows, err := db.Query(`SELECT id, title, category FROM folders ORDER BY position, id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	folders := []model.Folder{}
	for rows.Next() {
		var f model.Folder
		if err := rows.Scan(&f.ID, &f.Title, &f.Category); err != nil {
			return nil, err
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

// Folder returns one folder.
func (db *DB) Folder(id model.FolderID) (model.Folder, error) {
	var f model.Folder
	err := db.QueryRow(`SELECT id, title, category FROM folders WHERE id = ?`, id).
		Scan(&f.ID, &f.Title, &f.Category)
	if err != nil {
		return model.Folder{}, notFound(err, "folder")
	}
	return f, nil
}

// UpsertFolder inserts or updates a folder (idempotent on id).
func (db *DB) UpsertFolder(f model.Folder, position int) error {
	_, err := db.Exec(`
		INSERT INTO folders (id, title, category, position) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			category = excluded.category,
			position = excluded.position`,
		f.ID, f.Title, f.Category, position)
	return err
}
