package store

import (
	"strings"

	"github.com/matheus3301/stash/internal/model"
)

// SearchMessages finds top-level messages of a folder whose text contains
// query, case-insensitively, newest first. Zero folderID searches every
// folder.
func (db *DB) SearchMessages(query string, folderID model.FolderID, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + messageColumns + ` ` + messageFrom + `
		WHERE m.parent_id IS NULL AND m.text LIKE ? ESCAPE '\'`
	args := []any{"%" + escapeLike(query) + "%"}
	if folderID != 0 {
		q += ` AND m.folder_id = ?`
		args = append(args, folderID)
	}
	q += ` ORDER BY m.id DESC LIMIT ?`
	args = append(args, limit)
	return db.queryMessages(q, args...)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
