package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/stash/internal/model"
)

const messageColumns = `m.id, m.folder_id, m.text, m.date, m.edited,
	w.url, w.title, w.description, w.pending`

const messageFrom = `FROM messages m LEFT JOIN webpages w ON w.message_id = m.id`

// InsertMessage stores a new top-level message and its pending webpage, if
// any, and returns the assigned id.
func (db *DB) InsertMessage(folderID model.FolderID, text string, webpage *model.Webpage) (model.MessageID, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	res, err := tx.Exec(`INSERT INTO messages (folder_id, text, date) VALUES (?, ?, ?)`,
		folderID, text, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if webpage != nil {
		if err := putWebpage(tx, model.MessageID(id), webpage, now); err != nil {
			return 0, err
		}
	}
	return model.MessageID(id), tx.Commit()
}

// AddMedia stores a file as a media message grouped under parentID.
func (db *DB) AddMedia(parentID model.MessageID, name string, size int64) (model.MessageID, error) {
	res, err := db.Exec(`
		INSERT INTO messages (folder_id, parent_id, file_name, file_size, date)
		SELECT folder_id, id, ?, ?, ? FROM messages WHERE id = ? AND parent_id IS NULL`,
		name, size, time.Now().Unix(), parentID)
	if err != nil {
		return 0, fmt.Errorf("insert media: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("parent message %d: %w", parentID, ErrNotFound)
	}
	id, err := res.LastInsertId()
	return model.MessageID(id), err
}

// EditMessage replaces a message's text and webpage. It reports false when
// the text is unchanged, leaving the row alone.
func (db *DB) EditMessage(folderID model.FolderID, id model.MessageID, text string, webpage *model.Webpage) (bool, error) {
	tx, err := db.Begin()
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	err = tx.QueryRow(`SELECT text FROM messages WHERE id = ? AND folder_id = ? AND parent_id IS NULL`,
		id, folderID).Scan(&current)
	if err != nil {
		return false, notFound(err, "message")
	}
	if current == text {
		return false, nil
	}

	if _, err := tx.Exec(`UPDATE messages SET text = ?, edited = 1 WHERE id = ?`, text, id); err != nil {
		return false, fmt.Errorf("update message: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM webpages WHERE message_id = ?`, id); err != nil {
		return false, err
	}
	if webpage != nil {
		if err := putWebpage(tx, id, webpage, time.Now()); err != nil {
			return false, err
		}
	}
	return true, tx.Commit()
}

// DeleteMessages removes messages of a folder; media rows go with their
// parent. It returns how many of ids existed.
func (db *DB) DeleteMessages(folderID model.FolderID, ids []model.MessageID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q := `DELETE FROM messages WHERE folder_id = ? AND id IN (` + placeholders(len(ids)) + `)`
	args := append([]any{folderID}, idArgs(ids)...)
	res, err := db.Exec(q, args...)
	if err != nil {
		return 0, fmt.Errorf("delete messages: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// CopyMessage duplicates a top-level message, its media and its webpage into
// another folder and returns the copy's id.
func (db *DB) CopyMessage(id model.MessageID, to model.FolderID) (model.MessageID, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().Unix()
	res, err := tx.Exec(`
		INSERT INTO messages (folder_id, text, date, edited)
		SELECT ?, text, ?, edited FROM messages WHERE id = ? AND parent_id IS NULL`,
		to, now, id)
	if err != nil {
		return 0, fmt.Errorf("copy message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("message %d: %w", id, ErrNotFound)
	}
	newID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if _, err := tx.Exec(`
		INSERT INTO messages (folder_id, parent_id, file_name, file_size, date)
		SELECT ?, ?, file_name, file_size, ? FROM messages WHERE parent_id = ? ORDER BY id`,
		to, newID, now, id); err != nil {
		return 0, fmt.Errorf("copy media: %w", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO webpages (message_id, url, title, description, pending, created_at)
		SELECT ?, url, title, description, pending, created_at FROM webpages WHERE message_id = ?`,
		newID, id); err != nil {
		return 0, fmt.Errorf("copy webpage: %w", err)
	}
	return model.MessageID(newID), tx.Commit()
}

// GetMessage returns a top-level message with its media and webpage.
func (db *DB) GetMessage(folderID model.FolderID, id model.MessageID) (model.Message, error) {
	row := db.QueryRow(`SELECT `+messageColumns+` `+messageFrom+`
		WHERE m.id = ? AND m.folder_id = ? AND m.parent_id IS NULL`, id, folderID)
	m, err := scanMessage(row)
	if err != nil {
		return model.Message{}, notFound(err, "message")
	}
	msgs := []model.Message{m}
	if err := db.attachMedia(msgs); err != nil {
		return model.Message{}, err
	}
	return msgs[0], nil
}

// ListMessages returns up to limit top-level messages of a folder older than
// before (all when before is zero), newest first.
func (db *DB) ListMessages(folderID model.FolderID, before model.MessageID, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT ` + messageColumns + ` ` + messageFrom + `
		WHERE m.folder_id = ? AND m.parent_id IS NULL`
	args := []any{folderID}
	if before > 0 {
		q += ` AND m.id < ?`
		args = append(args, before)
	}
	q += ` ORDER BY m.id DESC LIMIT ?`
	args = append(args, limit)
	return db.queryMessages(q, args...)
}

// ListMessagesFrom returns every top-level message of a folder with an id at
// least oldest, newest first.
func (db *DB) ListMessagesFrom(folderID model.FolderID, oldest model.MessageID) ([]model.Message, error) {
	return db.queryMessages(`SELECT `+messageColumns+` `+messageFrom+`
		WHERE m.folder_id = ? AND m.parent_id IS NULL AND m.id >= ?
		ORDER BY m.id DESC`, folderID, oldest)
}

func (db *DB) queryMessages(q string, args ...any) ([]model.Message, error) {
	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := db.attachMedia(msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (db *DB) attachMedia(msgs []model.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]model.MessageID, len(msgs))
	index := make(map[model.MessageID]int, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
		index[m.ID] = i
	}

	rows, err := db.Query(`SELECT id, parent_id, file_name, file_size FROM messages
		WHERE parent_id IN (`+placeholders(len(ids))+`) ORDER BY id`, idArgs(ids)...)
	if err != nil {
		return fmt.Errorf("load media: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var md model.Media
		var parent model.MessageID
		if err := rows.Scan(&md.ID, &parent, &md.Name, &md.Size); err != nil {
			return err
		}
		i := index[parent]
		msgs[i].Media = append(msgs[i].Media, md)
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(s scanner) (model.Message, error) {
	var m model.Message
	var url, title, desc sql.NullString
	var pending sql.NullBool
	if err := s.Scan(&m.ID, &m.FolderID, &m.Text, &m.Date, &m.Edited, &url, &title, &desc, &pending); err != nil {
		return model.Message{}, err
	}
	if url.Valid {
		m.Webpage = &model.Webpage{
			URL:         url.String,
			Title:       title.String,
			Description: desc.String,
			Pending:     pending.Bool,
		}
	}
	return m, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func idArgs(ids []model.MessageID) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
