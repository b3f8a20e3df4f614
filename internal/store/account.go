package store

import "github.com/matheus3301/stash/internal/model"

// Account returns the single backend account and whether its credentials
// have been revoked.
func (db *DB) Account() (model.User, bool, error) {
	var u model.User
	var revoked bool
	err := db.QueryRow(`SELECT id, name, revoked FROM account LIMIT 1`).Scan(&u.ID, &u.Name, &revoked)
	if err != nil {
		return model.User{}, false, notFound(err, "account")
	}
	return u, revoked, nil
}

// SetRevoked revokes or restores the account's credentials.
func (db *DB) SetRevoked(revoked bool) error {
	_, err := db.Exec(`UPDATE account SET revoked = ?`, revoked)
	return err
}

// RenameAccount sets the account's display name.
func (db *DB) RenameAccount(name string) error {
	_, err := db.Exec(`UPDATE account SET name = ?`, name)
	return err
}
