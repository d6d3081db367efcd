package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/eduva/eduva/core"
	"github.com/eduva/eduva/core/user"
)

type (
	// credentialStore runs the credential queries on a pool or a transaction.
	credentialStore struct {
		exec core.DBExecutor
	}

	credentialRepository struct {
		credentialStore
		db *sqlx.DB
	}

	credentialTx struct {
		credentialStore
		tx *sqlx.Tx
	}
)

var (
	_ user.Repository = (*credentialRepository)(nil) // interface compliance check
	_ user.Tx         = (*credentialTx)(nil)
)

func NewCredentialRepository(db *sqlx.DB) user.Repository {
	return &credentialRepository{
		credentialStore: credentialStore{exec: db},
		db:              db,
	}
}

func (repo *credentialRepository) Begin(ctx context.Context) (user.Tx, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "beginning transaction")
	}
	return &credentialTx{credentialStore: credentialStore{exec: tx}, tx: tx}, nil
}

func (t *credentialTx) Commit() error   { return t.tx.Commit() }
func (t *credentialTx) Rollback() error { return t.tx.Rollback() }

// Savepoint and RollbackTo use the syntax shared by postgres, mysql and sqlite.
func (t *credentialTx) Savepoint(ctx context.Context, name string) error {
	_, err := t.tx.ExecContext(ctx, `SAVEPOINT `+name)
	return errors.Wrapf(err, "creating savepoint %s", name)
}

func (t *credentialTx) RollbackTo(ctx context.Context, name string) error {
	_, err := t.tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT `+name)
	return errors.Wrapf(err, "rolling back to savepoint %s", name)
}

// trapNoRowsErr maps sql.ErrNoRows to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func (st credentialStore) lockClause() string {
	if st.exec.DriverName() == "sqlite3" {
		return "" // sqlite locks the whole database for writers
	}
	return " FOR UPDATE"
}

func (st credentialStore) GetAccountByEmail(ctx context.Context, email string) (user.Account, error) {
	var acc user.Account
	q := st.exec.Rebind(`SELECT id, email, name, role, password, created_at FROM users WHERE email = ?`)
	if err := st.exec.GetContext(ctx, &acc, q, email); err != nil {
		return user.Account{}, trapNoRowsErr(err, user.ErrAccountNotFound, "finding account by email")
	}
	acc.CreatedAt = acc.CreatedAt.UTC()
	return acc, nil
}

func (st credentialStore) GetAccount(ctx context.Context, accountID int, lock bool) (user.Account, error) {
	q := `SELECT id, email, name, role, password, created_at FROM users WHERE id = ?`
	if lock {
		q += st.lockClause()
	}
	var acc user.Account
	if err := st.exec.GetContext(ctx, &acc, st.exec.Rebind(q), accountID); err != nil {
		return user.Account{}, trapNoRowsErr(err, user.ErrAccountNotFound, "finding account")
	}
	acc.CreatedAt = acc.CreatedAt.UTC()
	return acc, nil
}

func (st credentialStore) AccountDigest(ctx context.Context, accountID int, lock bool) (string, error) {
	q := `SELECT password FROM users WHERE id = ?`
	if lock {
		q += st.lockClause()
	}
	var digest string
	if err := st.exec.GetContext(ctx, &digest, st.exec.Rebind(q), accountID); err != nil {
		return "", trapNoRowsErr(err, user.ErrAccountNotFound, "reading account digest")
	}
	return digest, nil
}

func (st credentialStore) GetProfile(ctx context.Context, accountID int, role user.Role) (user.RoleProfile, error) {
	const base = `id, user_id, name, password, updated_at`
	var (
		prof user.RoleProfile
		err  error
	)
	switch role {
	case user.RoleStudent:
		var p user.StudentProfile
		err = st.exec.GetContext(ctx, &p, st.exec.Rebind(
			`SELECT `+base+`, class, major, access_approved FROM siswa WHERE user_id = ?`), accountID)
		p.UpdatedAt = p.UpdatedAt.UTC()
		prof = p
	case user.RoleTeacher:
		var p user.TeacherProfile
		err = st.exec.GetContext(ctx, &p, st.exec.Rebind(
			`SELECT `+base+`, nip, subject FROM guru WHERE user_id = ?`), accountID)
		p.UpdatedAt = p.UpdatedAt.UTC()
		prof = p
	case user.RoleAdmin:
		var p user.AdminProfile
		err = st.exec.GetContext(ctx, &p, st.exec.Rebind(
			`SELECT `+base+` FROM admin WHERE user_id = ?`), accountID)
		p.UpdatedAt = p.UpdatedAt.UTC()
		prof = p
	default:
		_ = role.ProfileTable() // panics
	}
	if err != nil {
		return nil, trapNoRowsErr(err, user.ErrProfileNotFound, "finding role profile")
	}
	return prof, nil
}

func (st credentialStore) ProfileDigest(ctx context.Context, accountID int, role user.Role, lock bool) (string, error) {
	q := `SELECT password FROM ` + role.ProfileTable() + ` WHERE user_id = ?`
	if lock {
		q += st.lockClause() // a locking read sees rows committed after the snapshot
	}
	var digest string
	if err := st.exec.GetContext(ctx, &digest, st.exec.Rebind(q), accountID); err != nil {
		return "", trapNoRowsErr(err, user.ErrProfileNotFound, "reading profile digest")
	}
	return digest, nil
}

func (st credentialStore) UpdateAccountDigest(ctx context.Context, accountID int, digest string) error {
	res, err := st.exec.ExecContext(ctx, st.exec.Rebind(`UPDATE users SET password = ? WHERE id = ?`), digest, accountID)
	if err != nil {
		return errors.Wrap(err, "updating account digest")
	}
	return checkAffected(res, user.ErrAccountNotFound)
}

func (st credentialStore) UpdateProfileDigest(ctx context.Context, accountID int, role user.Role, digest string) error {
	q := st.exec.Rebind(`UPDATE ` + role.ProfileTable() + ` SET password = ?, updated_at = ? WHERE user_id = ?`)
	res, err := st.exec.ExecContext(ctx, q, digest, time.Now().UTC(), accountID)
	if err != nil {
		return errors.Wrap(err, "updating profile digest")
	}
	return checkAffected(res, user.ErrProfileNotFound)
}

func checkAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "reading rows affected")
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func (st credentialStore) ListCredentials(ctx context.Context) ([]user.CredentialRow, error) {
	q := `
		SELECT u.id, u.email, u.role, u.password,
			CASE u.role
				WHEN 'student' THEN s.password
				WHEN 'teacher' THEN g.password
				WHEN 'admin' THEN a.password
			END AS profile_password
		FROM users u
			LEFT JOIN siswa s ON s.user_id = u.id
			LEFT JOIN guru g ON g.user_id = u.id
			LEFT JOIN admin a ON a.user_id = u.id
		ORDER BY u.id`
	rows := make([]user.CredentialRow, 0)
	if err := st.exec.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "listing credentials")
	}
	return rows, nil
}

func (repo *credentialRepository) CreateAccount(ctx context.Context, acc user.Account, prof user.RoleProfile) (user.Account, error) {
	if prof != nil && prof.Role() != acc.Role {
		return user.Account{}, errors.Errorf("profile role %q does not match account role %q", prof.Role(), acc.Role)
	}
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now().UTC()
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return user.Account{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if acc.ID, err = insertAccount(ctx, tx, acc); err != nil {
		return user.Account{}, err
	}
	if prof != nil {
		if err = insertProfile(ctx, tx, acc.ID, prof); err != nil {
			return user.Account{}, err
		}
	}
	if err = tx.Commit(); err != nil {
		return user.Account{}, errors.Wrap(err, "committing account")
	}
	return acc, nil
}

func insertAccount(ctx context.Context, tx *sqlx.Tx, acc user.Account) (int, error) {
	cols := `(email, name, role, password, created_at) VALUES (?, ?, ?, ?, ?)`
	args := []interface{}{acc.Email, acc.Name, acc.Role, acc.PasswordDigest, acc.CreatedAt}
	if acc.ID != 0 { // fixtures may pin ids
		cols = `(id, email, name, role, password, created_at) VALUES (?, ?, ?, ?, ?, ?)`
		args = append([]interface{}{acc.ID}, args...)
	}

	if tx.DriverName() == "mysql" {
		res, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO users `+cols), args...)
		if err != nil {
			return 0, errors.Wrap(err, "inserting account")
		}
		id, err := res.LastInsertId()
		return int(id), errors.Wrap(err, "reading account id")
	}

	var id int
	if err := tx.GetContext(ctx, &id, tx.Rebind(`INSERT INTO users `+cols+` RETURNING id`), args...); err != nil {
		return 0, errors.Wrap(err, "inserting account")
	}
	if acc.ID != 0 && tx.DriverName() == "postgres" {
		// keep the serial ahead of pinned ids
		if _, err := tx.ExecContext(ctx, `SELECT setval('users_id_seq', GREATEST((SELECT MAX(id) FROM users), 1))`); err != nil {
			return 0, errors.Wrap(err, "resetting account sequence")
		}
	}
	return id, nil
}

func insertProfile(ctx context.Context, tx *sqlx.Tx, accountID int, prof user.RoleProfile) error {
	b := prof.Base()
	updatedAt := b.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	var (
		q    string
		args = []interface{}{accountID, b.Name, b.PasswordDigest, updatedAt}
	)
	switch p := prof.(type) {
	case user.StudentProfile:
		approved := p.AccessApproved
		if approved == "" {
			approved = user.NotApproved
		}
		q = `INSERT INTO siswa (user_id, name, password, updated_at, class, major, access_approved) VALUES (?, ?, ?, ?, ?, ?, ?)`
		args = append(args, p.Class, p.Major, approved)
	case user.TeacherProfile:
		q = `INSERT INTO guru (user_id, name, password, updated_at, nip, subject) VALUES (?, ?, ?, ?, ?, ?)`
		args = append(args, p.NIP, p.Subject)
	case user.AdminProfile:
		q = `INSERT INTO admin (user_id, name, password, updated_at) VALUES (?, ?, ?, ?)`
	default:
		return errors.Errorf("unsupported profile type %T", prof)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "inserting role profile")
	}
	return nil
}
