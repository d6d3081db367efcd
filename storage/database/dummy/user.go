package dummydb

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/eduva/eduva/core/user"
)

type (
	// store implements user.Store on one set of tables. Callers hold db.mu.
	// tx is nil outside a transaction.
	store struct {
		db *DB
		t  *tables
		tx *txState
	}

	// txState mimics postgres: after a failed statement every statement fails
	// until the transaction ends or rolls back to a savepoint.
	txState struct {
		aborted    error
		savepoints map[string]*tables
	}

	credentialRepository struct {
		db *DB
	}

	credentialTx struct {
		store
		done bool
	}
)

// ErrTxAborted is returned by statements and Commit of a transaction after a failed statement.
var ErrTxAborted = errors.New("dummydb: current transaction is aborted, commands ignored until end of transaction block")

var (
	_ user.Repository = (*credentialRepository)(nil) // interface compliance check
	_ user.Tx         = (*credentialTx)(nil)
)

func NewCredentialRepository(db *DB) user.Repository {
	return &credentialRepository{db: db}
}

func (s store) usable() error {
	if s.tx != nil && s.tx.aborted != nil {
		return ErrTxAborted
	}
	return nil
}

func (s store) fail(err error) error {
	if s.tx != nil {
		s.tx.aborted = err
	}
	return err
}

func (s store) GetAccountByEmail(_ context.Context, email string) (user.Account, error) {
	if err := s.usable(); err != nil {
		return user.Account{}, err
	}
	for _, acc := range s.t.accounts {
		if acc.Email == email {
			return acc, nil
		}
	}
	return user.Account{}, user.ErrAccountNotFound
}

func (s store) GetAccount(_ context.Context, accountID int, _ bool) (user.Account, error) {
	if err := s.usable(); err != nil {
		return user.Account{}, err
	}
	acc, ok := s.t.accounts[accountID]
	if !ok {
		return user.Account{}, user.ErrAccountNotFound
	}
	return acc, nil
}

func (s store) AccountDigest(_ context.Context, accountID int, _ bool) (string, error) {
	if err := s.usable(); err != nil {
		return "", err
	}
	acc, ok := s.t.accounts[accountID]
	if !ok {
		return "", user.ErrAccountNotFound
	}
	return acc.PasswordDigest, nil
}

func (s store) GetProfile(_ context.Context, accountID int, role user.Role) (user.RoleProfile, error) {
	_ = role.ProfileTable()
	if err := s.usable(); err != nil {
		return nil, err
	}
	prof, ok := s.t.profiles[role][accountID]
	if !ok {
		return nil, user.ErrProfileNotFound
	}
	return prof, nil
}

func (s store) ProfileDigest(ctx context.Context, accountID int, role user.Role, _ bool) (string, error) {
	prof, err := s.GetProfile(ctx, accountID, role)
	if err != nil {
		return "", err
	}
	return prof.Base().PasswordDigest, nil
}

func (s store) UpdateAccountDigest(_ context.Context, accountID int, digest string) error {
	if err := s.usable(); err != nil {
		return err
	}
	s.db.writes = append(s.db.writes, fmt.Sprintf("users:%d", accountID))
	acc, ok := s.t.accounts[accountID]
	if !ok {
		return user.ErrAccountNotFound
	}
	acc.PasswordDigest = digest
	s.t.accounts[accountID] = acc
	return nil
}

func (s store) UpdateProfileDigest(_ context.Context, accountID int, role user.Role, digest string) error {
	if err := s.usable(); err != nil {
		return err
	}
	s.db.writes = append(s.db.writes, fmt.Sprintf("%s:%d", role.ProfileTable(), accountID))
	if err := s.db.profileWriteErrs[role]; err != nil {
		return s.fail(err)
	}
	prof, ok := s.t.profiles[role][accountID]
	if !ok {
		return user.ErrProfileNotFound
	}
	s.t.profiles[role][accountID] = withDigest(prof, digest, s.db.now())
	return nil
}

func (s store) ListCredentials(_ context.Context) ([]user.CredentialRow, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}
	rows := make([]user.CredentialRow, 0, len(s.t.accounts))
	for _, acc := range s.t.accounts {
		row := user.CredentialRow{
			AccountID:     acc.ID,
			Email:         acc.Email,
			Role:          acc.Role,
			AccountDigest: acc.PasswordDigest,
		}
		if prof, ok := s.t.profiles[acc.Role][acc.ID]; ok {
			row.ProfileDigest.SetValid(prof.Base().PasswordDigest)
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].AccountID < rows[j].AccountID })
	return rows, nil
}

func withDigest(prof user.RoleProfile, digest string, now time.Time) user.RoleProfile {
	switch p := prof.(type) {
	case user.StudentProfile:
		p.PasswordDigest, p.UpdatedAt = digest, now
		return p
	case user.TeacherProfile:
		p.PasswordDigest, p.UpdatedAt = digest, now
		return p
	case user.AdminProfile:
		p.PasswordDigest, p.UpdatedAt = digest, now
		return p
	}
	panic(fmt.Sprintf("dummydb: unsupported profile type %T", prof))
}

func withBase(prof user.RoleProfile, base user.ProfileBase) user.RoleProfile {
	switch p := prof.(type) {
	case user.StudentProfile:
		p.ProfileBase = base
		if p.AccessApproved == "" {
			p.AccessApproved = user.NotApproved
		}
		return p
	case user.TeacherProfile:
		p.ProfileBase = base
		return p
	case user.AdminProfile:
		p.ProfileBase = base
		return p
	}
	panic(fmt.Sprintf("dummydb: unsupported profile type %T", prof))
}

// Repository: single statements on the committed tables

func (repo *credentialRepository) locked(fn func(s store) error) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	return fn(store{db: repo.db, t: repo.db.tables})
}

func (repo *credentialRepository) GetAccountByEmail(ctx context.Context, email string) (acc user.Account, err error) {
	err = repo.locked(func(s store) error {
		acc, err = s.GetAccountByEmail(ctx, email)
		return err
	})
	return acc, err
}

func (repo *credentialRepository) GetAccount(ctx context.Context, accountID int, lock bool) (acc user.Account, err error) {
	err = repo.locked(func(s store) error {
		acc, err = s.GetAccount(ctx, accountID, lock)
		return err
	})
	return acc, err
}

func (repo *credentialRepository) AccountDigest(ctx context.Context, accountID int, lock bool) (digest string, err error) {
	err = repo.locked(func(s store) error {
		digest, err = s.AccountDigest(ctx, accountID, lock)
		return err
	})
	return digest, err
}

func (repo *credentialRepository) GetProfile(ctx context.Context, accountID int, role user.Role) (prof user.RoleProfile, err error) {
	err = repo.locked(func(s store) error {
		prof, err = s.GetProfile(ctx, accountID, role)
		return err
	})
	return prof, err
}

func (repo *credentialRepository) ProfileDigest(ctx context.Context, accountID int, role user.Role, lock bool) (digest string, err error) {
	err = repo.locked(func(s store) error {
		digest, err = s.ProfileDigest(ctx, accountID, role, lock)
		return err
	})
	return digest, err
}

func (repo *credentialRepository) UpdateAccountDigest(ctx context.Context, accountID int, digest string) error {
	return repo.locked(func(s store) error { return s.UpdateAccountDigest(ctx, accountID, digest) })
}

func (repo *credentialRepository) UpdateProfileDigest(ctx context.Context, accountID int, role user.Role, digest string) error {
	return repo.locked(func(s store) error { return s.UpdateProfileDigest(ctx, accountID, role, digest) })
}

func (repo *credentialRepository) ListCredentials(ctx context.Context) (rows []user.CredentialRow, err error) {
	err = repo.locked(func(s store) error {
		rows, err = s.ListCredentials(ctx)
		return err
	})
	return rows, err
}

func (repo *credentialRepository) CreateAccount(_ context.Context, acc user.Account, prof user.RoleProfile) (user.Account, error) {
	if prof != nil && prof.Role() != acc.Role {
		return user.Account{}, errors.Errorf("profile role %q does not match account role %q", prof.Role(), acc.Role)
	}
	err := repo.locked(func(s store) error {
		for _, a := range s.t.accounts {
			if a.Email == acc.Email {
				return errors.Errorf("email %q already exists", acc.Email)
			}
		}
		if acc.ID == 0 {
			repo.db.pkCount++
			for s.t.accounts[repo.db.pkCount].ID != 0 {
				repo.db.pkCount++
			}
			acc.ID = repo.db.pkCount
		} else if _, ok := s.t.accounts[acc.ID]; ok {
			return errors.Errorf("account %d already exists", acc.ID)
		}
		if acc.CreatedAt.IsZero() {
			acc.CreatedAt = repo.db.now()
		}
		s.t.accounts[acc.ID] = acc

		if prof != nil {
			base := prof.Base()
			base.UserID = acc.ID
			base.ID = len(s.t.profiles[acc.Role]) + 1
			if base.UpdatedAt.IsZero() {
				base.UpdatedAt = repo.db.now()
			}
			s.t.profiles[acc.Role][acc.ID] = withBase(prof, base)
		}
		return nil
	})
	if err != nil {
		return user.Account{}, err
	}
	return acc, nil
}

// Begin locks the DB until the returned Tx is committed or rolled back.
func (repo *credentialRepository) Begin(ctx context.Context) (user.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo.db.mu.Lock()
	return &credentialTx{store: store{
		db: repo.db,
		t:  repo.db.tables.clone(),
		tx: &txState{savepoints: make(map[string]*tables)},
	}}, nil
}

func (tx *credentialTx) Savepoint(_ context.Context, name string) error {
	if tx.done {
		return sql.ErrTxDone
	}
	if err := tx.usable(); err != nil {
		return err
	}
	tx.tx.savepoints[name] = tx.t.clone()
	return nil
}

func (tx *credentialTx) RollbackTo(_ context.Context, name string) error {
	if tx.done {
		return sql.ErrTxDone
	}
	sp, ok := tx.tx.savepoints[name]
	if !ok {
		return errors.Errorf("dummydb: savepoint %q does not exist", name)
	}
	*tx.t = *sp.clone() // the store shares tx.t
	tx.tx.aborted = nil
	return nil
}

func (tx *credentialTx) Commit() error {
	if tx.done {
		return sql.ErrTxDone
	}
	tx.done = true
	defer tx.db.mu.Unlock()

	if tx.tx.aborted != nil {
		return ErrTxAborted
	}
	if tx.db.commitErr != nil {
		return tx.db.commitErr
	}
	tx.db.tables = tx.t
	return nil
}

func (tx *credentialTx) Rollback() error {
	if tx.done {
		return sql.ErrTxDone
	}
	tx.done = true
	tx.db.mu.Unlock()
	return nil
}
