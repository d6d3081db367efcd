package dummydb

import (
	"sync"
	"time"

	"github.com/eduva/eduva/core/user"
)

type (
	// DB is an in-memory credential store. A transaction holds the DB lock until it ends,
	// works on a copy of the tables and swaps it in on Commit.
	DB struct {
		mu      sync.Mutex
		tables  *tables
		pkCount int
		now     func() time.Time

		// fault injection
		profileWriteErrs map[user.Role]error
		commitErr        error

		writes []string // "table:user_id" of every attempted digest write
	}

	tables struct {
		accounts map[int]user.Account
		profiles map[user.Role]map[int]user.RoleProfile // {role: {user_id: profile}}
	}
)

func Open() (*DB, error) {
	db := &DB{
		tables:           newTables(),
		now:              func() time.Time { return time.Now().UTC() },
		profileWriteErrs: make(map[user.Role]error),
	}
	return db, nil
}

func newTables() *tables {
	t := &tables{
		accounts: make(map[int]user.Account),
		profiles: make(map[user.Role]map[int]user.RoleProfile, len(user.Roles)),
	}
	for _, r := range user.Roles {
		t.profiles[r] = make(map[int]user.RoleProfile)
	}
	return t
}

func (t *tables) clone() *tables {
	c := newTables()
	for id, acc := range t.accounts {
		c.accounts[id] = acc
	}
	for role, profs := range t.profiles {
		for id, p := range profs { // profiles are values
			c.profiles[role][id] = p
		}
	}
	return c
}

// FailProfileWrites makes every profile digest write of role fail with err; nil clears it.
func (db *DB) FailProfileWrites(role user.Role, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err == nil {
		delete(db.profileWriteErrs, role)
		return
	}
	db.profileWriteErrs[role] = err
}

// FailCommit makes every Commit fail with err; nil clears it.
func (db *DB) FailCommit(err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.commitErr = err
}

// Writes returns the digest writes attempted so far, committed or not.
func (db *DB) Writes() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]string(nil), db.writes...)
}

func (db *DB) ResetWrites() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.writes = nil
}

// SetClock replaces the clock used for updated_at.
func (db *DB) SetClock(now func() time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.now = now
}
