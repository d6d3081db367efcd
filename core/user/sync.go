package user

import (
	"context"

	"github.com/pkg/errors"
)

// Engine keeps the role profile's copy of the digest equal to the account's.
// It runs on whatever Store it is given: a transaction, or the pool for single statements.
type Engine struct {
	events EventSink
}

func NewEngine(events EventSink) *Engine {
	if events == nil {
		events = nopSink{}
	}
	return &Engine{events: events}
}

// Sync updates the profile digest to currentHash if it differs. It never writes the account.
// It reports whether a write happened.
func (eng *Engine) Sync(ctx context.Context, st Store, accountID int, role Role, currentHash string) (bool, error) {
	_ = role.ProfileTable() // panics on unknown role

	stored, err := st.ProfileDigest(ctx, accountID, role, true /* lock */)
	if err != nil {
		return false, errors.Wrap(err, "reading profile digest")
	}
	if stored == currentHash {
		return false, nil
	}
	if err = st.UpdateProfileDigest(ctx, accountID, role, currentHash); err != nil {
		return false, errors.Wrap(err, "syncing profile digest")
	}
	emitWrite(ctx, eng.events, st, NewEvent(ProfileSynced, accountID, role, "profile digest drifted from account"))
	return true, nil
}

// Migrate writes newHash to the account and then to its role profile.
// Both writes belong to the caller's transaction; on error the caller must roll back.
func (eng *Engine) Migrate(ctx context.Context, st Store, accountID int, role Role, newHash string) error {
	_ = role.ProfileTable()

	if err := st.UpdateAccountDigest(ctx, accountID, newHash); err != nil {
		return errors.Wrap(err, "writing account digest")
	}
	if err := st.UpdateProfileDigest(ctx, accountID, role, newHash); err != nil {
		return errors.Wrap(err, "writing profile digest")
	}
	return nil
}
