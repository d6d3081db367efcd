package user

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/eduva/eduva/core"
)

// Verification is the outcome of Verifier.Verify.
// Digest is the effective digest after verification; empty for a failed legacy check.
// Synced reports a profile repair that is part of the caller's transaction.
type Verification struct {
	Valid    bool
	Digest   string
	Format   Format
	Migrated bool
	Synced   bool
}

// repairSavepoint guards the best-effort profile repair of a hashed match.
const repairSavepoint = "profile_repair"

type Verifier struct {
	hasher Hasher
	engine *Engine
	events EventSink
	logger core.Logger
}

func NewVerifier(hasher Hasher, engine *Engine, events EventSink, logger core.Logger) *Verifier {
	if events == nil {
		events = nopSink{}
	}
	return &Verifier{hasher: hasher, engine: engine, events: events, logger: logger}
}

// Verify checks candidate against the account's current digest, read from st under a row lock.
// digest is the caller's copy; it is only used to detect stale reads.
//
// A legacy match is rehashed and migrated through st. A hashed match syncs the role profile;
// a failed sync is logged and does not invalidate the verification.
// ErrAccountNotFound and ErrProfileNotFound stay detectable with errors.Is; any other error is a storage error.
func (v *Verifier) Verify(ctx context.Context, st Store, accountID int, role Role, candidate, digest string) (Verification, error) {
	current, err := st.AccountDigest(ctx, accountID, true /* lock */)
	if err != nil {
		return Verification{}, errors.Wrap(err, "reading account digest")
	}
	if digest != "" && digest != current {
		v.logger.Warn(fmt.Sprintf("stale digest for account %d, using the account's", accountID),
			map[string]interface{}{"account_id": accountID, "role": string(role)})
	}
	if _, err = st.ProfileDigest(ctx, accountID, role, false); err != nil {
		return Verification{}, errors.Wrap(err, "reading profile digest")
	}

	switch Classify(current) {
	case Hashed:
		res := Verification{Digest: current, Format: Hashed}
		if res.Valid = v.hasher.Compare(candidate, current); !res.Valid {
			v.events.Emit(ctx, NewEvent(VerificationFailed, accountID, role, "password mismatch"))
			return res, nil
		}
		if res.Synced, err = v.repair(ctx, st, accountID, role, current); err != nil {
			v.logger.Error(fmt.Sprintf("syncing profile digest for account %d: %v", accountID, err), err)
			v.events.Emit(ctx, NewEvent(SyncFailed, accountID, role, err.Error()))
		}
		return res, nil

	default: // Legacy
		if !legacyEqual(candidate, current) {
			v.events.Emit(ctx, NewEvent(VerificationFailed, accountID, role, "legacy password mismatch"))
			return Verification{Format: Legacy}, nil
		}
		newHash, err := v.hasher.Hash(candidate)
		if err != nil {
			return Verification{}, errors.Wrap(err, "hashing legacy password")
		}
		if err = v.engine.Migrate(ctx, st, accountID, role, newHash); err != nil {
			return Verification{}, errors.Wrap(err, "migrating legacy password")
		}
		emitWrite(ctx, v.events, st, NewEvent(CredentialMigrated, accountID, role, "legacy plaintext rehashed"))
		return Verification{Valid: true, Digest: newHash, Format: Legacy, Migrated: true}, nil
	}
}

// repair syncs the profile. In a transaction it runs under a savepoint, so a failed
// statement is rolled back on its own and the transaction stays usable.
func (v *Verifier) repair(ctx context.Context, st Store, accountID int, role Role, current string) (bool, error) {
	tx, ok := st.(Tx)
	if !ok {
		return v.engine.Sync(ctx, st, accountID, role, current)
	}
	if err := tx.Savepoint(ctx, repairSavepoint); err != nil {
		return false, err
	}
	synced, err := v.engine.Sync(ctx, tx, accountID, role, current)
	if err != nil {
		if rbErr := tx.RollbackTo(ctx, repairSavepoint); rbErr != nil {
			return false, errors.Wrap(rbErr, err.Error())
		}
		return false, err
	}
	return synced, nil
}

// isNotFound reports whether err is one of the Store's not-found sentinels.
func isNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) || errors.Is(err, ErrProfileNotFound)
}
