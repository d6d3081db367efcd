package user

import (
	"context"
	"errors"
)

var (
	// errors
	ErrAccountNotFound = errors.New("account not found")
	ErrProfileNotFound = errors.New("role profile not found")
)

type (
	// Store reads and writes credentials. Profiles are always addressed by the account's user_id.
	Store interface {
		GetAccountByEmail(ctx context.Context, email string) (Account, error)
		GetAccount(ctx context.Context, accountID int, lock bool) (Account, error)
		// AccountDigest reads the authoritative digest; lock takes a row lock where the engine supports it.
		AccountDigest(ctx context.Context, accountID int, lock bool) (string, error)
		GetProfile(ctx context.Context, accountID int, role Role) (RoleProfile, error)
		// ProfileDigest reads the role profile's copy; lock reads the latest version under a row lock.
		ProfileDigest(ctx context.Context, accountID int, role Role, lock bool) (string, error)
		UpdateAccountDigest(ctx context.Context, accountID int, digest string) error
		// UpdateProfileDigest also bumps the profile's updated_at.
		UpdateProfileDigest(ctx context.Context, accountID int, role Role, digest string) error
		ListCredentials(ctx context.Context) ([]CredentialRow, error)
	}

	Tx interface {
		Store

		// Savepoint marks a point RollbackTo can return to without ending the transaction.
		// RollbackTo also clears a failed statement's abort state where the engine keeps one.
		Savepoint(ctx context.Context, name string) error
		RollbackTo(ctx context.Context, name string) error
		Commit() error
		Rollback() error
	}

	Repository interface {
		Store

		Begin(ctx context.Context) (Tx, error)
		// CreateAccount inserts an account and its role profile; used by fixtures and imports.
		CreateAccount(ctx context.Context, acc Account, prof RoleProfile) (Account, error)
	}
)
