package user

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/eduva/eduva/core"
)

type Service struct {
	repo     Repository
	hasher   Hasher
	engine   *Engine
	verifier *Verifier
	tokens   *ResetTokens
	mailSvc  core.EmailService
	events   EventSink
	logger   core.Logger
	validate *validator.Validate

	frontendBaseURL string
}

type ServiceDeps struct {
	Repo     Repository
	Hasher   Hasher
	Tokens   *ResetTokens
	MailSvc  core.EmailService
	Events   EventSink // optional; defaults to a log sink
	Logger   core.Logger
	Validate *validator.Validate // must have InitValidators applied

	FrontendBaseURL string // reset links point to <FrontendBaseURL>/password-reset/<uid>/<token>
}

func NewService(deps ServiceDeps) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Repo, "Repo"),
		vala.IsNotNil(deps.Hasher, "Hasher"),
		vala.IsNotNil(deps.Tokens, "Tokens"),
		vala.IsNotNil(deps.MailSvc, "MailSvc"),
		vala.IsNotNil(deps.Logger, "Logger"),
		vala.IsNotNil(deps.Validate, "Validate"),
	).CheckAndPanic()

	events := deps.Events
	if events == nil {
		events = NewLogSink(deps.Logger)
	}
	engine := NewEngine(events)
	return &Service{
		repo:     deps.Repo,
		hasher:   deps.Hasher,
		engine:   engine,
		verifier: NewVerifier(deps.Hasher, engine, events, deps.Logger),
		tokens:   deps.Tokens,
		mailSvc:  deps.MailSvc,
		events:   events,
		logger:   deps.Logger,
		validate: deps.Validate,

		frontendBaseURL: deps.FrontendBaseURL,
	}
}

// commitError is the StorageFailure cause of a failed commit.
type commitError struct {
	err error
}

func (e commitError) Error() string { return "committing transaction: " + e.err.Error() }
func (e commitError) Unwrap() error { return e.err }

// inTx runs fn in a transaction released on every path.
// Errors that are not AuthErrors become StorageFailure, as does a failed commit.
// Events of the writes made through tx are emitted once it commits.
func (svc *Service) inTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := svc.repo.Begin(ctx)
	if err != nil {
		return storageFailure(errors.Wrap(err, "beginning transaction"))
	}
	defer func() { _ = tx.Rollback() }()

	etx := &txEvents{Tx: tx}
	if err = fn(etx); err != nil {
		if _, ok := KindOf(err); ok {
			return err
		}
		return storageFailure(err)
	}
	if err = tx.Commit(); err != nil {
		return storageFailure(commitError{err: err})
	}
	etx.flush(ctx, svc.events)
	return nil
}

func (svc *Service) lookupAccount(ctx context.Context, st Store, email string) (Account, error) {
	acc, err := st.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Account{}, ErrEmailNotRegistered
		}
		return Account{}, errors.Wrap(err, "finding account by email")
	}
	return acc, nil
}

// Login authenticates email/password. Failures are *AuthError of kind
// EmailNotRegistered, ProfileMissing, PendingApproval, WrongPassword or StorageFailure.
func (svc *Service) Login(ctx context.Context, email, password string) (AuthUser, error) {
	email = core.CleanString(email, true /* lower */)

	var (
		authUsr AuthUser
		res     Verification
	)
	err := svc.inTx(ctx, func(tx Tx) error {
		acc, err := svc.lookupAccount(ctx, tx, email)
		if err != nil {
			return err
		}

		prof, err := tx.GetProfile(ctx, acc.ID, acc.Role)
		if err != nil {
			if errors.Is(err, ErrProfileNotFound) {
				return ErrProfileMissing
			}
			return errors.Wrap(err, "finding role profile")
		}

		if sp, ok := prof.(StudentProfile); ok && !sp.AccessApproved.IsApproved() {
			return ErrPendingApproval
		}

		if res, err = svc.verifier.Verify(ctx, tx, acc.ID, acc.Role, password, prof.Base().PasswordDigest); err != nil {
			if isNotFound(err) {
				return ErrWrongPassword
			}
			return errors.Wrap(err, "verifying password")
		}
		if !res.Valid {
			return ErrWrongPassword
		}

		authUsr = newAuthUser(acc, prof)
		authUsr.Migrated = res.Migrated
		return nil
	})
	var ce commitError
	if err != nil && res.Valid && !res.Migrated && errors.As(err, &ce) {
		// a hashed match commits nothing but the profile repair
		svc.logger.Error(fmt.Sprintf("login of account %d: %v", authUsr.ID, ce), ce)
		if res.Synced {
			svc.events.Emit(ctx, NewEvent(SyncFailed, authUsr.ID, authUsr.Role, ce.Error()))
		}
		err = nil
	}
	if err != nil {
		return AuthUser{}, err
	}

	if authUsr.Migrated {
		svc.logger.Info(fmt.Sprintf("legacy credential of account %d migrated on login", authUsr.ID))
	}
	return authUsr, nil
}

// ChangePassword verifies oldPassword and writes the hash of newPassword to the account and its profile.
func (svc *Service) ChangePassword(ctx context.Context, email, oldPassword, newPassword string) (PasswordChangeResult, error) {
	data := ChangePassword{Email: email, OldPassword: oldPassword, NewPassword: newPassword}
	if err := data.Validate(svc.validate); err != nil {
		return PasswordChangeResult{}, err
	}

	var acc Account
	err := svc.inTx(ctx, func(tx Tx) error {
		var err error
		if acc, err = svc.lookupAccount(ctx, tx, data.Email); err != nil {
			return err
		}

		res, err := svc.verifier.Verify(ctx, tx, acc.ID, acc.Role, data.OldPassword, acc.PasswordDigest)
		if err != nil {
			if isNotFound(err) {
				return ErrOldPasswordIncorrect
			}
			return errors.Wrap(err, "verifying old password")
		}
		if !res.Valid {
			return ErrOldPasswordIncorrect
		}

		// bcrypt only looks at the first 72 bytes
		if svc.hasher.Compare(data.NewPassword, res.Digest) {
			return ErrNewPasswordSameAsOld
		}

		newHash, err := svc.hasher.Hash(data.NewPassword)
		if err != nil {
			return errors.Wrap(err, "hashing new password")
		}
		return svc.engine.Migrate(ctx, tx, acc.ID, acc.Role, newHash)
	})
	if err != nil {
		return PasswordChangeResult{}, err
	}

	svc.events.Emit(ctx, NewEvent(PasswordChanged, acc.ID, acc.Role, "changed by owner"))
	svc.sendPasswordChangedMail(acc)
	return PasswordChangeResult{
		Success:   true,
		Message:   "password changed successfully",
		AccountID: acc.ID,
	}, nil
}

// ResetPassword sets a new password without checking the current one.
func (svc *Service) ResetPassword(ctx context.Context, email, password string) error {
	data := ResetPassword{Email: email, Password: password}
	if err := data.Validate(svc.validate); err != nil {
		return err
	}

	var acc Account
	err := svc.inTx(ctx, func(tx Tx) error {
		var err error
		if acc, err = svc.lookupAccount(ctx, tx, data.Email); err != nil {
			return err
		}
		if _, err = tx.AccountDigest(ctx, acc.ID, true /* lock */); err != nil {
			return errors.Wrap(err, "locking account")
		}
		newHash, err := svc.hasher.Hash(data.Password)
		if err != nil {
			return errors.Wrap(err, "hashing password")
		}
		if err = svc.engine.Migrate(ctx, tx, acc.ID, acc.Role, newHash); err != nil {
			if errors.Is(err, ErrProfileNotFound) {
				return ErrProfileMissing
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	svc.events.Emit(ctx, NewEvent(PasswordChanged, acc.ID, acc.Role, "reset by admin"))
	svc.sendPasswordChangedMail(acc)
	return nil
}

// RequestPasswordReset mails a reset link to the account of email.
// The link is valid until it expires or the account's digest changes.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = core.CleanString(email, true /* lower */)
	if email == "" {
		return ErrMissingFields
	}

	acc, err := svc.lookupAccount(ctx, svc.repo, email)
	if err != nil {
		if _, ok := KindOf(err); ok {
			return err
		}
		return storageFailure(err)
	}
	svc.sendPasswordResetMail(acc, svc.tokens.Make(acc.ID, acc.PasswordDigest))
	return nil
}

// ConfirmPasswordReset sets a new password on the account named by a reset link.
func (svc *Service) ConfirmPasswordReset(ctx context.Context, data ConfirmPasswordReset) (PasswordChangeResult, error) {
	if err := data.Validate(svc.validate); err != nil {
		return PasswordChangeResult{}, err
	}
	accountID, err := DecodeUID(data.UID)
	if err != nil {
		return PasswordChangeResult{}, ErrInvalidResetToken
	}

	var acc Account
	err = svc.inTx(ctx, func(tx Tx) error {
		var err error
		if acc, err = tx.GetAccount(ctx, accountID, true /* lock */); err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				return ErrInvalidResetToken
			}
			return errors.Wrap(err, "finding account")
		}

		switch svc.tokens.Verify(acc.ID, acc.PasswordDigest, data.Token) {
		case nil:
		case errTokenExpired:
			return ErrResetTokenExpired
		default:
			return ErrInvalidResetToken
		}

		newHash, err := svc.hasher.Hash(data.Password)
		if err != nil {
			return errors.Wrap(err, "hashing password")
		}
		if err = svc.engine.Migrate(ctx, tx, acc.ID, acc.Role, newHash); err != nil {
			if errors.Is(err, ErrProfileNotFound) {
				return ErrProfileMissing
			}
			return err
		}
		return nil
	})
	if err != nil {
		return PasswordChangeResult{}, err
	}

	svc.events.Emit(ctx, NewEvent(PasswordChanged, acc.ID, acc.Role, "reset by link"))
	svc.sendPasswordChangedMail(acc)
	return PasswordChangeResult{
		Success:   true,
		Message:   "password has been reset",
		AccountID: acc.ID,
	}, nil
}

// Audit counts legacy digests, missing profiles and profiles whose digest drifted from the account's.
// With repair, each drifted profile is synced in its own transaction.
func (svc *Service) Audit(ctx context.Context, repair bool) (AuditReport, error) {
	rows, err := svc.repo.ListCredentials(ctx)
	if err != nil {
		return AuditReport{}, storageFailure(errors.Wrap(err, "listing credentials"))
	}

	report := AuditReport{Accounts: len(rows)}
	for _, row := range rows {
		if Classify(row.AccountDigest) == Legacy {
			report.Legacy++
		}
		if !row.ProfileDigest.Valid {
			report.MissingProfiles++
			continue
		}
		if row.ProfileDigest.String == row.AccountDigest {
			continue
		}

		report.Drifted++
		report.DriftedIDs = append(report.DriftedIDs, row.AccountID)
		if !repair {
			continue
		}
		if err = svc.repairDrift(ctx, row); err != nil {
			report.Failed++
			svc.logger.Error(fmt.Sprintf("repairing account %d: %v", row.AccountID, err), err)
			continue
		}
		report.Repaired++
	}
	return report, nil
}

func (svc *Service) repairDrift(ctx context.Context, row CredentialRow) error {
	return svc.inTx(ctx, func(tx Tx) error {
		// re-read under lock; the listing may be stale
		current, err := tx.AccountDigest(ctx, row.AccountID, true /* lock */)
		if err != nil {
			return errors.Wrap(err, "reading account digest")
		}
		_, err = svc.engine.Sync(ctx, tx, row.AccountID, row.Role, current)
		return err
	})
}

// mail categories
const (
	MailCategoryPasswordReset   = "password_reset"
	MailCategoryPasswordChanged = "password_changed"
)

func (svc *Service) sendPasswordResetMail(acc Account, token string) {
	link := fmt.Sprintf("%s/password-reset/%s/%s", svc.frontendBaseURL, EncodeUID(acc.ID), token)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: acc.Name, Address: acc.Email}},
		Subject: "Password reset",
		Body: fmt.Sprintf(
			"Hello %s,\n\nYou're receiving this email because you requested a password reset for your account.\n\n"+
				"Please go to the following page and choose a new password:\n%s\n\n"+
				"If you did not request a reset, you can ignore this email.\n", acc.Name, link),

		Category:        MailCategoryPasswordReset,
		DisableTracking: true,
	})
}

func (svc *Service) sendPasswordChangedMail(acc Account) {
	if acc.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: acc.Name, Address: acc.Email}},
		Subject: "Your password was changed",
		Body: fmt.Sprintf(
			"Hello %s,\n\nThe password of your account was just changed. "+
				"If you did not do this, contact your school administrator.\n", acc.Name),

		Category: MailCategoryPasswordChanged,
	})
}
