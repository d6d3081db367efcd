package user

import (
	"github.com/pkg/errors"
)

type ErrorKind string

// login
const (
	EmailNotRegistered ErrorKind = "email_not_registered"
	ProfileMissing     ErrorKind = "profile_missing"
	PendingApproval    ErrorKind = "pending_approval"
	WrongPassword      ErrorKind = "wrong_password"
	StorageFailure     ErrorKind = "storage_failure"
)

// change password
const (
	MissingFields        ErrorKind = "missing_fields"
	PasswordTooShort     ErrorKind = "password_too_short"
	PasswordsIdentical   ErrorKind = "passwords_identical"
	OldPasswordIncorrect ErrorKind = "old_password_incorrect"
	NewPasswordSameAsOld ErrorKind = "new_password_same_as_old"
)

// password reset
const (
	InvalidResetToken       ErrorKind = "invalid_reset_token"
	ResetTokenExpired       ErrorKind = "reset_token_expired"
	PasswordConfirmMismatch ErrorKind = "password_confirm_mismatch"
)

var kindMessages = map[ErrorKind]string{
	EmailNotRegistered:      "email is not registered",
	ProfileMissing:          "no profile found for this account's role",
	PendingApproval:         "account is pending approval",
	WrongPassword:           "wrong password",
	StorageFailure:          "storage failure, please try again",
	MissingFields:           "required fields are missing",
	PasswordTooShort:        "new password is too short",
	PasswordsIdentical:      "new password must be different from the old password",
	OldPasswordIncorrect:    "old password is incorrect",
	NewPasswordSameAsOld:    "new password matches the current password",
	InvalidResetToken:       "the password reset link is invalid",
	ResetTokenExpired:       "the password reset link has expired",
	PasswordConfirmMismatch: "passwords do not match",
}

var (
	ErrEmailNotRegistered      = &AuthError{Kind: EmailNotRegistered}
	ErrProfileMissing          = &AuthError{Kind: ProfileMissing}
	ErrPendingApproval         = &AuthError{Kind: PendingApproval}
	ErrWrongPassword           = &AuthError{Kind: WrongPassword}
	ErrStorageFailure          = &AuthError{Kind: StorageFailure}
	ErrMissingFields           = &AuthError{Kind: MissingFields}
	ErrPasswordTooShort        = &AuthError{Kind: PasswordTooShort}
	ErrPasswordsIdentical      = &AuthError{Kind: PasswordsIdentical}
	ErrOldPasswordIncorrect    = &AuthError{Kind: OldPasswordIncorrect}
	ErrNewPasswordSameAsOld    = &AuthError{Kind: NewPasswordSameAsOld}
	ErrInvalidResetToken       = &AuthError{Kind: InvalidResetToken}
	ErrResetTokenExpired       = &AuthError{Kind: ResetTokenExpired}
	ErrPasswordConfirmMismatch = &AuthError{Kind: PasswordConfirmMismatch}
)

// AuthError is a user-presentable failure of a login or password change.
// Err optionally carries the cause (validation details, storage error).
type AuthError struct {
	Kind ErrorKind
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return e.Message() + ": " + e.Err.Error()
	}
	return e.Message()
}

// Message is safe to show to end users.
func (e *AuthError) Message() string {
	if msg, ok := kindMessages[e.Kind]; ok {
		return msg
	}
	return string(e.Kind)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is matches any AuthError of the same kind, so errors.Is(err, ErrWrongPassword) works on wrapped causes.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Kind == e.Kind
}

// KindOf returns the ErrorKind carried by err, if any.
func KindOf(err error) (ErrorKind, bool) {
	var aerr *AuthError
	if errors.As(err, &aerr) {
		return aerr.Kind, true
	}
	return "", false
}

func storageFailure(err error) error {
	return &AuthError{Kind: StorageFailure, Err: err}
}
