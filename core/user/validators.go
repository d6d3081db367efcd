package user

import (
	"fmt"
	"unicode/utf8"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/eduva/eduva/core"
)

const DefaultPasswordMinLength = 8

var (
	pwdMinLenTag = "pwdminlen"

	requiredTag = "required"
	neFieldTag  = "nefield"
	eqFieldTag  = "eqfield"
)

// InitValidators registers the password policy with the validator.
// minLen counts characters, not bytes.
func InitValidators(validate *validator.Validate, translator ut.Translator, minLen int) {
	if minLen <= 0 {
		minLen = DefaultPasswordMinLength
	}
	_ = validate.RegisterValidation(pwdMinLenTag, func(fl validator.FieldLevel) bool {
		return utf8.RuneCountInString(fl.Field().String()) >= minLen
	})
	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag,
		fmt.Sprintf("password must contain at least %d characters", minLen), true)
}

// ChangePassword is the input of Service.ChangePassword.
type ChangePassword struct {
	Email       string `json:"email" validate:"required"`
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,nefield=OldPassword,pwdminlen"`
}

func (cp *ChangePassword) Validate(validate *validator.Validate) error {
	cp.Email = core.CleanString(cp.Email, true /* lower */)
	return preconditionErr(validate.Struct(cp))
}

// ResetPassword is the input of Service.ResetPassword.
type ResetPassword struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required,pwdminlen"`
}

func (rp *ResetPassword) Validate(validate *validator.Validate) error {
	rp.Email = core.CleanString(rp.Email, true /* lower */)
	return preconditionErr(validate.Struct(rp))
}

// ConfirmPasswordReset is the input of Service.ConfirmPasswordReset; UID and Token come from the reset link.
type ConfirmPasswordReset struct {
	UID             string `json:"uid" validate:"required"`
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required,pwdminlen"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (cr *ConfirmPasswordReset) Validate(validate *validator.Validate) error {
	cr.UID = core.CleanString(cr.UID)
	cr.Token = core.CleanString(cr.Token)
	return preconditionErr(validate.Struct(cr))
}

// preconditionErr maps validator errors to an AuthError.
// Precedence: missing fields, then identical or mismatched passwords, then length.
func preconditionErr(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	kind := PasswordTooShort
	for _, fe := range verrs {
		switch fe.Tag() {
		case requiredTag:
			return &AuthError{Kind: MissingFields, Err: verrs}
		case neFieldTag:
			kind = PasswordsIdentical
		case eqFieldTag:
			kind = PasswordConfirmMismatch
		}
	}
	return &AuthError{Kind: kind, Err: verrs}
}
