package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/eduva/eduva/core"
	"github.com/eduva/eduva/core/user"
)

var (
	errUnauthorized       = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errInvalidCredentials = echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
)

// authErrorStatus maps AuthError kinds to HTTP statuses.
// Login's not-found and mismatch kinds never reach here: the handler folds them into errInvalidCredentials.
func authErrorStatus(kind user.ErrorKind) int {
	switch kind {
	case user.MissingFields, user.PasswordTooShort, user.PasswordsIdentical, user.NewPasswordSameAsOld,
		user.PasswordConfirmMismatch, user.InvalidResetToken, user.ResetTokenExpired:
		return http.StatusBadRequest
	case user.EmailNotRegistered:
		return http.StatusNotFound
	case user.OldPasswordIncorrect, user.WrongPassword, user.ProfileMissing:
		return http.StatusUnauthorized
	case user.PendingApproval:
		return http.StatusForbidden
	case user.StorageFailure:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func fieldErrorsMap(flds []core.FieldError) map[string]string {
	res := make(map[string]string, len(flds))
	for _, f := range flds {
		res[f.Field] = f.Error
	}
	return res
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case *user.AuthError:
			code = authErrorStatus(origErr.Kind)
			body := echo.Map{"error": origErr.Message(), "code": origErr.Kind}
			var verrs validator.ValidationErrors
			if errors.As(origErr.Err, &verrs) {
				body["fields"] = fieldErrorsMap(core.FieldErrors(verrs, translator))
			}
			message = body
			if origErr.Kind == user.StorageFailure {
				logger.Error(origErr.Message(), err, contextIdentity(ctx))
			}
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			message = fieldErrorsMap(core.FieldErrors(origErr, translator))
		case *core.ValidationError:
			if origErr.Fields != nil {
				message = fieldErrorsMap(origErr.Fields)
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg
			if ctx.Echo().Debug {
				message = err.Error()
			}
			logger.Error(msg, errors.Wrap(err, msg), contextIdentity(ctx))

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
