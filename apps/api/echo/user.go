package echoapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/eduva/eduva/core"
	"github.com/eduva/eduva/core/user"
)

// UserService is the part of user.Service served over HTTP.
type UserService interface {
	Login(ctx context.Context, email, password string) (user.AuthUser, error)
	ChangePassword(ctx context.Context, email, oldPassword, newPassword string) (user.PasswordChangeResult, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, data user.ConfirmPasswordReset) (user.PasswordChangeResult, error)
}

var _ UserService = (*user.Service)(nil)

type userApi struct {
	svc      UserService
	conf     *core.Config
	logger   core.Logger
	validate *validator.Validate
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := userApi{
		svc:      deps.UserSvc,
		conf:     deps.Conf,
		logger:   deps.Logger,
		validate: deps.Validate,
	}

	ag := g.Group("/auth")

	// un-authed endpoints
	// TODO: rate limit `/login` per client IP
	ag.POST("/login", api.login)
	ag.POST("/change-password", api.changePassword)
	ag.POST("/password-reset", api.resetPassword)
	ag.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	ag.GET("/me", api.me, jwt)
}

// Handlers

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Login(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		if kind, ok := user.KindOf(err); ok {
			switch kind {
			case user.EmailNotRegistered, user.ProfileMissing, user.WrongPassword:
				// same response for all three: no account enumeration
				api.logger.Info(fmt.Sprintf("login failed: %s", kind))
				return errInvalidCredentials
			}
		}
		return err
	}

	token, err := GenerateToken(GetUserClaims(usr, api.conf), api.conf)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: usr})
}

func (api *userApi) changePassword(ctx echo.Context) error {
	var data user.ChangePassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChangePassword")
	}

	res, err := api.svc.ChangePassword(ctx.Request().Context(), data.Email, data.OldPassword, data.NewPassword)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); err != nil && !errors.Is(err, user.ErrEmailNotRegistered) {
		// do not return errors to attackers
		api.logger.Error("requesting password reset", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *userApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ConfirmPasswordReset
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ConfirmPasswordReset")
	}

	res, err := api.svc.ConfirmPasswordReset(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *userApi) me(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, claims)
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string        `json:"token"`
		User  user.AuthUser `json:"user"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
