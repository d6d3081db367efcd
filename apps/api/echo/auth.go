package echoapi

import (
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/eduva/eduva/core"
	"github.com/eduva/eduva/core/user"
)

const (
	jwtContextKey = "userToken"
	jwtAudience   = "Eduva"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Email      string            `json:"email,omitempty"`
	Name       string            `json:"name,omitempty"`
	Role       user.Role         `json:"role,omitempty"`
	IsStudent  bool              `json:"is_student,omitempty"` // -> STUDENT PORTAL
	IsTeacher  bool              `json:"is_teacher,omitempty"` // -> TEACHER PORTAL
	IsAdmin    bool              `json:"is_admin,omitempty"`   // -> ADMIN PORTAL
	Attributes map[string]string `json:"attributes,omitempty"`
}

func GetUserClaims(usr user.AuthUser, conf *core.Config) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   strconv.Itoa(usr.ID),
			Audience:  jwtAudience,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Email:      usr.Email,
		Name:       usr.Name,
		Role:       usr.Role,
		IsStudent:  usr.Role == user.RoleStudent,
		IsTeacher:  usr.Role == user.RoleTeacher,
		IsAdmin:    usr.Role == user.RoleAdmin,
		Attributes: usr.Attributes,
	}
}

// jwtConfig returns the JWT auth middleware config.
func jwtConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    jwtContextKey,
		Claims:        new(Claims),
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(claims *Claims, conf *core.Config) (string, error) {
	cfg := jwtConfig(conf)
	token := jwt.NewWithClaims(jwt.GetSigningMethod(cfg.SigningMethod), claims)

	ss, err := token.SignedString(cfg.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(jwtContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// contextIdentity returns the identity of the request for error reports; zero if unauthenticated.
func contextIdentity(ctx echo.Context) user.AuthUser {
	var usr user.AuthUser
	if claims, err := getContextClaims(ctx); err == nil {
		usr.ID, _ = strconv.Atoi(claims.Subject)
		usr.Email = claims.Email
		usr.Name = claims.Name
		usr.Role = claims.Role
	}
	return usr
}
