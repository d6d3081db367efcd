package testutil

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"testing"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/eduva/eduva/core"
	"github.com/eduva/eduva/core/user"
	emailsvc "github.com/eduva/eduva/services/email"
	logsvc "github.com/eduva/eduva/services/logger"
	"github.com/eduva/eduva/storage/database"
)

// NewConfig returns the TEST configuration.
func NewConfig() *core.Config {
	return core.LoadConfig("test")
}

// NewLogger returns a silent logger with error reporting disabled.
func NewLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "TEST : ", 0), conf)
	logger.Enable(false)
	return logger
}

func NewValidator(conf *core.Config) (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator, conf.Password.MinLength)
	return validate, translator
}

// NewResetTokens returns the reset token issuer of conf.
func NewResetTokens(conf *core.Config) *user.ResetTokens {
	return user.NewResetTokens(conf.SecretKey, conf.Password.ResetTimeout)
}

// NewUserService builds a user.Service on repo with a recording mail service.
func NewUserService(t *testing.T, repo user.Repository, conf *core.Config, events ...user.EventSink) (*user.Service, *emailsvc.ConsoleService) {
	t.Helper()
	validate, _ := NewValidator(conf)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	deps := user.ServiceDeps{
		Repo:     repo,
		Hasher:   user.NewBcryptHasher(conf.Password.BcryptCost),
		Tokens:   NewResetTokens(conf),
		MailSvc:  mailSvc,
		Logger:   NewLogger(conf),
		Validate: validate,

		FrontendBaseURL: conf.FrontendBaseURL,
	}
	if len(events) > 0 {
		deps.Events = user.Sinks(events)
	}
	return user.NewService(deps), mailSvc
}

// PrepareDB opens a migrated SQLite database in a temp dir, closed at the end of the test.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	conf := NewConfig()
	conf.Database.Engine = database.EngineSQLite
	conf.Database.Path = filepath.Join(t.TempDir(), "eduva.db")

	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

// NewProfile returns a minimal profile of role holding digest. Students are approved.
func NewProfile(role user.Role, name, digest string) user.RoleProfile {
	base := user.ProfileBase{Name: name, PasswordDigest: digest}
	switch role {
	case user.RoleStudent:
		return user.StudentProfile{
			ProfileBase:    base,
			Class:          null.StringFrom("XII RPL 1"),
			Major:          null.StringFrom("RPL"),
			AccessApproved: user.Approved,
		}
	case user.RoleTeacher:
		return user.TeacherProfile{
			ProfileBase: base,
			NIP:         null.StringFrom("198001012010011001"),
			Subject:     null.StringFrom("Matematika"),
		}
	default:
		return user.AdminProfile{ProfileBase: base}
	}
}

// CreateAccount inserts an account and its profile. Both hold digest, which may be a legacy plaintext.
// id may be 0 to let the store pick one.
func CreateAccount(t *testing.T, repo user.Repository, id int, email string, role user.Role, digest string) user.Account {
	t.Helper()
	return CreateAccountWithProfile(t, repo, id, email, role, digest, NewProfile(role, email, digest))
}

func CreateAccountWithProfile(
	t *testing.T,
	repo user.Repository,
	id int,
	email string,
	role user.Role,
	digest string,
	prof user.RoleProfile,
) user.Account {
	t.Helper()
	acc := user.Account{
		ID:             id,
		Email:          email,
		Name:           email,
		Role:           role,
		PasswordDigest: digest,
	}
	acc, err := repo.CreateAccount(context.Background(), acc, prof)
	if err != nil {
		t.Fatalf("CreateAccount() failed: %v", err)
	}
	return acc
}

// Digests returns the account digest and the role profile digest of id.
func Digests(t *testing.T, st user.Store, id int, role user.Role) (string, string) {
	t.Helper()
	ctx := context.Background()
	accDigest, err := st.AccountDigest(ctx, id, false)
	if err != nil {
		t.Fatalf("AccountDigest() failed: %v", err)
	}
	profDigest, err := st.ProfileDigest(ctx, id, role, false)
	if err != nil {
		t.Fatalf("ProfileDigest() failed: %v", err)
	}
	return accDigest, profDigest
}
