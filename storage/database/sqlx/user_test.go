package sqlxrepos_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/eduva/eduva/core/user"
	sqlxrepos "github.com/eduva/eduva/storage/database/sqlx"
	"github.com/eduva/eduva/tests"
)

func newRepo(t *testing.T) user.Repository {
	return sqlxrepos.NewCredentialRepository(testutil.PrepareDB(t))
}

func TestCredentialRepository_CreateAccount(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	for _, role := range user.Roles {
		t.Run(string(role), func(t *testing.T) {
			email := string(role) + "@test.id"
			acc := testutil.CreateAccount(t, repo, 0, email, role, "SMK1234")
			assert.NotZero(t, acc.ID)

			got, err := repo.GetAccountByEmail(ctx, email)
			require.NoError(t, err)
			assert.Equal(t, acc.ID, got.ID)
			assert.Equal(t, role, got.Role)
			assert.Equal(t, "SMK1234", got.PasswordDigest)
			assert.Equal(t, acc.CreatedAt.Unix(), got.CreatedAt.Unix())

			prof, err := repo.GetProfile(ctx, acc.ID, role)
			require.NoError(t, err)
			assert.Equal(t, role, prof.Role())
			assert.Equal(t, acc.ID, prof.Base().UserID)
			assert.Equal(t, "SMK1234", prof.Base().PasswordDigest)
			assert.Equal(t, testutil.NewProfile(role, email, "").Attributes(), prof.Attributes())
		})
	}

	t.Run("pinned id", func(t *testing.T) {
		acc := testutil.CreateAccount(t, repo, 42, "t@x.com", user.RoleTeacher, "hunter2")
		assert.Equal(t, 42, acc.ID)
		next := testutil.CreateAccount(t, repo, 0, "next@x.com", user.RoleAdmin, "hunter2")
		assert.Greater(t, next.ID, 42)
	})

	t.Run("students default to not approved", func(t *testing.T) {
		prof := user.StudentProfile{ProfileBase: user.ProfileBase{Name: "Baru", PasswordDigest: "SMK1234"}}
		acc := testutil.CreateAccountWithProfile(t, repo, 0, "baru@test.id", user.RoleStudent, "SMK1234", prof)
		got, err := repo.GetProfile(ctx, acc.ID, user.RoleStudent)
		require.NoError(t, err)
		sp := got.(user.StudentProfile)
		assert.Equal(t, user.NotApproved, sp.AccessApproved)
		assert.Equal(t, null.String{}, sp.Class)
	})

	t.Run("role mismatch", func(t *testing.T) {
		acc := user.Account{Email: "mismatch@test.id", Role: user.RoleAdmin, PasswordDigest: "x"}
		_, err := repo.CreateAccount(ctx, acc, testutil.NewProfile(user.RoleTeacher, "x", "x"))
		assert.Error(t, err)
	})

	t.Run("duplicate email", func(t *testing.T) {
		acc := user.Account{Email: "t@x.com", Role: user.RoleAdmin, PasswordDigest: "x"}
		_, err := repo.CreateAccount(ctx, acc, nil)
		assert.Error(t, err)
	})
}

func TestCredentialStore_NotFound(t *testing.T) {
	repo := newRepo(t)
	orphan := testutil.CreateAccountWithProfile(t, repo, 0, "orphan@test.id", user.RoleTeacher, "SMK1234", nil)
	ctx := context.Background()

	_, err := repo.GetAccountByEmail(ctx, "lol@test.id")
	assert.ErrorIs(t, err, user.ErrAccountNotFound)
	_, err = repo.AccountDigest(ctx, 999, true)
	assert.ErrorIs(t, err, user.ErrAccountNotFound)
	assert.ErrorIs(t, repo.UpdateAccountDigest(ctx, 999, "x"), user.ErrAccountNotFound)

	_, err = repo.GetProfile(ctx, orphan.ID, user.RoleTeacher)
	assert.ErrorIs(t, err, user.ErrProfileNotFound)
	_, err = repo.ProfileDigest(ctx, orphan.ID, user.RoleTeacher, false)
	assert.ErrorIs(t, err, user.ErrProfileNotFound)
	assert.ErrorIs(t, repo.UpdateProfileDigest(ctx, orphan.ID, user.RoleTeacher, "x"), user.ErrProfileNotFound)

	// the profile lives in the role's table only
	_, err = repo.ProfileDigest(ctx, orphan.ID, user.RoleAdmin, true)
	assert.ErrorIs(t, err, user.ErrProfileNotFound)

	assert.Panics(t, func() { _, _ = repo.ProfileDigest(ctx, orphan.ID, user.Role("parent"), false) })
}

func TestCredentialTx(t *testing.T) {
	repo := newRepo(t)
	acc := testutil.CreateAccount(t, repo, 0, "siswa@test.id", user.RoleStudent, "SMK1234")
	ctx := context.Background()
	eng := user.NewEngine(nil)

	tx, err := repo.Begin(ctx)
	require.NoError(t, err)
	digest, err := tx.AccountDigest(ctx, acc.ID, true)
	require.NoError(t, err)
	assert.Equal(t, "SMK1234", digest)
	require.NoError(t, eng.Migrate(ctx, tx, acc.ID, acc.Role, "$2b$04$rolledback"))
	require.NoError(t, tx.Rollback())

	accDigest, profDigest := testutil.Digests(t, repo, acc.ID, acc.Role)
	assert.Equal(t, "SMK1234", accDigest)
	assert.Equal(t, "SMK1234", profDigest)

	tx, err = repo.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, eng.Migrate(ctx, tx, acc.ID, acc.Role, "$2b$04$committed"))
	require.NoError(t, tx.Commit())

	accDigest, profDigest = testutil.Digests(t, repo, acc.ID, acc.Role)
	assert.Equal(t, "$2b$04$committed", accDigest)
	assert.Equal(t, "$2b$04$committed", profDigest)
}

func TestCredentialTx_Savepoint(t *testing.T) {
	repo := newRepo(t)
	acc := testutil.CreateAccount(t, repo, 0, "guru@test.id", user.RoleTeacher, "SMK1234")
	ctx := context.Background()

	tx, err := repo.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	require.NoError(t, tx.UpdateAccountDigest(ctx, acc.ID, "$2b$04$kept"))
	require.NoError(t, tx.Savepoint(ctx, "repair"))
	require.NoError(t, tx.UpdateProfileDigest(ctx, acc.ID, acc.Role, "$2b$04$dropped"))
	require.NoError(t, tx.RollbackTo(ctx, "repair"))

	profDigest, err := tx.ProfileDigest(ctx, acc.ID, acc.Role, true)
	require.NoError(t, err)
	assert.Equal(t, "SMK1234", profDigest)
	require.NoError(t, tx.Commit())

	accDigest, profDigest := testutil.Digests(t, repo, acc.ID, acc.Role)
	assert.Equal(t, "$2b$04$kept", accDigest)
	assert.Equal(t, "SMK1234", profDigest)
}

func TestCredentialStore_ListCredentials(t *testing.T) {
	repo := newRepo(t)
	student := testutil.CreateAccount(t, repo, 0, "siswa@test.id", user.RoleStudent, "SMK1234")
	teacher := testutil.CreateAccountWithProfile(t, repo, 0, "guru@test.id", user.RoleTeacher, "$2b$04$abc",
		testutil.NewProfile(user.RoleTeacher, "Guru", "stale"))
	orphan := testutil.CreateAccountWithProfile(t, repo, 0, "orphan@test.id", user.RoleAdmin, "SMK1234", nil)

	rows, err := repo.ListCredentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []user.CredentialRow{
		{AccountID: student.ID, Email: student.Email, Role: user.RoleStudent, AccountDigest: "SMK1234", ProfileDigest: null.StringFrom("SMK1234")},
		{AccountID: teacher.ID, Email: teacher.Email, Role: user.RoleTeacher, AccountDigest: "$2b$04$abc", ProfileDigest: null.StringFrom("stale")},
		{AccountID: orphan.ID, Email: orphan.Email, Role: user.RoleAdmin, AccountDigest: "SMK1234"},
	}, rows)
}

// The login scenarios run end to end on SQLite.
func TestService_OnSQLite(t *testing.T) {
	repo := newRepo(t)
	conf := testutil.NewConfig()
	svc, _ := testutil.NewUserService(t, repo, conf)
	hasher := user.NewBcryptHasher(conf.Password.BcryptCost)
	ctx := context.Background()

	t.Run("legacy teacher migrates on login", func(t *testing.T) {
		testutil.CreateAccount(t, repo, 42, "t@x.com", user.RoleTeacher, "hunter2")

		usr, err := svc.Login(ctx, "t@x.com", "hunter2")
		require.NoError(t, err)
		assert.Equal(t, 42, usr.ID)
		assert.True(t, usr.Migrated)

		accDigest, profDigest := testutil.Digests(t, repo, 42, user.RoleTeacher)
		assert.Equal(t, user.Hashed, user.Classify(accDigest))
		assert.True(t, hasher.Compare("hunter2", accDigest))
		assert.Equal(t, accDigest, profDigest)
	})

	t.Run("pending student", func(t *testing.T) {
		prof := testutil.NewProfile(user.RoleStudent, "Siswa", "SMK1234").(user.StudentProfile)
		prof.AccessApproved = user.NotApproved
		testutil.CreateAccountWithProfile(t, repo, 7, "siswa@test.id", user.RoleStudent, "SMK1234", prof)

		_, err := svc.Login(ctx, "siswa@test.id", "SMK1234")
		assert.ErrorIs(t, err, user.ErrPendingApproval)
		accDigest, profDigest := testutil.Digests(t, repo, 7, user.RoleStudent)
		assert.Equal(t, "SMK1234", accDigest)
		assert.Equal(t, "SMK1234", profDigest)
	})

	t.Run("change password", func(t *testing.T) {
		_, err := svc.ChangePassword(ctx, "t@x.com", "hunter2", "hunter2")
		assert.ErrorIs(t, err, user.ErrPasswordsIdentical)

		res, err := svc.ChangePassword(ctx, "t@x.com", "hunter2", "n3w-passw0rd")
		require.NoError(t, err)
		assert.Equal(t, 42, res.AccountID)

		accDigest, profDigest := testutil.Digests(t, repo, 42, user.RoleTeacher)
		assert.True(t, hasher.Compare("n3w-passw0rd", accDigest))
		assert.Equal(t, accDigest, profDigest)
	})
}

func TestService_OnSQLite_FailedProfileRepair(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewCredentialRepository(db)
	conf := testutil.NewConfig()
	svc, _ := testutil.NewUserService(t, repo, conf)
	ctx := context.Background()

	digest, err := user.NewBcryptHasher(conf.Password.BcryptCost).Hash("hunter2")
	require.NoError(t, err)
	acc := testutil.CreateAccountWithProfile(t, repo, 0, "guru@test.id", user.RoleTeacher, digest,
		testutil.NewProfile(user.RoleTeacher, "Guru", "stale"))
	_, err = db.Exec(`CREATE TRIGGER guru_read_only BEFORE UPDATE ON guru BEGIN SELECT RAISE(ABORT, 'guru is read-only'); END`)
	require.NoError(t, err)

	usr, err := svc.Login(ctx, acc.Email, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, usr.ID)
	assert.False(t, usr.Migrated)

	accDigest, profDigest := testutil.Digests(t, repo, acc.ID, acc.Role)
	assert.Equal(t, digest, accDigest)
	assert.Equal(t, "stale", profDigest)

	_, err = db.Exec(`DROP TRIGGER guru_read_only`)
	require.NoError(t, err)
	_, err = svc.Login(ctx, acc.Email, "hunter2")
	require.NoError(t, err)
	_, profDigest = testutil.Digests(t, repo, acc.ID, acc.Role)
	assert.Equal(t, digest, profDigest)
}
