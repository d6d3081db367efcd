package user

import (
	"fmt"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/eduva/eduva/core"
)

// Roles
const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

var Roles = []Role{RoleStudent, RoleTeacher, RoleAdmin}

type Role string

func ParseRole(s string) (Role, error) {
	r := Role(core.CleanString(s, true /* lower */))
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// ProfileTable returns the table holding the role's profiles, keyed by user_id.
// It panics on an unknown role.
func (r Role) ProfileTable() string {
	switch r {
	case RoleStudent:
		return "siswa"
	case RoleTeacher:
		return "guru"
	case RoleAdmin:
		return "admin"
	}
	panic(fmt.Sprintf("user: no profile table for role %q", string(r)))
}

type Account struct {
	ID             int       `json:"id" db:"id"`
	Email          string    `json:"email" db:"email"`
	Name           string    `json:"name" db:"name"`
	Role           Role      `json:"role" db:"role"`
	PasswordDigest string    `json:"-" db:"password"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"` // UTC
}

// Approval is the students' access_approved flag.
type Approval string

const (
	Approved    Approval = "yes"
	NotApproved Approval = "no"
)

func (a Approval) IsApproved() bool { return a == Approved }

type (
	// RoleProfile is one of StudentProfile, TeacherProfile or AdminProfile.
	RoleProfile interface {
		Role() Role
		Base() ProfileBase
		Attributes() map[string]string
	}

	// ProfileBase holds the columns shared by every role table.
	ProfileBase struct {
		ID             int       `db:"id"`
		UserID         int       `db:"user_id"`
		Name           string    `db:"name"`
		PasswordDigest string    `db:"password"`
		UpdatedAt      time.Time `db:"updated_at"` // UTC
	}

	StudentProfile struct {
		ProfileBase
		Class          null.String `db:"class"`
		Major          null.String `db:"major"`
		AccessApproved Approval    `db:"access_approved"`
	}

	TeacherProfile struct {
		ProfileBase
		NIP     null.String `db:"nip"`
		Subject null.String `db:"subject"`
	}

	AdminProfile struct {
		ProfileBase
	}
)

var (
	_ RoleProfile = StudentProfile{}
	_ RoleProfile = TeacherProfile{}
	_ RoleProfile = AdminProfile{}
)

func (p StudentProfile) Role() Role        { return RoleStudent }
func (p StudentProfile) Base() ProfileBase { return p.ProfileBase }
func (p StudentProfile) Attributes() map[string]string {
	return nullAttrs(map[string]null.String{"class": p.Class, "major": p.Major})
}

func (p TeacherProfile) Role() Role        { return RoleTeacher }
func (p TeacherProfile) Base() ProfileBase { return p.ProfileBase }
func (p TeacherProfile) Attributes() map[string]string {
	return nullAttrs(map[string]null.String{"nip": p.NIP, "subject": p.Subject})
}

func (p AdminProfile) Role() Role                    { return RoleAdmin }
func (p AdminProfile) Base() ProfileBase             { return p.ProfileBase }
func (p AdminProfile) Attributes() map[string]string { return nil }

func nullAttrs(attrs map[string]null.String) map[string]string {
	res := make(map[string]string, len(attrs))
	for k, v := range attrs {
		if v.Valid {
			res[k] = v.String
		}
	}
	if len(res) == 0 {
		return nil
	}
	return res
}

// AuthUser is the identity produced by a successful login.
type AuthUser struct {
	ID         int               `json:"id"`
	Email      string            `json:"email"`
	Role       Role              `json:"role"`
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Migrated   bool              `json:"-"` // legacy credential rehashed during this login
}

func newAuthUser(acc Account, prof RoleProfile) AuthUser {
	name := prof.Base().Name
	if name == "" {
		name = acc.Name
	}
	return AuthUser{
		ID:         acc.ID,
		Email:      acc.Email,
		Role:       acc.Role,
		Name:       name,
		Attributes: prof.Attributes(),
	}
}

// CredentialRow pairs an account digest with its role profile copy.
// ProfileDigest is null when the profile row is missing.
type CredentialRow struct {
	AccountID     int         `db:"id"`
	Email         string      `db:"email"`
	Role          Role        `db:"role"`
	AccountDigest string      `db:"password"`
	ProfileDigest null.String `db:"profile_password"`
}

type PasswordChangeResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	AccountID int    `json:"account_id"`
}

// AuditReport summarizes the state of stored credentials.
type AuditReport struct {
	Accounts        int   `json:"accounts"`
	Legacy          int   `json:"legacy"`
	MissingProfiles int   `json:"missing_profiles"`
	Drifted         int   `json:"drifted"`
	Repaired        int   `json:"repaired"`
	Failed          int   `json:"failed"`
	DriftedIDs      []int `json:"drifted_ids,omitempty"`
}
