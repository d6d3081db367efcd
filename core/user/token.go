package user

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	tokenSalt  = []byte("eduva.core.user.reset_token")
	tsEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// ResetTokens issues password reset tokens of the form "<days-b32>-<hmac>".
// The HMAC covers the account id and its current digest, so a token dies as soon as
// the digest changes: after a reset, a password change or a legacy migration.
type ResetTokens struct {
	key     [32]byte
	maxDays int
	now     func() time.Time
}

func NewResetTokens(secretKey string, timeout time.Duration) *ResetTokens {
	days := int(timeout / (24 * time.Hour))
	if days < 1 {
		days = 1
	}
	return &ResetTokens{
		key:     sha256.Sum256(append(append([]byte(nil), tokenSalt...), secretKey...)),
		maxDays: days,
		now:     time.Now,
	}
}

// SetClock replaces the clock used to stamp and check tokens.
func (rt *ResetTokens) SetClock(now func() time.Time) { rt.now = now }

// EncodeUID base64 encodes an account id for use in reset links.
func EncodeUID(accountID int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(accountID)))
}

// DecodeUID reverses EncodeUID.
func DecodeUID(uid string) (int, error) {
	idBytes, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return 0, errInvalidToken
	}
	id, err := strconv.Atoi(string(idBytes))
	if err != nil || id <= 0 {
		return 0, errInvalidToken
	}
	return id, nil
}

// Make returns a reset token for the account holding digest.
func (rt *ResetTokens) Make(accountID int, digest string) string {
	return rt.makeWithTimestamp(accountID, digest, numDaysSince2001(rt.now()))
}

// Verify returns errInvalidToken or errTokenExpired.
func (rt *ResetTokens) Verify(accountID int, digest, token string) error {
	parts := strings.SplitN(token, "-", 2)
	if len(parts) < 2 {
		return errInvalidToken
	}

	data, err := tsEncoding.DecodeString(parts[0])
	if err != nil {
		return errInvalidToken
	}
	ts, err := strconv.Atoi(string(data))
	if err != nil {
		return errInvalidToken
	}

	// check that token has not been tampered with
	want := rt.makeWithTimestamp(accountID, digest, ts)
	if subtle.ConstantTimeCompare([]byte(want), []byte(token)) == 0 {
		return errInvalidToken
	}

	if numDaysSince2001(rt.now())-ts > rt.maxDays {
		return errTokenExpired
	}
	return nil
}

func (rt *ResetTokens) makeWithTimestamp(accountID int, digest string, ts int) string {
	tsB32 := tsEncoding.EncodeToString([]byte(strconv.Itoa(ts)))
	h := hmac.New(sha256.New, rt.key[:])
	_, _ = fmt.Fprintf(h, "%d|%s|%d", accountID, digest, ts)
	return tsB32 + "-" + base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func numDaysSince2001(t time.Time) int {
	ref := time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)
	return int(math.Ceil(t.Sub(ref).Hours() / 24))
}
