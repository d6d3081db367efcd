package user

import (
	"testing"
	"time"
)

func TestResetTokens(t *testing.T) {
	timeout := 3 * 24 * time.Hour
	rt := NewResetTokens("secret", timeout)
	digest := "$2a$04$N9qo8uLOickgx2ZMRZoMye"

	validToken := rt.Make(1, digest)

	// generate an expired token
	dayLate := timeout + (24 * time.Hour)
	rt.SetClock(func() time.Time { return time.Now().Add(-dayLate) })
	expiredToken := rt.Make(1, digest)
	rt.SetClock(time.Now) // reset

	tests := []struct {
		name      string
		rt        *ResetTokens
		accountID int
		digest    string
		token     string
		wantErr   error
	}{
		{name: "no token", wantErr: errInvalidToken},
		{name: "invalid parts len", token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", token: "hahaha-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid timestamp", token: "NRXWY-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid signature", token: "HE4TS-sigsig-sig", wantErr: errInvalidToken},
		{name: "other account", accountID: 2, token: validToken, wantErr: errInvalidToken},
		{name: "digest changed", digest: "$2a$04$somethingelse", token: validToken, wantErr: errInvalidToken},
		{name: "other secret", rt: NewResetTokens("other", timeout), token: validToken, wantErr: errInvalidToken},
		{name: "expired token", token: expiredToken, wantErr: errTokenExpired},
		{name: "valid token", token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.rt == nil {
				tt.rt = rt
			}
			if tt.accountID == 0 {
				tt.accountID = 1
			}
			if tt.digest == "" {
				tt.digest = digest
			}
			if err := tt.rt.Verify(tt.accountID, tt.digest, tt.token); err != tt.wantErr {
				t.Errorf("Verify() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeUID(t *testing.T) {
	tests := []struct {
		name    string
		uid     string
		want    int
		wantErr bool
	}{
		{name: "round trip", uid: EncodeUID(42), want: 42},
		{name: "not base64", uid: "!!", wantErr: true},
		{name: "not a number", uid: "bG9s", wantErr: true}, // "lol"
		{name: "zero", uid: EncodeUID(0), wantErr: true},
		{name: "empty", uid: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeUID(tt.uid)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeUID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("DecodeUID() = %d, want %d", got, tt.want)
			}
		})
	}
}
