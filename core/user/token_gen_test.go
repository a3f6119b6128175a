package user

import (
	"testing"
	"time"

	"github.com/trezcool/slopeside/core"
)

func TestMakeVerifyToken(t *testing.T) {
	gen := NewTokenGenerator(core.NewTestConfig())

	now := time.Now()
	usr := User{
		ID:        "5f0c9f3e-8a48-4a1e-9d3f-0b1f6f2a9d11",
		Name:      "T",
		Email:     "t@test.test",
		Role:      RoleClient,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: now,
	}
	usr.SetActive(true)
	_ = usr.SetPassword("pwd")

	validToken, err := gen.MakeToken(usr)
	if err != nil {
		t.Fatalf("MakeToken() error = %v", err)
	}

	// generate an expired token
	dayLate := gen.timeout + (24 * time.Hour)
	gen.nowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken, _ := gen.MakeToken(usr)
	gen.nowFunc = time.Now // reset

	// a new login invalidates previous tokens
	loggedIn := usr
	loggedIn.LastLogin = now.Add(time.Minute)

	tests := []struct {
		name    string
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", usr: usr, wantErr: errInvalidToken},
		{name: "invalid parts len", usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", usr: usr, token: "hahaha-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid timestamp", usr: usr, token: "NRXWY-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid token", usr: usr, token: "HE4TS-sigsig-sig", wantErr: errInvalidToken},
		{name: "expired token", usr: usr, token: expiredToken, wantErr: errTokenExpired},
		{name: "last login changed", usr: loggedIn, token: validToken, wantErr: errInvalidToken},
		{name: "valid token", usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := gen.VerifyToken(tt.usr, tt.token); err != tt.wantErr {
				t.Errorf("VerifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	usr := User{ID: "5f0c9f3e-8a48-4a1e-9d3f-0b1f6f2a9d11"}
	got, err := decodeUID(EncodeUID(usr))
	if err != nil {
		t.Fatalf("decodeUID() error = %v", err)
	}
	if got != usr.ID {
		t.Errorf("decodeUID() = %v, want %v", got, usr.ID)
	}
	if _, err := decodeUID("%%%"); err == nil {
		t.Error("decodeUID() expected an error")
	}
}
