package user

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMakeVerifyToken(t *testing.T) {
	tg := &TokenGenerator{
		secretKey: []byte("secret"),
		timeout:   3 * 24 * time.Hour,
	}

	now := time.Now()
	usr := User{
		ID:        uuid.New().String(),
		Name:      "T",
		Email:     "t@test.test",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: now,
	}
	_ = usr.SetPassword("pwd")

	validToken, err := tg.MakeToken(usr)
	if err != nil {
		t.Fatalf("MakeToken() failed, %v", err)
	}

	// generate an expired token
	dayLate := tg.timeout + (24 * time.Hour)
	NowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken, err := tg.MakeToken(usr)
	if err != nil {
		t.Fatalf("MakeToken() failed, %v", err)
	}
	NowFunc = time.Now // reset

	tests := []struct {
		name    string
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", usr: usr, wantErr: errInvalidToken},
		{name: "missing separator", usr: usr, token: "notatoken", wantErr: errInvalidToken},
		{name: "bad base32 stamp", usr: usr, token: "0189!-somesig", wantErr: errInvalidToken},
		{name: "non numeric stamp", usr: usr, token: "MFRGG-somesig", wantErr: errInvalidToken},
		{name: "forged signature", usr: usr, token: "G43Q-somesig", wantErr: errInvalidToken},
		{name: "expired token", usr: usr, token: expiredToken, wantErr: errTokenExpired},
		{name: "valid token", usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tg.VerifyToken(tt.usr, tt.token); err != tt.wantErr {
				t.Errorf("VerifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
