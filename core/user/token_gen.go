package user

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/trezcool/shule/core"
)

var (
	tokenSalt = []byte("shule.core.user.token_gen")
	NowFunc   = time.Now // mockable

	b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// EncodeUID base64 encodes given User ID
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

// DecodeUID base64 decodes given UID
func DecodeUID(uid string) (string, error) {
	idBytes, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(idBytes), nil
}

// TokenGenerator makes and checks single-use password reset tokens. A token
// is invalidated by use (the password hash it signs changes) or by expiry.
type TokenGenerator struct {
	secretKey []byte
	timeout   time.Duration
}

func NewTokenGenerator(conf *core.Config) *TokenGenerator {
	return &TokenGenerator{
		secretKey: []byte(conf.SecretKey),
		timeout:   conf.PasswordResetTimeoutDelta,
	}
}

// MakeToken generates a password reset token for a given User.
func (tg *TokenGenerator) MakeToken(usr User) (string, error) {
	return tg.tokenAt(usr, dayStamp(NowFunc()))
}

// VerifyToken checks that a password reset token for a given User is valid.
func (tg *TokenGenerator) VerifyToken(usr User, token string) error {
	if token == "" {
		return errInvalidToken
	}
	parts := strings.SplitN(token, "-", 2)
	if len(parts) < 2 {
		return errInvalidToken
	}

	raw, err := b32.DecodeString(parts[0])
	if err != nil {
		return errInvalidToken
	}
	stamp, err := strconv.Atoi(string(raw))
	if err != nil {
		return errInvalidToken
	}

	// recompute and compare; any tampering changes the signature
	want, err := tg.tokenAt(usr, stamp)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(want), []byte(token)) == 0 {
		return errInvalidToken
	}

	if (dayStamp(NowFunc()) - stamp) > int(tg.timeout/(24*time.Hour)) {
		return errTokenExpired
	}
	return nil
}

// tokenAt builds "<b32(stamp)>-<signature>" for the given day stamp.
func (tg *TokenGenerator) tokenAt(usr User, stamp int) (string, error) {
	sig, err := tg.signature(fingerprint(usr, stamp))
	if err != nil {
		return "", err
	}
	return b32.EncodeToString([]byte(strconv.Itoa(stamp))) + "-" + sig, nil
}

func (tg *TokenGenerator) signature(val []byte) (string, error) {
	key := sha256.Sum256(append(tokenSalt, tg.secretKey...))
	h := hmac.New(sha256.New, key[:])
	if _, err := h.Write(val); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil)), nil
}

// dayStamp counts days since 2001-01-01; day granularity keeps tokens stable
// within a day while still bounding their lifetime.
func dayStamp(t time.Time) int {
	ref := time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)
	return int(math.Ceil(t.Sub(ref).Hours() / 24))
}

// fingerprint ties a token to the user state that invalidates it: the
// password hash and the last login time.
func fingerprint(usr User, stamp int) []byte {
	var val bytes.Buffer
	val.WriteString(usr.ID)
	val.Write(usr.PasswordHash)
	if !usr.LastLogin.IsZero() {
		val.WriteString(usr.LastLogin.String())
	}
	val.WriteString(strconv.Itoa(stamp))
	return val.Bytes()
}
