package utils

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const (
	// OTPStep is the width of one passcode window.  The same account gets
	// the same code for the whole window.
	OTPStep = 600 * time.Second
	// OTPDigits is the length of every generated passcode.
	OTPDigits = 6
)

// OTPGenerator derives time-windowed numeric passcodes from a shared
// secret and a per-account seed.  It holds no mutable state and is safe
// for concurrent use.
type OTPGenerator struct {
	secret []byte
	step   time.Duration
	digits int
}

// NewOTPGenerator returns a generator keyed by secret.
func NewOTPGenerator(secret string) (*OTPGenerator, error) {
	if secret == "" {
		return nil, errors.New("otp secret is empty")
	}
	return &OTPGenerator{secret: []byte(secret), step: OTPStep, digits: OTPDigits}, nil
}

// Generate returns the passcode for accountID in the window containing at.
func (g *OTPGenerator) Generate(accountID uint64, at time.Time) (string, error) {
	counter := at.Unix() / int64(g.step/time.Second)
	return HOTP(g.accountKey(accountID), counter, g.digits)
}

// accountKey binds the shared secret to the account seed so that two
// accounts never share a key.
func (g *OTPGenerator) accountKey(accountID uint64) []byte {
	mac := hmac.New(sha256.New, g.secret)
	_, _ = mac.Write([]byte("account:" + strconv.FormatUint(accountID, 10)))
	return mac.Sum(nil)
}

// HOTP computes an RFC 4226 one-time password (HMAC-SHA1 with dynamic
// truncation) for key and counter.
func HOTP(key []byte, counter int64, digits int) (string, error) {
	if len(key) == 0 {
		return "", errors.New("empty otp key")
	}
	if digits <= 0 || digits > 9 {
		return "", fmt.Errorf("unsupported otp length %d", digits)
	}
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	mac := hmac.New(sha1.New, key)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", digits, bin%mod), nil
}
