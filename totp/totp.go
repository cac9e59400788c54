package totp

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"time"

	"github.com/rotisserie/eris"
)

// Range of possible chars for auth code.
//
//goland:noinspection SpellCheckingInspection
const codeChars = "23456789BCDFGHJKMNPQRTVWXY"

const codeLength = 5

// State generates Steam Guard mobile authenticator codes.
type State struct {
	sharedSecret []byte
}

func NewState(sharedSecret string) (*State, error) {
	sharedKey, err := base64.StdEncoding.DecodeString(sharedSecret)
	if err != nil {
		return nil, eris.Wrap(err, "error decoding shared secret")
	}

	if len(sharedKey) == 0 {
		return nil, eris.New("shared secret is empty")
	}

	return &State{sharedSecret: sharedKey}, nil
}

// GenerateAuthCode returns the code valid for the 30 second window containing at.
func (s State) GenerateAuthCode(at time.Time) string {
	timeBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(timeBytes, uint64(at.Unix())/30)

	mac := hmac.New(sha1.New, s.sharedSecret)
	mac.Write(timeBytes)
	hashcode := mac.Sum(nil)

	// Last 4 bits provide initial position
	start := hashcode[19] & 0xf

	fullCode := binary.BigEndian.Uint32(hashcode[start:start+4]) & (1<<31 - 1)

	code := make([]byte, codeLength)
	for i := range code {
		code[i] = codeChars[fullCode%uint32(len(codeChars))]
		fullCode /= uint32(len(codeChars))
	}

	return string(code)
}
