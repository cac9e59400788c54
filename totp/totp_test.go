package totp

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateAuthCode(t *testing.T) {
	//goland:noinspection SpellCheckingInspection
	state, err := NewState("cnOgv/KdpLoP6Nbh0GMkXkPXALQ=")
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	code := state.GenerateAuthCode(now)
	if len(code) != 5 {
		t.Errorf("len(code)=%d, expected 5 digit code", len(code))
	}

	for _, c := range code {
		if !strings.ContainsRune(codeChars, c) {
			t.Errorf("code %q contains %q outside the steam alphabet", code, c)
		}
	}

	windowStart := time.Unix(now.Unix()/30*30, 0)
	if state.GenerateAuthCode(windowStart) != state.GenerateAuthCode(windowStart.Add(29*time.Second)) {
		t.Error("codes within one 30 second window differ")
	}
}

func TestEmptySharedSecret(t *testing.T) {
	if _, err := NewState(""); err == nil {
		t.Error("expected error, got none")
	}
}
