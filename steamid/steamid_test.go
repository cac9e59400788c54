package steamid

import "testing"

func TestEmptySteamID64(t *testing.T) {
	_, err := ParseSteamID64("")
	if err == nil {
		t.Error("expected error, got none")
	}
}

func TestNoneNumberSteamID64(t *testing.T) {
	_, err := ParseSteamID64("not a number")
	if err == nil {
		t.Error("expected error, got none")
	}
}

func TestValidSteamID64(t *testing.T) {
	steamID, err := ParseSteamID64("76561197960287930")
	if err != nil {
		t.Error(err)
	}

	if !steamID.IsValid() {
		t.Error("steamID is not valid")
	}

	if !steamID.IsValidIndividual() {
		t.Error("steamID is not valid individual")
	}

	if steamID.AccountId() != 22202 {
		t.Errorf("AccountId()=%d, expected 22202", steamID.AccountId())
	}

	if steamID.String() != "76561197960287930" {
		t.Errorf("String()=%s, expected round trip", steamID.String())
	}
}

func TestNewIndividualPacking(t *testing.T) {
	anonymous := NewIndividual(0)
	if anonymous.Uint64() != 76561197960265728 {
		t.Errorf("Uint64()=%d, expected 76561197960265728", anonymous.Uint64())
	}

	if anonymous.IsValidIndividual() {
		t.Error("account zero must not be a valid individual")
	}

	packed := NewIndividual(22202).Uint64()
	if FromSteamID64(packed).AccountId() != 22202 {
		t.Errorf("FromSteamID64(%d) lost the account id", packed)
	}
}
