package steamid

import (
	"errors"
	"strconv"

	"github.com/rotisserie/eris"
)

type Universe uint
type Type uint
type Instance uint

//goland:noinspection GoUnusedConst
const (
	UniverseInvalid Universe = iota
	UniversePublic
	UniverseBeta
	UniverseInternal
	UniverseDev
)

//goland:noinspection GoUnusedConst
const (
	TypeInvalid Type = iota
	TypeIndividual
	TypeMultiseat
	TypeGameServer
	TypeAnonGameServer
	TypePending
	TypeContentServer
	TypeClan
	TypeChat
	TypeP2pSuperSeeder
	TypeAnonUser
)

//goland:noinspection GoUnusedConst
const (
	InstanceAll Instance = iota
	InstanceDesktop
	InstanceConsole
	InstanceWeb
)

//goland:noinspection GoUnusedConst
const (
	AccountIDMask       uint64 = 0xFFFFFFFF
	AccountInstanceMask uint64 = 0x000FFFFF
	AccountTypeMask     uint64 = 0xF
)

var (
	ErrorEmpty = errors.New("can't parse empty string as SteamID64")
)

// SteamID is a decoded 64-bit Steam identifier.
type SteamID struct {
	universe  Universe
	idType    Type
	instance  Instance
	accountID uint32
}

// FromSteamID64 unpacks the wire representation used in CM message headers.
func FromSteamID64(packed uint64) SteamID {
	return SteamID{
		accountID: uint32(packed & AccountIDMask),
		instance:  Instance((packed >> 32) & AccountInstanceMask),
		idType:    Type((packed >> 52) & AccountTypeMask),
		universe:  Universe(packed >> 56),
	}
}

// NewIndividual returns a public desktop individual id. An account id of zero is what
// the CM expects in the header of a logon request before the session is established.
func NewIndividual(accountID uint32) SteamID {
	return SteamID{
		universe:  UniversePublic,
		idType:    TypeIndividual,
		instance:  InstanceDesktop,
		accountID: accountID,
	}
}

func ParseSteamID64(s string) (SteamID, error) {
	if s == "" {
		return SteamID{}, ErrorEmpty
	}

	parsedID, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return SteamID{}, eris.Wrapf(err, "can't parse steamID into int64")
	}

	return FromSteamID64(parsedID), nil
}

func (id SteamID) Uint64() uint64 {
	return uint64(id.universe)<<56 |
		(uint64(id.idType)&AccountTypeMask)<<52 |
		(uint64(id.instance)&AccountInstanceMask)<<32 |
		uint64(id.accountID)
}

func (id SteamID) String() string {
	return strconv.FormatUint(id.Uint64(), 10)
}

func (id SteamID) IsValid() bool {
	switch {
	case id.idType <= TypeInvalid || id.idType > TypeAnonUser:
		return false
	case id.universe <= UniverseInvalid || id.universe > UniverseDev:
		return false
	case id.idType == TypeIndividual && (id.accountID == 0 || id.instance > InstanceWeb):
		return false
	case id.idType == TypeClan && (id.accountID == 0 || id.instance != InstanceAll):
		return false
	case id.idType == TypeGameServer && id.accountID == 0:
		return false
	}

	return true
}

func (id SteamID) IsValidIndividual() bool {
	return id.universe == UniversePublic &&
		id.idType == TypeIndividual &&
		id.instance == InstanceDesktop &&
		id.accountID != 0
}

// AccountId is the 32-bit account number the game coordinator uses to address players.
func (id SteamID) AccountId() uint32 {
	return id.accountID
}
