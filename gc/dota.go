// Package gc encodes the few Dota 2 game coordinator messages needed to read a player's
// ranked match history.
package gc

import (
	"github.com/escrow-tf/trackmmr/internal/protofield"
	"github.com/rotisserie/eris"
	"google.golang.org/protobuf/encoding/protowire"
)

const DotaAppID uint32 = 570

// Message kinds, without the protobuf mask.
const (
	ClientWelcome                 uint32 = 4004
	ClientHello                   uint32 = 4006
	GetPlayerMatchHistory         uint32 = 8021
	GetPlayerMatchHistoryResponse uint32 = 8022
)

const Source2Engine uint32 = 1

// Hello announces the client to the GC. The GC answers with ClientWelcome once the
// session is routed, which may take several seconds after the game is marked as played.
type Hello struct {
	Engine uint32
}

func (h Hello) Marshal() []byte {
	return protofield.AppendVarint(nil, 7, uint64(h.Engine))
}

type MatchHistoryRequest struct {
	AccountID        uint32
	StartAtMatchID   uint64
	MatchesRequested uint32
	RequestID        uint64
}

func (r MatchHistoryRequest) Marshal() []byte {
	var b []byte
	b = protofield.AppendVarint(b, 1, uint64(r.AccountID))
	if r.StartAtMatchID != 0 {
		b = protofield.AppendVarint(b, 2, r.StartAtMatchID)
	}
	b = protofield.AppendVarint(b, 3, uint64(r.MatchesRequested))
	if r.RequestID != 0 {
		b = protofield.AppendVarint(b, 5, r.RequestID)
	}
	return b
}

type Match struct {
	MatchID      uint64
	StartTime    uint32
	HeroID       uint32
	Winner       bool
	GameMode     uint32
	RankChange   int32
	PreviousRank uint32
	LobbyType    uint32
	SoloRank     bool
	Abandon      bool
	Duration     uint32
}

type MatchHistoryResponse struct {
	Matches   []Match
	RequestID uint64
}

func UnmarshalMatchHistoryResponse(b []byte) (MatchHistoryResponse, error) {
	var response MatchHistoryResponse
	err := protofield.Range(b, func(field protofield.Field) error {
		switch field.Number {
		case 1:
			if err := protofield.Expect(field, protowire.BytesType); err != nil {
				return err
			}
			match, err := unmarshalMatch(field.Bytes)
			if err != nil {
				return eris.Wrapf(err, "match %d", len(response.Matches))
			}
			response.Matches = append(response.Matches, match)
		case 2:
			if err := protofield.Expect(field, protowire.VarintType); err != nil {
				return err
			}
			response.RequestID = field.Varint
		}
		return nil
	})
	if err != nil {
		return MatchHistoryResponse{}, eris.Wrap(err, "couldn't decode match history response")
	}
	return response, nil
}

func unmarshalMatch(b []byte) (Match, error) {
	var match Match
	err := protofield.Range(b, func(field protofield.Field) error {
		if field.Number > 11 {
			return nil
		}
		if err := protofield.Expect(field, protowire.VarintType); err != nil {
			return err
		}

		switch field.Number {
		case 1:
			match.MatchID = field.Varint
		case 2:
			match.StartTime = field.Uint32()
		case 3:
			match.HeroID = field.Uint32()
		case 4:
			match.Winner = field.Bool()
		case 5:
			match.GameMode = field.Uint32()
		case 6:
			match.RankChange = field.Int32()
		case 7:
			match.PreviousRank = field.Uint32()
		case 8:
			match.LobbyType = field.Uint32()
		case 9:
			match.SoloRank = field.Bool()
		case 10:
			match.Abandon = field.Bool()
		case 11:
			match.Duration = field.Uint32()
		}
		return nil
	})
	return match, err
}
