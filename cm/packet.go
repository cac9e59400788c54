package cm

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/escrow-tf/trackmmr/internal/protofield"
	"github.com/escrow-tf/trackmmr/steamlang"
	"github.com/klauspost/compress/gzip"
	"github.com/rotisserie/eris"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	protocolVersion = 65580
	windows10OSType = 16
	// maxMultiSize guards against a hostile size_unzipped.
	maxMultiSize = 16 << 20
)

// header is the subset of CMsgProtoBufHeader a client needs.
type header struct {
	SteamID      uint64
	SessionID    int32
	RoutingAppID uint32
	Result       steamlang.EResult
}

func (h header) marshal() []byte {
	var b []byte
	b = protofield.AppendFixed64(b, 1, h.SteamID)
	b = protofield.AppendVarint(b, 2, uint64(int64(h.SessionID)))
	if h.RoutingAppID != 0 {
		b = protofield.AppendVarint(b, 3, uint64(h.RoutingAppID))
	}
	return b
}

func unmarshalHeader(b []byte) (header, error) {
	var h header
	err := protofield.Range(b, func(field protofield.Field) error {
		switch field.Number {
		case 1:
			h.SteamID = field.Varint
		case 2:
			h.SessionID = field.Int32()
		case 3:
			h.RoutingAppID = field.Uint32()
		case 13:
			h.Result = steamlang.EResult(field.Int32())
		}
		return nil
	})
	return h, eris.Wrap(err, "bad message header")
}

// encodeFrame lays out a protobuf message: the type with ProtoMask, the header length,
// the header and the body. CM packets and GC payloads share it.
func encodeFrame(wireType uint32, hdr []byte, body []byte) []byte {
	out := make([]byte, 8, 8+len(hdr)+len(body))
	binary.LittleEndian.PutUint32(out[0:], wireType)
	binary.LittleEndian.PutUint32(out[4:], uint32(len(hdr)))
	out = append(out, hdr...)
	return append(out, body...)
}

func decodeFrame(data []byte) (uint32, []byte, []byte, error) {
	if len(data) < 8 {
		return 0, nil, nil, eris.Errorf("frame of %d bytes is too short", len(data))
	}

	wireType := binary.LittleEndian.Uint32(data[0:])
	if wireType&steamlang.ProtoMask == 0 {
		return wireType, nil, data[4:], nil
	}

	headerLength := binary.LittleEndian.Uint32(data[4:])
	if uint64(headerLength) > uint64(len(data)-8) {
		return 0, nil, nil, eris.Errorf("header length %d exceeds frame of %d bytes", headerLength, len(data))
	}

	end := 8 + int(headerLength)
	return wireType, data[8:end], data[end:], nil
}

// unpackMulti splits a CMsgMulti body into the packets it carries.
func unpackMulti(body []byte) ([][]byte, error) {
	var sizeUnzipped uint32
	var payload []byte
	err := protofield.Range(body, func(field protofield.Field) error {
		switch field.Number {
		case 1:
			sizeUnzipped = field.Uint32()
		case 2:
			if err := protofield.Expect(field, protowire.BytesType); err != nil {
				return err
			}
			payload = field.Bytes
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "bad multi message")
	}

	if sizeUnzipped > 0 {
		if sizeUnzipped > maxMultiSize {
			return nil, eris.Errorf("multi message claims %d bytes unzipped", sizeUnzipped)
		}

		reader, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, eris.Wrap(err, "multi payload is not gzip")
		}
		defer func() { _ = reader.Close() }()

		payload, err = io.ReadAll(io.LimitReader(reader, int64(sizeUnzipped)+1))
		if err != nil {
			return nil, eris.Wrap(err, "couldn't inflate multi payload")
		}
		if uint32(len(payload)) != sizeUnzipped {
			return nil, eris.Errorf("multi payload inflated to %d bytes, expected %d", len(payload), sizeUnzipped)
		}
	}

	var packets [][]byte
	for len(payload) > 0 {
		if len(payload) < 4 {
			return nil, eris.New("truncated multi packet length")
		}
		size := binary.LittleEndian.Uint32(payload)
		payload = payload[4:]
		if uint64(size) > uint64(len(payload)) {
			return nil, eris.Errorf("multi packet of %d bytes exceeds remaining %d", size, len(payload))
		}
		packets = append(packets, payload[:size])
		payload = payload[size:]
	}
	return packets, nil
}

type logonRequest struct {
	AccountName string
	AccessToken string
	Language    string
	CellID      uint32
}

func (r logonRequest) marshal() []byte {
	var b []byte
	b = protofield.AppendVarint(b, 1, protocolVersion)
	if r.CellID != 0 {
		b = protofield.AppendVarint(b, 3, uint64(r.CellID))
	}
	b = protofield.AppendString(b, 6, r.Language)
	b = protofield.AppendVarint(b, 7, windows10OSType)
	b = protofield.AppendBool(b, 8, true)
	b = protofield.AppendString(b, 50, r.AccountName)
	b = protofield.AppendString(b, 108, r.AccessToken)
	return b
}

type logonResponse struct {
	Result                 steamlang.EResult
	LegacyHeartbeatSeconds int32
	HeartbeatSeconds       int32
	CellID                 uint32
}

func unmarshalLogonResponse(b []byte) (logonResponse, error) {
	response := logonResponse{Result: steamlang.FailResult}
	err := protofield.Range(b, func(field protofield.Field) error {
		switch field.Number {
		case 1:
			response.Result = steamlang.EResult(field.Int32())
		case 2:
			response.LegacyHeartbeatSeconds = field.Int32()
		case 3:
			response.HeartbeatSeconds = field.Int32()
		case 7:
			response.CellID = field.Uint32()
		}
		return nil
	})
	return response, eris.Wrap(err, "bad logon response")
}

func (r logonResponse) heartbeatSeconds() int32 {
	if r.HeartbeatSeconds > 0 {
		return r.HeartbeatSeconds
	}
	return r.LegacyHeartbeatSeconds
}

func unmarshalLoggedOff(b []byte) (steamlang.EResult, error) {
	result := steamlang.FailResult
	err := protofield.Range(b, func(field protofield.Field) error {
		if field.Number == 1 {
			result = steamlang.EResult(field.Int32())
		}
		return nil
	})
	return result, eris.Wrap(err, "bad logged off message")
}

func marshalGamesPlayed(appIDs []uint32) []byte {
	var b []byte
	for _, appID := range appIDs {
		game := protofield.AppendFixed64(nil, 2, uint64(appID))
		b = protofield.AppendBytes(b, 1, game)
	}
	return protofield.AppendVarint(b, 2, windows10OSType)
}

// gcMessage is CMsgGCClient, the envelope of ClientToGC and ClientFromGC.
type gcMessage struct {
	AppID   uint32
	MsgType uint32
	Payload []byte
}

func (m gcMessage) marshal() []byte {
	var b []byte
	b = protofield.AppendVarint(b, 1, uint64(m.AppID))
	b = protofield.AppendVarint(b, 2, uint64(m.MsgType))
	return protofield.AppendBytes(b, 3, m.Payload)
}

func unmarshalGCMessage(b []byte) (gcMessage, error) {
	var m gcMessage
	err := protofield.Range(b, func(field protofield.Field) error {
		switch field.Number {
		case 1:
			m.AppID = field.Uint32()
		case 2:
			m.MsgType = field.Uint32()
		case 3:
			if err := protofield.Expect(field, protowire.BytesType); err != nil {
				return err
			}
			m.Payload = field.Bytes
		}
		return nil
	})
	return m, eris.Wrap(err, "bad GC envelope")
}
