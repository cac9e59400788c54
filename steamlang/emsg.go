package steamlang

import "strconv"

// EMsg identifies a message on a CM connection. Protobuf-backed messages carry
// ProtoMask in the high bit of the wire value.
type EMsg uint32

const ProtoMask uint32 = 0x80000000

//goland:noinspection GoUnusedConst
const (
	EMsgMulti               EMsg = 1
	EMsgClientHeartBeat     EMsg = 703
	EMsgClientGamesPlayed   EMsg = 742
	EMsgClientLogOnResponse EMsg = 751
	EMsgClientLoggedOff     EMsg = 757
	EMsgClientToGC          EMsg = 5452
	EMsgClientFromGC        EMsg = 5453
	EMsgClientLogon         EMsg = 5514
)

// MsgFromWire splits a raw wire value into the message id and its protobuf flag.
func MsgFromWire(raw uint32) (EMsg, bool) {
	return EMsg(raw &^ ProtoMask), raw&ProtoMask != 0
}

// Wire returns the value written in front of a protobuf-encoded message.
func (m EMsg) Wire() uint32 {
	return uint32(m) | ProtoMask
}

var msgNames = map[EMsg]string{
	EMsgMulti:               "Multi",
	EMsgClientHeartBeat:     "ClientHeartBeat",
	EMsgClientGamesPlayed:   "ClientGamesPlayed",
	EMsgClientLogOnResponse: "ClientLogOnResponse",
	EMsgClientLoggedOff:     "ClientLoggedOff",
	EMsgClientToGC:          "ClientToGC",
	EMsgClientFromGC:        "ClientFromGC",
	EMsgClientLogon:         "ClientLogon",
}

func (m EMsg) String() string {
	if name, ok := msgNames[m]; ok {
		return name
	}
	return "EMsg(" + strconv.FormatUint(uint64(m), 10) + ")"
}
