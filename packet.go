package wschat

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// PacketType tags every frame exchanged with the chat server.
type PacketType int

const (
	PacketError PacketType = iota
	PacketSystem
	PacketMessage
	PacketOnlineList
	PacketAuth
	PacketStatus
	PacketJoin
	PacketLeave
	PacketCreateRoom
	PacketRemoveRoom
	PacketPing
)

func (t PacketType) String() string {
	switch t {
	case PacketError:
		return "error"
	case PacketSystem:
		return "system"
	case PacketMessage:
		return "message"
	case PacketOnlineList:
		return "online_list"
	case PacketAuth:
		return "auth"
	case PacketStatus:
		return "status"
	case PacketJoin:
		return "join"
	case PacketLeave:
		return "leave"
	case PacketCreateRoom:
		return "create_room"
	case PacketRemoveRoom:
		return "remove_room"
	case PacketPing:
		return "ping"
	default:
		return fmt.Sprintf("packet_type(%d)", int(t))
	}
}

// MessageStyle selects how a chat message is rendered.
type MessageStyle int

const (
	StyleMessage MessageStyle = iota
	StyleMe
	StyleEvent
	StyleOfftop
)

// Message is one chat message, inbound or outbound.
type Message struct {
	Target   string       `json:"target"`
	MemberID int64        `json:"member_id,omitempty"`
	Text     string       `json:"message"`
	Style    MessageStyle `json:"style,omitempty"`
	Time     int64        `json:"time,omitempty"`
}

// AuthInfo is the server's reply to a successful authentication.
type AuthInfo struct {
	UserID int64  `json:"user_id"`
	Login  string `json:"login"`
	Token  string `json:"token,omitempty"`
}

// StatusUpdate is the payload of a status packet: a member snapshot
// plus the status transition it announces.
type StatusUpdate struct {
	Target       string     `json:"target"`
	Status       UserStatus `json:"status"`
	MemberID     int64      `json:"member_id"`
	Name         string     `json:"name"`
	Color        string     `json:"color"`
	Girl         bool       `json:"girl"`
	IsModerator  bool       `json:"is_moderator"`
	IsOwner      bool       `json:"is_owner"`
	UserID       int64      `json:"user_id"`
	LastSeenTime int64      `json:"last_seen_time"`
}

// inbound is the decoded form of one server frame.
type inbound interface {
	kind() PacketType
}

type errorFrame struct {
	SequenceID int64      `json:"sequenceId"`
	Source     PacketType `json:"source"`
	Target     string     `json:"target"`
	Code       ErrorCode  `json:"code"`
	Info       string     `json:"info"`
}

type systemFrame struct {
	Target  string `json:"target"`
	Message string `json:"message"`
}

type messageFrame struct {
	Message
}

type onlineListFrame struct {
	SequenceID int64    `json:"sequenceId"`
	Target     string   `json:"target"`
	List       []Member `json:"list"`
}

type authFrame struct {
	SequenceID int64 `json:"sequenceId"`
	AuthInfo
}

type statusFrame struct {
	StatusUpdate
}

type joinFrame struct {
	SequenceID int64  `json:"sequenceId"`
	Target     string `json:"target"`
	MemberID   int64  `json:"member_id"`
	Login      string `json:"login"`
}

type leaveFrame struct {
	SequenceID int64  `json:"sequenceId"`
	Target     string `json:"target"`
}

type createRoomFrame struct {
	SequenceID int64  `json:"sequenceId"`
	Target     string `json:"target"`
}

type removeRoomFrame struct {
	SequenceID int64  `json:"sequenceId"`
	Target     string `json:"target"`
}

type pingFrame struct{}

func (errorFrame) kind() PacketType      { return PacketError }
func (systemFrame) kind() PacketType     { return PacketSystem }
func (messageFrame) kind() PacketType    { return PacketMessage }
func (onlineListFrame) kind() PacketType { return PacketOnlineList }
func (authFrame) kind() PacketType       { return PacketAuth }
func (statusFrame) kind() PacketType     { return PacketStatus }
func (joinFrame) kind() PacketType       { return PacketJoin }
func (leaveFrame) kind() PacketType      { return PacketLeave }
func (createRoomFrame) kind() PacketType { return PacketCreateRoom }
func (removeRoomFrame) kind() PacketType { return PacketRemoveRoom }
func (pingFrame) kind() PacketType       { return PacketPing }

// requiredFields lists the fields a frame of each type must carry to be
// accepted. Frames failing validation are dropped at the boundary.
var requiredFields = map[PacketType][]string{
	PacketError:      {"code"},
	PacketSystem:     {"target", "message"},
	PacketMessage:    {"target", "message"},
	PacketOnlineList: {"target", "list"},
	PacketStatus:     {"status", "member_id"},
	PacketJoin:       {"target", "member_id"},
	PacketLeave:      {"target"},
	PacketCreateRoom: {"target"},
	PacketRemoveRoom: {"target"},
}

// decodePacket validates the tag and required fields of a raw frame,
// then unmarshals it into its concrete shape.
func decodePacket(raw []byte) (inbound, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("frame is not valid JSON")
	}

	root := gjson.ParseBytes(raw)
	tag := root.Get("type")
	if tag.Type != gjson.Number {
		return nil, fmt.Errorf("frame has no numeric type tag")
	}

	typ := PacketType(tag.Int())
	if typ < PacketError || typ > PacketPing {
		return nil, fmt.Errorf("unrecognized packet type %d", tag.Int())
	}

	for _, field := range requiredFields[typ] {
		if !root.Get(field).Exists() {
			return nil, fmt.Errorf("%s packet is missing required field %q", typ, field)
		}
	}

	var pkt inbound
	var err error
	switch typ {
	case PacketError:
		pkt, err = unmarshalFrame[errorFrame](raw)
	case PacketSystem:
		pkt, err = unmarshalFrame[systemFrame](raw)
	case PacketMessage:
		pkt, err = unmarshalFrame[messageFrame](raw)
	case PacketOnlineList:
		pkt, err = unmarshalFrame[onlineListFrame](raw)
	case PacketAuth:
		pkt, err = unmarshalFrame[authFrame](raw)
	case PacketStatus:
		pkt, err = unmarshalFrame[statusFrame](raw)
	case PacketJoin:
		pkt, err = unmarshalFrame[joinFrame](raw)
	case PacketLeave:
		pkt, err = unmarshalFrame[leaveFrame](raw)
	case PacketCreateRoom:
		pkt, err = unmarshalFrame[createRoomFrame](raw)
	case PacketRemoveRoom:
		pkt, err = unmarshalFrame[removeRoomFrame](raw)
	case PacketPing:
		pkt = pingFrame{}
	}
	if err != nil {
		return nil, fmt.Errorf("malformed %s packet: %w", typ, err)
	}
	return pkt, nil
}

func unmarshalFrame[T inbound](raw []byte) (inbound, error) {
	var frame T
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, err
	}
	return frame, nil
}

// Outgoing shapes. sequenceId is attached only to requests that expect
// a correlated reply.

type authRequest struct {
	Type       PacketType `json:"type"`
	SequenceID int64      `json:"sequenceId,omitempty"`
	UKey       string     `json:"ukey,omitempty"`
	APIKey     string     `json:"api_key,omitempty"`
	Login      string     `json:"login,omitempty"`
	Password   string     `json:"password,omitempty"`
	Token      string     `json:"token,omitempty"`
}

type joinRequest struct {
	Type        PacketType `json:"type"`
	SequenceID  int64      `json:"sequenceId,omitempty"`
	Target      string     `json:"target"`
	AutoLogin   bool       `json:"auto_login"`
	LoadHistory bool       `json:"load_history"`
}

// targetRequest covers leave, create_room, remove_room and online_list
// requests, which carry nothing but the target.
type targetRequest struct {
	Type       PacketType `json:"type"`
	SequenceID int64      `json:"sequenceId,omitempty"`
	Target     string     `json:"target"`
}

type statusRequest struct {
	Type   PacketType `json:"type"`
	Target string     `json:"target,omitempty"`
	Status UserStatus `json:"status"`
}

type messageRequest struct {
	Type   PacketType `json:"type"`
	Target string     `json:"target"`
	Text   string     `json:"message"`
	Time   int64      `json:"time"`
}

type pingReply struct {
	Type PacketType `json:"type"`
}

func encodePacket(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode packet: %w", err)
	}
	return raw, nil
}
