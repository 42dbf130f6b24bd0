// Package protocol defines the wire envelope between client and server
// (spec §6): a single `{name, payload, ack}` shape carrying every message
// in both directions, dispatched on name rather than a one-field-per-type
// tagged union. The envelope is pluggable wire format per spec; we
// transport it as JSON text over nhooyr.io/websocket + wsjson.
package protocol

import "encoding/json"

// Inbound message names the server recognizes.
const (
	MsgUserJoin     = "user:join"
	MsgChannelJoin  = "channel:join"
	MsgChannelLeave = "channel:leave"
	MsgEventPublish = "event:publish"
	MsgUserStatus   = "user:status"
	MsgUsersList    = "users:list"
)

// Outbound message names the server emits.
const (
	MsgConnectionEstablished = "connection:established"
	MsgRealtimeEvent         = "realtime:event"
	MsgUsersActive           = "users:active"
	MsgUserStatusChanged     = "user:status:changed"
)

// Envelope is the single wire shape both directions use. Payload is kept
// raw on decode so handleMessage can dispatch on Name before committing to
// a concrete payload type. Ack, when present on an inbound message, is
// echoed back on the corresponding reply so the caller can correlate
// request/response (used by users:list).
type Envelope struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Ack     string          `json:"ack,omitempty"`
}

// UserJoinPayload is the payload of an inbound user:join message.
type UserJoinPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// ConnectionEstablishedPayload is the payload of the outbound
// connection:established message sent the moment a transport connects.
type ConnectionEstablishedPayload struct {
	ConnectionID string `json:"connectionId"`
}

// UserStatusChangedPayload is the payload of the outbound
// user:status:changed broadcast.
type UserStatusChangedPayload struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

// Encode packs name and payload into an Envelope, marshaling payload to
// json.RawMessage.
func Encode(name string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Name: name}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Name: name, Payload: data}, nil
}

// EncodeAck is Encode plus a correlation id for request/response replies.
func EncodeAck(name string, payload any, ack string) (Envelope, error) {
	env, err := Encode(name, payload)
	if err != nil {
		return Envelope{}, err
	}
	env.Ack = ack
	return env, nil
}

// Decode unmarshals env.Payload into dst, e.g. a UserJoinPayload or a
// model.Event depending on env.Name.
func (env Envelope) Decode(dst any) error {
	if len(env.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(env.Payload, dst)
}

// DecodeString unmarshals a bare-string payload, used by channel:join,
// channel:leave and user:status whose payload is a JSON string rather
// than an object.
func (env Envelope) DecodeString() (string, error) {
	if len(env.Payload) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(env.Payload, &s); err != nil {
		return "", err
	}
	return s, nil
}
