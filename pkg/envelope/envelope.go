package envelope

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope is the frame exchanged over the websocket and the relay channel.
// Client frames carry ID, Action and Data; server frames add the rest.
type Envelope struct {
	ID        string          `json:"id"`
	Action    string          `json:"action"`
	Room      string          `json:"room,omitempty"`
	Sender    *Sender         `json:"sender,omitempty"`
	ReplyTo   string          `json:"reply_to,omitempty"`
	Origin    string          `json:"origin,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     *ErrorPayload   `json:"error,omitempty"`
	Timestamp int64           `json:"ts"`
}

type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Sender is the authenticated identity attached to client-originated events.
type Sender struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

func New(action string) Envelope {
	return Envelope{
		ID:        uuid.NewString(),
		Action:    action,
		Timestamp: time.Now().UnixMilli(),
	}
}

func NewRequest(action string, data interface{}) (Envelope, error) {
	e := New(action)
	raw, err := json.Marshal(data)
	if err != nil {
		return e, err
	}
	e.Data = raw
	return e, nil
}

func NewReply(original Envelope, data interface{}) (Envelope, error) {
	e := New(original.Action + ".result")
	e.ReplyTo = original.ID
	raw, err := json.Marshal(data)
	if err != nil {
		return e, err
	}
	e.Data = raw
	return e, nil
}

func NewEvent(action, room string, data interface{}) (Envelope, error) {
	e := New(action)
	e.Room = room
	if data == nil {
		return e, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return e, err
	}
	e.Data = raw
	return e, nil
}

func NewError(original Envelope, code int, message string) Envelope {
	action := original.Action
	if action == "" {
		action = "error"
	} else {
		action += ".error"
	}
	e := New(action)
	e.ReplyTo = original.ID
	e.Error = &ErrorPayload{Code: code, Message: message}
	return e
}

func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func Unmarshal(data []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(data, &e)
	return e, err
}

func ParseData[T any](e Envelope) (T, error) {
	var v T
	if len(e.Data) == 0 {
		return v, nil
	}
	err := json.Unmarshal(e.Data, &v)
	return v, err
}
