package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// wire 事件的编码形态.
//
//	{"shutdown":{"to":"report"}}
//	{"freeze":{"to":"report","on":"30s"}}
type wire struct {
	Shutdown *wireShutdown `json:"shutdown,omitempty"`
	Freeze   *wireFreeze   `json:"freeze,omitempty"`
}

type wireShutdown struct {
	To TaskID `json:"to"`
}

type wireFreeze struct {
	To TaskID `json:"to"`
	On string `json:"on"`
}

// MarshalJSON 实现 json.Marshaler.
func (e Event) MarshalJSON() ([]byte, error) {
	var w wire
	switch e.Kind {
	case KindShutdown:
		w.Shutdown = &wireShutdown{To: e.To}
	case KindFreeze:
		w.Freeze = &wireFreeze{To: e.To, On: e.On.String()}
	default:
		return nil, ErrUnknownKind
	}
	return json.Marshal(w)
}

// UnmarshalJSON 实现 json.Unmarshaler.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch {
	case w.Shutdown != nil && w.Freeze == nil:
		*e = Shutdown(w.Shutdown.To)
	case w.Freeze != nil && w.Shutdown == nil:
		on, err := time.ParseDuration(w.Freeze.On)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		*e = Freeze(w.Freeze.To, on)
	default:
		return ErrMalformed
	}
	return e.Validate()
}

// Encode 将事件编码为字节，供跨进程通道使用.
func Encode(e Event) ([]byte, error) {
	return json.Marshal(e)
}

// Decode 从字节解码事件.
func Decode(data []byte) (Event, error) {
	var e Event
	if err := e.UnmarshalJSON(data); err != nil {
		return Event{}, err
	}
	return e, nil
}
