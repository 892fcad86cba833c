// Package wire encodes control messages into the relay's JSON envelope.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/layer-3/pairsync/core"
)

// Envelope is the JSON object carried by every relay message.
type Envelope struct {
	Event      core.EventName  `json:"event"`
	Data       json.RawMessage `json:"data,omitempty"`
	TotalPkg   *uint32         `json:"totalPkg,omitempty"`
	CurrentPkg *uint32         `json:"currentPkg,omitempty"`
}

type connectionInfoData struct {
	Cipher  string `json:"cipher"`
	Channel string `json:"channel"`
}

// Encode renders msg as an envelope.
func Encode(msg core.ControlMessage) ([]byte, error) {
	env := Envelope{Event: msg.Event()}

	var data any
	switch m := msg.(type) {
	case core.StartSync, core.EndSync:
	case core.ConnectionInfo:
		data = connectionInfoData{Cipher: m.Key.String(), Channel: m.Channel}
	case core.SyncingData:
		payload := m.Payload
		if payload == nil {
			payload = []byte{}
		}
		data = payload
		total, current := m.ChunkCount, m.ChunkIndex
		env.TotalPkg = &total
		env.CurrentPkg = &current
	case core.ErrorSync:
		data = m.Message
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", core.ErrInvalidMessage, msg)
	}

	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s data: %w", env.Event, err)
		}
		env.Data = raw
	}

	out, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return out, nil
}

// Decode parses an envelope into its typed control message. Unknown events
// and malformed data fail with core.ErrInvalidMessage.
func Decode(raw []byte) (core.ControlMessage, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidMessage, err)
	}

	switch env.Event {
	case core.EventStartSync:
		return core.StartSync{}, nil

	case core.EventEndSync:
		return core.EndSync{}, nil

	case core.EventConnectionInfo:
		var data connectionInfoData
		if err := unmarshalData(env, &data); err != nil {
			return nil, err
		}
		if data.Channel == "" {
			return nil, fmt.Errorf("%w: connection-info without channel", core.ErrInvalidMessage)
		}
		key, err := core.ParseKey(data.Cipher)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrInvalidMessage, err)
		}
		return core.ConnectionInfo{Channel: data.Channel, Key: key}, nil

	case core.EventSyncingData:
		if env.TotalPkg == nil || env.CurrentPkg == nil {
			return nil, fmt.Errorf("%w: syncing-data without package counters", core.ErrInvalidMessage)
		}
		var payload []byte
		if err := unmarshalData(env, &payload); err != nil {
			return nil, err
		}
		return core.SyncingData{
			Payload:    payload,
			ChunkIndex: *env.CurrentPkg,
			ChunkCount: *env.TotalPkg,
		}, nil

	case core.EventErrorSync:
		var reason string
		if len(env.Data) > 0 {
			if err := unmarshalData(env, &reason); err != nil {
				return nil, err
			}
		}
		return core.ErrorSync{Message: reason}, nil

	default:
		return nil, fmt.Errorf("%w: unknown event %q", core.ErrInvalidMessage, env.Event)
	}
}

func unmarshalData(env Envelope, out any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%w: %s without data", core.ErrInvalidMessage, env.Event)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %s data: %v", core.ErrInvalidMessage, env.Event, err)
	}
	return nil
}
