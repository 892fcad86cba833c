package core

// EventName is the wire tag of a control message.
type EventName string

const (
	EventStartSync      EventName = "start-sync"
	EventConnectionInfo EventName = "connection-info"
	EventSyncingData    EventName = "syncing-data"
	EventEndSync        EventName = "end-sync"
	EventErrorSync      EventName = "error-sync"
)

// ControlMessage is the closed set of messages exchanged on a pairing
// channel. Only the types in this file implement it.
type ControlMessage interface {
	Event() EventName
	isControlMessage()
}

// StartSync is sent by the companion once it is ready to receive.
type StartSync struct{}

// ConnectionInfo re-keys the session onto a different channel and key.
type ConnectionInfo struct {
	Channel string
	Key     Key
}

// SyncingData carries one fragment of the export.
type SyncingData struct {
	Payload    []byte
	ChunkIndex uint32
	ChunkCount uint32
}

// EndSync confirms full receipt.
type EndSync struct{}

// ErrorSync aborts the sync with a reason.
type ErrorSync struct {
	Message string
}

func (StartSync) Event() EventName      { return EventStartSync }
func (ConnectionInfo) Event() EventName { return EventConnectionInfo }
func (SyncingData) Event() EventName    { return EventSyncingData }
func (EndSync) Event() EventName        { return EventEndSync }
func (ErrorSync) Event() EventName      { return EventErrorSync }

func (StartSync) isControlMessage()      {}
func (ConnectionInfo) isControlMessage() {}
func (SyncingData) isControlMessage()    {}
func (EndSync) isControlMessage()        {}
func (ErrorSync) isControlMessage()      {}

// Session returns the credentials carried by a ConnectionInfo.
func (c ConnectionInfo) Session() Session {
	return Session{Channel: c.Channel, Key: c.Key}
}
