package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds. Subscribers filter by prefix, e.g. "state." or "message.".
const (
	KindStateChanged       = "state.changed"
	KindSessionStatus      = "session.status_changed"
	KindMessageMoveGap     = "message.move_incomplete"
	KindMessageSendFailed  = "message.send_failed"
	KindUploadDone         = "upload.done"
	KindUploadFailed       = "upload.failed"
	KindRemoteUpdates      = "remote.updates"
	KindRefreshBatchSettle = "refresh.settled"
)

// NewEvent stamps an event with the current time.
func NewEvent(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
