package model

import (
	"encoding/json"

	"github.com/elliotchance/orderedmap/v3"
)

// MessageMap is an insertion-ordered mapping of message ID to Message.
// A map handed to the store is treated as immutable; build a new one to change it.
// The zero value and nil are both valid empty maps for reading.
type MessageMap struct {
	m *orderedmap.OrderedMap[MessageID, Message]
}

// NewMessageMap builds a map from msgs in order. A repeated ID keeps its first
// position and takes the later value.
func NewMessageMap(msgs ...Message) *MessageMap {
	mm := &MessageMap{m: orderedmap.NewOrderedMap[MessageID, Message]()}
	for _, msg := range msgs {
		mm.m.Set(msg.ID, msg)
	}
	return mm
}

// Len returns the number of messages.
func (mm *MessageMap) Len() int {
	if mm == nil || mm.m == nil {
		return 0
	}
	return mm.m.Len()
}

// Get returns the message with the given ID.
func (mm *MessageMap) Get(id MessageID) (Message, bool) {
	if mm == nil || mm.m == nil {
		return Message{}, false
	}
	return mm.m.Get(id)
}

// First returns the first inserted message.
func (mm *MessageMap) First() (Message, bool) {
	if mm == nil || mm.m == nil {
		return Message{}, false
	}
	el := mm.m.Front()
	if el == nil {
		return Message{}, false
	}
	return el.Value, true
}

// IDs returns the message IDs in order.
func (mm *MessageMap) IDs() []MessageID {
	if mm.Len() == 0 {
		return nil
	}
	ids := make([]MessageID, 0, mm.m.Len())
	for el := mm.m.Front(); el != nil; el = el.Next() {
		ids = append(ids, el.Key)
	}
	return ids
}

// Messages returns the messages in order.
func (mm *MessageMap) Messages() []Message {
	if mm.Len() == 0 {
		return nil
	}
	msgs := make([]Message, 0, mm.m.Len())
	for el := mm.m.Front(); el != nil; el = el.Next() {
		msgs = append(msgs, el.Value)
	}
	return msgs
}

// Last returns the last inserted message. For server pages ordered newest
// first this is the oldest loaded message, used as the pagination cursor.
func (mm *MessageMap) Last() (Message, bool) {
	if mm == nil || mm.m == nil {
		return Message{}, false
	}
	el := mm.m.Back()
	if el == nil {
		return Message{}, false
	}
	return el.Value, true
}

// MarshalJSON encodes the map as an ordered array of messages.
func (mm *MessageMap) MarshalJSON() ([]byte, error) {
	msgs := mm.Messages()
	if msgs == nil {
		msgs = []Message{}
	}
	return json.Marshal(msgs)
}

// UnmarshalJSON decodes an ordered array of messages.
func (mm *MessageMap) UnmarshalJSON(data []byte) error {
	var msgs []Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return err
	}
	*mm = *NewMessageMap(msgs...)
	return nil
}
