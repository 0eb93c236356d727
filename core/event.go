package core

import "github.com/google/uuid"

type IEvent interface {
	GetId() string // Returns the identifier of the event kind, e.g. "chat.text_chunk".
}

// EventPacket wraps an event on its way to a transport.
type EventPacket struct {
	Event   IEvent
	Uid     string // Unique identifier for tracking the event packet.
	TurnID  string // Turn that produced the event.
	Relayer string // Identifier of the component that relayed the event.
}

func NewEventPacket(event IEvent, turnID, relayer string) *EventPacket {
	return &EventPacket{
		Event:   event,
		Uid:     uuid.New().String(),
		TurnID:  turnID,
		Relayer: relayer,
	}
}
