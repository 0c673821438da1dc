package models

import (
	"github.com/aukilabs/voxelstore/messages"
)

// Responder sends messages to a connected client.
type Responder interface {
	// Encodes and sends the given message.
	Send(messages.TypedMsg)

	// Sends an already encoded message.
	SendMsg(messages.Msg)
}

// A region participant.
type Participant struct {
	ID        uint32
	Responder Responder
}

// ParticipantIDs returns the ids of the given participants.
func ParticipantIDs(participants []*Participant) []uint32 {
	ids := make([]uint32, len(participants))
	for i, p := range participants {
		ids[i] = p.ID
	}
	return ids
}
