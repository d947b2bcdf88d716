package model

import (
	"time"

	"github.com/google/uuid"
)

// ParticipantStatus enumerates a participant's progress through one test.
type ParticipantStatus string

const (
	ParticipantStatusInvited ParticipantStatus = "INVITED"
	ParticipantStatusTaken   ParticipantStatus = "TAKEN"
	ParticipantStatusGraded  ParticipantStatus = "GRADED"
)

// Participant is one invited person's entry for one test. Code is the
// participant half of the invite token <testCode>-<participantCode>.
type Participant struct {
	ID            uuid.UUID         `json:"id"`
	TestID        uuid.UUID         `json:"test_id"`
	Name          string            `json:"name"`
	Email         string            `json:"email"`
	Phone         string            `json:"phone,omitempty"`
	Code          string            `json:"code"`
	Status        ParticipantStatus `json:"status"`
	AddedAt       time.Time         `json:"added_at"`
	LastInvitedAt *time.Time        `json:"last_invited_at,omitempty"`
	LastStartedAt *time.Time        `json:"last_started_at,omitempty"`
}

// InviteToken returns the full invite token for this participant on a test.
func (p *Participant) InviteToken(testCode string) string {
	return testCode + "-" + p.Code
}

// ParticipantInput is the payload for inviting one participant.
type ParticipantInput struct {
	Name  string `json:"name" binding:"required,min=1,max=255"`
	Email string `json:"email" binding:"required,email"`
	Phone string `json:"phone" binding:"omitempty,max=32"`
}

// AddParticipantsRequest invites a batch of participants to a test.
type AddParticipantsRequest struct {
	Participants []ParticipantInput `json:"participants" binding:"required,min=1,dive"`
	SendEmails   bool               `json:"send_emails"`
}

// InviteRequest addresses a single attempt by its invite token.
type InviteRequest struct {
	Invite string `json:"invite" binding:"required,min=3,max=64"`
}
