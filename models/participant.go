package models

import (
	"fmt"
	"strings"
	"time"
)

type ParticipantRole string

const (
	RolePlayer  ParticipantRole = "player"
	RoleReferee ParticipantRole = "referee"
)

// Id prefixes. The numeric part is zero padded to two digits: P01, REF01.
const (
	PlayerIDPrefix  = "P"
	RefereeIDPrefix = "REF"
)

type Participant struct {
	ID                   string          `json:"id"`
	Role                 ParticipantRole `json:"role"`
	DisplayName          string          `json:"display_name"`
	Version              string          `json:"version,omitempty"`
	ProtocolVersion      string          `json:"protocol_version,omitempty"`
	Endpoint             string          `json:"contact_endpoint"`
	GameTypes            []string        `json:"game_types"`
	MaxConcurrentMatches int             `json:"max_concurrent_matches,omitempty"`
	AuthToken            string          `json:"-"`
	RegisteredAt         time.Time       `json:"registered_at"`
}

// Sender is the value agents put in the envelope "sender" field, e.g. "referee:REF01".
func (p *Participant) Sender() string {
	return FormatSender(p.Role, p.ID)
}

func (p *Participant) SupportsGame(gameType string) bool {
	for _, gt := range p.GameTypes {
		if gt == gameType {
			return true
		}
	}
	return false
}

func FormatParticipantID(prefix string, n int) string {
	return fmt.Sprintf("%s%02d", prefix, n)
}

func FormatSender(role ParticipantRole, id string) string {
	return string(role) + ":" + id
}

// ParseSender splits "role:id". A bare id is accepted and reported with an empty role.
func ParseSender(sender string) (ParticipantRole, string) {
	role, id, ok := strings.Cut(sender, ":")
	if !ok {
		return "", sender
	}
	return ParticipantRole(role), id
}
