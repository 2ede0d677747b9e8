package amqp

import (
	"encoding/json"
	"time"

	"bilancio/internal/core"
)

// PeriodMaterializedMessage signals that a user's balance rows were created
// for a new period. The worker fetches the previous period's balances from
// the database and exports them, so the message stays lightweight.
type PeriodMaterializedMessage struct {
	UserID    string    `json:"user_id"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Timestamp time.Time `json:"timestamp"`
}

// NewPeriodMaterializedMessage creates a message for the given user and period
func NewPeriodMaterializedMessage(userID string, p core.Period) *PeriodMaterializedMessage {
	return &PeriodMaterializedMessage{
		UserID:    userID,
		Year:      p.Year,
		Month:     p.Month,
		Timestamp: time.Now(),
	}
}

// Period returns the tracking period the message refers to
func (m *PeriodMaterializedMessage) Period() core.Period {
	return core.Period{Year: m.Year, Month: m.Month}
}

// ToJSON converts the message to JSON bytes
func (m *PeriodMaterializedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// PeriodMaterializedMessageFromJSON creates a message from JSON bytes
func PeriodMaterializedMessageFromJSON(data []byte) (*PeriodMaterializedMessage, error) {
	var msg PeriodMaterializedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
