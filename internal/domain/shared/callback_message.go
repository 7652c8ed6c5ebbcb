package shared

import "time"

// CallbackMessage is the push-style terminal response delivered over Kafka
type CallbackMessage struct {
	ID             string    `json:"id"`
	ResponseString string    `json:"responseString"`
	CorrelationID  string    `json:"correlation_id,omitempty"`
	Timestamp      time.Time `json:"timestamp,omitempty"`
}
