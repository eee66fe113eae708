package protocol

import (
	"encoding/json"
	"time"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/cultivation"
)

// DailyLogMessage is the internal message format on the daily-log topic
type DailyLogMessage struct {
	ConnectionID string      `json:"connection_id"`
	TentID       int64       `json:"tent_id"`
	Controller   string      `json:"controller"`
	ReceivedAt   time.Time   `json:"received_at"`
	Data         ReadingData `json:"data"`
}

// AlertNotification is the message format on the alert topic
type AlertNotification struct {
	Type     string    `json:"type"` // ALERT_RAISED, ALERT_RESOLVED
	AlertID  string    `json:"alert_id"`
	TentID   int64     `json:"tent_id"`
	Metric   string    `json:"metric"`
	Severity string    `json:"severity,omitempty"`
	Message  string    `json:"message,omitempty"`
	Value    float64   `json:"value"`
	Ideal    float64   `json:"ideal"`
	Margin   float64   `json:"margin"`
	Phase    string    `json:"phase"`
	Week     int       `json:"week"`
	RaisedAt time.Time `json:"raised_at"`
}

const (
	AlertTypeRaised   = "ALERT_RAISED"
	AlertTypeResolved = "ALERT_RESOLVED"
)

// NewAlertNotification builds the notification for a stored alert
func NewAlertNotification(kind string, a cultivation.Alert) *AlertNotification {
	return &AlertNotification{
		Type:     kind,
		AlertID:  a.ID,
		TentID:   a.TentID,
		Metric:   string(a.Metric),
		Severity: string(a.Severity),
		Message:  a.Message,
		Value:    a.Value,
		Ideal:    a.Ideal,
		Margin:   a.Margin,
		Phase:    string(a.Phase),
		Week:     a.Week,
		RaisedAt: a.CreatedAt,
	}
}

// EncodeDailyLogMessage encodes a DailyLogMessage to JSON
func EncodeDailyLogMessage(msg *DailyLogMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeDailyLogMessage decodes JSON to DailyLogMessage
func DecodeDailyLogMessage(data []byte) (*DailyLogMessage, error) {
	var msg DailyLogMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EncodeAlertNotification encodes an AlertNotification to JSON
func EncodeAlertNotification(alert *AlertNotification) ([]byte, error) {
	return json.Marshal(alert)
}

// DecodeAlertNotification decodes JSON to AlertNotification
func DecodeAlertNotification(data []byte) (*AlertNotification, error) {
	var alert AlertNotification
	if err := json.Unmarshal(data, &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}
