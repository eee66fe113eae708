package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/cultivation"
)

// MessageType represents the type of message
type MessageType string

const (
	// Controller to server
	MsgTypeIdentify  MessageType = "identify"
	MsgTypeReading   MessageType = "reading"
	MsgTypeKeepalive MessageType = "keepalive"

	// Server to controller
	MsgTypeAck MessageType = "ack"
)

// LogDateLayout is the wire format of a daily log date
const LogDateLayout = "2006-01-02"

// BaseMessage is the common structure for all messages
type BaseMessage struct {
	Type MessageType `json:"type"`
}

// IdentifyMessage is sent by a tent controller on connection
type IdentifyMessage struct {
	Type       MessageType `json:"type"`
	TentID     int64       `json:"tent_id"`
	Controller string      `json:"controller"`
}

// ReadingData is one AM/PM observation. Absent fields were not measured.
type ReadingData struct {
	LogDate string   `json:"log_date"`
	Turn    string   `json:"turn"`
	Temp    *float64 `json:"temp,omitempty"`
	RH      *float64 `json:"rh,omitempty"`
	PPFD    *float64 `json:"ppfd,omitempty"`
	PH      *float64 `json:"ph,omitempty"`
	EC      *float64 `json:"ec,omitempty"`
	Notes   string   `json:"notes,omitempty"`
}

// ReadingMessage carries a daily log reading
type ReadingMessage struct {
	Type MessageType `json:"type"`
	Data ReadingData `json:"data"`
}

// KeepaliveMessage is sent by the controller between readings
type KeepaliveMessage struct {
	Type MessageType `json:"type"`
}

// AckMessage is sent by the server in response to messages
type AckMessage struct {
	Type    MessageType `json:"type"`
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
}

// AckStatus constants
const (
	AckStatusIdentified = "identified"
	AckStatusAccepted   = "accepted"
	AckStatusAlive      = "alive"
	AckStatusError      = "error"
)

// ParseMessage parses a JSON line into the appropriate message type
func ParseMessage(data []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	switch base.Type {
	case MsgTypeIdentify:
		var msg IdentifyMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid identify message: %w", err)
		}
		if err := validateIdentify(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MsgTypeReading:
		var msg ReadingMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid reading message: %w", err)
		}
		if err := validateReading(&msg.Data); err != nil {
			return nil, err
		}
		return &msg, nil

	case MsgTypeKeepalive:
		var msg KeepaliveMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid keepalive message: %w", err)
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("unknown message type: %s", base.Type)
	}
}

func validateIdentify(msg *IdentifyMessage) error {
	if msg.TentID <= 0 {
		return fmt.Errorf("tent_id is required")
	}
	return nil
}

func validateReading(d *ReadingData) error {
	if d.LogDate == "" {
		return fmt.Errorf("log_date is required")
	}
	if _, err := time.Parse(LogDateLayout, d.LogDate); err != nil {
		return fmt.Errorf("invalid log_date format (must be YYYY-MM-DD): %w", err)
	}
	if !cultivation.Turn(d.Turn).Valid() {
		return fmt.Errorf("turn must be AM or PM, got %q", d.Turn)
	}
	return nil
}

// Parse converts the wire reading into a daily log of the given tent
func (d *ReadingData) Parse(tentID int64) (cultivation.DailyLog, error) {
	date, err := time.Parse(LogDateLayout, d.LogDate)
	if err != nil {
		return cultivation.DailyLog{}, err
	}
	return cultivation.DailyLog{
		TentID:  tentID,
		LogDate: date,
		Turn:    cultivation.Turn(d.Turn),
		Temp:    d.Temp,
		RH:      d.RH,
		PPFD:    d.PPFD,
		PH:      d.PH,
		EC:      d.EC,
		Notes:   d.Notes,
	}, nil
}

// EncodeMessage encodes a message to JSON
func EncodeMessage(msg interface{}) ([]byte, error) {
	return json.Marshal(msg)
}

// NewAckMessage creates a new acknowledgment message
func NewAckMessage(status string) *AckMessage {
	return &AckMessage{
		Type:   MsgTypeAck,
		Status: status,
	}
}

// DecodeAck decodes an acknowledgment line read by a controller
func DecodeAck(data []byte) (*AckMessage, error) {
	var ack AckMessage
	if err := json.Unmarshal(data, &ack); err != nil {
		return nil, fmt.Errorf("invalid ack: %w", err)
	}
	if ack.Type != MsgTypeAck {
		return nil, fmt.Errorf("unexpected message type: %s", ack.Type)
	}
	return &ack, nil
}
