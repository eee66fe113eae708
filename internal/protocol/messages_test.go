package protocol

import (
	"testing"
	"time"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/cultivation"
)

func TestParseMessage_Identify(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"type":"identify","tent_id":4,"controller":"esp32"}`))
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}

	id, ok := msg.(*IdentifyMessage)
	if !ok {
		t.Fatalf("Expected *IdentifyMessage, got %T", msg)
	}
	if id.TentID != 4 || id.Controller != "esp32" {
		t.Errorf("Unexpected identify: %+v", id)
	}
}

func TestParseMessage_IdentifyRequiresTent(t *testing.T) {
	if _, err := ParseMessage([]byte(`{"type":"identify","controller":"esp32"}`)); err == nil {
		t.Error("Expected error for missing tent_id")
	}
}

func TestParseMessage_Reading(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"type":"reading","data":{"log_date":"2026-03-10","turn":"PM","temp":24.5,"ph":6.1}}`))
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}

	reading, ok := msg.(*ReadingMessage)
	if !ok {
		t.Fatalf("Expected *ReadingMessage, got %T", msg)
	}

	log, err := reading.Data.Parse(7)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if log.TentID != 7 || log.Turn != cultivation.TurnPM {
		t.Errorf("Unexpected log: %+v", log)
	}
	if !log.LogDate.Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected log date: %v", log.LogDate)
	}
	if log.Temp == nil || *log.Temp != 24.5 {
		t.Errorf("Expected temp 24.5, got %v", log.Temp)
	}
	if log.RH != nil || log.PPFD != nil || log.EC != nil {
		t.Error("Expected unmeasured metrics to stay nil")
	}
}

func TestParseMessage_InvalidReadings(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing date", `{"type":"reading","data":{"turn":"AM"}}`},
		{"bad date", `{"type":"reading","data":{"log_date":"10/03/2026","turn":"AM"}}`},
		{"bad turn", `{"type":"reading","data":{"log_date":"2026-03-10","turn":"NOON"}}`},
		{"missing turn", `{"type":"reading","data":{"log_date":"2026-03-10"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseMessage([]byte(tt.data)); err == nil {
				t.Errorf("Expected error for %s", tt.data)
			}
		})
	}
}

func TestParseMessage_UnknownType(t *testing.T) {
	if _, err := ParseMessage([]byte(`{"type":"metrics"}`)); err == nil {
		t.Error("Expected error for unknown type")
	}
	if _, err := ParseMessage([]byte(`not json`)); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestDecodeAck(t *testing.T) {
	data, err := EncodeMessage(NewAckMessage(AckStatusAccepted))
	if err != nil {
		t.Fatalf("EncodeMessage failed: %v", err)
	}

	ack, err := DecodeAck(data)
	if err != nil {
		t.Fatalf("DecodeAck failed: %v", err)
	}
	if ack.Status != AckStatusAccepted {
		t.Errorf("Expected status %s, got %s", AckStatusAccepted, ack.Status)
	}

	if _, err := DecodeAck([]byte(`{"type":"reading"}`)); err == nil {
		t.Error("Expected error for non-ack message")
	}
}

func TestNewAlertNotification(t *testing.T) {
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	n := NewAlertNotification(AlertTypeRaised, cultivation.Alert{
		ID:        "a-1",
		TentID:    2,
		Metric:    cultivation.MetricRH,
		Severity:  cultivation.SeverityWarning,
		Value:     72,
		Ideal:     60,
		Margin:    5,
		Phase:     cultivation.PhaseFlora,
		Week:      3,
		CreatedAt: at,
	})

	data, err := EncodeAlertNotification(n)
	if err != nil {
		t.Fatalf("EncodeAlertNotification failed: %v", err)
	}
	decoded, err := DecodeAlertNotification(data)
	if err != nil {
		t.Fatalf("DecodeAlertNotification failed: %v", err)
	}

	if decoded.Metric != "rh" || decoded.Severity != "WARNING" || decoded.Phase != "FLORA" {
		t.Errorf("Unexpected notification: %+v", decoded)
	}
	if !decoded.RaisedAt.Equal(at) {
		t.Errorf("Expected raised_at %v, got %v", at, decoded.RaisedAt)
	}
}
