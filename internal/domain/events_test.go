package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestPayloadWireFormat(t *testing.T) {
	tests := []struct {
		payload  Payload
		wantType EventType
		wantKind StreamKind
		wantJSON string
	}{
		{AccountOpened{Owner: "User 1"}, EventTypeAccountOpened, StreamKindAccount, `{"owner":"User 1"}`},
		{FundsDeposited{Amount: 100}, EventTypeAccountFundsDeposited, StreamKindAccount, `{"amount":100}`},
		{IncomingTransferStarted{TransferID: 3, Amount: 60}, EventTypeAccountIncomingTransferStarted, StreamKindAccount, `{"transferId":3,"amount":60}`},
		{OutgoingTransferStarted{TransferID: 3, Amount: 60}, EventTypeAccountOutgoingTransferStarted, StreamKindAccount, `{"transferId":3,"amount":60}`},
		{AccountTransferCompleted{TransferID: 3}, EventTypeAccountTransferCompleted, StreamKindAccount, `{"transferId":3}`},
		{TransferInitiated{SourceID: 1, DestinationID: 2, Amount: 60}, EventTypeTransferInitiated, StreamKindTransfer, `{"sourceId":1,"destinationId":2,"amount":60}`},
		{TransferConfirmed{AccountID: 2}, EventTypeTransferConfirmed, StreamKindTransfer, `{"accountId":2}`},
		{TransferClosed{}, EventTypeTransferClosed, StreamKindTransfer, `{}`},
	}

	for _, tt := range tests {
		t.Run(string(tt.wantType), func(t *testing.T) {
			if tt.payload.EventType() != tt.wantType {
				t.Errorf("expected type %s, got %s", tt.wantType, tt.payload.EventType())
			}
			if tt.payload.StreamKind() != tt.wantKind {
				t.Errorf("expected kind %s, got %s", tt.wantKind, tt.payload.StreamKind())
			}

			raw, err := json.Marshal(tt.payload)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(raw) != tt.wantJSON {
				t.Errorf("expected %s, got %s", tt.wantJSON, raw)
			}

			kind, err := KindOf(tt.wantType)
			if err != nil || kind != tt.wantKind {
				t.Errorf("KindOf(%s) = %s, %v", tt.wantType, kind, err)
			}
		})
	}
}

func TestEventJSONRoundTrip(t *testing.T) {
	recorded := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	evt := Event{
		ID:         "01HXAMPLE",
		StreamID:   4,
		Kind:       StreamKindTransfer,
		Revision:   1,
		Payload:    TransferInitiated{SourceID: 1, DestinationID: 2, Amount: 60},
		RecordedAt: recorded,
	}

	raw, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Event
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.Payload != evt.Payload {
		t.Fatalf("expected payload %+v, got %+v", evt.Payload, decoded.Payload)
	}
	if decoded.Type() != EventTypeTransferInitiated || decoded.StreamID != 4 || decoded.Revision != 1 {
		t.Fatalf("unexpected envelope: %+v", decoded)
	}
	if !decoded.RecordedAt.Equal(recorded) {
		t.Fatalf("expected recordedAt %s, got %s", recorded, decoded.RecordedAt)
	}
}

func TestDecodePayloadUnknownType(t *testing.T) {
	_, err := DecodePayload("account-closed", []byte(`{}`))
	if !errors.Is(err, ErrUnknownEventType) {
		t.Fatalf("expected ErrUnknownEventType, got %v", err)
	}
}

func TestCheckPayload(t *testing.T) {
	p, err := CheckPayload(StreamKindAccount, &FundsDeposited{Amount: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := p.(FundsDeposited); !ok {
		t.Fatalf("expected value payload, got %T", p)
	}

	if _, err := CheckPayload(StreamKindTransfer, FundsDeposited{Amount: 5}); !errors.Is(err, ErrUnknownEventType) {
		t.Fatalf("expected ErrUnknownEventType for kind mismatch, got %v", err)
	}

	if _, err := CheckPayload(StreamKindAccount, nil); !errors.Is(err, ErrUnknownEventType) {
		t.Fatalf("expected ErrUnknownEventType for nil payload, got %v", err)
	}
}
