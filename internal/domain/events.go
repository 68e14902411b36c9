package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// StreamKind identifies the aggregate type a stream belongs to.
type StreamKind string

// Stream kinds
const (
	StreamKindAccount  StreamKind = "account"
	StreamKindTransfer StreamKind = "transfer"
)

// EventType identifies the type of an event within its stream kind.
type EventType string

// Account event types
const (
	EventTypeAccountOpened                  EventType = "account-opened"
	EventTypeAccountFundsDeposited          EventType = "account-funds-deposited"
	EventTypeAccountIncomingTransferStarted EventType = "account-incoming-transfer-started"
	EventTypeAccountOutgoingTransferStarted EventType = "account-outgoing-transfer-started"
	EventTypeAccountTransferCompleted       EventType = "account-transfer-completed"
)

// Transfer event types
const (
	EventTypeTransferInitiated EventType = "transfer-initiated"
	EventTypeTransferConfirmed EventType = "transfer-confirmed"
	EventTypeTransferClosed    EventType = "transfer-closed"
)

// StreamID identifies a stream. IDs are unique across all stream kinds.
type StreamID int64

// Revision is the 1-based position of an event within its stream.
type Revision int64

// Stream identifies one aggregate instance.
type Stream struct {
	Kind StreamKind `json:"kind"`
	ID   StreamID   `json:"streamId"`
}

func (s Stream) String() string {
	return fmt.Sprintf("%d:%s", s.ID, s.Kind)
}

// Payload is the body of an event. The set of implementations is closed:
// every payload belongs to exactly one stream kind's catalog.
type Payload interface {
	EventType() EventType
	StreamKind() StreamKind
	sealed()
}

// AccountPayload is implemented by every account event payload.
type AccountPayload interface {
	Payload
	accountPayload()
}

// TransferPayload is implemented by every transfer event payload.
type TransferPayload interface {
	Payload
	transferPayload()
}

// Event is an immutable record appended to a stream.
type Event struct {
	ID         string
	StreamID   StreamID
	Kind       StreamKind
	Revision   Revision
	Payload    Payload
	RecordedAt time.Time
}

// Type returns the event type of the payload.
func (e Event) Type() EventType {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.EventType()
}

// Stream returns the stream the event belongs to.
func (e Event) Stream() Stream {
	return Stream{Kind: e.Kind, ID: e.StreamID}
}

type eventJSON struct {
	ID         string          `json:"id"`
	StreamID   StreamID        `json:"streamId"`
	Kind       StreamKind      `json:"kind"`
	Revision   Revision        `json:"revision"`
	EventType  EventType       `json:"eventType"`
	Payload    json.RawMessage `json:"payload"`
	RecordedAt time.Time       `json:"recordedAt"`
}

// MarshalJSON encodes the event envelope with its payload inlined.
func (e Event) MarshalJSON() ([]byte, error) {
	if e.Payload == nil {
		return nil, fmt.Errorf("%w: event %d:%s has no payload", ErrUnknownEventType, e.StreamID, e.Kind)
	}

	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, err
	}

	return json.Marshal(eventJSON{
		ID:         e.ID,
		StreamID:   e.StreamID,
		Kind:       e.Kind,
		Revision:   e.Revision,
		EventType:  e.Payload.EventType(),
		Payload:    payload,
		RecordedAt: e.RecordedAt,
	})
}

// UnmarshalJSON decodes an event envelope, resolving the payload through the catalog.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw eventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	payload, err := DecodePayload(raw.EventType, raw.Payload)
	if err != nil {
		return err
	}

	*e = Event{
		ID:         raw.ID,
		StreamID:   raw.StreamID,
		Kind:       raw.Kind,
		Revision:   raw.Revision,
		Payload:    payload,
		RecordedAt: raw.RecordedAt,
	}

	return nil
}

// AccountOpened payload
type AccountOpened struct {
	Owner string `json:"owner"`
}

// FundsDeposited payload
type FundsDeposited struct {
	Amount int64 `json:"amount"`
}

// IncomingTransferStarted payload
type IncomingTransferStarted struct {
	TransferID StreamID `json:"transferId"`
	Amount     int64    `json:"amount"`
}

// OutgoingTransferStarted payload
type OutgoingTransferStarted struct {
	TransferID StreamID `json:"transferId"`
	Amount     int64    `json:"amount"`
}

// AccountTransferCompleted payload
type AccountTransferCompleted struct {
	TransferID StreamID `json:"transferId"`
}

// TransferInitiated payload
type TransferInitiated struct {
	SourceID      StreamID `json:"sourceId"`
	DestinationID StreamID `json:"destinationId"`
	Amount        int64    `json:"amount"`
}

// TransferConfirmed payload
type TransferConfirmed struct {
	AccountID StreamID `json:"accountId"`
}

// TransferClosed payload
type TransferClosed struct{}

func (AccountOpened) EventType() EventType { return EventTypeAccountOpened }
func (FundsDeposited) EventType() EventType { return EventTypeAccountFundsDeposited }
func (IncomingTransferStarted) EventType() EventType {
	return EventTypeAccountIncomingTransferStarted
}
func (OutgoingTransferStarted) EventType() EventType {
	return EventTypeAccountOutgoingTransferStarted
}
func (AccountTransferCompleted) EventType() EventType { return EventTypeAccountTransferCompleted }
func (TransferInitiated) EventType() EventType        { return EventTypeTransferInitiated }
func (TransferConfirmed) EventType() EventType        { return EventTypeTransferConfirmed }
func (TransferClosed) EventType() EventType           { return EventTypeTransferClosed }

func (AccountOpened) StreamKind() StreamKind            { return StreamKindAccount }
func (FundsDeposited) StreamKind() StreamKind           { return StreamKindAccount }
func (IncomingTransferStarted) StreamKind() StreamKind  { return StreamKindAccount }
func (OutgoingTransferStarted) StreamKind() StreamKind  { return StreamKindAccount }
func (AccountTransferCompleted) StreamKind() StreamKind { return StreamKindAccount }
func (TransferInitiated) StreamKind() StreamKind        { return StreamKindTransfer }
func (TransferConfirmed) StreamKind() StreamKind        { return StreamKindTransfer }
func (TransferClosed) StreamKind() StreamKind           { return StreamKindTransfer }

func (AccountOpened) sealed()            {}
func (FundsDeposited) sealed()           {}
func (IncomingTransferStarted) sealed()  {}
func (OutgoingTransferStarted) sealed()  {}
func (AccountTransferCompleted) sealed() {}
func (TransferInitiated) sealed()        {}
func (TransferConfirmed) sealed()        {}
func (TransferClosed) sealed()           {}

func (AccountOpened) accountPayload()            {}
func (FundsDeposited) accountPayload()           {}
func (IncomingTransferStarted) accountPayload()  {}
func (OutgoingTransferStarted) accountPayload()  {}
func (AccountTransferCompleted) accountPayload() {}

func (TransferInitiated) transferPayload() {}
func (TransferConfirmed) transferPayload() {}
func (TransferClosed) transferPayload()    {}
