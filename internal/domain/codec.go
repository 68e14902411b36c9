package domain

import (
	"encoding/json"
	"fmt"
)

// catalog maps every known event type to a constructor for its payload.
var catalog = map[EventType]func() Payload{
	EventTypeAccountOpened:                  func() Payload { return &AccountOpened{} },
	EventTypeAccountFundsDeposited:          func() Payload { return &FundsDeposited{} },
	EventTypeAccountIncomingTransferStarted: func() Payload { return &IncomingTransferStarted{} },
	EventTypeAccountOutgoingTransferStarted: func() Payload { return &OutgoingTransferStarted{} },
	EventTypeAccountTransferCompleted:       func() Payload { return &AccountTransferCompleted{} },
	EventTypeTransferInitiated:              func() Payload { return &TransferInitiated{} },
	EventTypeTransferConfirmed:              func() Payload { return &TransferConfirmed{} },
	EventTypeTransferClosed:                 func() Payload { return &TransferClosed{} },
}

// KindOf returns the stream kind an event type belongs to.
func KindOf(t EventType) (StreamKind, error) {
	newPayload, ok := catalog[t]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownEventType, t)
	}
	return newPayload().StreamKind(), nil
}

// CheckPayload verifies that p belongs to the catalog of kind and returns it
// in value form, the form projections match on.
func CheckPayload(kind StreamKind, p Payload) (Payload, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil payload for %s stream", ErrUnknownEventType, kind)
	}
	if _, ok := catalog[p.EventType()]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, p.EventType())
	}
	if p.StreamKind() != kind {
		return nil, fmt.Errorf("%w: %s is not a %s event", ErrUnknownEventType, p.EventType(), kind)
	}
	return deref(p), nil
}

// DecodePayload decodes raw JSON into the payload registered for t.
// The returned payload is a value, never a pointer.
func DecodePayload(t EventType, raw []byte) (Payload, error) {
	newPayload, ok := catalog[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, t)
	}

	p := newPayload()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", t, err)
		}
	}

	return deref(p), nil
}

func deref(p Payload) Payload {
	switch v := p.(type) {
	case *AccountOpened:
		return *v
	case *FundsDeposited:
		return *v
	case *IncomingTransferStarted:
		return *v
	case *OutgoingTransferStarted:
		return *v
	case *AccountTransferCompleted:
		return *v
	case *TransferInitiated:
		return *v
	case *TransferConfirmed:
		return *v
	case *TransferClosed:
		return *v
	default:
		return p
	}
}
