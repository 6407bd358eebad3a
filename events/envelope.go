package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/c360/cvsync/errors"
)

// Envelope is the wire format of a published event.
type Envelope struct {
	ID      string          `json:"id"`
	Type    Type            `json:"type"`
	Time    time.Time       `json:"time"`
	Payload json.RawMessage `json:"payload"`
}

// Encode wraps an event in a new envelope and marshals it.
func Encode(e Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, errors.WrapInvalid(err, "events", "Encode",
			fmt.Sprintf("marshal %s payload", e.EventType()))
	}
	return json.Marshal(Envelope{
		ID:      uuid.New().String(),
		Type:    e.EventType(),
		Time:    time.Now().UTC(),
		Payload: payload,
	})
}

// Decode parses an envelope back into its concrete event.
func Decode(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.WrapInvalid(errors.ErrParsingFailed, "events", "Decode", err.Error())
	}

	switch env.Type {
	case TypeRunStarted:
		return decodeAs[RunStarted](env.Payload)
	case TypeRunFinished:
		return decodeAs[RunFinished](env.Payload)
	case TypeTermUpdated:
		return decodeAs[TermUpdated](env.Payload)
	case TypeUpdateError:
		return decodeAs[UpdateError](env.Payload)
	case TypeObsoleteRemapped:
		return decodeAs[ObsoleteRemapped](env.Payload)
	case TypeObsoleteImpossibleToRemap:
		return decodeAs[ObsoleteImpossibleToRemap](env.Payload)
	case TypeDuplicateTerms:
		return decodeAs[DuplicateTerms](env.Payload)
	default:
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "events", "Decode",
			fmt.Sprintf("unknown event type %q", env.Type))
	}
}

func decodeAs[E Event](payload json.RawMessage) (Event, error) {
	var e E
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, errors.WrapInvalid(errors.ErrParsingFailed, "events", "Decode", err.Error())
	}
	return e, nil
}
