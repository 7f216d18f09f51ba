package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// WebhookBody is the JSON body of a gateway notification. Only the fields
// needed to route it are decoded; the rest of the payload is ignored.
type WebhookBody struct {
	Type   string `json:"type"`
	Topic  string `json:"topic"`
	Action string `json:"action"`
	Data   struct {
		ID FlexibleID `json:"id"`
	} `json:"data"`
}

// FlexibleID accepts an id sent either as a JSON string or a JSON number.
type FlexibleID string

func (f *FlexibleID) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*f = ""
	case string:
		*f = FlexibleID(t)
	case json.Number:
		*f = FlexibleID(t.String())
	default:
		return fmt.Errorf("unexpected id %s", b)
	}
	return nil
}

func (b WebhookBody) Notification() Notification {
	typ := strings.TrimSpace(b.Type)
	if typ == "" {
		typ = strings.TrimSpace(b.Topic)
	}
	return Notification{Type: typ, PaymentID: strings.TrimSpace(string(b.Data.ID))}
}

// ParseWebhookBody decodes a raw notification body.
func ParseWebhookBody(raw []byte) (Notification, error) {
	var b WebhookBody
	if err := json.Unmarshal(raw, &b); err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrMalformedWebhook, err)
	}
	return b.Notification(), nil
}
