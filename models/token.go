package models

import (
	"database/sql/driver"
	"fmt"
)

// WebhookToken is the secret half of a channel's posting identity. It never
// prints its value; call Reveal at the dispatch call site.
type WebhookToken string

func (t WebhookToken) Reveal() string {
	return string(t)
}

func (t WebhookToken) String() string {
	return "[redacted]"
}

func (t WebhookToken) GoString() string {
	return "models.WebhookToken([redacted])"
}

func (t WebhookToken) Value() (driver.Value, error) {
	return string(t), nil
}

func (t *WebhookToken) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*t = WebhookToken(v)
	case []byte:
		*t = WebhookToken(v)
	case nil:
		*t = ""
	default:
		return fmt.Errorf("cannot scan %T into WebhookToken", src)
	}
	return nil
}
