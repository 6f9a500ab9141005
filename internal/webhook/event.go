package webhook

import (
	"encoding/json"
	"fmt"
)

// EventUserCreated is the provider event that provisions a new account.
const EventUserCreated = "user.created"

// Event is the envelope of a verified delivery.
type Event struct {
	Type   string          `json:"type"`
	Object string          `json:"object"`
	Data   json.RawMessage `json:"data"`
}

// EmailAddress is one address attached to a provider user.
type EmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

// UserData is the payload of user.* events.
type UserData struct {
	ID                    string         `json:"id"`
	EmailAddresses        []EmailAddress `json:"email_addresses"`
	PrimaryEmailAddressID string         `json:"primary_email_address_id"`
}

// PrimaryEmail returns the address whose id matches PrimaryEmailAddressID.
func (u *UserData) PrimaryEmail() (string, bool) {
	if u.PrimaryEmailAddressID == "" {
		return "", false
	}
	for _, e := range u.EmailAddresses {
		if e.ID == u.PrimaryEmailAddressID && e.EmailAddress != "" {
			return e.EmailAddress, true
		}
	}
	return "", false
}

// ParseEvent decodes a verified body.
func ParseEvent(body []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if evt.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedPayload)
	}
	return &evt, nil
}

// UserData decodes the event data as a user payload.
func (e *Event) UserData() (*UserData, error) {
	var data UserData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if data.ID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrMalformedPayload)
	}
	return &data, nil
}

// DataID returns data.id when the payload carries one.
func (e *Event) DataID() string {
	var ref struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(e.Data, &ref); err != nil {
		return ""
	}
	return ref.ID
}
