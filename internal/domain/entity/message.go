package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// LocationType tells where the payload of a queue message lives.
type LocationType string

const (
	LocationBlob   LocationType = "BLOB"
	LocationInline LocationType = "INLINE"
)

// MessageLocation points at a message payload. For BLOB locations Path is a
// blob key; for INLINE locations Path holds the payload object itself.
type MessageLocation struct {
	Type LocationType    `json:"type"`
	Path json.RawMessage `json:"path"`
}

// BlobLocation builds a BLOB location for key.
func BlobLocation(key string) MessageLocation {
	raw, _ := json.Marshal(key)
	return MessageLocation{Type: LocationBlob, Path: raw}
}

// BlobPath returns the blob key of a BLOB location.
func (l MessageLocation) BlobPath() (string, error) {
	if l.Type != LocationBlob {
		return "", fmt.Errorf("%w: location type %q is not %s", ErrInvalidInput, l.Type, LocationBlob)
	}
	var path string
	if err := json.Unmarshal(l.Path, &path); err != nil {
		return "", fmt.Errorf("%w: blob path: %v", ErrInvalidInput, err)
	}
	if path == "" {
		return "", &ValidationError{Field: "messageLocation.path", Message: "is required"}
	}
	return path, nil
}

// InboundMessage is the record consumed from the prepare queue.
type InboundMessage struct {
	MessageID       string          `json:"messageId"`
	TenantID        string          `json:"tenantId"`
	MessageLocation MessageLocation `json:"messageLocation"`
	Scope           string          `json:"scope,omitempty"`
}

// Validate checks the fields every inbound message must carry.
func (m *InboundMessage) Validate() error {
	if m.MessageID == "" {
		return &ValidationError{Field: "messageId", Message: "is required"}
	}
	if m.TenantID == "" {
		return &ValidationError{Field: "tenantId", Message: "is required"}
	}
	switch m.MessageLocation.Type {
	case LocationBlob, LocationInline:
	default:
		return &ValidationError{Field: "messageLocation.type", Message: fmt.Sprintf("unsupported type %q", m.MessageLocation.Type)}
	}
	return nil
}

// MessagePayload is the body referenced by an InboundMessage.
//
// Override is passed through to the envelope; only its "brand" fragment is
// read while preparing.
type MessagePayload struct {
	EventID          string   `json:"eventId"`
	RecipientID      string   `json:"recipientId"`
	EventData        Document `json:"eventData"`
	EventProfile     Document `json:"eventProfile"`
	EventPreferences Document `json:"eventPreferences"`
	Override         Document `json:"override,omitempty"`
	Brand            Document `json:"brand,omitempty"`
	Scope            string   `json:"scope,omitempty"`
	DryRunKey        string   `json:"dryRunKey,omitempty"`
}

// Validate checks the required fields of a payload.
func (p *MessagePayload) Validate() error {
	if p.EventID == "" {
		return &ValidationError{Field: "eventId", Message: "is required"}
	}
	if p.RecipientID == "" {
		return &ValidationError{Field: "recipientId", Message: "is required"}
	}
	return nil
}

// RouteMessage is the pointer record published to the route queue.
type RouteMessage struct {
	MessageID       string          `json:"messageId"`
	MessageLocation MessageLocation `json:"messageLocation"`
	TenantID        string          `json:"tenantId"`
	Type            string          `json:"type"`
}

// RouteMessageType is the Type of every RouteMessage.
const RouteMessageType = "route"

// Envelope is the fully resolved payload written to blob storage for one
// (message, channel) combination.
type Envelope struct {
	MessageID      string                   `json:"messageId"`
	TenantID       string                   `json:"tenantId"`
	EventID        string                   `json:"eventId"`
	RecipientID    string                   `json:"recipientId"`
	Notification   *Notification            `json:"notification"`
	Brand          *Brand                   `json:"brand,omitempty"`
	Configurations map[string]Configuration `json:"configurations"`
	Profile        Document                 `json:"profile"`
	Preferences    Document                 `json:"preferences"`
	Data           Document                 `json:"data"`
	CategoryID     string                   `json:"categoryId,omitempty"`
	Channel        string                   `json:"channel"`
	ChannelID      string                   `json:"channelId,omitempty"`
	Provider       string                   `json:"provider,omitempty"`
	Scope          string                   `json:"scope"`
	DryRunKey      string                   `json:"dryRunKey,omitempty"`
	Override       Document                 `json:"override,omitempty"`
	PreparedAt     time.Time                `json:"preparedAt"`
}
