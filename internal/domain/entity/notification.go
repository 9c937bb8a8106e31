package entity

import (
	"encoding/json"
	"time"
)

// TemplateState is the lifecycle state a notification is resolved in.
type TemplateState string

const (
	StatePublished TemplateState = "published"
	StateDraft     TemplateState = "draft"
	StateSubmitted TemplateState = "submitted"
)

// Valid reports whether s is one of the known states.
func (s TemplateState) Valid() bool {
	switch s {
	case StatePublished, StateDraft, StateSubmitted:
		return true
	}
	return false
}

// LogicalOperator combines the filters of a Conditional.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "and"
	LogicalOr  LogicalOperator = "or"
)

// FilterOperator is the comparison performed by a single Filter.
type FilterOperator string

const (
	OpEquals            FilterOperator = "EQUALS"
	OpNotEquals         FilterOperator = "NOT_EQUALS"
	OpGreaterThan       FilterOperator = "GREATER_THAN"
	OpLessThan          FilterOperator = "LESS_THAN"
	OpGreaterThanEquals FilterOperator = "GREATER_THAN_EQUALS"
	OpLessThanEquals    FilterOperator = "LESS_THAN_EQUALS"
	OpContains          FilterOperator = "CONTAINS"
	OpNotContains       FilterOperator = "NOT_CONTAINS"
	OpIsEmpty           FilterOperator = "IS_EMPTY"
	OpNotEmpty          FilterOperator = "NOT_EMPTY"
)

// Filter is one predicate of a Conditional.
//
// Source selects the sub-document of the VariableContext ("data" or
// "profile"). Property is either a top-level key or a JSONPath expression
// starting with "$".
type Filter struct {
	Operator FilterOperator `json:"operator"`
	Property string         `json:"property"`
	Source   string         `json:"source"`
	Value    any            `json:"value,omitempty"`
}

// Conditional is a tenant-authored rule that, when it matches, excludes the
// notification, channel or provider it is attached to.
type Conditional struct {
	Filters         []Filter        `json:"filters"`
	LogicalOperator LogicalOperator `json:"logicalOperator,omitempty"`
}

// ProviderRef attaches a configured provider integration to a channel.
type ProviderRef struct {
	ConfigurationID string       `json:"configurationId"`
	Conditional     *Conditional `json:"conditional,omitempty"`
}

// ChannelConfig is one channel of a notification template.
type ChannelConfig struct {
	ID          string          `json:"id"`
	Channel     string          `json:"channel"`
	Disabled    bool            `json:"disabled,omitempty"`
	Conditional *Conditional    `json:"conditional,omitempty"`
	Providers   []ProviderRef   `json:"providers"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Channels holds the two channel groups of a template.
//
// BestOf is ordered: the first channel with a capable provider is selected.
// Always channels are delivered independently of the BestOf outcome.
type Channels struct {
	BestOf []ChannelConfig `json:"bestOf"`
	Always []ChannelConfig `json:"always"`
}

// BrandConfig controls which brand is applied to a notification.
type BrandConfig struct {
	Enabled        bool   `json:"enabled"`
	DefaultBrandID string `json:"defaultBrandId,omitempty"`
}

// CheckConfig records the submission workflow state of a draft.
type CheckConfig struct {
	Enabled     bool       `json:"enabled"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	CanceledAt  *time.Time `json:"canceledAt,omitempty"`
}

// Submitted reports whether the draft was submitted more recently than the
// submission was last canceled.
func (c *CheckConfig) Submitted() bool {
	if c == nil || !c.Enabled || c.SubmittedAt == nil {
		return false
	}
	if c.CanceledAt == nil {
		return true
	}
	return c.SubmittedAt.After(*c.CanceledAt)
}

// Notification is a tenant-authored notification template.
type Notification struct {
	ID                   string          `json:"id"`
	TenantID             string          `json:"tenantId"`
	Title                string          `json:"title"`
	State                TemplateState   `json:"state"`
	Archived             bool            `json:"archived,omitempty"`
	Channels             Channels        `json:"channels"`
	Conditional          *Conditional    `json:"conditional,omitempty"`
	BrandConfig          *BrandConfig    `json:"brandConfig,omitempty"`
	CategoryID           string          `json:"categoryId,omitempty"`
	PreferenceTemplateID string          `json:"preferenceTemplateId,omitempty"`
	Blocks               json.RawMessage `json:"blocks,omitempty"`
	CheckConfig          *CheckConfig    `json:"checkConfig,omitempty"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

// ProviderCount returns the number of provider references across all channels.
func (n *Notification) ProviderCount() int {
	count := 0
	for _, ch := range n.Channels.BestOf {
		count += len(ch.Providers)
	}
	for _, ch := range n.Channels.Always {
		count += len(ch.Providers)
	}
	return count
}

// ConfigurationIDs returns the distinct non-empty configuration ids referenced
// by the template, in declaration order.
func (n *Notification) ConfigurationIDs() []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0, n.ProviderCount())
	collect := func(channels []ChannelConfig) {
		for _, ch := range channels {
			for _, p := range ch.Providers {
				if p.ConfigurationID == "" {
					continue
				}
				if _, ok := seen[p.ConfigurationID]; ok {
					continue
				}
				seen[p.ConfigurationID] = struct{}{}
				ids = append(ids, p.ConfigurationID)
			}
		}
	}
	collect(n.Channels.BestOf)
	collect(n.Channels.Always)
	return ids
}

// WithChannel returns a shallow copy of the notification whose channel graph is
// narrowed to ch only. The copy is what a per-channel envelope carries.
func (n *Notification) WithChannel(ch ChannelConfig, always bool) *Notification {
	cp := *n
	if always {
		cp.Channels = Channels{BestOf: []ChannelConfig{}, Always: []ChannelConfig{ch}}
	} else {
		cp.Channels = Channels{BestOf: []ChannelConfig{ch}, Always: []ChannelConfig{}}
	}
	return &cp
}

// EventMap maps a tenant event id to notification ids, in storage order.
type EventMap struct {
	TenantID        string    `json:"tenantId"`
	EventID         string    `json:"eventId"`
	NotificationIDs []string  `json:"notificationIds"`
	CreatedAt       time.Time `json:"createdAt"`
}
