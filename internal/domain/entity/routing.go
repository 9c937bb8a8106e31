package entity

// RejectionReason explains why a routing candidate was not selected.
// The zero value means the candidate was selected.
type RejectionReason string

const (
	ReasonNone                   RejectionReason = ""
	ReasonChannelDisabled        RejectionReason = "CHANNEL_DISABLED"
	ReasonFilteredOutAtChannel   RejectionReason = "FILTERED_OUT_AT_CHANNEL"
	ReasonMissingConfigurationID RejectionReason = "MISSING_CONFIGURATION_ID"
	ReasonMissingConfiguration   RejectionReason = "MISSING_CONFIGURATION"
	ReasonFilteredAtProvider     RejectionReason = "FILTERED_AT_PROVIDER"
	ReasonMissingProviderSupport RejectionReason = "MISSING_PROVIDER_SUPPORT"
	ReasonIncompleteProfileData  RejectionReason = "INCOMPLETE_PROFILE_DATA"
)

// RoutingCandidate is one evaluated (channel, provider) pair. Channels that were
// skipped before any provider was examined carry an empty Provider.
type RoutingCandidate struct {
	Channel         string          `json:"channel"`
	ChannelID       string          `json:"channelId,omitempty"`
	Provider        string          `json:"provider,omitempty"`
	ConfigurationID string          `json:"configurationId,omitempty"`
	Always          bool            `json:"always,omitempty"`
	Selected        bool            `json:"selected"`
	Reason          RejectionReason `json:"reason,omitempty"`
}

// VariableContext is the read-only evaluation context for conditionals.
type VariableContext struct {
	Brand     Document `json:"brand"`
	Data      Document `json:"data"`
	Profile   Document `json:"profile"`
	Event     string   `json:"event"`
	Recipient string   `json:"recipient"`
	URLs      Document `json:"urls"`
}

// Source returns the sub-document a filter source refers to. Only "data" and
// "profile" are addressable; anything else reports false.
func (v VariableContext) Source(name string) (Document, bool) {
	switch name {
	case "data":
		return v.Data, true
	case "profile":
		return v.Profile, true
	}
	return nil, false
}
