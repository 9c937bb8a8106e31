package provider

import (
	"strings"

	"notification-prep/internal/domain/entity"
)

// Email delivers to profile.email.
type Email struct{}

// Handles implements routing.ProviderCapability.
func (Email) Handles(_ *entity.Configuration, profile, _ entity.Document) bool {
	return strings.Contains(profile.String("email"), "@")
}

// SMS delivers to profile.phone_number.
type SMS struct{}

// Handles implements routing.ProviderCapability.
func (SMS) Handles(_ *entity.Configuration, profile, _ entity.Document) bool {
	return strings.TrimSpace(profile.String("phone_number")) != ""
}

// Expo delivers to Expo push tokens stored under profile.expo as either
// {"token": "..."} or {"tokens": ["..."]}.
type Expo struct{}

// Handles implements routing.ProviderCapability.
func (Expo) Handles(_ *entity.Configuration, profile, _ entity.Document) bool {
	expo := profile.Object("expo")
	if expo.String("token") != "" {
		return true
	}
	return nonEmptyList(expo["tokens"])
}

// FirebaseFCM delivers to profile.firebaseToken.
type FirebaseFCM struct{}

// Handles implements routing.ProviderCapability.
func (FirebaseFCM) Handles(_ *entity.Configuration, profile, _ entity.Document) bool {
	if profile.String("firebaseToken") != "" {
		return true
	}
	return nonEmptyList(profile["firebaseToken"])
}

// APN delivers to profile.apn.token.
type APN struct{}

// Handles implements routing.ProviderCapability.
func (APN) Handles(_ *entity.Configuration, profile, _ entity.Document) bool {
	return profile.Object("apn").String("token") != ""
}

// Slack delivers through profile.slack, either with an access token and a
// channel or user, or through an incoming webhook URL.
type Slack struct{}

// Handles implements routing.ProviderCapability.
func (Slack) Handles(_ *entity.Configuration, profile, _ entity.Document) bool {
	slack := profile.Object("slack")
	if slack.String("incoming_webhook") != "" || slack.Object("incoming_webhook").String("url") != "" {
		return true
	}
	if slack.String("access_token") == "" {
		return false
	}
	return slack.String("channel") != "" || slack.String("user_id") != "" || slack.String("email") != ""
}

// MSTeams delivers through profile.ms_teams.
type MSTeams struct{}

// Handles implements routing.ProviderCapability.
func (MSTeams) Handles(_ *entity.Configuration, profile, _ entity.Document) bool {
	teams := profile.Object("ms_teams")
	if teams.String("incoming_webhook") != "" {
		return true
	}
	return teams.String("service_url") != "" && teams.String("tenant_id") != "" &&
		(teams.String("user_id") != "" || teams.String("channel_id") != "" || teams.String("conversation_id") != "")
}

// Webhook posts to profile.webhook.url, falling back to the URL configured on
// the integration.
type Webhook struct{}

// Handles implements routing.ProviderCapability.
func (Webhook) Handles(cfg *entity.Configuration, profile, _ entity.Document) bool {
	if profile.Object("webhook").String("url") != "" {
		return true
	}
	return cfg != nil && cfg.Settings.String("url") != ""
}

func nonEmptyList(v any) bool {
	list, ok := v.([]any)
	if !ok {
		return false
	}
	for _, e := range list {
		if s, ok := e.(string); ok && s != "" {
			return true
		}
	}
	return false
}
