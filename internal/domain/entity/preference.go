package entity

// PreferenceValue is a recipient's preference for one notification.
//
// Channels maps a channel name to a status; a channel set to OPTED_OUT is
// disabled. ChannelPreferences, when non-empty, restricts delivery to the
// listed channels.
type PreferenceValue struct {
	Status             PreferenceStatus            `json:"status"`
	Channels           map[string]PreferenceStatus `json:"channels,omitempty"`
	ChannelPreferences []ChannelPreference         `json:"channel_preferences,omitempty"`
}

// ChannelPreference is one entry of PreferenceValue.ChannelPreferences.
type ChannelPreference struct {
	Channel string `json:"channel"`
}

// ToDocument converts the value into the generic form stored under
// preferences.notifications[<id>].
func (p PreferenceValue) ToDocument() Document {
	doc := Document{"status": string(p.Status)}
	if len(p.Channels) > 0 {
		channels := make(map[string]any, len(p.Channels))
		for k, v := range p.Channels {
			channels[k] = string(v)
		}
		doc["channels"] = channels
	}
	if len(p.ChannelPreferences) > 0 {
		list := make([]any, 0, len(p.ChannelPreferences))
		for _, cp := range p.ChannelPreferences {
			list = append(list, map[string]any{"channel": cp.Channel})
		}
		doc["channel_preferences"] = list
	}
	return doc
}

// NotificationPreference extracts preferences.notifications[notificationID]
// from a merged preferences document. It returns nil when none is recorded.
func NotificationPreference(prefs Document, notificationID string) Document {
	return prefs.Object("notifications").Object(notificationID)
}
