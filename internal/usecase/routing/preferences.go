package routing

import (
	"strings"

	"notification-prep/internal/domain/entity"
)

// disabledChannels derives the channels a recipient opted out of for one
// notification from merged preferences.
//
//   - status OPTED_OUT disables every channel
//   - channels: {<name>: "OPTED_OUT"} disables that channel
//   - a non-empty channel_preferences list restricts delivery to the channels
//     it names
func disabledChannels(prefs entity.Document, notificationID string) func(channel string) bool {
	pref := entity.NotificationPreference(prefs, notificationID)
	if pref == nil {
		return func(string) bool { return false }
	}

	if strings.EqualFold(pref.String("status"), string(entity.PreferenceOptedOut)) {
		return func(string) bool { return true }
	}

	optedOut := make(map[string]bool)
	for name, status := range pref.Object("channels") {
		if s, ok := status.(string); ok && strings.EqualFold(s, string(entity.PreferenceOptedOut)) {
			optedOut[name] = true
		}
	}

	var allowed map[string]bool
	if list, ok := pref["channel_preferences"].([]any); ok && len(list) > 0 {
		allowed = make(map[string]bool, len(list))
		for _, item := range list {
			switch v := item.(type) {
			case map[string]any:
				if name, ok := v["channel"].(string); ok {
					allowed[name] = true
				}
			case string:
				allowed[v] = true
			}
		}
	}

	return func(channel string) bool {
		if optedOut[channel] {
			return true
		}
		return allowed != nil && !allowed[channel]
	}
}
