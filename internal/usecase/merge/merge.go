// Package merge combines stored recipient documents with the documents
// supplied on an event.
package merge

import "notification-prep/internal/domain/entity"

// Merge returns a new document holding left overlaid with right.
//
// Keys of right win over keys of left. When both sides hold an object under a
// key the objects are merged recursively; any other value, arrays included, is
// replaced wholesale. Neither input is modified.
func Merge(left, right entity.Document) entity.Document {
	if left == nil && right == nil {
		return entity.Document{}
	}
	out := left.Clone()
	if out == nil {
		out = entity.Document{}
	}
	for k, rv := range right {
		lv, ok := out[k]
		if ok {
			lm, lok := asMap(lv)
			rm, rok := asMap(rv)
			if lok && rok {
				out[k] = map[string]any(Merge(lm, rm))
				continue
			}
		}
		out[k] = entity.CloneValue(rv)
	}
	return out
}

func asMap(v any) (entity.Document, bool) {
	switch m := v.(type) {
	case map[string]any:
		return entity.Document(m), true
	case entity.Document:
		return m, true
	}
	return nil, false
}

// MergeProfile overlays the event-supplied profile onto the stored one.
// A missing stored profile is treated as empty.
func MergeProfile(stored, event entity.Document) entity.Document {
	return Merge(stored, event)
}

// MergePreferences overlays event-supplied preferences onto the stored ones.
// It only applies to notifications without a preference template.
func MergePreferences(stored, event entity.Document) entity.Document {
	return Merge(stored, event)
}

// TemplatePreferences builds the preferences document for a notification that
// links a preference template. The recipient's stored value wins; without one
// the template's default status applies. Event-supplied preferences are never
// consulted on this path.
func TemplatePreferences(notificationID string, stored *entity.PreferenceValue, template *entity.PreferenceTemplate) entity.Document {
	var value entity.Document
	switch {
	case stored != nil:
		value = stored.ToDocument()
	case template != nil && template.DefaultStatus != "":
		value = entity.PreferenceValue{Status: template.DefaultStatus}.ToDocument()
	default:
		value = entity.Document{}
	}
	return entity.Document{
		"notifications": map[string]any{
			notificationID: map[string]any(value),
		},
	}
}

// SyntheticProfile is the profile used when a recipient has no stored
// profile and the event supplied none.
func SyntheticProfile(recipientID string) entity.Document {
	return entity.Document{"user_id": recipientID}
}
