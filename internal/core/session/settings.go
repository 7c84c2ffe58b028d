package session

import (
	"encoding/json"
	"fmt"
)

// Settings steuert, welche Analysen für einen Frame laufen
type Settings struct {
	Face bool `json:"face"`
	Pose bool `json:"pose"`
}

// DefaultSettings aktiviert beide Analysen
func DefaultSettings() Settings {
	return Settings{Face: true, Pose: true}
}

// Message ist eine Text-Nachricht des Clients
type Message struct {
	Image    string
	Settings Settings
}

// ParseMessage liest {"image": ..., "settings": {...}}. Fehlende Einstellungen
// fallen auf base zurück, unbekannte Schlüssel werden ignoriert.
func ParseMessage(data []byte, base Settings) (Message, error) {
	var raw struct {
		Image    *string         `json:"image"`
		Settings json.RawMessage `json:"settings"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if raw.Image == nil || *raw.Image == "" {
		return Message{}, fmt.Errorf("%w: missing image", ErrInvalidPayload)
	}

	settings, err := ParseSettings(raw.Settings, base)
	if err != nil {
		return Message{}, err
	}
	return Message{Image: *raw.Image, Settings: settings}, nil
}

// ParseSettings überlagert base mit den übergebenen Schaltern.
// Ein Schalter, der kein Bool ist, ist ein ErrInvalidPayload.
func ParseSettings(data json.RawMessage, base Settings) (Settings, error) {
	if len(data) == 0 || string(data) == "null" {
		return base, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Settings{}, fmt.Errorf("%w: settings must be an object", ErrInvalidPayload)
	}

	out := base
	for key, target := range map[string]*bool{"face": &out.Face, "pose": &out.Pose} {
		v, ok := fields[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, target); err != nil {
			return Settings{}, fmt.Errorf("%w: settings.%s must be a boolean", ErrInvalidPayload, key)
		}
	}
	return out, nil
}
