package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Settings
		wantErr bool
	}{
		{"defaults", `{"image":"data:image/jpeg;base64,AAAA"}`, Settings{Face: true, Pose: true}, false},
		{"explicit", `{"image":"AAAA","settings":{"face":false,"pose":true}}`, Settings{Face: false, Pose: true}, false},
		{"partial", `{"image":"AAAA","settings":{"pose":false}}`, Settings{Face: true, Pose: false}, false},
		{"unknown keys ignored", `{"image":"AAAA","settings":{"face":true,"zoom":3}}`, Settings{Face: true, Pose: true}, false},
		{"wrong type", `{"image":"AAAA","settings":{"face":"yes"}}`, Settings{}, true},
		{"settings not object", `{"image":"AAAA","settings":[1]}`, Settings{}, true},
		{"missing image", `{"settings":{}}`, Settings{}, true},
		{"not json", `hello`, Settings{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseMessage([]byte(tt.payload), DefaultSettings())
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidPayload)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, msg.Settings)
			require.NotEmpty(t, msg.Image)
		})
	}
}

func TestParseSettingsKeepsBase(t *testing.T) {
	base := Settings{Face: false, Pose: true}
	got, err := ParseSettings(json.RawMessage(`null`), base)
	require.NoError(t, err)
	require.Equal(t, base, got)
}
