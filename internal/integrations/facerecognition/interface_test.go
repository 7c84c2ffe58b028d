package facerecognition

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name      ProviderType
	available bool
	faces     [][]float32
}

func (s stubProvider) GetProviderName() ProviderType        { return s.name }
func (s stubProvider) IsAvailable(ctx context.Context) bool { return s.available }
func (s stubProvider) Extract(ctx context.Context, img image.Image) ([][]float32, error) {
	return s.faces, nil
}

func TestProviderManagerDelegatesToActive(t *testing.T) {
	m := NewProviderManager()
	_, err := m.Extract(context.Background(), nil)
	require.ErrorIs(t, err, ErrProviderUnavailable)

	m.RegisterProvider(stubProvider{name: ProviderDlib, faces: [][]float32{{1, 2}}})
	require.False(t, m.SetActiveProvider(ProviderInsightFace))
	require.True(t, m.SetActiveProvider(ProviderDlib))
	require.Equal(t, ProviderDlib, m.GetActiveProviderName())

	faces, err := m.Extract(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, [][]float32{{1, 2}}, faces)
}

func TestGetAvailableProviders(t *testing.T) {
	m := NewProviderManager()
	m.RegisterProvider(stubProvider{name: ProviderDlib, available: true})
	m.RegisterProvider(stubProvider{name: ProviderInsightFace, available: false})
	require.Equal(t, []ProviderType{ProviderDlib}, m.GetAvailableProviders(context.Background()))
}
