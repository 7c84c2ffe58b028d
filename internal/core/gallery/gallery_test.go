package gallery

import (
	"context"
	"errors"
	"sync"
	"testing"

	"hoopsight/internal/core/models"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type memStore struct {
	mu       sync.Mutex
	profiles []models.Profile
	err      error
}

func (m *memStore) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]models.Profile, len(m.profiles))
	copy(out, m.profiles)
	return out, nil
}

func (m *memStore) set(profiles ...models.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles = profiles
}

func profile(key, embedding string) models.Profile {
	return models.Profile{Key: key, Name: DisplayName(key), Embedding: datatypes.JSON(embedding)}
}

func TestLoadSkipsBadRows(t *testing.T) {
	store := &memStore{profiles: []models.Profile{
		profile("A", `[0.1, 0.2]`),
		profile("Broken", `not json`),
		profile("Empty", `[]`),
		profile("Wide", `[0.1, 0.2, 0.3]`),
		profile("B", `[0.3, 0.4]`),
	}}

	g, warnings, err := Load(context.Background(), store)
	require.NoError(t, err)
	require.Len(t, warnings, 3)
	require.Equal(t, []string{"A", "B"}, g.Names())
	require.Equal(t, 2, g.Dimension())
}

func TestLoadEmptyStore(t *testing.T) {
	g, warnings, err := Load(context.Background(), &memStore{})
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, 0, g.Len())
	require.Equal(t, []string{}, g.Names())
}

func TestLoadDerivesDisplayName(t *testing.T) {
	store := &memStore{profiles: []models.Profile{{Key: "Jane_Doe", Embedding: datatypes.JSON(`[1]`)}}}
	g, _, err := Load(context.Background(), store)
	require.NoError(t, err)
	require.Equal(t, []string{"Jane Doe"}, g.Names())
}

func TestRegistryReloadSwapsSnapshot(t *testing.T) {
	store := &memStore{}
	r := NewRegistry(store)
	require.Equal(t, 0, r.Snapshot().Len())

	store.set(profile("A", `[1, 0]`))
	_, err := r.Reload(context.Background())
	require.NoError(t, err)
	old := r.Snapshot()
	require.Equal(t, 1, old.Len())

	// Re-Einschreibung überschreibt das Embedding, die alte Momentaufnahme bleibt unverändert
	store.set(profile("A", `[0, 1]`))
	_, err = r.Reload(context.Background())
	require.NoError(t, err)

	require.Equal(t, []float32{1, 0}, old.Entries()[0].Embedding)
	require.Equal(t, []float32{0, 1}, r.Snapshot().Entries()[0].Embedding)
	require.Equal(t, 1, r.Snapshot().Len())
}

func TestRegistryReloadFailureKeepsSnapshot(t *testing.T) {
	store := &memStore{profiles: []models.Profile{profile("A", `[1]`)}}
	r := NewRegistry(store)
	_, err := r.Reload(context.Background())
	require.NoError(t, err)

	store.err = errors.New("disk gone")
	_, err = r.Reload(context.Background())
	require.Error(t, err)
	require.Equal(t, []string{"A"}, r.Snapshot().Names())
}

func TestRegistryConcurrentReload(t *testing.T) {
	store := &memStore{profiles: []models.Profile{profile("A", `[1, 2]`), profile("B", `[3, 4]`)}}
	r := NewRegistry(store)
	_, err := r.Reload(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = r.Reload(context.Background())
		}()
		go func() {
			defer wg.Done()
			g := r.Snapshot()
			for _, e := range g.Entries() {
				if len(e.Embedding) != g.Dimension() {
					t.Errorf("inconsistent snapshot")
				}
			}
		}()
	}
	wg.Wait()
}

func TestNewRejectsInconsistentEntries(t *testing.T) {
	_, err := New([]Entry{{Key: "A", Embedding: []float32{1}}, {Key: "A", Embedding: []float32{2}}})
	require.Error(t, err)

	_, err = New([]Entry{{Key: "A", Embedding: []float32{1}}, {Key: "B", Embedding: []float32{1, 2}}})
	require.Error(t, err)

	g, err := New([]Entry{{Key: "A", Name: "A", Embedding: []float32{1}}})
	require.NoError(t, err)
	require.Equal(t, 1, g.Len())
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Jane Doe", "Jane_Doe"},
		{"  Jane Doe  ", "Jane_Doe"},
		{"O'Neil; DROP TABLE", "ONeil_DROP_TABLE"},
		{"../../etc/passwd", "etcpasswd"},
		{"Ana-Maria_2", "Ana-Maria_2"},
		{"Jordan ²", "Jordan_²"},
		{"Half ½!", "Half_½"},
		{"Louis Ⅻ", "Louis_Ⅻ"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, SanitizeName(tt.in))
		})
	}
}

func TestDisplayName(t *testing.T) {
	require.Equal(t, "Jane Doe", DisplayName("Jane_Doe"))
}
