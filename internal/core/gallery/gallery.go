package gallery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"unicode"

	"hoopsight/internal/core/models"

	log "github.com/sirupsen/logrus"
)

// Store liefert die persistierten Profile in Einfügereihenfolge
type Store interface {
	ListProfiles(ctx context.Context) ([]models.Profile, error)
}

// Entry ist ein Galerieeintrag mit dekodiertem Embedding
type Entry struct {
	Key       string
	Name      string
	Embedding []float32
}

// Gallery ist eine unveränderliche Momentaufnahme aller eingeschriebenen Profile.
// Die Reihenfolge der Einträge entspricht der Einfügereihenfolge.
type Gallery struct {
	entries   []Entry
	dimension int
}

// New erstellt eine Galerie aus bereits dekodierten Einträgen.
// Einträge mit doppeltem Schlüssel oder abweichender Dimension werden abgelehnt.
func New(entries []Entry) (*Gallery, error) {
	g := &Gallery{entries: make([]Entry, 0, len(entries))}
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if len(e.Embedding) == 0 {
			return nil, fmt.Errorf("profile %s has an empty embedding", e.Key)
		}
		if _, dup := seen[e.Key]; dup {
			return nil, fmt.Errorf("duplicate profile %s", e.Key)
		}
		if g.dimension == 0 {
			g.dimension = len(e.Embedding)
		} else if len(e.Embedding) != g.dimension {
			return nil, fmt.Errorf("profile %s has dimension %d, expected %d", e.Key, len(e.Embedding), g.dimension)
		}
		seen[e.Key] = struct{}{}
		g.entries = append(g.entries, copyEntry(e))
	}
	return g, nil
}

// Empty liefert eine leere Galerie
func Empty() *Gallery {
	return &Gallery{}
}

// Load liest alle Profile aus dem Speicher. Fehlerhafte Zeilen werden
// übersprungen und als Warnungen zurückgegeben, das Laden läuft weiter.
func Load(ctx context.Context, store Store) (*Gallery, []error, error) {
	profiles, err := store.ListProfiles(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load profiles: %w", err)
	}

	g := &Gallery{entries: make([]Entry, 0, len(profiles))}
	var warnings []error
	seen := make(map[string]struct{}, len(profiles))

	for _, p := range profiles {
		var vec []float32
		if err := json.Unmarshal(p.Embedding, &vec); err != nil {
			warnings = append(warnings, fmt.Errorf("profile %s: cannot decode embedding: %w", p.Key, err))
			continue
		}
		if len(vec) == 0 {
			warnings = append(warnings, fmt.Errorf("profile %s: empty embedding", p.Key))
			continue
		}
		if g.dimension != 0 && len(vec) != g.dimension {
			warnings = append(warnings, fmt.Errorf("profile %s: dimension %d does not match gallery dimension %d", p.Key, len(vec), g.dimension))
			continue
		}
		if _, dup := seen[p.Key]; dup {
			warnings = append(warnings, fmt.Errorf("profile %s: duplicate key", p.Key))
			continue
		}

		if g.dimension == 0 {
			g.dimension = len(vec)
		}
		seen[p.Key] = struct{}{}
		name := p.Name
		if name == "" {
			name = DisplayName(p.Key)
		}
		g.entries = append(g.entries, Entry{Key: p.Key, Name: name, Embedding: vec})
	}

	for _, w := range warnings {
		log.WithField("component", "gallery").Warn(w)
	}

	return g, warnings, nil
}

// Len gibt die Anzahl der Einträge zurück
func (g *Gallery) Len() int {
	if g == nil {
		return 0
	}
	return len(g.entries)
}

// Dimension gibt die gemeinsame Embedding-Länge zurück (0 bei leerer Galerie)
func (g *Gallery) Dimension() int {
	if g == nil {
		return 0
	}
	return g.dimension
}

// Entries gibt eine Kopie der Einträge in Galeriereihenfolge zurück
func (g *Gallery) Entries() []Entry {
	if g == nil {
		return nil
	}
	out := make([]Entry, len(g.entries))
	for i, e := range g.entries {
		out[i] = copyEntry(e)
	}
	return out
}

// Names gibt die Anzeigenamen in Galeriereihenfolge zurück
func (g *Gallery) Names() []string {
	if g == nil {
		return []string{}
	}
	names := make([]string, len(g.entries))
	for i, e := range g.entries {
		names[i] = e.Name
	}
	return names
}

// Each ruft fn für jeden Eintrag in Galeriereihenfolge auf, bis fn false liefert.
// Die Embeddings dürfen vom Aufrufer nicht verändert werden.
func (g *Gallery) Each(fn func(e Entry) bool) {
	if g == nil {
		return
	}
	for _, e := range g.entries {
		if !fn(e) {
			return
		}
	}
}

func copyEntry(e Entry) Entry {
	vec := make([]float32, len(e.Embedding))
	copy(vec, e.Embedding)
	return Entry{Key: e.Key, Name: e.Name, Embedding: vec}
}

// Registry hält die aktuelle Galerie und tauscht sie beim Neuladen atomar aus
type Registry struct {
	store   Store
	current atomic.Pointer[Gallery]
}

// NewRegistry erstellt eine Registry mit leerer Galerie
func NewRegistry(store Store) *Registry {
	r := &Registry{store: store}
	r.current.Store(Empty())
	return r
}

// Snapshot liefert die aktuelle, unveränderliche Galerie
func (r *Registry) Snapshot() *Gallery {
	return r.current.Load()
}

// Reload lädt die Galerie neu. Schlägt das Laden fehl, bleibt die bisherige Galerie aktiv.
func (r *Registry) Reload(ctx context.Context) ([]error, error) {
	g, warnings, err := Load(ctx, r.store)
	if err != nil {
		log.WithField("component", "gallery").Errorf("Gallery reload failed, keeping previous snapshot: %v", err)
		return nil, err
	}
	r.current.Store(g)
	log.WithField("component", "gallery").Infof("Gallery loaded with %d profiles (%d skipped)", g.Len(), len(warnings))
	return warnings, nil
}

// SanitizeName bereinigt einen Namen zu einem Speicherschlüssel.
// Erlaubt sind Buchstaben, Zahlzeichen, Leerzeichen, '-' und '_'. Leerzeichen werden zu '_'.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(b.String()), " ", "_")
}

// DisplayName leitet den Anzeigenamen aus einem Speicherschlüssel ab
func DisplayName(key string) string {
	return strings.ReplaceAll(key, "_", " ")
}
