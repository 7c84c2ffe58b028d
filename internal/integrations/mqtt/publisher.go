package mqtt

import (
	"sync"
	"time"

	"hoopsight/internal/core/models"
	"hoopsight/internal/util/timezone"

	log "github.com/sirupsen/logrus"
)

// Topic-Suffixe unterhalb des Präfixes
const (
	TopicIdentified = "identified"
	TopicProfiles   = "profiles"
	TopicReload     = "command/reload"
)

// publishClient ist der Teil des Clients, den der Publisher benötigt
type publishClient interface {
	Topic(suffix string) string
	Publish(topic string, payload interface{}) error
	PublishRetain(topic string, payload interface{}) error
}

// ProfileLister liefert die aktuellen Spielernamen
type ProfileLister interface {
	Profiles() []string
}

// IdentifiedMessage wird bei jeder neuen Identifikation veröffentlicht
type IdentifiedMessage struct {
	Player    string    `json:"player"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ProfilesMessage wird bei jeder Änderung der Galerie veröffentlicht (retained)
type ProfilesMessage struct {
	Event     string    `json:"event"`
	Player    string    `json:"player"`
	Profiles  []string  `json:"profiles"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher veröffentlicht Spieler-Ereignisse via MQTT
type Publisher struct {
	client   publishClient
	profiles ProfileLister
	mu       sync.Mutex
	lastSeen map[string]time.Time // letzte Veröffentlichung pro Spieler
}

// NewPublisher erstellt einen neuen MQTT-Publisher
func NewPublisher(client publishClient, profiles ProfileLister) *Publisher {
	return &Publisher{
		client:   client,
		profiles: profiles,
		lastSeen: make(map[string]time.Time),
	}
}

// PublishEvent veröffentlicht ein Ereignis auf dem passenden Topic.
// Fehler werden nur protokolliert, die Analyse läuft weiter.
func (p *Publisher) PublishEvent(event models.PlayerEvent) {
	var err error
	switch event.Type {
	case models.EventIdentified:
		p.mu.Lock()
		p.lastSeen[event.Player] = event.Timestamp
		p.mu.Unlock()
		err = p.client.Publish(p.client.Topic(TopicIdentified), IdentifiedMessage{
			Player:    event.Player,
			SessionID: event.SessionID,
			Timestamp: event.Timestamp,
		})
	case models.EventEnrolled, models.EventDeleted:
		if event.Type == models.EventDeleted {
			p.mu.Lock()
			delete(p.lastSeen, event.Player)
			p.mu.Unlock()
		}
		err = p.client.PublishRetain(p.client.Topic(TopicProfiles), ProfilesMessage{
			Event:     event.Type,
			Player:    event.Player,
			Profiles:  p.profiles.Profiles(),
			Timestamp: event.Timestamp,
		})
	default:
		log.Debugf("Ignoring unknown player event type %q", event.Type)
		return
	}

	if err != nil {
		log.Errorf("Failed to publish %s event for %s: %v", event.Type, event.Player, err)
	}
}

// LastSeen gibt den Zeitpunkt der letzten Identifikation eines Spielers zurück
func (p *Publisher) LastSeen(player string) (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ts, ok := p.lastSeen[player]
	return ts, ok
}

// PublishProfiles veröffentlicht die aktuelle Profilliste, z. B. beim Start
func (p *Publisher) PublishProfiles() {
	msg := ProfilesMessage{Event: "sync", Profiles: p.profiles.Profiles(), Timestamp: timezone.Now()}
	if err := p.client.PublishRetain(p.client.Topic(TopicProfiles), msg); err != nil {
		log.Errorf("Failed to publish profile list: %v", err)
	}
}
