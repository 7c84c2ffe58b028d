package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"hoopsight/internal/core/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrProfileNotFound wird zurückgegeben, wenn kein Profil mit dem Schlüssel existiert
var ErrProfileNotFound = errors.New("profile not found")

// ProfileRepository definiert die Schnittstelle für die Profil-Operationen
type ProfileRepository interface {
	// ListProfiles liefert alle Profile in Einfügereihenfolge
	ListProfiles(ctx context.Context) ([]models.Profile, error)
	// SaveProfile legt ein Profil an oder überschreibt das Embedding eines bestehenden
	SaveProfile(ctx context.Context, key, name, provider string, embedding []float32) (*models.Profile, error)
	// DeleteProfile entfernt ein Profil endgültig
	DeleteProfile(ctx context.Context, key string) error
}

// SQLiteRepository implementiert die ProfileRepository-Schnittstelle für SQLite
type SQLiteRepository struct {
	db *gorm.DB
}

// NewSQLiteRepository erstellt eine neue SQLite-Repository-Instanz
func NewSQLiteRepository(db *gorm.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// ListProfiles holt alle Profile sortiert nach ID.
// Die Embeddings werden nicht dekodiert, das übernimmt die Galerie.
func (r *SQLiteRepository) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	var profiles []models.Profile
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return profiles, nil
}

// SaveProfile speichert ein Profil. Bei erneuter Einschreibung unter demselben
// Schlüssel bleibt die Zeilen-ID (und damit die Position in der Galerie) erhalten.
func (r *SQLiteRepository) SaveProfile(ctx context.Context, key, name, provider string, embedding []float32) (*models.Profile, error) {
	if key == "" {
		return nil, fmt.Errorf("profile key must not be empty")
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("profile %s: embedding must not be empty", key)
	}

	raw, err := json.Marshal(embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to encode embedding: %w", err)
	}

	profile := models.Profile{
		Key:       key,
		Name:      name,
		Embedding: datatypes.JSON(raw),
		Dimension: len(embedding),
		Provider:  provider,
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "profile_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "embedding", "dimension", "provider", "updated_at"}),
	}).Create(&profile)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to save profile %s: %w", key, result.Error)
	}

	// Nach einem Upsert ist die ID im Struct nicht zuverlässig gesetzt
	var stored models.Profile
	if err := r.db.WithContext(ctx).Where("profile_key = ?", key).First(&stored).Error; err != nil {
		return nil, fmt.Errorf("failed to reload profile %s: %w", key, err)
	}
	return &stored, nil
}

// DeleteProfile löscht ein Profil ohne Soft-Delete, damit der Schlüssel wieder frei ist
func (r *SQLiteRepository) DeleteProfile(ctx context.Context, key string) error {
	result := r.db.WithContext(ctx).Unscoped().Where("profile_key = ?", key).Delete(&models.Profile{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete profile %s: %w", key, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrProfileNotFound
	}
	return nil
}
