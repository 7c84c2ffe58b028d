package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config repräsentiert die Hauptkonfiguration der Anwendung
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	DB       DBConfig       `mapstructure:"db"`
	Face     FaceConfig     `mapstructure:"face"`
	Pose     PoseConfig     `mapstructure:"pose"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Workers  WorkersConfig  `mapstructure:"workers"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	I18n     I18nConfig     `mapstructure:"i18n"`
}

// ServerConfig enthält Server-bezogene Einstellungen
type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	DataDir        string   `mapstructure:"data_dir"`
	Timezone       string   `mapstructure:"timezone"`
	SessionSecret  string   `mapstructure:"session_secret"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxMessageSize int64    `mapstructure:"max_message_size"` // Maximale Größe einer WebSocket-Nachricht in Bytes
	MaxFramePixels int64    `mapstructure:"max_frame_pixels"` // Maximale Pixelzahl (Breite × Höhe) eines Frames
}

// LogConfig enthält Log-Einstellungen
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DBConfig enthält Datenbankeinstellungen für den Profilspeicher
type DBConfig struct {
	File string `mapstructure:"file"` // SQLite-Datei mit den Spielerprofilen
}

// FaceConfig enthält die Einstellungen für die Gesichtsidentifikation
type FaceConfig struct {
	Provider         string            `mapstructure:"provider"`          // "insightface" oder "dlib"
	Tolerance        float64           `mapstructure:"tolerance"`         // Maximale euklidische Distanz für einen Treffer
	ThrottleInterval int               `mapstructure:"throttle_interval"` // Identifikation nur jeden n-ten Frame
	SyncInterval     int               `mapstructure:"sync_interval"`     // Sekunden zwischen Galerie-Abgleichen, 0 = aus
	InsightFace      InsightFaceConfig `mapstructure:"insightface"`
	Dlib             DlibConfig        `mapstructure:"dlib"`
}

// InsightFaceConfig enthält die Einstellungen für den InsightFace-Dienst
type InsightFaceConfig struct {
	Enabled            bool    `mapstructure:"enabled"`
	URL                string  `mapstructure:"url"`
	Timeout            int     `mapstructure:"timeout"` // Sekunden
	DetectionThreshold float64 `mapstructure:"detection_threshold"`
}

// DlibConfig enthält die Einstellungen für den lokalen dlib-Extraktor (go-face)
type DlibConfig struct {
	ModelsDir string `mapstructure:"models_dir"`
}

// PoseConfig enthält die Einstellungen für die Posenschätzung
type PoseConfig struct {
	Enabled             bool    `mapstructure:"enabled"`
	ModelPath           string  `mapstructure:"model_path"`
	InputWidth          int     `mapstructure:"input_width"`
	InputHeight         int     `mapstructure:"input_height"`
	SplitRatio          float64 `mapstructure:"split_ratio"`
	OutputX             string  `mapstructure:"output_x"`
	OutputY             string  `mapstructure:"output_y"`
	UseGPU              bool    `mapstructure:"use_gpu"`
	Backend             string  `mapstructure:"backend"` // "default", "cuda", "opencl"
	Target              string  `mapstructure:"target"`  // "cpu", "cuda", "opencl"
	PropagateConfidence bool    `mapstructure:"propagate_confidence"`
}

// AnalysisConfig enthält Einstellungen für die Biomechanik
type AnalysisConfig struct {
	ElbowSide string `mapstructure:"elbow_side"` // "right" oder "left"
}

// WorkersConfig steuert den Worker-Pool für die Frame-Verarbeitung
type WorkersConfig struct {
	Count int `mapstructure:"count"` // 0 = automatisch
}

// MQTTConfig enthält die Konfiguration für den MQTT-Client
type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	Port        int    `mapstructure:"port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	ClientID    string `mapstructure:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix"`
}

// I18nConfig enthält die Spracheinstellungen
type I18nConfig struct {
	DefaultLanguage string `mapstructure:"default_language"`
}

// Load lädt die Konfiguration aus Datei, Umgebungsvariablen und Standardwerten
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Standardwerte festlegen
	setDefaults(v)

	// Konfigurationsdatei laden, wenn vorhanden
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			log.Warnf("Config file %s does not exist, using defaults", configPath)
		} else {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			log.Infof("Config loaded from %s", configPath)
		}
	}

	// Umgebungsvariablen überlagern die Konfiguration
	v.SetEnvPrefix("HOOPSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Sicherstellen, dass erforderliche Verzeichnisse existieren
	if err := ensureDirectories(&cfg); err != nil {
		return nil, fmt.Errorf("failed to create required directories: %w", err)
	}

	return &cfg, nil
}

// Validate prüft Werte, für die es keinen sinnvollen Fallback gibt
func (c *Config) Validate() error {
	if c.Server.MaxFramePixels <= 0 {
		return fmt.Errorf("server.max_frame_pixels must be positive, got %d", c.Server.MaxFramePixels)
	}
	if c.Face.Tolerance <= 0 {
		return fmt.Errorf("face.tolerance must be positive, got %v", c.Face.Tolerance)
	}
	if c.Face.ThrottleInterval <= 0 {
		return fmt.Errorf("face.throttle_interval must be positive, got %d", c.Face.ThrottleInterval)
	}
	if c.Pose.InputWidth <= 0 || c.Pose.InputHeight <= 0 {
		return fmt.Errorf("pose input size must be positive, got %dx%d", c.Pose.InputWidth, c.Pose.InputHeight)
	}
	if c.Pose.SplitRatio <= 0 {
		return fmt.Errorf("pose.split_ratio must be positive, got %v", c.Pose.SplitRatio)
	}
	switch c.Analysis.ElbowSide {
	case "left", "right":
	default:
		return fmt.Errorf("analysis.elbow_side must be 'left' or 'right', got %q", c.Analysis.ElbowSide)
	}
	return nil
}

// setDefaults legt Standardwerte für die Konfiguration fest
func setDefaults(v *viper.Viper) {
	// Server-Standardwerte
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.data_dir", "/data")
	v.SetDefault("server.timezone", "UTC")
	v.SetDefault("server.session_secret", "hoopsight-session")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_message_size", 8<<20)
	v.SetDefault("server.max_frame_pixels", 4096*4096)

	// Log-Standardwerte
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "/data/logs/hoopsight.log")

	// DB-Standardwerte
	v.SetDefault("db.file", "/data/profiles/profiles.db")

	// Gesichtsidentifikation
	v.SetDefault("face.provider", "dlib")
	v.SetDefault("face.tolerance", 0.6)
	v.SetDefault("face.throttle_interval", 30)
	v.SetDefault("face.sync_interval", 60)
	v.SetDefault("face.insightface.enabled", true)
	v.SetDefault("face.insightface.url", "http://localhost:18080")
	v.SetDefault("face.insightface.timeout", 10)
	v.SetDefault("face.insightface.detection_threshold", 0.5)
	v.SetDefault("face.dlib.models_dir", "/data/models/dlib")

	// Posenschätzung (RTMPose, SimCC-Ausgabe)
	v.SetDefault("pose.enabled", true)
	v.SetDefault("pose.model_path", "/data/models/rtmpose-m.onnx")
	v.SetDefault("pose.input_width", 192)
	v.SetDefault("pose.input_height", 256)
	v.SetDefault("pose.split_ratio", 2.0)
	v.SetDefault("pose.output_x", "simcc_x")
	v.SetDefault("pose.output_y", "simcc_y")
	v.SetDefault("pose.use_gpu", false)
	v.SetDefault("pose.backend", "default")
	v.SetDefault("pose.target", "cpu")
	v.SetDefault("pose.propagate_confidence", false)

	// Biomechanik
	v.SetDefault("analysis.elbow_side", "right")

	// Worker-Pool
	v.SetDefault("workers.count", 0)

	// MQTT-Standardwerte
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.client_id", "hoopsight")
	v.SetDefault("mqtt.topic_prefix", "hoopsight")

	// Sprache
	v.SetDefault("i18n.default_language", "en")
}

// ensureDirectories stellt sicher, dass alle erforderlichen Verzeichnisse existieren
func ensureDirectories(cfg *Config) error {
	// Daten-Basisverzeichnis
	if cfg.Server.DataDir != "" {
		if err := os.MkdirAll(cfg.Server.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	// Log-Verzeichnis
	if cfg.Log.File != "" {
		logDir := filepath.Dir(cfg.Log.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	// Profil-Verzeichnis (für SQLite)
	if cfg.DB.File != "" {
		dbDir := filepath.Dir(cfg.DB.File)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return fmt.Errorf("failed to create profile directory: %w", err)
		}
	}

	return nil
}
