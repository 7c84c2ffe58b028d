package logger

import (
	"io"
	"os"
	"path/filepath"

	"hoopsight/config"

	log "github.com/sirupsen/logrus"
)

// Init initializes the global logger based on the provided configuration.
func Init(cfg config.LogConfig) (io.Closer, error) {
	// Set log level
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.Warnf("Invalid log level '%s', defaulting to 'info': %v", cfg.Level, err)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})

	// Always log to stdout for container logs
	writers := []io.Writer{os.Stdout}
	var closer io.Closer = nopCloser{}

	if cfg.File != "" {
		logDir := filepath.Dir(cfg.File)
		if err := os.MkdirAll(logDir, 0750); err != nil {
			log.Errorf("Failed to create log directory '%s': %v", logDir, err)
		} else {
			file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0660)
			if err != nil {
				log.Errorf("Failed to open log file '%s': %v", cfg.File, err)
			} else {
				writers = append(writers, file)
				closer = file
				log.Infof("Logging additionally to file: %s", cfg.File)
			}
		}
	}

	log.SetOutput(io.MultiWriter(writers...))

	log.Info("Logger initialized")
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
