package provider

import (
	"fmt"
	"io"

	"hoopsight/config"
	"hoopsight/internal/integrations/dlib"
	"hoopsight/internal/integrations/facerecognition"
	"hoopsight/internal/integrations/insightface"

	log "github.com/sirupsen/logrus"
)

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}

// CreateManager erstellt den ProviderManager für die Embedding-Extraktion
// basierend auf der Konfiguration. Der zurückgegebene Closer gibt lokale Modelle frei.
func CreateManager(cfg config.FaceConfig) (*facerecognition.ProviderManager, io.Closer, error) {
	manager := facerecognition.NewProviderManager()
	var closer io.Closer = closerFunc(func() {})

	if cfg.InsightFace.Enabled {
		log.Info("Registering InsightFace as face provider")
		manager.RegisterProvider(insightface.NewService(cfg.InsightFace))
	}

	// dlib nur laden, wenn er ausgewählt ist, die Modelle sind groß
	if cfg.Provider == string(facerecognition.ProviderDlib) {
		rec, err := dlib.NewRecognizer(cfg.Dlib)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Registering dlib as face provider")
		manager.RegisterProvider(rec)
		closer = closerFunc(rec.Close)
	}

	if !manager.SetActiveProvider(facerecognition.ProviderType(cfg.Provider)) {
		_ = closer.Close()
		return nil, nil, fmt.Errorf("face provider %q is not registered (is it enabled?)", cfg.Provider)
	}

	log.Infof("Active face provider: %s", cfg.Provider)
	return manager, closer, nil
}
