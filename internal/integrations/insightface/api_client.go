package insightface

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"hoopsight/config"

	log "github.com/sirupsen/logrus"
)

// Log-Felder für InsightFace-Komponente definieren
var logFields = log.Fields{
	"component": "insightface",
}

// APIClient implementiert die Kommunikation mit dem InsightFace-Dienst
type APIClient struct {
	config     config.InsightFaceConfig
	httpClient *http.Client
}

// apiInfoResponse enthält Informationen über den InsightFace-Dienst
type apiInfoResponse struct {
	Status    string   `json:"status"`
	Version   string   `json:"version"`
	Backend   string   `json:"backend"`
	Providers []string `json:"providers"`
}

// apiDetectResponse enthält die Antwort auf eine Gesichtserkennungsanfrage
type apiDetectResponse struct {
	Status     string `json:"status"`
	FacesCount int    `json:"faces_count"`
	Faces      []struct {
		BoundingBox []int     `json:"bbox"`
		Confidence  float64   `json:"confidence"`
		Embedding   []float32 `json:"embedding,omitempty"`
	} `json:"faces"`
	ProcessTime float64 `json:"process_time"`
}

// NewAPIClient erstellt einen neuen InsightFace-APIClient
func NewAPIClient(cfg config.InsightFaceConfig) *APIClient {
	return &APIClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}
}

// Ping prüft, ob der InsightFace-Dienst verfügbar ist
func (c *APIClient) Ping(ctx context.Context) (bool, error) {
	if !c.config.Enabled {
		return false, fmt.Errorf("insightface is disabled")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/info", c.config.URL), nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to reach insightface: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("insightface unavailable, status: %d", resp.StatusCode)
	}

	var info apiInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return false, fmt.Errorf("failed to decode info response: %w", err)
	}

	log.WithFields(logFields).Debugf("InsightFace %s (%s) reachable", info.Version, info.Backend)
	return info.Status == "ok", nil
}

// encodeImage kodiert ein Bild im JPEG-Format für die Übertragung
func encodeImage(img image.Image) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DetectFaces sendet das Bild an /detect und fordert die Embeddings mit an
func (c *APIClient) DetectFaces(ctx context.Context, img image.Image, threshold float64) (*apiDetectResponse, error) {
	imgData, err := encodeImage(img)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	// Multipart-Form vorbereiten
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(imgData)); err != nil {
		return nil, fmt.Errorf("failed to copy image data: %w", err)
	}

	fields := map[string]string{
		"threshold":         fmt.Sprintf("%f", threshold),
		"return_face_data":  "false",
		"extract_embedding": "true",
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/detect", c.config.URL), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detect request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status: %d, response: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp apiDetectResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode detect response: %w", err)
	}

	if apiResp.Status != "ok" {
		return nil, fmt.Errorf("insightface error: %s", apiResp.Status)
	}

	return &apiResp, nil
}
