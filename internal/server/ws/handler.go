package ws

import (
	"context"
	"errors"
	"image"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"hoopsight/internal/core/frame"
	"hoopsight/internal/core/models"
	"hoopsight/internal/core/session"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const writeWait = 10 * time.Second

// Analyzer erzeugt Sitzungen und verarbeitet deren Frames
type Analyzer interface {
	NewSession() (*session.Session, func())
	Process(ctx context.Context, sess *session.Session, img image.Image, settings session.Settings) (models.AnalysisResult, error)
}

// Options konfiguriert den Stream-Handler
type Options struct {
	AllowedOrigins []string // "*" erlaubt alle Ursprünge
	MaxMessageSize int64
}

// Stats enthält die Zähler aller Streams
type Stats struct {
	ActiveStreams int64  `json:"active_streams"`
	Frames        uint64 `json:"frames"`
	Dropped       uint64 `json:"dropped"`
}

// ErrorMessage ist die Antwort auf eine nicht verwertbare Nachricht
type ErrorMessage struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Handler nimmt Frames über WebSocket entgegen und sendet Analyseergebnisse zurück.
// Pro Verbindung läuft ein Leser und ein Verarbeiter. Frames, die eintreffen,
// während der Verarbeiter beschäftigt ist, werden verworfen.
type Handler struct {
	analyzer       Analyzer
	upgrader       websocket.Upgrader
	maxMessageSize int64

	active  atomic.Int64
	frames  atomic.Uint64
	dropped atomic.Uint64
}

// NewHandler erstellt einen neuen Stream-Handler
func NewHandler(analyzer Analyzer, opts Options) *Handler {
	h := &Handler{
		analyzer:       analyzer,
		maxMessageSize: opts.MaxMessageSize,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  64 << 10,
		WriteBufferSize: 16 << 10,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return h
}

// Stats gibt die aktuellen Zähler zurück
func (h *Handler) Stats() Stats {
	return Stats{
		ActiveStreams: h.active.Load(),
		Frames:        h.frames.Load(),
		Dropped:       h.dropped.Load(),
	}
}

// inbound ist eine Nachricht, die noch dekodiert werden muss
type inbound struct {
	dataURL  string
	raw      []byte
	settings session.Settings
}

// ServeHTTP wertet die Anfrage zu einer WebSocket-Verbindung auf
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("WebSocket upgrade failed from %s: %v", r.RemoteAddr, err)
		return
	}
	h.serve(r.Context(), conn)
}

func (h *Handler) serve(parent context.Context, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	h.active.Add(1)
	defer h.active.Add(-1)

	sess, release := h.analyzer.NewSession()
	defer release()

	logger := log.WithFields(log.Fields{"component": "stream", "session": sess.ID()})
	out := &connWriter{conn: conn}
	defer conn.Close()

	if h.maxMessageSize > 0 {
		conn.SetReadLimit(h.maxMessageSize)
	}

	frames := make(chan inbound)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for in := range frames {
			if !h.process(ctx, sess, in, out, logger) {
				cancel()
				conn.Close()
				// Verbleibende Frames abnehmen, bis der Leser beendet ist
				for range frames {
				}
				return
			}
		}
	}()

	settings := session.DefaultSettings()
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) && ctx.Err() == nil {
				logger.Infof("Stream closed: %v", err)
			} else {
				logger.Debugf("Stream ended: %v", err)
			}
			break
		}

		var in inbound
		switch msgType {
		case websocket.TextMessage:
			msg, err := session.ParseMessage(data, session.DefaultSettings())
			if err != nil {
				out.sendError(err.Error())
				continue
			}
			settings = msg.Settings
			in = inbound{dataURL: msg.Image, settings: settings}
		case websocket.BinaryMessage:
			in = inbound{raw: data, settings: settings}
		default:
			continue
		}

		select {
		case frames <- in:
		default:
			n := h.dropped.Add(1)
			logger.Debugf("Frame dropped while busy (total dropped: %d)", n)
		}
	}

	cancel()
	close(frames)
	wg.Wait()
}

// process dekodiert und analysiert einen Frame. false beendet die Verbindung.
func (h *Handler) process(ctx context.Context, sess *session.Session, in inbound, out *connWriter, logger *log.Entry) bool {
	var img image.Image
	var err error
	if in.raw != nil {
		img, err = frame.Decode(in.raw)
	} else {
		img, err = frame.DecodeDataURL(in.dataURL)
	}
	if err != nil {
		out.sendError(err.Error())
		return true
	}

	result, err := h.analyzer.Process(ctx, sess, img, in.settings)
	if ctx.Err() != nil {
		// Verbindung geschlossen, Ergebnis verwerfen
		return false
	}
	h.frames.Add(1)

	if err != nil {
		var frameErr *session.FrameError
		switch {
		case session.IsFatal(err):
			logger.Errorf("Unhandled processing failure, closing stream: %v", err)
			out.close(websocket.CloseInternalServerErr, "processing failure")
			return false
		case errors.As(err, &frameErr):
			// Ergebnis ist trotzdem gültig
			logger.Debugf("Frame processed with errors: %v", err)
		default:
			logger.Errorf("Frame processing failed, closing stream: %v", err)
			out.close(websocket.CloseInternalServerErr, "processing failure")
			return false
		}
	}

	if err := out.sendJSON(result); err != nil {
		logger.Debugf("Failed to send result: %v", err)
		return false
	}
	return true
}

// connWriter serialisiert Schreibzugriffe auf die Verbindung
type connWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *connWriter) sendJSON(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteJSON(v)
}

func (w *connWriter) sendError(message string) {
	if err := w.sendJSON(ErrorMessage{Status: "error", Message: message}); err != nil {
		log.Debugf("Failed to send error message: %v", err)
	}
}

func (w *connWriter) close(code int, text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	msg := websocket.FormatCloseMessage(code, text)
	if err := w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		log.Debugf("Failed to send close frame: %v", err)
	}
}

// originChecker prüft den Origin-Header gegen die erlaubten Ursprünge
func originChecker(allowed []string) func(r *http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			return func(r *http.Request) bool { return true }
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		if strings.EqualFold(u.Host, r.Host) {
			return true
		}
		for _, o := range allowed {
			if strings.EqualFold(strings.TrimSuffix(o, "/"), origin) {
				return true
			}
		}
		return false
	}
}
