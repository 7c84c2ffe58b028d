package middleware

import (
	"embed"
	"encoding/json"
	"io/fs"
	"path"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

const (
	sessionLanguageKey = "language"
	contextLanguageKey = "language"
	contextLocalizer   = "localizer"
)

// I18nConfig definiert die Konfiguration für die i18n-Middleware
type I18nConfig struct {
	DefaultLanguage string
}

// Translator hält das Übersetzungsbündel und je Sprache einen Localizer
type Translator struct {
	defaultLang string
	bundle      *i18n.Bundle
	localizer   map[string]*i18n.Localizer
	matcher     language.Matcher
	matchOrder  []string // Sprachcodes in der Reihenfolge der Matcher-Tags
	languages   []string
}

// NewTranslator lädt die eingebetteten Übersetzungen
func NewTranslator(config I18nConfig) (*Translator, error) {
	if config.DefaultLanguage == "" {
		config.DefaultLanguage = "en"
	}

	defaultTag, err := language.Parse(config.DefaultLanguage)
	if err != nil {
		return nil, err
	}

	bundle := i18n.NewBundle(defaultTag)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	t := &Translator{
		defaultLang: config.DefaultLanguage,
		bundle:      bundle,
		localizer:   make(map[string]*i18n.Localizer),
	}

	files, err := fs.Glob(localeFS, "locales/*.json")
	if err != nil {
		return nil, err
	}

	// Standardsprache zuerst, damit der Matcher auf sie zurückfällt
	tags := []language.Tag{defaultTag}
	t.matchOrder = []string{config.DefaultLanguage}
	for _, file := range files {
		if _, err := bundle.LoadMessageFileFS(localeFS, file); err != nil {
			return nil, err
		}
		// Sprachcode aus dem Dateinamen extrahieren (z.B. "ro.json" -> "ro")
		langCode := strings.TrimSuffix(path.Base(file), path.Ext(file))
		t.localizer[langCode] = i18n.NewLocalizer(bundle, langCode)
		t.languages = append(t.languages, langCode)
		if langCode != config.DefaultLanguage {
			tags = append(tags, language.Make(langCode))
			t.matchOrder = append(t.matchOrder, langCode)
		}
	}
	t.matcher = language.NewMatcher(tags)

	return t, nil
}

// Supports meldet, ob für lang Übersetzungen vorliegen
func (t *Translator) Supports(lang string) bool {
	_, ok := t.localizer[lang]
	return ok
}

// Languages gibt die verfügbaren Sprachcodes zurück
func (t *Translator) Languages() []string {
	return append([]string(nil), t.languages...)
}

// Localize übersetzt eine Nachricht. Unbekannte IDs liefern die ID selbst.
func (t *Translator) Localize(lang, id string, data map[string]interface{}) string {
	loc, ok := t.localizer[lang]
	if !ok {
		loc = t.localizer[t.defaultLang]
	}
	if loc == nil {
		loc = i18n.NewLocalizer(t.bundle, t.defaultLang)
	}
	msg, err := loc.Localize(&i18n.LocalizeConfig{MessageID: id, TemplateData: data})
	if err != nil {
		log.Debugf("Missing translation %q for %s: %v", id, lang, err)
		return id
	}
	return msg
}

// match wählt die beste Sprache für einen Accept-Language-Header
func (t *Translator) match(header string) string {
	if header == "" {
		return ""
	}
	_, idx, conf := t.matcher.Match(parseAcceptLanguage(header)...)
	if conf == language.No || idx >= len(t.matchOrder) {
		return ""
	}
	return t.matchOrder[idx]
}

func parseAcceptLanguage(header string) []language.Tag {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil {
		return nil
	}
	return tags
}

// I18n erstellt eine Middleware für die Internationalisierung.
// Reihenfolge: ?lang=, Sitzungs-Cookie, Accept-Language, Standardsprache.
func I18n(translator *Translator) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		lang := c.Query("lang")

		if lang != "" && translator.Supports(lang) {
			// Auswahl für folgende Anfragen merken
			session.Set(sessionLanguageKey, lang)
			if err := session.Save(); err != nil {
				log.Debugf("Failed to save language preference: %v", err)
			}
		} else {
			lang = ""
			if stored, ok := session.Get(sessionLanguageKey).(string); ok && translator.Supports(stored) {
				lang = stored
			}
		}

		if lang == "" {
			lang = translator.match(c.GetHeader("Accept-Language"))
		}
		if lang == "" {
			lang = translator.defaultLang
		}

		c.Set(contextLanguageKey, lang)
		c.Set(contextLocalizer, translator)
		c.Next()
	}
}

// T übersetzt eine Nachricht in der Sprache der Anfrage
func T(c *gin.Context, id string, data map[string]interface{}) string {
	translator, ok := c.Get(contextLocalizer)
	if !ok {
		return id
	}
	return translator.(*Translator).Localize(Language(c), id, data)
}

// Language gibt die ermittelte Sprache der Anfrage zurück
func Language(c *gin.Context) string {
	return c.GetString(contextLanguageKey)
}
