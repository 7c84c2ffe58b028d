package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	translator, err := NewTranslator(I18nConfig{DefaultLanguage: "en"})
	require.NoError(t, err)

	r := gin.New()
	r.Use(sessions.Sessions("hoopsight", cookie.NewStore([]byte("test-secret"))))
	r.Use(I18n(translator))
	r.GET("/msg", func(c *gin.Context) {
		c.String(http.StatusOK, Language(c)+"|"+T(c, "EnrollSuccess", map[string]interface{}{"Name": "Jane Doe"}))
	})
	return r
}

func get(r *gin.Engine, url string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, url, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTranslatorLoadsEmbeddedLocales(t *testing.T) {
	translator, err := NewTranslator(I18nConfig{})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"en", "ro"}, translator.Languages())
	require.Equal(t, "Jucătorul Ana a fost înrolat!", translator.Localize("ro", "EnrollSuccess", map[string]interface{}{"Name": "Ana"}))
	require.Equal(t, "Player Ana has been enrolled!", translator.Localize("fr", "EnrollSuccess", map[string]interface{}{"Name": "Ana"}))
	require.Equal(t, "Unknown", translator.Localize("en", "Unknown", nil))
}

func TestLanguageResolution(t *testing.T) {
	r := newRouter(t)

	tests := []struct {
		name   string
		url    string
		header http.Header
		want   string
	}{
		{"default", "/msg", nil, "en|Player Jane Doe has been enrolled!"},
		{"query", "/msg?lang=ro", nil, "ro|Jucătorul Jane Doe a fost înrolat!"},
		{"unsupported query", "/msg?lang=xx", nil, "en|Player Jane Doe has been enrolled!"},
		{"accept-language", "/msg", http.Header{"Accept-Language": {"ro-RO,ro;q=0.9"}}, "ro|Jucătorul Jane Doe a fost înrolat!"},
		{"foreign accept-language", "/msg", http.Header{"Accept-Language": {"ja"}}, "en|Player Jane Doe has been enrolled!"},
		{"query beats header", "/msg?lang=en", http.Header{"Accept-Language": {"ro"}}, "en|Player Jane Doe has been enrolled!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(r, tt.url, tt.header)
			require.Equal(t, http.StatusOK, w.Code)
			require.Equal(t, tt.want, w.Body.String())
		})
	}
}

func TestLanguageStoredInSession(t *testing.T) {
	r := newRouter(t)

	first := get(r, "/msg?lang=ro", nil)
	cookies := first.Result().Cookies()
	require.NotEmpty(t, cookies)

	header := http.Header{"Accept-Language": {"en"}}
	for _, c := range cookies {
		header.Add("Cookie", c.Name+"="+c.Value)
	}
	second := get(r, "/msg", header)
	require.Equal(t, "ro|Jucătorul Jane Doe a fost înrolat!", second.Body.String())
}
