package middleware

import (
	"context"
	"net/http"

	"golang.org/x/text/language"
)

type localeContextKey struct{}

// LocaleKey is the context key under which the detected locale is stored.
var LocaleKey = localeContextKey{}

var supportedLocales = []language.Tag{
	language.English,    // en: first entry is the matcher fallback
	language.Indonesian, // id
}

var localeMatcher = language.NewMatcher(supportedLocales)

// I18N resolves the response locale from the X-Locale header or the standard
// Accept-Language negotiation and stores it in the request context.
func I18N(defaultLocale string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locale := detectLocale(r, defaultLocale)
			ctx := context.WithValue(r.Context(), LocaleKey, locale)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectLocale(r *http.Request, fallback string) string {
	if v := r.Header.Get("X-Locale"); v != "" {
		if tag, err := language.Parse(v); err == nil {
			return matchLocale(tag)
		}
	}
	if header := r.Header.Get("Accept-Language"); header != "" {
		if tags, _, err := language.ParseAcceptLanguage(header); err == nil && len(tags) > 0 {
			return matchLocale(tags...)
		}
	}
	if fallback != "" {
		if tag, err := language.Parse(fallback); err == nil {
			return matchLocale(tag)
		}
	}
	return "en"
}

func matchLocale(tags ...language.Tag) string {
	_, index, _ := localeMatcher.Match(tags...)
	base, _ := supportedLocales[index].Base()
	return base.String()
}

// LocaleFromContext returns the locale stored by I18N, defaulting to English.
func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok && v != "" {
		return v
	}
	return "en"
}
