package annotation

import (
	"context"
	"embed"
	"encoding/json"
	"log"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localesFS embed.FS

var locales = []string{"en", "pt-BR"}

var (
	bundle        *i18n.Bundle
	defaultLocal  *i18n.Localizer
	currentLocale = "en"
)

type localizerKey struct{}

func init() {
	bundle = i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	for _, locale := range locales {
		data, err := localesFS.ReadFile("locales/" + locale + ".json")
		if err != nil {
			log.Printf("i18n: missing messages for %s: %v", locale, err)
			continue
		}
		if _, err := bundle.ParseMessageFileBytes(data, locale+".json"); err != nil {
			log.Printf("i18n: bad messages for %s: %v", locale, err)
		}
	}

	defaultLocal = i18n.NewLocalizer(bundle, currentLocale)
}

// SetLanguage picks the language of toasts and prompts for the whole process.
// An empty lang keeps the current one.
func SetLanguage(lang string) {
	if lang == "" {
		return
	}
	currentLocale = lang
	defaultLocal = i18n.NewLocalizer(bundle, currentLocale)
}

// GetLocalizerFromContext returns the localizer of a session, or the process
// one when ctx carries none.
func GetLocalizerFromContext(ctx context.Context) *i18n.Localizer {
	if ctx == nil {
		return defaultLocal
	}
	if localizer, ok := ctx.Value(localizerKey{}).(*i18n.Localizer); ok {
		return localizer
	}
	return defaultLocal
}

// WithLocalizer makes the messages of a session use localizer.
func WithLocalizer(ctx context.Context, localizer *i18n.Localizer) context.Context {
	return context.WithValue(ctx, localizerKey{}, localizer)
}

// GetLocalizerForLanguages builds a localizer for a weighted list of
// languages like "pt-BR,pt;q=0.9,en;q=0.8". A single tag works too. The
// process language is the last resort.
func GetLocalizerForLanguages(preference string) *i18n.Localizer {
	tags, _, err := language.ParseAcceptLanguage(preference)
	if err != nil {
		log.Printf("i18n: ignoring language preference %q: %v", preference, err)
	}
	langs := make([]string, 0, len(tags)+1)
	for _, tag := range tags {
		langs = append(langs, tag.String())
	}
	langs = append(langs, currentLocale)
	return i18n.NewLocalizer(bundle, langs...)
}

// T translates messageID to the process language. Unknown ids come back
// as they are.
func T(messageID string) string {
	return localize(defaultLocal, messageID, nil)
}

// LocalizeWithContextAndData translates messageID in the language of ctx,
// filling the message template with data.
func LocalizeWithContextAndData(ctx context.Context, messageID string, data map[string]interface{}) string {
	return localize(GetLocalizerFromContext(ctx), messageID, data)
}

func localize(l *i18n.Localizer, messageID string, data map[string]interface{}) string {
	msg, err := l.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID
	}
	return msg
}
