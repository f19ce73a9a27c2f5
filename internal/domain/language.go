package domain

import (
	"fmt"

	"golang.org/x/text/language"
)

// Language is a base language code such as "en" or "hi".
type Language string

const DefaultLanguage Language = "en"

var supportedTags = []language.Tag{
	language.English,
	language.Hindi,
	language.Tamil,
	language.Telugu,
	language.Kannada,
	language.Malayalam,
	language.Gujarati,
	language.Marathi,
	language.Bengali,
	language.MustParse("or"),
	language.Punjabi,
}

var matcher = language.NewMatcher(supportedTags)

// ParseLanguage accepts any BCP 47 tag ("hi-IN", "ta") and reduces it to
// one of the supported base languages.
func ParseLanguage(s string) (Language, error) {
	tag, err := language.Parse(s)
	if err != nil {
		return "", fmt.Errorf("parsing language %q: %w", s, err)
	}

	_, idx, conf := matcher.Match(tag)
	if conf < language.High {
		return "", fmt.Errorf("unsupported language: %s", s)
	}

	base, _ := supportedTags[idx].Base()
	return Language(base.String()), nil
}

func SupportedLanguages() []Language {
	out := make([]Language, 0, len(supportedTags))
	for _, t := range supportedTags {
		base, _ := t.Base()
		out = append(out, Language(base.String()))
	}
	return out
}

func (l Language) String() string {
	return string(l)
}
