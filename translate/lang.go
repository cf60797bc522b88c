package translate

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnsupportedLanguage = errors.New("unsupported language")

// Lang is a language tag recognized by the translation provider.
type Lang string

var supported = map[Lang]struct{}{
	"BG": {}, "CS": {}, "DA": {}, "DE": {}, "EL": {}, "EN": {},
	"ES": {}, "ET": {}, "FI": {}, "FR": {}, "HU": {}, "ID": {},
	"IT": {}, "JA": {}, "KO": {}, "LT": {}, "LV": {}, "NB": {},
	"NL": {}, "PL": {}, "PT": {}, "RO": {}, "RU": {}, "SK": {},
	"SL": {}, "SV": {}, "TR": {}, "UK": {}, "ZH": {},
}

// ParseLang validates a language tag. Tags are case-insensitive on input and
// normalized to upper case.
func ParseLang(tag string) (Lang, error) {
	lang := Lang(strings.ToUpper(strings.TrimSpace(tag)))
	if _, ok := supported[lang]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, tag)
	}
	return lang, nil
}

func (l Lang) String() string {
	return string(l)
}
