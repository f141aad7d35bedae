package config

import (
	"sort"

	"multirag/internal/domain"
)

var supportedLanguages = map[string]string{
	"English": "en",
	"Hindi":   "hi",
	"Turkish": "tr",
	"French":  "fr",
}

// DefaultLanguages returns a copy of the supported language table.
func DefaultLanguages() map[string]string {
	out := make(map[string]string, len(supportedLanguages))
	for k, v := range supportedLanguages {
		out[k] = v
	}
	return out
}

// ValidateLanguages rejects tables that add, drop or remap supported languages.
func ValidateLanguages(table map[string]string) error {
	if len(table) != len(supportedLanguages) {
		return domain.ConfigurationError("language table must contain exactly %v", LanguageNames(supportedLanguages))
	}
	for name, code := range table {
		want, ok := supportedLanguages[name]
		if !ok {
			return domain.ConfigurationError("unsupported language %q", name)
		}
		if code != want {
			return domain.ConfigurationError("language %q must map to %q, got %q", name, want, code)
		}
	}
	return nil
}

// LanguageCode resolves a human readable language name to its ISO code.
func LanguageCode(table map[string]string, name string) (string, error) {
	code, ok := table[name]
	if !ok {
		return "", domain.ConfigurationError("unknown language %q", name)
	}
	return code, nil
}

// LanguageNames lists the table's names in sorted order.
func LanguageNames(table map[string]string) []string {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
