package domain

import "strings"

// Language is a selectable recognition language.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// DefaultLanguage is used when nothing else is configured.
const DefaultLanguage = "en-US"

// SupportedLanguages lists the languages offered by presentation layers.
var SupportedLanguages = []Language{
	{Code: "en-US", Name: "English"},
	{Code: "es-ES", Name: "Spanish"},
	{Code: "fr-FR", Name: "French"},
	{Code: "de-DE", Name: "German"},
	{Code: "it-IT", Name: "Italian"},
	{Code: "hu-HU", Name: "Hungarian"},
}

// LookupLanguage finds a supported language by code, case-insensitively.
func LookupLanguage(code string) (Language, bool) {
	code = strings.TrimSpace(code)
	for _, lang := range SupportedLanguages {
		if strings.EqualFold(lang.Code, code) {
			return lang, true
		}
	}
	return Language{}, false
}

// NextLanguage returns the language after code in SupportedLanguages, wrapping around.
func NextLanguage(code string) Language {
	for i, lang := range SupportedLanguages {
		if strings.EqualFold(lang.Code, code) {
			return SupportedLanguages[(i+1)%len(SupportedLanguages)]
		}
	}
	return SupportedLanguages[0]
}
