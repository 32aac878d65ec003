package flow

import "strings"

// promptStrings holds the operator-facing text of one locale. Placeholders
// named {platform} are substituted at render time.
type promptStrings struct {
	fileDescription string
	retryText       string
	retryOk         string
	retryCancel     string
	consentQuestion string
	consentButton   string
}

var locales = map[string]promptStrings{
	"en": {
		fileDescription: "Please follow the download instructions and choose the file that you stored on your device. Click “Skip” at the right bottom, if you do not have a {platform} file.",
		retryText:       "Unfortunately, we cannot process your data. Please make sure that you selected JSON as a file format when downloading your data from {platform}.",
		retryOk:         "Try again",
		retryCancel:     "Continue",
		consentQuestion: "Do you want to donate the data above?",
		consentButton:   "Yes, donate",
	},
	"nl": {
		fileDescription: "Volg de download instructies en kies het bestand dat u opgeslagen heeft op uw apparaat. Als u geen {platform} bestand heeft klik dan op “Overslaan” rechts onder.",
		retryText:       "Helaas kunnen we uw gegevens niet verwerken. Zorg ervoor dat u JSON heeft geselecteerd als bestandsformaat bij het downloaden van uw gegevens van {platform}.",
		retryOk:         "Probeer opnieuw",
		retryCancel:     "Verder",
		consentQuestion: "Wilt u de bovenstaande gegevens doneren?",
		consentButton:   "Ja, doneer",
	},
}

// localeStrings returns the prompt text for a locale, falling back to English.
func localeStrings(locale string) promptStrings {
	if s, ok := locales[locale]; ok {
		return s
	}
	return locales["en"]
}

func (s promptStrings) forPlatform(text, platform string) string {
	return strings.ReplaceAll(text, "{platform}", platform)
}
