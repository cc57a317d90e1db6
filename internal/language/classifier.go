package language

// Lang is the detected language class of a piece of text.
type Lang string

const (
	English Lang = "english"
	Hebrew  Lang = "hebrew"
)

// hebrewThreshold is the fraction of Hebrew characters (out of Hebrew +
// Latin) above which text is classified as Hebrew. The boundary is
// exclusive: exactly 30% still classifies as English. Voice selection
// downstream depends on this exact cutoff, so do not tune it.
const hebrewThreshold = 0.30

// Classify detects the language of text by counting characters in the
// Hebrew Unicode block (U+0590–U+05FF) against Latin letters. Text with
// no identifiable characters defaults to English.
func Classify(text string) Lang {
	var hebrew, latin int
	for _, r := range text {
		switch {
		case r >= 0x0590 && r <= 0x05FF:
			hebrew++
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			latin++
		}
	}

	total := hebrew + latin
	if total == 0 {
		return English
	}
	if float64(hebrew)/float64(total) > hebrewThreshold {
		return Hebrew
	}
	return English
}
