package statement

import (
	"regexp"
	"strings"
)

var (
	maskIBAN      = regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{10,30}\b`)
	maskTaxID     = regexp.MustCompile(`\b\d{10}\b`)
	maskDigitRuns = regexp.MustCompile(`\d{8,}`)
)

// Mask hides account identifiers in statement text before it leaves the
// process: IBANs keep their first and last four characters, tax IDs and any
// other run of eight or more digits are starred out.
func Mask(text string) string {
	out := maskIBAN.ReplaceAllStringFunc(text, maskedIBAN)
	out = maskTaxID.ReplaceAllString(out, "**********")
	out = maskDigitRuns.ReplaceAllStringFunc(out, func(n string) string {
		return strings.Repeat("*", len(n))
	})
	return out
}

// IBANMasks maps the masked form of every IBAN in text back to the IBAN, so
// values copied out of Mask(text) can be restored. A masked form shared by
// two different IBANs is ambiguous and left out.
func IBANMasks(text string) map[string]string {
	out := make(map[string]string)
	ambiguous := make(map[string]bool)
	for _, iban := range maskIBAN.FindAllString(text, -1) {
		m := maskedIBAN(iban)
		if prev, ok := out[m]; ok && prev != iban {
			ambiguous[m] = true
		}
		out[m] = iban
	}
	for m := range ambiguous {
		delete(out, m)
	}
	return out
}

func maskedIBAN(iban string) string {
	return iban[:4] + strings.Repeat("*", len(iban)-8) + iban[len(iban)-4:]
}
