package statement

import "strings"

// Bank identifies a supported statement layout.
type Bank string

const (
	BankMonobank   Bank = "monobank"
	BankPrivatbank Bank = "privatbank"
	BankUkrsib     Bank = "ukrsib"
	BankUnknown    Bank = "unknown"
)

// Detection is the discriminated result of Detect: exactly one field is true.
type Detection struct {
	Monobank   bool `json:"is_monobank"`
	Privatbank bool `json:"is_privatbank"`
	Ukrsib     bool `json:"is_ukrsib"`
	Unknown    bool `json:"is_unknown"`
}

// Bank returns the detected bank.
func (d Detection) Bank() Bank {
	switch {
	case d.Monobank:
		return BankMonobank
	case d.Privatbank:
		return BankPrivatbank
	case d.Ukrsib:
		return BankUkrsib
	default:
		return BankUnknown
	}
}

// bankMarkers are legal-entity names as printed in statement headers, lower-cased.
// Order is priority: a first page may also mention another bank as a
// counterparty, and the issuer names below are less ambiguous first.
var bankMarkers = []struct {
	bank    Bank
	markers []string
}{
	{BankMonobank, []string{"universal bank jsc", `ат "універсал банк"`, "ат «універсал банк»"}},
	{BankUkrsib, []string{"укрсиббанк", "ukrsibbank"}},
	{BankPrivatbank, []string{`ат кб "приватбанк"`, "приватбанк", "privatbank"}},
}

// Detect classifies the first page of a statement by substring presence.
func Detect(firstPage string) Detection {
	t := strings.ToLower(firstPage)

	for _, bm := range bankMarkers {
		for _, m := range bm.markers {
			if strings.Contains(t, m) {
				return detectionFor(bm.bank)
			}
		}
	}
	return Detection{Unknown: true}
}

func detectionFor(b Bank) Detection {
	switch b {
	case BankMonobank:
		return Detection{Monobank: true}
	case BankPrivatbank:
		return Detection{Privatbank: true}
	case BankUkrsib:
		return Detection{Ukrsib: true}
	}
	return Detection{Unknown: true}
}

// ParseBank maps a bank name back to its constant.
func ParseBank(s string) Bank {
	switch Bank(strings.ToLower(strings.TrimSpace(s))) {
	case BankMonobank:
		return BankMonobank
	case BankPrivatbank:
		return BankPrivatbank
	case BankUkrsib:
		return BankUkrsib
	}
	return BankUnknown
}
