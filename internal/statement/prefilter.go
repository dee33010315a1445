package statement

import (
	"regexp"
	"strings"
)

var statementKeywords = []string{
	// English
	"account statement",
	"bank statement",
	"statement",
	"statement date",
	"statement period",
	"reporting period",
	"period:",
	"balance",
	"opening balance",
	"closing balance",
	"current balance",
	"available balance",
	"balance at the beginning of the period",
	"balance at the end of the period",
	"cash flow",
	"credit turnover",
	"debit turnover",
	"turnover",
	// Ukrainian
	"банківська виписка",
	"виписка по рахунку",
	"виписка",
	"звітний період",
	"виписка за період",
	"заключна виписка",
	"період:",
	"баланс",
	"залишок",
	"залишок на початок періоду",
	"залишок на кінець періоду",
	"поточний залишок",
	"доступний залишок",
	"рух коштів",
	"обіг за кредитом",
	"обіг за дебетом",
	"обіг за період",
	"оборот",
}

var statementDatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{2}\.\d{2}\.\d{4}\b`),
	regexp.MustCompile(`\b\d{2}\.\d{2}\.\d{2}\b`),
	regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
	regexp.MustCompile(`\b\d{2}/\d{2}/\d{4}\b`),
}

// IsProbablyFinancial is a cheap check run before bank detection: every
// page must carry text, and the first page must contain a statement keyword
// and a date.
func IsProbablyFinancial(pages []string) bool {
	if len(pages) == 0 {
		return false
	}
	for _, p := range pages {
		if strings.TrimSpace(p) == "" {
			return false
		}
	}

	first := pages[0]
	t := strings.ToLower(first)

	hasKeyword := false
	for _, k := range statementKeywords {
		if strings.Contains(t, k) {
			hasKeyword = true
			break
		}
	}
	if !hasKeyword {
		return false
	}

	for _, rx := range statementDatePatterns {
		if rx.MatchString(first) {
			return true
		}
	}
	return false
}
