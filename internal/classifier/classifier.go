// Package classifier flags the tax-relevant nature of transactions from
// their description text.
package classifier

import (
	"strings"

	"github.com/dvloznov/fop-tax-tracker/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Keywords are the phrase markers of each flag. Matching is a
// case-insensitive substring test.
type Keywords struct {
	FinancialAid []string `json:"financial_aid"`
	Return       []string `json:"return"`
	FXSale       []string `json:"fx_sale"`
}

// DefaultKeywords returns the stock Ukrainian and transliterated markers.
// A fresh copy is returned on every call.
func DefaultKeywords() Keywords {
	return Keywords{
		FinancialAid: []string{
			"допомога",
			"фінансова допомога",
			"матеріальна допомога",
			"матеріальна підтримка",
			"підтримка",
			"пожертва",
			"благодійність",
			"благодійна допомога",
			"подарунок",
			"дарунок",
			"на подарунок",
			"грошова допомога",
			"безповоротна допомога",
			"безповоротна фінансова допомога",
			"допомога на лікування",
			"допомога на оренду",
			"допомога на життя",
			"гуманітарна допомога",
			"волонтерська допомога",
		},
		Return: []string{
			"повернення",
			"повернення боргу",
			"борг",
			"повертаю борг",
			"повернення коштів",
			"повернення грошей",
			"поворотна фінансова допомога",
			"позика",
			"повернення позики",
			"кредиторська заборгованість",
			"відшкодування",
			"компенсація",
			"повертаю за",
		},
		FXSale: []string{
			"продаж",
			"продажа",
			"продажу",
			"продажі",
			"продаж валют",
			"продаж валюти",
			"продажа валюты",
			"гривні від продажу",
			"грн від продажу",
			"від продажу",
			"зарахування від продажу",
			"продаж валюти за договором",
			"купівля-продаж валюти",
			"по курсу",
			"обмін валют",
			"конвертація валюти",
			"prodazh",
			"prodaja",
			"prodazha",
			"prodazhu",
			"prodazhi",
			"valuti",
			"valiuty",
			"valyuty",
			"valuty",
			"prodazh valiuty",
			"prodazh valuti",
			"prodazha valiuty",
			"za dogovorom",
			"za dohovorom",
			"za dogovor",
			"vid prodazhu",
			"vid prodazh",
			"vid prodazha",
			"po kursu",
		},
	}
}

// Flags is the classification of one transaction.
type Flags struct {
	FinancialAid bool
	Return       bool
	FXSale       bool
}

// Classifier holds folded keyword lists. It is safe for concurrent use.
type Classifier struct {
	aid    []string
	ret    []string
	fxSale []string
}

// New folds kw once so descriptions are matched against normalized markers.
func New(kw Keywords) *Classifier {
	return &Classifier{
		aid:    foldAll(kw.FinancialAid),
		ret:    foldAll(kw.Return),
		fxSale: foldAll(kw.FXSale),
	}
}

// Flags classifies a description. Financial aid applies to credits only and
// returns to debits only; the FX sale marker applies to both.
func (c *Classifier) Flags(description string, typ domain.TransactionType) Flags {
	text := fold(description)
	return Flags{
		FinancialAid: typ == domain.Credit && containsAny(text, c.aid),
		Return:       typ == domain.Debit && containsAny(text, c.ret),
		FXSale:       containsAny(text, c.fxSale),
	}
}

// Classify returns a copy of tx with its three flags set.
func (c *Classifier) Classify(tx domain.Transaction) domain.Transaction {
	f := c.Flags(tx.Description, tx.Type)
	tx.IsFinancialAid = f.FinancialAid
	tx.IsReturn = f.Return
	tx.IsFXSale = f.FXSale
	return tx
}

// ClassifyAll classifies every transaction into a new slice.
func (c *Classifier) ClassifyAll(txs []domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, len(txs))
	for i, tx := range txs {
		out[i] = c.Classify(tx)
	}
	return out
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// fold lower-cases and composes s so that "ПОВЕРНЕННЯ" and a decomposed
// "ї" match their stock spelling.
func fold(s string) string {
	return norm.NFC.String(cases.Lower(language.Und).String(s))
}

func foldAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if f := fold(strings.TrimSpace(s)); f != "" {
			out = append(out, f)
		}
	}
	return out
}
