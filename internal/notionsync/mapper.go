package notionsync

import (
	"fmt"
	"time"

	"github.com/dvloznov/fop-tax-tracker/internal/domain"
	"github.com/dvloznov/fop-tax-tracker/internal/money"
	"github.com/jomei/notionapi"
)

// Property names of the Notion tax database.
const (
	PropPeriod              = "Period"
	PropYear                = "Year"
	PropQuarter             = "Quarter"
	PropIncome              = "Income"
	PropSingleTax           = "Single Tax"
	PropMilitaryTax         = "Military Tax"
	PropESV                 = "ESV"
	PropTransactions        = "Transactions"
	PropClosed              = "Closed"
	PropReportDeadline      = "Report Deadline"
	PropPaymentDeadline     = "Tax Payment Deadline"
	PropESVDeadline         = "ESV Deadline"
	PropCumulativeIncome    = "Cumulative Income"
	PropCumulativeTax       = "Cumulative Single Tax"
	PropTaxLoad             = "Tax Load"
	PropCeilingExceeded     = "Ceiling Exceeded"
	PropUnpricedTransaction = "Unpriced Transactions"
)

// PeriodTitle is the page title that keys a quarter, e.g. "2025-Q1".
func PeriodTitle(year int, q domain.Quarter) string {
	return fmt.Sprintf("%d-%s", year, q)
}

// SummaryToNotionProperties maps one quarter and its running total to the
// properties of its Notion page. cumulative may be nil.
func SummaryToNotionProperties(year int, q domain.Quarter, s domain.QuarterSummary, cumulative *domain.IntermediateSummary) (notionapi.Properties, error) {
	props := notionapi.Properties{
		PropPeriod: notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{Content: PeriodTitle(year, q)},
				},
			},
		},
		PropYear:                notionapi.NumberProperty{Number: float64(year)},
		PropQuarter:             notionapi.SelectProperty{Select: notionapi.Option{Name: q.String()}},
		PropIncome:              numberProperty(s.TotalIncome),
		PropSingleTax:           numberProperty(s.SingleTax),
		PropMilitaryTax:         numberProperty(s.MilitaryTax),
		PropESV:                 numberProperty(s.SocialContribution),
		PropTransactions:        notionapi.NumberProperty{Number: float64(s.TransactionCount)},
		PropUnpricedTransaction: notionapi.NumberProperty{Number: float64(s.UnpricedTransactions)},
		PropClosed:              notionapi.CheckboxProperty{Checkbox: s.IsQuarterClosed},
	}

	deadlines := []struct {
		prop  string
		value string
	}{
		{PropReportDeadline, s.ReportDeadline},
		{PropPaymentDeadline, s.TaxPaymentDeadline},
		{PropESVDeadline, s.SocialContributionDeadline},
	}
	for _, d := range deadlines {
		prop, err := dateProperty(d.value)
		if err != nil {
			return nil, fmt.Errorf("SummaryToNotionProperties: %s: %w", d.prop, err)
		}
		props[d.prop] = prop
	}

	if cumulative != nil {
		props[PropCumulativeIncome] = numberProperty(cumulative.TotalIncome)
		props[PropCumulativeTax] = numberProperty(cumulative.TotalSingleTax)
		props[PropTaxLoad] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{Content: cumulative.TaxLoadPercent},
				},
			},
		}
		props[PropCeilingExceeded] = notionapi.CheckboxProperty{Checkbox: cumulative.IncomeCeilingExceeded}
	}

	return props, nil
}

func numberProperty(formatted string) notionapi.NumberProperty {
	return notionapi.NumberProperty{Number: money.Parse(formatted).InexactFloat64()}
}

func dateProperty(s string) (notionapi.DateProperty, error) {
	t, err := time.ParseInLocation(domain.DateLayout, s, time.UTC)
	if err != nil {
		return notionapi.DateProperty{}, err
	}
	d := notionapi.Date(t)
	return notionapi.DateProperty{Date: &notionapi.DateObject{Start: &d}}, nil
}

// extractPeriod returns the title of a page, or "" when it has none.
func extractPeriod(page notionapi.Page) string {
	if prop, ok := page.Properties[PropPeriod]; ok {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			if len(title.Title) > 0 {
				return title.Title[0].PlainText
			}
		}
	}
	return ""
}
