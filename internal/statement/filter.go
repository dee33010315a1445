package statement

import "github.com/dvloznov/fop-tax-tracker/internal/domain"

// IncomeCandidates keeps the transactions that can count as income: CREDIT
// only, and for Monobank statements without the hryvnia leg of an FX account.
// Transactions whose date could not be read are dropped since they cannot be
// assigned to a quarter.
func IncomeCandidates(bank Bank, txs []domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Type != domain.Credit || tx.Date.IsZero() {
			continue
		}
		if bank == BankMonobank && tx.OperationCurrency == hryvnia {
			continue
		}
		out = append(out, tx)
	}
	return out
}
