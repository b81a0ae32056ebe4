// Package metrics derives summary statistics from a ledger snapshot.
// Computation is a pure function of the snapshot: nothing here reads or
// mutates session state.
package metrics

import (
	"github.com/shopspring/decimal"

	"meridian/banking-api/internal/domain"
)

// Compute aggregates a ledger snapshot into a report. An empty snapshot
// produces zeroes throughout — fraud percentage, average, and maximum are
// all defined as 0 rather than faulting on division by zero.
func Compute(txs []domain.Transaction) domain.Report {
	report := domain.Report{
		PerKind:   make(map[string]domain.KindStats),
		AvgAmount: decimal.Zero,
		MaxAmount: decimal.Zero,
	}

	total := decimal.Zero
	for _, tx := range txs {
		report.TotalCount++
		if tx.Fraud {
			report.FraudCount++
		}

		kind := string(tx.Kind)
		if !tx.Kind.Valid() {
			kind = domain.KindUnknown
		}
		stats := report.PerKind[kind]
		stats.Total++
		if tx.Fraud {
			stats.Fraud++
		}
		report.PerKind[kind] = stats

		total = total.Add(tx.Amount)
		if tx.Amount.GreaterThan(report.MaxAmount) {
			report.MaxAmount = tx.Amount
		}
	}

	if report.TotalCount > 0 {
		report.FraudPercentage = float64(report.FraudCount) / float64(report.TotalCount) * 100
		report.AvgAmount = total.Div(decimal.NewFromInt(int64(report.TotalCount)))
	}

	return report
}
