// Package report writes evaluation results to CSV and JSON files for audit
// and downstream tooling. Money columns are rendered through decimals so
// reports never carry float artifacts like 11.999999999999998.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/stakecraft/internal/models"
)

// Writer renders evaluation results into the configured output directory.
type Writer struct {
	outputPath string
	logger     *logrus.Logger
}

// NewWriter creates a report writer rooted at outputPath
func NewWriter(outputPath string, logger *logrus.Logger) *Writer {
	return &Writer{outputPath: outputPath, logger: logger}
}

// WriteCSV writes the per-ticket stake report. Returns the file path.
func (w *Writer) WriteCSV(portfolio *models.Portfolio, result *models.EvaluationResult) (string, error) {
	if err := os.MkdirAll(w.outputPath, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	path := filepath.Join(w.outputPath, w.fileName(result, "csv"))

	csv := "ticket_id,kind,odds,probability,stake,ev,variance,roi,clv\n"
	for _, t := range sortedTickets(portfolio) {
		tm := result.TicketMetrics[t.ID]
		if tm == nil {
			continue
		}
		clv := ""
		if t.ClosingOdds != nil {
			clv = money(t.CLV(), 4)
		}
		csv += fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s,%s,%s\n",
			t.ID,
			t.Kind,
			money(t.Odds, 2),
			money(tm.Probability, 4),
			money(t.StakeValue(), 2),
			money(tm.EV, 2),
			money(tm.Variance, 2),
			money(tm.ROI, 4),
			clv,
		)
	}

	csv += "\nmetric,value\n" +
		fmt.Sprintf("accepted,%t\n", result.Decision.Accepted) +
		fmt.Sprintf("stake_total,%s\n", money(result.Metrics.StakeTotal, 2)) +
		fmt.Sprintf("ev_total,%s\n", money(result.Metrics.EVTotal, 2)) +
		fmt.Sprintf("variance_total,%s\n", money(result.Metrics.VarianceTotal, 2)) +
		fmt.Sprintf("roi_total,%s\n", money(result.Metrics.ROITotal, 4)) +
		fmt.Sprintf("risk_of_ruin,%s\n", money(result.Metrics.RiskOfRuin, 6))

	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		return "", fmt.Errorf("failed to write CSV report: %w", err)
	}

	w.logger.WithField("path", path).Info("CSV report written")
	return path, nil
}

// WriteJSON writes the full evaluation result. Returns the file path.
func (w *Writer) WriteJSON(result *models.EvaluationResult) (string, error) {
	if err := os.MkdirAll(w.outputPath, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	path := filepath.Join(w.outputPath, w.fileName(result, "json"))
	if err := os.WriteFile(path, []byte(result.ToJSON()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write JSON report: %w", err)
	}

	w.logger.WithField("path", path).Info("JSON report written")
	return path, nil
}

func (w *Writer) fileName(result *models.EvaluationResult, ext string) string {
	ts := result.Decision.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return fmt.Sprintf("decision_%s.%s", ts.Format("20060102T150405"), ext)
}

func sortedTickets(portfolio *models.Portfolio) []*models.Ticket {
	tickets := make([]*models.Ticket, len(portfolio.Tickets))
	copy(tickets, portfolio.Tickets)
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].ID < tickets[j].ID })
	return tickets
}

func money(v float64, places int32) string {
	return decimal.NewFromFloat(v).Round(places).String()
}
