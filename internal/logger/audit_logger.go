// Package logger provides audit logging.
package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// AuditLogger provides dedicated audit trail logging for staking decisions.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger *logrus.Logger) *AuditLogger {
	return &AuditLogger{
		Entry: baseLogger.WithField("component", "audit"),
	}
}

// LogDecision logs the outcome of a portfolio evaluation.
func (al *AuditLogger) LogDecision(decisionID string, accepted bool, reasons []string, stakeTotal, evTotal, riskOfRuin float64, timestamp time.Time) {
	al.WithFields(logrus.Fields{
		"decision_id":  decisionID,
		"accepted":     accepted,
		"reasons":      reasons,
		"stake_total":  stakeTotal,
		"ev_total":     evTotal,
		"risk_of_ruin": riskOfRuin,
		"timestamp":    timestamp.Unix(),
	}).Info("Staking decision recorded")
}

// LogStakeScaling logs a risk-of-ruin enforcement pass that scaled stakes.
func (al *AuditLogger) LogStakeScaling(scale float64, iterations int, initialROR, finalROR, initialStake, finalStake float64, converged bool) {
	al.WithFields(logrus.Fields{
		"scale":         scale,
		"iterations":    iterations,
		"initial_ror":   initialROR,
		"final_ror":     finalROR,
		"initial_stake": initialStake,
		"final_stake":   finalStake,
		"converged":     converged,
	}).Info("Stake scaling recorded")
}

// LogTicketExclusion logs a ticket dropped from a portfolio before sizing.
func (al *AuditLogger) LogTicketExclusion(ticketID, reason string, odds float64) {
	al.WithFields(logrus.Fields{
		"ticket_id": ticketID,
		"reason":    reason,
		"odds":      odds,
	}).Warn("Ticket excluded from portfolio")
}

// LogCalibrationRefresh logs a calibration store refresh cycle.
func (al *AuditLogger) LogCalibrationRefresh(combinations int, duration time.Duration, err error) {
	fields := logrus.Fields{
		"combinations": combinations,
		"duration":     duration.String(),
	}
	if err != nil {
		al.WithFields(fields).WithError(err).Warn("Calibration refresh failed")
		return
	}
	al.WithFields(fields).Info("Calibration refresh completed")
}
