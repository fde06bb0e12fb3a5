package engine

import (
	"github.com/sirupsen/logrus"

	"github.com/yourusername/stakecraft/internal/models"
)

// DutchingAllocator redistributes each dutching group's total stake so that
// realized profit is identical regardless of which member wins. The group's
// total stake is preserved exactly.
type DutchingAllocator struct {
	logger *logrus.Logger
}

// NewDutchingAllocator creates a dutching allocator
func NewDutchingAllocator(logger *logrus.Logger) *DutchingAllocator {
	return &DutchingAllocator{logger: logger}
}

// Apply equalizes stakes within every dutching group in place. Groups of
// fewer than two members are left untouched, as is any group containing a
// member with odds at or below 1.0 (invalid odds are flagged upstream, never
// silently corrected here).
func (da *DutchingAllocator) Apply(tickets []*models.Ticket) {
	groups := make(map[string][]*models.Ticket)
	for _, t := range tickets {
		if t.GroupKey == "" {
			continue
		}
		groups[t.GroupKey] = append(groups[t.GroupKey], t)
	}

	for key, members := range groups {
		if len(members) < 2 {
			continue
		}
		da.equalize(key, members)
	}
}

func (da *DutchingAllocator) equalize(key string, members []*models.Ticket) {
	total := 0.0
	weightSum := 0.0
	for _, t := range members {
		if !t.HasValidOdds() {
			da.logger.WithFields(logrus.Fields{
				"group_key": key,
				"ticket_id": t.ID,
				"odds":      t.Odds,
			}).Warn("Dutching group contains invalid odds, group left unmodified")
			return
		}
		total += t.StakeValue()
		weightSum += 1.0 / (t.Odds - 1.0)
	}

	if weightSum == 0 {
		return
	}

	// stake_i = total * w_i / sum(w) makes stake_i*(odds_i-1) equal for
	// every member while conserving the group total.
	for _, t := range members {
		w := 1.0 / (t.Odds - 1.0)
		t.SetStake(total * w / weightSum)
	}

	da.logger.WithFields(logrus.Fields{
		"group_key":   key,
		"members":     len(members),
		"total_stake": total,
	}).Debug("Dutching group equalized")
}
