package alerts

import (
	"sort"

	"github.com/shopspring/decimal"
)

// AlertLevel classifies how far below its thresholds a balance has fallen.
type AlertLevel string

const (
	LevelZero       AlertLevel = "zero"
	LevelAlmostZero AlertLevel = "almost_zero"
	LevelCritical   AlertLevel = "critical"
	LevelWarning    AlertLevel = "warning"
	LevelNormal     AlertLevel = "normal"
)

// Priority orders levels for display: zero=4, almost_zero=3, critical=2,
// warning=1, normal=0.
func (l AlertLevel) Priority() int {
	switch l {
	case LevelZero:
		return 4
	case LevelAlmostZero:
		return 3
	case LevelCritical:
		return 2
	case LevelWarning:
		return 1
	default:
		return 0
	}
}

// almostZero is the fixed cutoff below which a non-zero balance is treated
// as effectively exhausted.
var almostZero = decimal.NewFromInt(1)

// Classify maps a balance against its thresholds to an alert level.
func Classify(balance, warning, critical decimal.Decimal) AlertLevel {
	switch {
	case balance.LessThanOrEqual(decimal.Zero):
		return LevelZero
	case balance.LessThan(almostZero):
		return LevelAlmostZero
	case balance.LessThan(critical):
		return LevelCritical
	case balance.LessThan(warning):
		return LevelWarning
	default:
		return LevelNormal
	}
}

// LowBalanceUser is one row of the low-balance aggregation.
type LowBalanceUser struct {
	UserID    string `json:"user_id"`
	CompanyID string `json:"company_id"`
	Email     string `json:"email,omitempty"`

	CurrentBalance    decimal.Decimal `json:"current_balance"`
	WarningThreshold  decimal.Decimal `json:"warning_threshold"`
	CriticalThreshold decimal.Decimal `json:"critical_threshold"`

	Level AlertLevel `json:"alert_level"`
}

// SortUsers orders users by descending alert priority; ties keep the most
// depleted balance first.
func SortUsers(users []LowBalanceUser) {
	sort.SliceStable(users, func(i, j int) bool {
		pi, pj := users[i].Level.Priority(), users[j].Level.Priority()
		if pi != pj {
			return pi > pj
		}
		return users[i].CurrentBalance.LessThan(users[j].CurrentBalance)
	})
}
