package pennywise

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestReconcileGoalStatus(t *testing.T) {
	goal := func(status GoalStatus, current, target int64) SavingsGoal {
		return SavingsGoal{
			Status:        status,
			CurrentAmount: decimal.NewFromInt(current),
			TargetAmount:  decimal.NewFromInt(target),
		}
	}

	tests := []struct {
		name string
		goal SavingsGoal
		want GoalStatus
	}{
		{"active reaching target completes", goal(GoalActive, 500, 500), GoalCompleted},
		{"active above target completes", goal(GoalActive, 650, 500), GoalCompleted},
		{"active below target stays active", goal(GoalActive, 499, 500), GoalActive},
		{"manual completed below target is kept", goal(GoalCompleted, 499, 500), GoalCompleted},
		{"paused at target stays paused", goal(GoalPaused, 500, 500), GoalPaused},
		{"paused below target stays paused", goal(GoalPaused, 10, 500), GoalPaused},
		{"missing status defaults to active", goal("", 10, 500), GoalActive},
		{"zero target never completes", goal(GoalActive, 0, 0), GoalActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReconcileGoalStatus(tt.goal))
		})
	}
}
