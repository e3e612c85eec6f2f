package pennywise

// ReconcileGoalStatus is the single goal status rule. An Active goal whose
// current amount reaches its target becomes Completed. Paused and Completed
// goals are only changed by the user.
func ReconcileGoalStatus(goal SavingsGoal) GoalStatus {
	if goal.Status == GoalActive && goal.TargetAmount.IsPositive() &&
		goal.CurrentAmount.GreaterThanOrEqual(goal.TargetAmount) {
		return GoalCompleted
	}
	if goal.Status == "" {
		return GoalActive
	}
	return goal.Status
}
