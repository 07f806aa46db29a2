package aggregate

// UptimePercent returns the success ratio as a percentage.
//
// Zero total reads as 100: no data defaults to "fully up". Consumers that
// need to distinguish "no data" from "healthy" should use Availability.
func UptimePercent(successCount, totalCount int64) float64 {
	if totalCount == 0 {
		return 100
	}
	return 100 * float64(successCount) / float64(totalCount)
}

// Availability is UptimePercent plus an explicit known/unknown flag.
type Availability struct {
	Percent float64
	Known   bool
}

// AvailabilityFromCounts computes availability, marking zero-sample windows
// as unknown while still reporting the optimistic 100 percent default.
func AvailabilityFromCounts(successCount, totalCount int64) Availability {
	return Availability{
		Percent: UptimePercent(successCount, totalCount),
		Known:   totalCount > 0,
	}
}

// Budget is an error-budget calculation against an availability target.
type Budget struct {
	// Budget is the allowed failure percentage (100 - target).
	Budget float64

	// Used is the failure percentage consumed so far (100 - current).
	Used float64

	// Remaining is Budget - Used. Negative values signal a breach.
	Remaining float64
}

// ErrorBudget computes the error budget for a target availability (e.g.
// 99.9) given the current availability. Remaining may go negative.
func ErrorBudget(target, current float64) Budget {
	budget := 100 - target
	used := 100 - current
	return Budget{
		Budget:    budget,
		Used:      used,
		Remaining: budget - used,
	}
}

// Breached returns true if the budget is exhausted.
func (b Budget) Breached() bool {
	return b.Remaining < 0
}
