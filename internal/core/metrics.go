package core

// StrategyMetrics aggregates outcomes per routing strategy. Analytics
// produces it; the routing calibrator consumes it.
type StrategyMetrics struct {
	Strategy      RoutingStrategy
	Samples       int
	SuccessRate   float64 // [0,1]
	AvgDurationMs int64
	AvgTokens     int
}
