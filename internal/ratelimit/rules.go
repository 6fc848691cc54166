package ratelimit

import "time"

// EndpointClass groups routes that share the same admission rules.
type EndpointClass string

const (
	ClassDefault     EndpointClass = "default"
	ClassScraping    EndpointClass = "scraping"
	ClassMaintenance EndpointClass = "maintenance"
)

// Rule is one class's limits.
type Rule struct {
	PerMinute     int
	PerHour       int
	PerDay        int
	Burst         int
	BurstWindow   time.Duration
	BlockDuration time.Duration
}

// Rules maps every endpoint class to its Rule.
var Rules = map[EndpointClass]Rule{
	ClassDefault: {
		PerMinute: 60, PerHour: 1000, PerDay: 10000,
		Burst: 10, BurstWindow: 10 * time.Second,
		BlockDuration: 15 * time.Minute,
	},
	ClassScraping: {
		PerMinute: 30, PerHour: 500, PerDay: 5000,
		Burst: 5, BurstWindow: 10 * time.Second,
		BlockDuration: 30 * time.Minute,
	},
	ClassMaintenance: {
		PerMinute: 10, PerHour: 100, PerDay: 1000,
		Burst: 2, BurstWindow: 10 * time.Second,
		BlockDuration: 60 * time.Minute,
	},
}
