// Package rate provides fixed-window request counters over the shared Redis
// keyspace. The limiter only counts; the decision to reject when the budget
// is exhausted belongs to the HTTP layer.
package rate
