package authcore

import "sync/atomic"

// MetricID indexes one counter in the in-process metric vector.
type MetricID uint8

const (
	MetricPairsIssued MetricID = iota
	MetricAccessVerified
	MetricVerifyRejected
	MetricRefreshRotated
	MetricRefreshNotFound
	MetricRefreshSubjectMismatch
	MetricTokensRevoked
	MetricRevokeAllRuns
	MetricStoreFailures

	metricCount
)

type metrics struct {
	counters [metricCount]atomic.Uint64
}

func (m *metrics) inc(id MetricID) {
	m.counters[id].Add(1)
}

// MetricsSnapshot is a point-in-time copy of the Authority's counters.
// Counters are monotonic since construction; export to an external
// observability system is the caller's concern.
type MetricsSnapshot struct {
	PairsIssued            uint64
	AccessVerified         uint64
	VerifyRejected         uint64
	RefreshRotated         uint64
	RefreshNotFound        uint64
	RefreshSubjectMismatch uint64
	TokensRevoked          uint64
	RevokeAllRuns          uint64
	StoreFailures          uint64
}

func (m *metrics) snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		PairsIssued:            m.counters[MetricPairsIssued].Load(),
		AccessVerified:         m.counters[MetricAccessVerified].Load(),
		VerifyRejected:         m.counters[MetricVerifyRejected].Load(),
		RefreshRotated:         m.counters[MetricRefreshRotated].Load(),
		RefreshNotFound:        m.counters[MetricRefreshNotFound].Load(),
		RefreshSubjectMismatch: m.counters[MetricRefreshSubjectMismatch].Load(),
		TokensRevoked:          m.counters[MetricTokensRevoked].Load(),
		RevokeAllRuns:          m.counters[MetricRevokeAllRuns].Load(),
		StoreFailures:          m.counters[MetricStoreFailures].Load(),
	}
}
