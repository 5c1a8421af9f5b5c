package reconcile

import "errors"

var (
	// ErrNilSelector is returned when an aggregation selector is nil.
	ErrNilSelector = errors.New("reconcile: nil selector")
	// ErrNilKeyFunc is returned when an aggregation key function is nil.
	ErrNilKeyFunc = errors.New("reconcile: nil key func")
	// ErrInvalidPeriod is returned when a reporting period is malformed.
	ErrInvalidPeriod = errors.New("reconcile: invalid period")
	// ErrReportNotFound is returned when a stored report is not found.
	ErrReportNotFound = errors.New("reconcile: report not found")
)
