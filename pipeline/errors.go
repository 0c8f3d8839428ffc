package pipeline

import "errors"

var (
	// ErrSortKey is returned for a sort key with repeated columns.
	ErrSortKey = errors.New("pipeline: invalid sort key")
	// ErrNoCalibration is returned when a calibrator covers none of the selected windows.
	ErrNoCalibration = errors.New("pipeline: no calibration applies to the selection")
	// ErrGainTable is returned for an unreadable gain table.
	ErrGainTable = errors.New("pipeline: invalid gain table")
	// ErrTimeBin is returned for a non-positive time bin.
	ErrTimeBin = errors.New("pipeline: time bin must be positive")
	// ErrTimeSpan is returned for an unknown timespan column.
	ErrTimeSpan = errors.New("pipeline: unknown timespan column")
	// ErrPhaseCenter is returned for a phase center naming no field.
	ErrPhaseCenter = errors.New("pipeline: invalid phase center")
	// ErrPolAverageMode is returned for an unknown polarization average mode.
	ErrPolAverageMode = errors.New("pipeline: unknown polarization average mode")
)
