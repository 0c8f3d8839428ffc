// Package reindex rewrites the auxiliary tables of an archive for a planned
// transformation and produces the [Layout] the writer uses to renumber rows.
//
// Selection maps filter and renumber FIELD, OBSERVATION and STATE. The
// spectral plan replaces SPECTRAL_WINDOW; the tables carrying a window id
// (FEED, SOURCE, SYSCAL, FREQ_OFFSET, CALDEVICE, SYSPOWER) are collapsed when
// windows are combined and multiplexed when a window is split. Correlation
// selection narrows POLARIZATION rows in place and polarization averaging
// points averageable setups at a single Stokes I row. DATA_DESCRIPTION is
// rebuilt last.
package reindex
