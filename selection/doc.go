// Package selection resolves selection expressions against archive metadata.
//
// A [Resolver] turns [Criteria] (field, spw, scan, antenna, correlation, time,
// uv-range, intent, observation, array, feed and a generic row filter) into a
// [Resolution]: the selected channel ranges per spectral window, the surviving
// data descriptions, the selected correlations per polarization setup, a
// per-row [RowFilter] and one [IndexMap] per auxiliary-table kind.
//
// Expressions are parsed by a [Parser]; [ExprParser] is the default grammar.
package selection
