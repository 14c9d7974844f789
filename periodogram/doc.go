// Package periodogram groups the building blocks of stacked Lomb-Scargle
// analysis for irregularly sampled time series.
//
// The subpackages are layered leaves first:
//
//   - series: immutable time series with optional uncertainties
//   - grid: shared frequency grids derived from a set of series
//   - lombscargle: generalized Lomb-Scargle power on a grid
//   - stack: additive (OR) and multiplicative (AND) combination
//   - significance: analytic and bootstrap false-alarm probabilities
//   - peaks: ranked local maxima filtered by significance
//
// None of the packages perform I/O or keep global state.
package periodogram
