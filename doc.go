// Package coclust builds MDL-regularized coclusterings over tabular data:
// joint partitions of numeric attributes into intervals and categorical
// attributes into value groups, searched by a granularity-scheduled greedy
// optimizer and annotated with a per-attribute merge dendrogram.
package coclust

// Verbose is a progress-printing switch that no code in this package reads:
// the optimizer's only output is its structured Engine.Warnf/Errorf logging.
var Verbose = true

// Browser is the browser to use when a PlotDef requests Show.
var Browser = "firefox"
