// Package agent contains the power-analysis pipeline: it loads two weeks of
// usage data, computes the deterministic comparison report and delegates the
// narrative to a large language model. It also maintains the analysis
// history used as prompt context for later runs.
package agent
