// Package power contains the deterministic core of the analysis pipeline:
// the usage data model, the JSON loader, the per-week aggregation logic and
// the two-week comparator. Everything here is a pure function over its
// explicit inputs; the narrative generation on top of it lives in the agent
// package.
package power
