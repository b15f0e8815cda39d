// Package plan models the resolved logical plan handed over by a host query
// engine after a statement executes.
//
// The plan is a closed set of operator kinds (Project, Aggregate, Join, the
// DML targets, ...) over a closed set of expression kinds. Every output
// column is an Attribute whose identity (ExprID) survives renames and
// re-qualification, which is what lineage tracking keys on.
//
// Nodes are plain values: nothing in this package mutates a node after it is
// built, and Attribute "rewrites" always return a new value.
package plan
