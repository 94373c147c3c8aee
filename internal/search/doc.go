// Package search implements the query language and its execution: a
// total parser from raw query strings to an operator tree, compilation
// of that tree to FTS5 MATCH expressions, and an executor that serves
// both one-shot searches and progressively-populated async search jobs
// with stable pagination.
package search
