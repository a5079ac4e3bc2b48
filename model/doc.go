// Package model defines the shared data model of the text engine: text
// spans with full typographic metrics, the line and paragraph aggregates
// built on top of them, derived spacing and baseline analyses, and the
// change records produced by edits.
//
// Ownership is deliberate: spans are owned by the page-level result set,
// while lines and paragraphs reference spans by identifier only. An edit
// to a span is therefore visible to every aggregate that references it.
// All types are JSON-serializable for external tooling.
package model
