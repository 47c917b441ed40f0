// Package sqlite contains the SQLite repository for obstacle detection runs.
//
// Every read and write of runs, frames and clusters belongs here rather
// than in the perception layer (L4), which keeps domain logic free of SQL
// and lets tests swap the store for an in-memory sink.
package sqlite
