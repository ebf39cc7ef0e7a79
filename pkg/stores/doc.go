// Package stores persists intfdf run history in SQLite.
//
// The schema is applied with golang-migrate from embedded SQL files and
// holds one row per run and one row per per-identifier execution. Recorder
// adapts a Store to engine.RunRecorder so the pipeline writes history as it
// runs; the history command reads it back.
package stores
