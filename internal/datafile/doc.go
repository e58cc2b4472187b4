// Package datafile persists trial records.
//
// Each sink implements experiment.Sink. CSVSink writes the scorer-facing
// spreadsheet, SQLiteSink keeps every session in a local database, and
// MultiSink forwards records to several sinks at once.
package datafile
