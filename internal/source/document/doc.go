// Package document reads prayer times from monthly timetable documents.
//
// A timetable is a table with a header row and one data row per day of the
// month. The start-of-period columns are identified by a Schema: every header
// containing Schema.Marker is a begin-column, and the first len(Schema.Order)
// of them map left-to-right onto the prayers in Schema.Order. The header is
// validated once when a document is loaded.
package document
