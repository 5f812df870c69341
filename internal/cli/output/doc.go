// Package output renders salesdesk-cli results.
//
// Records from the backend are free-form JSON objects, so the table
// formatter derives columns from the keys it sees, putting id first.
// JSON and YAML formatters emit the data unchanged for scripting.
package output
