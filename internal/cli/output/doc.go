// Package output renders moeckpt command results as a table, JSON or YAML.
//
// Struct fields are rendered by the table formatter using these tags:
//
//	json:"name"        column header (upper-cased)
//	table:"-"          never shown
//	table:"wide"       shown only with --wide
//	table:"bytes"      integer rendered as a human readable size
package output
