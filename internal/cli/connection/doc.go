// Package connection is the moeckpt CLI client for the moeckpt-server admin
// API.
package connection
