// Package command defines the moeckpt command-line tool.
//
// Most commands read the checkpoint directory directly and work whether or
// not moeckpt-server is running. save talks to a running server.
package command
