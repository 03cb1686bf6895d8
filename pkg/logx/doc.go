// Package logx is the structured logger used across athand.
//
// Components hold a Logger by value and derive their own with
// With(logx.String("comp", ...)). The console output is human readable with
// a short caller; the optional file output is JSON. Loggers created from a
// Service follow configuration reloads.
package logx
