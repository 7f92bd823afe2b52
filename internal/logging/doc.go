// Package logging provides file-based logging with rotation for recall.
// The CLI always writes its log to ~/.recall/logs/ at info level; the
// --debug flag lowers the level to debug. The CLI does not mirror log
// records to stderr.
package logging
