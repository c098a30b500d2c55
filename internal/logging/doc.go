// Package logging provides file-based logging with size-based rotation.
// The CLI writes JSON logs to ~/.concept_rag/logs/conceptrag.log and to
// stderr on every run; the level is info by default and debug when the
// --debug flag is set.
package logging
