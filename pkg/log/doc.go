// Package log provides structured, component-scoped logging built on zerolog.
//
// Call Init once at process start, then derive child loggers with
// WithComponent/WithHost/WithWorkload/WithConsumer so every subsystem's log
// lines carry consistent identifying fields without repeating them at each
// call site.
package log
