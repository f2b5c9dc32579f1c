// Package config loads hpos-core's environment configuration (§6.4) and an
// optional YAML overlay file, the way the teacher's manager/worker Config
// structs are constructed — a single typed struct assembled once at
// startup and passed down explicitly, never read from package-level
// globals except for the one documented exception (/etc/machine-id).
package config
