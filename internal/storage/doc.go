// Package storage keeps the operator audit trail: settings and variable
// saves, status resets, pipeline start/stop, each with its outcome.
//
// Drivers: "file" (JSON lines), "sqlite" and "postgres". "none" or an empty
// driver yields a store that returns ErrDisabled.
package storage
