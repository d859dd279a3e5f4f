// Package pkg provides shared utilities for the softi2c driver.
//
// This package contains common functionality used across the binding,
// transfer and command layers, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel and typed errors for binding and bus failures
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with driver context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentBinding, "device bound", "addr", 0x76)
//
// # Errors
//
// Failures are reported as sentinel values, optionally wrapped in
// [BindError] or [TransferError]:
//
//	if errors.Is(err, pkg.ErrNoDevice) {
//	    // Retry after the platform binds a device
//	}
//
//	var te *pkg.TransferError
//	if errors.As(err, &te) {
//	    log.Printf("adapter returned %d", te.Code)
//	}
package pkg
