// Package logging provides structured logging for odtl game sessions.
//
// The package wraps log/slog with a JSON handler so a session can be
// reconstructed after the fact: which challenge was on screen, which
// detector fired, and which alert effects failed.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/var/log/odtl", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.Info("window opened", "duration_ms", 3000)
//
// # Context Propagation
//
// Child loggers carry persistent attributes:
//
//	sessionLogger := logger.WithSession("a1b2c3")
//	detectorLogger := sessionLogger.WithChallenge(4).WithDetector("camera")
//	detectorLogger.Warn("sensor unavailable", "error", err.Error())
//
// Output:
//
//	{"time":"...","level":"WARN","msg":"sensor unavailable","session_id":"a1b2c3","challenge":4,"detector":"camera","error":"..."}
//
// # Log Rotation
//
// Long-running kiosks should use rotation:
//
//	logger, err := logging.NewLoggerWithRotation(dir, "INFO", logging.RotationConfig{
//	    MaxSizeMB:  10,
//	    MaxBackups: 3,
//	    Compress:   true,
//	})
//
// Rotated files are named odtl.log.1, odtl.log.2, ... where .1 is the most
// recent backup (odtl.log.1.gz when compressed).
//
// # History
//
// [ReadHistory] parses odtl.log and its backups back into [Entry] values,
// [FilterEntries] narrows them and [WriteEntries] exports them as text,
// JSON or CSV. The logs command is built on these.
//
// # Testing
//
// Use [NopLogger] to discard output.
//
// # Thread Safety
//
// [Logger] and [RotatingWriter] are safe for concurrent use.
package logging
