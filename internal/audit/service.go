package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/ourway/auth/internal/storage"
)

// DBRecorder persists records through the store and mirrors each one to a
// JSON trail logger. DB insert failures are logged and swallowed, so an
// unreachable audit table degrades to the stdout trail instead of failing
// the request that triggered the event.
type DBRecorder struct {
	queries *storage.Queries
	logger  *slog.Logger
	trail   *slog.Logger
}

// NewDBRecorder wires a recorder over the given queries. The trail logger is
// a separate JSON handler so its format stays strict regardless of how the
// main application logger is configured.
func NewDBRecorder(queries *storage.Queries, logger *slog.Logger) *DBRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	trail := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	return &DBRecorder{queries: queries, logger: logger, trail: trail}
}

// Record appends the event. The insert runs on a detached context so a
// response that has already been written (and whose request context is being
// torn down) cannot cancel the audit write mid-flight.
func (s *DBRecorder) Record(ctx context.Context, rec Record) {
	var details []byte
	if len(rec.Details) > 0 {
		b, err := json.Marshal(rec.Details)
		if err != nil {
			s.logger.Error("audit_details_marshal_failed", "error", err, "action", rec.Action)
		} else {
			details = b
		}
	}

	s.trail.InfoContext(ctx, "audit_event",
		slog.String("log_type", "AUDIT_TRAIL"),
		slog.String("client_id", rec.ClientID),
		slog.String("user", rec.User),
		slog.String("action", string(rec.Action)),
		slog.String("resource", rec.Resource),
		slog.String("ip", rec.IPAddress),
		slog.Bool("success", rec.Success),
		slog.Time("timestamp_utc", time.Now().UTC()),
	)

	insertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	err := s.queries.InsertAuditLog(insertCtx, storage.AuditRow{
		ClientID:  rec.ClientID,
		User:      rec.User,
		Action:    string(rec.Action),
		Resource:  rec.Resource,
		Details:   details,
		IPAddress: rec.IPAddress,
		UserAgent: rec.UserAgent,
		Success:   rec.Success,
	})
	if err != nil {
		// The stdout trail above already holds the event.
		s.logger.Error("audit_db_insert_failed",
			"action", rec.Action,
			"client_id", rec.ClientID,
			"error", err,
		)
	}
}
