package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"server/internal/infra"
	"server/internal/metrics"
	"server/internal/sqlinline"
	"server/internal/storage"
)

// DefaultGrace is how long an unreferenced object may linger before the
// sweep removes it. It must comfortably exceed the longest possible
// pipeline run so in-flight uploads are never collected.
const DefaultGrace = 24 * time.Hour

// ArtifactStore is the subset of the object store the sweep needs.
type ArtifactStore interface {
	Walk(ctx context.Context, fn func(obj storage.Object) error) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Sweeper reconciles the object store against the generations table. A
// pipeline run that persists its artifact but dies before writing the record
// leaves an orphaned object behind; the sweep is the only component allowed
// to remove those.
type Sweeper struct {
	SQL    infra.SQLExecutor
	Store  ArtifactStore
	Logger zerolog.Logger

	// Grace overrides DefaultGrace in tests.
	Grace time.Duration

	// Now is the clock used for age checks; defaults to time.Now.
	Now func() time.Time
}

// Report summarizes one sweep pass.
type Report struct {
	Scanned        int
	OrphansRemoved int
	MissingObjects int
	Errors         int
}

// Run performs one reconciliation pass: orphaned objects older than the
// grace window are deleted, records whose objects vanished are reported.
func (s *Sweeper) Run(ctx context.Context) (Report, error) {
	report := Report{}
	cutoff := s.now().Add(-s.grace())

	err := s.Store.Walk(ctx, func(obj storage.Object) error {
		report.Scanned++
		if obj.ModTime.After(cutoff) {
			return nil
		}
		referenced, err := s.isReferenced(ctx, obj.Key)
		if err != nil {
			report.Errors++
			s.Logger.Error().Err(err).Str("key", obj.Key).Msg("sweep: reference lookup failed")
			return nil
		}
		if referenced {
			return nil
		}
		if err := s.Store.Delete(ctx, obj.Key); err != nil {
			report.Errors++
			s.Logger.Error().Err(err).Str("key", obj.Key).Msg("sweep: delete failed")
			return nil
		}
		report.OrphansRemoved++
		metrics.SweepOrphansRemoved.Inc()
		s.Logger.Info().Str("key", obj.Key).Time("mod_time", obj.ModTime).Msg("sweep: orphaned object removed")
		return nil
	})
	if err != nil {
		return report, err
	}

	missing, err := s.auditRecords(ctx)
	if err != nil {
		report.Errors++
		s.Logger.Error().Err(err).Msg("sweep: record audit failed")
	}
	report.MissingObjects = missing

	s.Logger.Info().
		Int("scanned", report.Scanned).
		Int("orphans_removed", report.OrphansRemoved).
		Int("missing_objects", report.MissingObjects).
		Int("errors", report.Errors).
		Msg("sweep: pass complete")
	return report, nil
}

// isReferenced reports whether any generation record points at the key.
func (s *Sweeper) isReferenced(ctx context.Context, key string) (bool, error) {
	row := s.SQL.QueryRow(ctx, sqlinline.QSelectGenerationByStorageKey, key)
	var id string
	if err := row.Scan(&id); err != nil {
		if infra.IsNoRows(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// auditRecords flags database records whose storage objects no longer
// exist. Those records are never deleted automatically, only logged for an
// operator to inspect.
func (s *Sweeper) auditRecords(ctx context.Context) (int, error) {
	rows, err := s.SQL.Query(ctx, sqlinline.QListGenerationStorageKeys)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	missing := 0
	for rows.Next() {
		var id, key string
		if err := rows.Scan(&id, &key); err != nil {
			return missing, err
		}
		exists, err := s.Store.Exists(ctx, key)
		if err != nil {
			return missing, err
		}
		if !exists {
			missing++
			s.Logger.Warn().Str("record_id", id).Str("key", key).Msg("sweep: record references missing object")
		}
	}
	return missing, rows.Err()
}

func (s *Sweeper) grace() time.Duration {
	if s.Grace > 0 {
		return s.Grace
	}
	return DefaultGrace
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
