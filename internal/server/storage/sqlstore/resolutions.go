package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/opsync/internal/models"
	"github.com/iudanet/opsync/internal/server/storage"
)

// SaveConflictReport creates or replaces the report for an operation
func (s *Storage) SaveConflictReport(ctx context.Context, rep *models.ConflictReport) error {
	query := `
		INSERT INTO conflict_reports (operation_id, device_id, entity_id, remote_operation_id, reported_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (operation_id) DO UPDATE SET
			device_id = excluded.device_id,
			entity_id = excluded.entity_id,
			remote_operation_id = excluded.remote_operation_id,
			reported_at = excluded.reported_at
	`

	_, err := s.conn(ctx).ExecContext(ctx, s.rebind(query),
		rep.OperationID,
		rep.DeviceID,
		rep.EntityID,
		rep.RemoteOperationID,
		rep.ReportedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save conflict report: %w", err)
	}

	return nil
}

// GetConflictReport retrieves the latest report for an operation
// Returns ErrConflictReportNotFound if no conflict was reported
func (s *Storage) GetConflictReport(ctx context.Context, operationID string) (*models.ConflictReport, error) {
	query := `
		SELECT operation_id, device_id, entity_id, remote_operation_id, reported_at
		FROM conflict_reports
		WHERE operation_id = ?
	`

	rep := &models.ConflictReport{}
	var reportedAt int64

	err := s.conn(ctx).QueryRowContext(ctx, s.rebind(query), operationID).Scan(
		&rep.OperationID,
		&rep.DeviceID,
		&rep.EntityID,
		&rep.RemoteOperationID,
		&reportedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrConflictReportNotFound
		}
		return nil, fmt.Errorf("failed to get conflict report: %w", err)
	}

	rep.ReportedAt = time.UnixMilli(reportedAt).UTC()
	return rep, nil
}

// SaveResolution creates or replaces the resolution of an operation
func (s *Storage) SaveResolution(ctx context.Context, rec *models.ResolutionRecord) error {
	query := `
		INSERT INTO conflict_resolutions (operation_id, device_id, resolution, resolved_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (operation_id) DO UPDATE SET
			device_id = excluded.device_id,
			resolution = excluded.resolution,
			resolved_at = excluded.resolved_at
	`

	_, err := s.conn(ctx).ExecContext(ctx, s.rebind(query),
		rec.OperationID,
		rec.DeviceID,
		string(rec.Resolution),
		rec.ResolvedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save resolution: %w", err)
	}

	return nil
}

// GetResolution retrieves the resolution of an operation
// Returns ErrResolutionNotFound if none was recorded
func (s *Storage) GetResolution(ctx context.Context, operationID string) (*models.ResolutionRecord, error) {
	query := `
		SELECT operation_id, device_id, resolution, resolved_at
		FROM conflict_resolutions
		WHERE operation_id = ?
	`

	rec := &models.ResolutionRecord{}
	var resolution string
	var resolvedAt int64

	err := s.conn(ctx).QueryRowContext(ctx, s.rebind(query), operationID).Scan(
		&rec.OperationID,
		&rec.DeviceID,
		&resolution,
		&resolvedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrResolutionNotFound
		}
		return nil, fmt.Errorf("failed to get resolution: %w", err)
	}

	rec.Resolution = models.Resolution(resolution)
	rec.ResolvedAt = time.UnixMilli(resolvedAt).UTC()
	return rec, nil
}
