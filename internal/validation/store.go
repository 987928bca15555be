package validation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/JaimeStill/clearance/internal/decision"
	"github.com/JaimeStill/clearance/pkg/repository"
)

type reportStore struct {
	db *sql.DB
}

// NewReports returns the PostgreSQL store for the latest report per shipment.
func NewReports(db *sql.DB) Reports {
	return &reportStore{db: db}
}

// Save stores report only when its run sequence is newer than the stored
// one. The upsert condition makes the comparison atomic, so out-of-order
// writes from concurrent processes are discarded.
func (s *reportStore) Save(ctx context.Context, report decision.Report) (bool, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return false, fmt.Errorf("marshal report: %w", err)
	}

	q := `
		INSERT INTO compliance_reports(shipment_id, run_seq, decision, report, generated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (shipment_id) DO UPDATE SET
			run_seq = EXCLUDED.run_seq,
			decision = EXCLUDED.decision,
			report = EXCLUDED.report,
			generated_at = EXCLUDED.generated_at
		WHERE compliance_reports.run_seq < EXCLUDED.run_seq`

	result, err := s.db.ExecContext(
		ctx, q,
		report.ShipmentID,
		report.RunSeq,
		string(report.Decision),
		data,
		report.GeneratedAt,
	)
	if err != nil {
		return false, fmt.Errorf("save report: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("save report: %w", err)
	}
	return n == 1, nil
}

func (s *reportStore) Latest(ctx context.Context, shipmentID uuid.UUID) (*decision.Report, error) {
	report, err := repository.QueryOne(
		ctx, s.db,
		"SELECT report FROM compliance_reports WHERE shipment_id = $1",
		[]any{shipmentID},
		scanReport,
	)
	if err != nil {
		return nil, repository.MapError(err, ErrNoReport, ErrNoReport)
	}
	return &report, nil
}

func scanReport(s repository.Scanner) (decision.Report, error) {
	var (
		report decision.Report
		data   []byte
	)
	if err := s.Scan(&data); err != nil {
		return report, err
	}
	if err := json.Unmarshal(data, &report); err != nil {
		return report, fmt.Errorf("unmarshal report: %w", err)
	}
	return report, nil
}
