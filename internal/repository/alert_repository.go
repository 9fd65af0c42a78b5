package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/vialert-backend/internal/domain/entity"
	domainrepo "github.com/ignatzorin/vialert-backend/internal/domain/repository"
	"github.com/ignatzorin/vialert-backend/internal/domain/valueobject"
	"github.com/ignatzorin/vialert-backend/internal/pkg/apperror"
	"github.com/ignatzorin/vialert-backend/internal/repository/common"
)

const alertsTable = "alerts"

// alertRow - строка таблицы alerts.
type alertRow struct {
	ID             uuid.UUID      `db:"id"`
	Type           string         `db:"type"`
	Subtype        sql.NullString `db:"subtype"`
	Description    sql.NullString `db:"description"`
	Lat            float64        `db:"lat"`
	Lng            float64        `db:"lng"`
	Photo          sql.NullString `db:"photo"`
	CreatedBy      uuid.NullUUID  `db:"created_by"`
	CreatedAt      time.Time      `db:"created_at"`
	ExpiresAt      time.Time      `db:"expires_at"`
	Status         string         `db:"status"`
	Votes          int            `db:"votes"`
	PositiveVoters pq.StringArray `db:"positive_voters"`
	Reports        int            `db:"reports"`
	NegativeVoters pq.StringArray `db:"negative_voters"`
	Rewarded       bool           `db:"rewarded"`
}

func (r *alertRow) toEntity() *entity.Alert {
	a := &entity.Alert{
		ID:             r.ID,
		Type:           valueobject.AlertTypeID(r.Type),
		Subtype:        nullStringPtr(r.Subtype),
		Description:    nullStringPtr(r.Description),
		Location:       valueobject.LatLng{Lat: r.Lat, Lng: r.Lng},
		Photo:          nullStringPtr(r.Photo),
		CreatedAt:      r.CreatedAt,
		ExpiresAt:      r.ExpiresAt,
		Status:         valueobject.AlertStatus(r.Status),
		Votes:          r.Votes,
		PositiveVoters: parseVoters(r.PositiveVoters),
		Reports:        r.Reports,
		NegativeVoters: parseVoters(r.NegativeVoters),
		Rewarded:       r.Rewarded,
	}
	if r.CreatedBy.Valid {
		id := r.CreatedBy.UUID
		a.CreatedBy = &id
	}
	return a
}

func alertRowFrom(a *entity.Alert) *alertRow {
	row := &alertRow{
		ID:             a.ID,
		Type:           string(a.Type),
		Subtype:        stringPtrNull(a.Subtype),
		Description:    stringPtrNull(a.Description),
		Lat:            a.Location.Lat,
		Lng:            a.Location.Lng,
		Photo:          stringPtrNull(a.Photo),
		CreatedAt:      a.CreatedAt,
		ExpiresAt:      a.ExpiresAt,
		Status:         string(a.Status),
		Votes:          a.Votes,
		PositiveVoters: formatVoters(a.PositiveVoters),
		Reports:        a.Reports,
		NegativeVoters: formatVoters(a.NegativeVoters),
		Rewarded:       a.Rewarded,
	}
	if a.CreatedBy != nil {
		row.CreatedBy = uuid.NullUUID{UUID: *a.CreatedBy, Valid: true}
	}
	return row
}

// AlertRepository хранит отчёты в PostgreSQL.
type AlertRepository struct {
	db *sqlx.DB
}

func NewAlertRepository(db *sqlx.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

func (r *AlertRepository) CreateAlert(ctx context.Context, alert *entity.Alert) error {
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO alerts (
			id, type, subtype, description, lat, lng, photo, created_by, created_at, expires_at,
			status, votes, positive_voters, reports, negative_voters, rewarded
		) VALUES (
			:id, :type, :subtype, :description, :lat, :lng, :photo, :created_by, :created_at, :expires_at,
			:status, :votes, :positive_voters, :reports, :negative_voters, :rewarded
		)
	`, alertRowFrom(alert))
	if err != nil {
		return common.Classify(fmt.Errorf("insert alert: %w", err))
	}
	return nil
}

func (r *AlertRepository) GetAlert(ctx context.Context, id uuid.UUID) (*entity.Alert, error) {
	row, err := common.GetByID[alertRow](ctx, r.db, alertsTable, id, apperror.ErrAlertNotFound)
	if err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

// ListAlerts возвращает все отчёты от новых к старым; фильтрация по сроку делается в сервисе.
func (r *AlertRepository) ListAlerts(ctx context.Context) ([]*entity.Alert, error) {
	var rows []alertRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT * FROM alerts ORDER BY created_at DESC`); err != nil {
		return nil, common.Classify(fmt.Errorf("list alerts: %w", err))
	}

	alerts := make([]*entity.Alert, 0, len(rows))
	for i := range rows {
		alerts = append(alerts, rows[i].toEntity())
	}
	return alerts, nil
}

func (r *AlertRepository) DeleteAlert(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = $1`, id)
	if err != nil {
		return common.Classify(fmt.Errorf("delete alert: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return common.Classify(err)
	}
	if n == 0 {
		return apperror.ErrAlertNotFound
	}
	return nil
}

// ApplyVote блокирует строку отчёта (FOR UPDATE), применяет голос и начисляет награду автору
// в той же транзакции. Параллельные голоса выстраиваются в очередь на блокировке.
func (r *AlertRepository) ApplyVote(ctx context.Context, id uuid.UUID, mutate domainrepo.VoteMutation) (entity.VoteResult, error) {
	var res entity.VoteResult

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		row, err := common.GetForUpdate[alertRow](ctx, tx, alertsTable, id, apperror.ErrAlertNotFound)
		if err != nil {
			return err
		}

		alert := row.toEntity()
		res = mutate(alert)
		if !res.Applied {
			return nil
		}

		updated := alertRowFrom(alert)
		if _, err := tx.NamedExecContext(ctx, `
			UPDATE alerts SET
				status = :status,
				votes = :votes,
				positive_voters = :positive_voters,
				reports = :reports,
				negative_voters = :negative_voters,
				rewarded = :rewarded
			WHERE id = :id
		`, updated); err != nil {
			return common.Classify(fmt.Errorf("update alert votes: %w", err))
		}

		if res.RewardTo != nil && res.RewardDelta != 0 {
			if err := addTrust(ctx, tx, *res.RewardTo, res.RewardDelta); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return entity.VoteResult{}, err
	}
	return res, nil
}

// addTrust начисляет доверие; отсутствующий профиль создаётся со стартовым значением.
func addTrust(ctx context.Context, tx *sqlx.Tx, profileID uuid.UUID, delta int) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO profiles (id, trust_score, reports_count, penalties, created_at, updated_at)
		VALUES ($1, $2, 0, 0, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			trust_score = profiles.trust_score + $3,
			updated_at = NOW()
	`, profileID, valueobject.InitialTrustScore+delta, delta)
	if err != nil {
		return common.Classify(fmt.Errorf("reward profile: %w", err))
	}
	return nil
}

func parseVoters(raw pq.StringArray) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		if id, err := uuid.Parse(s); err == nil {
			out = append(out, id)
		}
	}
	return out
}

func formatVoters(ids []uuid.UUID) pq.StringArray {
	out := make(pq.StringArray, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func nullStringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func stringPtrNull(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
