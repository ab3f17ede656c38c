// Package settings stores system-wide key/value configuration. The
// approval_limit key drives purchase order auto-approval.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procureflow/procureflow/internal/shared"
)

// KeyApprovalLimit is the order total above which the general manager must
// approve.
const KeyApprovalLimit = "approval_limit"

// DefaultApprovalLimit applies when the key was never set.
const DefaultApprovalLimit = 20000

// Setting is a single key/value row.
type Setting struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	UpdatedBy int64  `json:"updated_by,omitempty"`
}

var (
	// ErrNotFound indicates the key does not exist.
	ErrNotFound = errors.New("settings: not found")
	// ErrValidation indicates an invalid value for the key.
	ErrValidation = errors.New("settings: invalid value")
)

// RepositoryPort defines persistence operations for settings.
type RepositoryPort interface {
	Get(ctx context.Context, key string) (*Setting, error)
	All(ctx context.Context) ([]Setting, error)
	Upsert(ctx context.Context, s Setting) error
}

// PGRepository implements RepositoryPort backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Get fetches a single setting.
func (r *PGRepository) Get(ctx context.Context, key string) (*Setting, error) {
	row := r.pool.QueryRow(ctx, `SELECT key, value, COALESCE(updated_by, 0) FROM system_settings WHERE key = $1`, key)
	var s Setting
	if err := row.Scan(&s.Key, &s.Value, &s.UpdatedBy); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// All returns every setting.
func (r *PGRepository) All(ctx context.Context) ([]Setting, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value, COALESCE(updated_by, 0) FROM system_settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Setting
	for rows.Next() {
		var s Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedBy); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Upsert writes the setting, replacing any previous value.
func (r *PGRepository) Upsert(ctx context.Context, s Setting) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO system_settings (key, value, updated_by, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_by = EXCLUDED.updated_by, updated_at = NOW()`,
		s.Key, s.Value, s.UpdatedBy)
	return err
}

var _ RepositoryPort = (*PGRepository)(nil)

// Service reads and writes settings with per-key validation.
type Service struct {
	repo   RepositoryPort
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// All returns every setting.
func (s *Service) All(ctx context.Context) ([]Setting, error) {
	return s.repo.All(ctx)
}

// ApprovalLimit returns the configured auto-approval boundary, falling back
// to the default when the key was never set.
func (s *Service) ApprovalLimit(ctx context.Context) (float64, error) {
	setting, err := s.repo.Get(ctx, KeyApprovalLimit)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return DefaultApprovalLimit, nil
		}
		return 0, err
	}
	limit, err := strconv.ParseFloat(setting.Value, 64)
	if err != nil || limit < 0 {
		s.logger.Warn("malformed approval limit, using default", slog.String("value", setting.Value))
		return DefaultApprovalLimit, nil
	}
	return limit, nil
}

// Set validates and stores a setting on behalf of the actor.
func (s *Service) Set(ctx context.Context, actor shared.Principal, key, value string) (*Setting, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: key is required", ErrValidation)
	}
	if key == KeyApprovalLimit {
		limit, err := strconv.ParseFloat(value, 64)
		if err != nil || limit < 0 {
			return nil, fmt.Errorf("%w: approval_limit must be a non-negative number", ErrValidation)
		}
	}
	setting := Setting{Key: key, Value: value, UpdatedBy: actor.UserID}
	if err := s.repo.Upsert(ctx, setting); err != nil {
		return nil, err
	}
	if s.audit != nil {
		err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "settings.update",
			Entity:   "system_setting",
			EntityID: key,
			Meta:     map[string]any{"value": value},
		})
		if err != nil {
			s.logger.Error("record audit", slog.Any("error", err))
		}
	}
	return &setting, nil
}
