package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/map-pickban-backend/internal/engine"
)

const pgUniqueViolation = "23505"

type resultRow struct {
	ID          uint       `gorm:"primaryKey"`
	Code        string     `gorm:"size:16;not null;uniqueIndex:idx_results_code_completed"`
	Format      string     `gorm:"size:8;not null"`
	SideA       string     `gorm:"size:64;not null"`
	SideB       string     `gorm:"size:64;not null"`
	CompletedAt time.Time  `gorm:"not null;uniqueIndex:idx_results_code_completed"`
	Entries     []entryRow `gorm:"foreignKey:ResultID;constraint:OnDelete:CASCADE"`
}

func (resultRow) TableName() string { return "pickban_results" }

type entryRow struct {
	ID       uint   `gorm:"primaryKey"`
	ResultID uint   `gorm:"not null;index"`
	Position int    `gorm:"not null"`
	Target   string `gorm:"size:32;not null"`
	Kind     string `gorm:"size:16;not null"`
	Actor    string `gorm:"size:16;not null"`
}

func (entryRow) TableName() string { return "pickban_result_entries" }

// GormStore keeps results in Postgres.
type GormStore struct {
	db *gorm.DB
}

func OpenGorm(dsn string) (*GormStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("empty postgres dsn")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return NewGormStore(db)
}

// NewGormStore migrates the schema on db and wraps it.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&resultRow{}, &entryRow{}); err != nil {
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Save(ctx context.Context, r Result) error {
	row := toRow(r)
	err := s.db.WithContext(ctx).Create(&row).Error
	if isUniqueViolation(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("save result %s: %w", r.Code, err)
	}
	return nil
}

func (s *GormStore) ListByCode(ctx context.Context, code string) ([]Result, error) {
	var rows []resultRow
	err := s.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("code = ?", code).
		Order("completed_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list results %s: %w", code, err)
	}

	out := make([]Result, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRow(r Result) resultRow {
	row := resultRow{
		Code:        r.Code,
		Format:      r.Format,
		SideA:       r.SideA,
		SideB:       r.SideB,
		CompletedAt: r.CompletedAt.UTC(),
		Entries:     make([]entryRow, 0, len(r.Chosen)),
	}
	for i, c := range r.Chosen {
		row.Entries = append(row.Entries, entryRow{
			Position: i,
			Target:   c.Target,
			Kind:     string(c.Kind),
			Actor:    string(c.Actor),
		})
	}
	return row
}

func fromRow(row resultRow) Result {
	r := Result{
		Code:        row.Code,
		Format:      row.Format,
		SideA:       row.SideA,
		SideB:       row.SideB,
		CompletedAt: row.CompletedAt.UTC(),
		Chosen:      make([]engine.ChosenEntry, 0, len(row.Entries)),
	}
	for _, e := range row.Entries {
		r.Chosen = append(r.Chosen, engine.ChosenEntry{
			Target: e.Target,
			Kind:   engine.Action(e.Kind),
			Actor:  engine.Side(e.Actor),
		})
	}
	return r
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
