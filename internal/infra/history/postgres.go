package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"recoveryd/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type BuildResultModel struct {
	ID          int64     `gorm:"primaryKey"`
	BuildNumber int64     `gorm:"index;not null"`
	ModuleID    string    `gorm:"index;not null"`
	Success     bool      `gorm:"not null"`
	Skipped     bool      `gorm:"not null"`
	StartTime   time.Time `gorm:"not null"`
	EndTime     time.Time `gorm:"not null"`
	DurationMS  int64     `gorm:"not null"`
	Errors      []byte    `gorm:"type:jsonb"`
	Warnings    []byte    `gorm:"type:jsonb"`
	Artifacts   []byte    `gorm:"type:jsonb"`
	CreatedAt   time.Time `gorm:"not null"`
}

type buildCounterModel struct {
	ID    int64 `gorm:"primaryKey"`
	Value int64 `gorm:"not null"`
}

func (buildCounterModel) TableName() string { return "build_counters" }

// Postgres stores build results in a bounded audit table.
type Postgres struct {
	db    *gorm.DB
	bound int
}

func NewPostgres(dsn string, bound int) (*Postgres, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := gdb.AutoMigrate(&BuildResultModel{}, &buildCounterModel{}); err != nil {
		return nil, fmt.Errorf("migrate build history: %w", err)
	}
	if bound <= 0 {
		bound = DefaultBound
	}
	return &Postgres{db: gdb, bound: bound}, nil
}

func (p *Postgres) Append(ctx context.Context, r domain.BuildResult) error {
	model, err := toModel(r)
	if err != nil {
		return err
	}
	if err := p.db.WithContext(ctx).Create(&model).Error; err != nil {
		return err
	}
	// trim rows beyond the audit bound
	return p.db.WithContext(ctx).Exec(
		"DELETE FROM build_result_models WHERE id <= (SELECT COALESCE(MAX(id),0) - ? FROM build_result_models)",
		p.bound,
	).Error
}

func (p *Postgres) Recent(ctx context.Context, limit int) ([]domain.BuildResult, error) {
	if limit <= 0 || limit > p.bound {
		limit = p.bound
	}
	var models []BuildResultModel
	if err := p.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.BuildResult, 0, len(models))
	for _, m := range models {
		r, err := fromModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (p *Postgres) Clear(ctx context.Context) error {
	return p.db.WithContext(ctx).Exec("DELETE FROM build_result_models").Error
}

func (p *Postgres) NextBuildNumber(ctx context.Context) (int64, error) {
	var value int64
	err := p.db.WithContext(ctx).Raw(
		"INSERT INTO build_counters (id, value) VALUES (1, 1) ON CONFLICT (id) DO UPDATE SET value = build_counters.value + 1 RETURNING value",
	).Scan(&value).Error
	if err != nil {
		return 0, err
	}
	return value, nil
}

func toModel(r domain.BuildResult) (BuildResultModel, error) {
	errs, err := json.Marshal(r.Errors)
	if err != nil {
		return BuildResultModel{}, err
	}
	warns, err := json.Marshal(r.Warnings)
	if err != nil {
		return BuildResultModel{}, err
	}
	artifacts, err := json.Marshal(r.Artifacts)
	if err != nil {
		return BuildResultModel{}, err
	}
	return BuildResultModel{
		BuildNumber: r.BuildNumber,
		ModuleID:    string(r.ModuleID),
		Success:     r.Success,
		Skipped:     r.Skipped,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		DurationMS:  r.Duration.Milliseconds(),
		Errors:      errs,
		Warnings:    warns,
		Artifacts:   artifacts,
		CreatedAt:   time.Now(),
	}, nil
}

func fromModel(m BuildResultModel) (domain.BuildResult, error) {
	r := domain.BuildResult{
		BuildNumber: m.BuildNumber,
		ModuleID:    domain.ModuleID(m.ModuleID),
		Success:     m.Success,
		Skipped:     m.Skipped,
		StartTime:   m.StartTime,
		EndTime:     m.EndTime,
		Duration:    time.Duration(m.DurationMS) * time.Millisecond,
	}
	if err := json.Unmarshal(m.Errors, &r.Errors); err != nil {
		return domain.BuildResult{}, err
	}
	if err := json.Unmarshal(m.Warnings, &r.Warnings); err != nil {
		return domain.BuildResult{}, err
	}
	if err := json.Unmarshal(m.Artifacts, &r.Artifacts); err != nil {
		return domain.BuildResult{}, err
	}
	return r, nil
}
