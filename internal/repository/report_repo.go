package repository

import (
	"context"

	"forumhub/internal/model"

	"gorm.io/gorm"
)

type ReportStatRow struct {
	Status     string `json:"status"`
	TargetType string `json:"target_type"`
	Count      int64  `json:"count"`
}

type ReportRepository interface {
	Create(ctx context.Context, report *model.Report) error
	FindByID(ctx context.Context, id string) (*model.Report, error)
	List(ctx context.Context, status string, limit, offset int) ([]*model.Report, int64, error)
	Update(ctx context.Context, report *model.Report) error
	CountByStatusAndType(ctx context.Context) ([]ReportStatRow, error)
}

type reportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) Create(ctx context.Context, report *model.Report) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *reportRepository) FindByID(ctx context.Context, id string) (*model.Report, error) {
	var report model.Report
	err := r.db.WithContext(ctx).Preload("Reporter").Preload("Assignee").
		Where("id = ?", id).First(&report).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *reportRepository) List(ctx context.Context, status string, limit, offset int) ([]*model.Report, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Report{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reports []*model.Report
	err := query.Preload("Reporter").Preload("Assignee").
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&reports).Error
	if err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

func (r *reportRepository) Update(ctx context.Context, report *model.Report) error {
	return r.db.WithContext(ctx).Model(report).Select("status", "assigned_to", "resolution").
		Updates(report).Error
}

func (r *reportRepository) CountByStatusAndType(ctx context.Context) ([]ReportStatRow, error) {
	var rows []ReportStatRow
	err := r.db.WithContext(ctx).Model(&model.Report{}).
		Select("status, target_type, count(*) as count").
		Group("status, target_type").
		Scan(&rows).Error
	return rows, err
}
