package service

import (
	"context"

	"forumhub/internal/apperr"
	"forumhub/internal/model"
	"forumhub/internal/repository"
	"forumhub/internal/util"
)

type ReportService interface {
	Create(ctx context.Context, requester *Requester, req CreateReportRequest) (*model.Report, error)
	List(ctx context.Context, requester *Requester, status string, page, limit int) (*ReportPage, error)
	UpdateStatus(ctx context.Context, requester *Requester, id string, req UpdateReportStatusRequest) (*model.Report, error)
	Stats(ctx context.Context, requester *Requester) (*ReportStats, error)
}

type CreateReportRequest struct {
	TargetType  string `json:"target_type" binding:"required,oneof=comment discussion user"`
	TargetID    string `json:"target_id" binding:"required,uuid"`
	Reason      string `json:"reason" binding:"required,max=255"`
	Description string `json:"description"`
}

type UpdateReportStatusRequest struct {
	Status     string  `json:"status" binding:"required,oneof=new in_process completed dismissed"`
	Resolution *string `json:"resolution,omitempty"`
	AssignedTo *string `json:"assigned_to,omitempty" binding:"omitempty,uuid"`
}

type ReportPage struct {
	Reports    []*model.Report `json:"reports"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	TotalPages int64           `json:"total_pages"`
}

type ReportStats struct {
	Total           int64                       `json:"total"`
	ByStatus        map[string]int64            `json:"by_status"`
	ByType          map[string]int64            `json:"by_type"`
	ByStatusAndType map[string]map[string]int64 `json:"by_status_and_type"`
}

type reportService struct {
	reportRepo     repository.ReportRepository
	commentRepo    repository.CommentRepository
	discussionRepo repository.DiscussionRepository
	userRepo       repository.UserRepository
}

func NewReportService(
	reportRepo repository.ReportRepository,
	commentRepo repository.CommentRepository,
	discussionRepo repository.DiscussionRepository,
	userRepo repository.UserRepository,
) ReportService {
	return &reportService{
		reportRepo:     reportRepo,
		commentRepo:    commentRepo,
		discussionRepo: discussionRepo,
		userRepo:       userRepo,
	}
}

func (s *reportService) Create(ctx context.Context, requester *Requester, req CreateReportRequest) (*model.Report, error) {
	if err := requireRequester(requester); err != nil {
		return nil, err
	}
	if !model.IsValidReportTarget(req.TargetType) {
		return nil, apperr.InvalidArgument("invalid target type")
	}
	if err := validID(req.TargetID, "target"); err != nil {
		return nil, err
	}
	reason := util.SanitizeText(req.Reason)
	if reason == "" {
		return nil, apperr.InvalidArgument("reason is required")
	}
	if err := s.targetExists(ctx, req.TargetType, req.TargetID); err != nil {
		return nil, err
	}

	report := &model.Report{
		ReporterID:  requester.UserID,
		TargetType:  req.TargetType,
		TargetID:    req.TargetID,
		Reason:      reason,
		Description: util.SanitizeText(req.Description),
		Status:      model.ReportStatusNew,
	}
	if err := s.reportRepo.Create(ctx, report); err != nil {
		return nil, storeErr(err, "report")
	}
	return report, nil
}

func (s *reportService) targetExists(ctx context.Context, targetType, targetID string) error {
	var err error
	switch targetType {
	case model.TargetTypeComment:
		_, err = s.commentRepo.FindByID(ctx, targetID)
	case model.TargetTypeDiscussion:
		_, err = s.discussionRepo.FindByID(ctx, targetID)
	default:
		_, err = s.userRepo.FindByID(ctx, targetID)
	}
	if err != nil {
		return storeErr(err, targetType)
	}
	return nil
}

func (s *reportService) List(ctx context.Context, requester *Requester, status string, page, limit int) (*ReportPage, error) {
	if err := requireStaff(requester); err != nil {
		return nil, err
	}
	if status != "" && !model.IsValidReportStatus(status) {
		return nil, apperr.InvalidArgument("invalid status")
	}
	page, limit = normalizePage(page, limit, 20)

	reports, total, err := s.reportRepo.List(ctx, status, limit, (page-1)*limit)
	if err != nil {
		return nil, storeErr(err, "reports")
	}
	if reports == nil {
		reports = []*model.Report{}
	}
	return &ReportPage{
		Reports:    reports,
		Total:      total,
		Page:       page,
		TotalPages: (total + int64(limit) - 1) / int64(limit),
	}, nil
}

// UpdateStatus moves a report through its workflow. The acting staff member
// becomes the assignee unless another one is named.
func (s *reportService) UpdateStatus(ctx context.Context, requester *Requester, id string, req UpdateReportStatusRequest) (*model.Report, error) {
	if err := requireStaff(requester); err != nil {
		return nil, err
	}
	if !model.IsValidReportStatus(req.Status) {
		return nil, apperr.InvalidArgument("invalid status")
	}
	if err := validID(id, "report"); err != nil {
		return nil, err
	}
	report, err := s.reportRepo.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "report")
	}

	assignee := requester.UserID
	if req.AssignedTo != nil && *req.AssignedTo != "" {
		assignee = *req.AssignedTo
	}
	report.Status = req.Status
	report.AssignedTo = &assignee
	if req.Resolution != nil {
		resolution := util.SanitizeText(*req.Resolution)
		report.Resolution = &resolution
	}
	if err := s.reportRepo.Update(ctx, report); err != nil {
		return nil, storeErr(err, "report")
	}
	return report, nil
}

func (s *reportService) Stats(ctx context.Context, requester *Requester) (*ReportStats, error) {
	if err := requireStaff(requester); err != nil {
		return nil, err
	}
	rows, err := s.reportRepo.CountByStatusAndType(ctx)
	if err != nil {
		return nil, storeErr(err, "report stats")
	}

	stats := &ReportStats{
		ByStatus:        map[string]int64{},
		ByType:          map[string]int64{},
		ByStatusAndType: map[string]map[string]int64{},
	}
	for _, row := range rows {
		stats.Total += row.Count
		stats.ByStatus[row.Status] += row.Count
		stats.ByType[row.TargetType] += row.Count
		if stats.ByStatusAndType[row.Status] == nil {
			stats.ByStatusAndType[row.Status] = map[string]int64{}
		}
		stats.ByStatusAndType[row.Status][row.TargetType] = row.Count
	}
	return stats, nil
}

func requireStaff(requester *Requester) error {
	if err := requireRequester(requester); err != nil {
		return err
	}
	if !requester.IsStaff() {
		return apperr.Forbidden("moderator privileges required")
	}
	return nil
}
