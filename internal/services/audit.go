package services

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/gridbase/gridbase/internal/models"
	"github.com/gridbase/gridbase/pkg/logger"
	"github.com/gridbase/gridbase/pkg/response"
)

// AuditService writes and reads the security audit trail.
type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// Record writes one audit event. Failures are logged and swallowed so
// audit writes never fail the business operation they describe.
func (s *AuditService) Record(tenantID, userID, action, result, resource, targetID string, detail map[string]any) {
	row := models.AuditLog{
		TenantID: tenantID,
		UserID:   userID,
		Action:   action,
		Result:   result,
		Resource: resource,
		TargetID: targetID,
	}
	if detail != nil {
		if data, err := json.Marshal(detail); err == nil {
			row.Detail = string(data)
		}
	}
	if err := s.db.Create(&row).Error; err != nil {
		logger.Error().Err(err).Str("action", action).Msg("audit write failed")
	}
}

// AuditListQuery filters the paged audit listing.
type AuditListQuery struct {
	TenantID string
	UserID   string
	Action   string
	Result   string
	Resource string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// List returns audit events newest first.
func (s *AuditService) List(q AuditListQuery) ([]models.AuditLog, int64, *response.AppError) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 || q.PageSize > 200 {
		q.PageSize = 50
	}

	tx := s.db.Model(&models.AuditLog{}).Where("tenant_id = ?", q.TenantID)
	if q.UserID != "" {
		tx = tx.Where("user_id = ?", q.UserID)
	}
	if q.Action != "" {
		tx = tx.Where("action = ?", q.Action)
	}
	if q.Result != "" {
		tx = tx.Where("result = ?", q.Result)
	}
	if q.Resource != "" {
		tx = tx.Where("resource = ?", q.Resource)
	}
	if q.From != nil {
		tx = tx.Where("created_at >= ?", *q.From)
	}
	if q.To != nil {
		tx = tx.Where("created_at <= ?", *q.To)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, response.NewServerError("failed to count audit logs")
	}

	var logs []models.AuditLog
	if err := tx.Order("created_at DESC, id DESC").
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&logs).Error; err != nil {
		return nil, 0, response.NewServerError("failed to list audit logs")
	}
	return logs, total, nil
}

// Cleanup deletes audit rows older than the retention window and
// returns the number removed. Run from the cron scheduler.
func (s *AuditService) Cleanup(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	res := s.db.Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		logger.Info().Int64("deleted", res.RowsAffected).Msg("audit retention cleanup")
	}
	return res.RowsAffected, nil
}
