package repository

import (
	"context"
	"time"

	"stcoins/internal/domain"
	"stcoins/internal/models"

	"gorm.io/gorm"
)

type DashboardStats struct {
	TotalUsers           int64 `json:"total_users"`
	TotalAdmins          int64 `json:"total_admins"`
	PointsOutstanding    int64 `json:"points_outstanding"`
	LedgerEntries        int64 `json:"ledger_entries"`
	PointsIssued         int64 `json:"points_issued"`
	PointsSpent          int64 `json:"points_spent"`
	PendingSubmissions   int64 `json:"pending_submissions"`
	StuckApproved        int64 `json:"stuck_approved"`
	PendingRedemptions   int64 `json:"pending_redemptions"`
	TotalReferrals       int64 `json:"total_referrals"`
	UnawardedReferrals   int64 `json:"unawarded_referrals"`
	CompletedAssignments int64 `json:"completed_assignments"`
	SpotifyConnected     int64 `json:"spotify_connected"`
	SpotifyPremium       int64 `json:"spotify_premium"`
}

type TimeSeriesPoint struct {
	Date   string `json:"date"`
	Credit int64  `json:"credit"`
	Debit  int64  `json:"debit"`
}

// AdminRepository serves the read-only dashboard queries.
type AdminRepository struct {
	db *gorm.DB
}

func NewAdminRepository(db *gorm.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

func (r *AdminRepository) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	var s DashboardStats
	db := r.db.WithContext(ctx)
	db.Model(&models.User{}).Count(&s.TotalUsers)
	db.Model(&models.User{}).Where("role = ?", domain.RoleAdmin).Count(&s.TotalAdmins)

	var sum struct{ Total int64 }
	db.Model(&models.User{}).Select("COALESCE(SUM(points), 0) as total").Scan(&sum)
	s.PointsOutstanding = sum.Total

	db.Model(&models.LedgerEntry{}).Count(&s.LedgerEntries)
	sum.Total = 0
	db.Model(&models.LedgerEntry{}).Select("COALESCE(SUM(delta), 0) as total").Where("delta > 0").Scan(&sum)
	s.PointsIssued = sum.Total
	sum.Total = 0
	db.Model(&models.LedgerEntry{}).Select("COALESCE(SUM(-delta), 0) as total").Where("delta < 0").Scan(&sum)
	s.PointsSpent = sum.Total

	db.Model(&models.TaskSubmission{}).Where("reviewed_at IS NULL").Count(&s.PendingSubmissions)
	db.Model(&models.UserTask{}).Where("status = ?", domain.TaskStateApproved).Count(&s.StuckApproved)
	db.Model(&models.UserTask{}).Where("status = ?", domain.TaskStateCompleted).Count(&s.CompletedAssignments)
	db.Model(&models.UserReward{}).Where("status = ?", domain.RedemptionPending).Count(&s.PendingRedemptions)
	db.Model(&models.ReferredUser{}).Count(&s.TotalReferrals)
	db.Model(&models.ReferredUser{}).Where("points_awarded = ?", false).Count(&s.UnawardedReferrals)
	db.Model(&models.ConnectedService{}).Where("service_name = ?", domain.ServiceSpotify).Count(&s.SpotifyConnected)
	db.Model(&models.ConnectedService{}).Where("service_name = ? AND is_premium = ?", domain.ServiceSpotify, true).Count(&s.SpotifyPremium)
	return &s, nil
}

// LedgerSeries sums credits and debits per day over the last `days` days.
func (r *AdminRepository) LedgerSeries(ctx context.Context, days int) ([]TimeSeriesPoint, error) {
	if days <= 0 || days > 365 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days)
	var entries []models.LedgerEntry
	err := r.db.WithContext(ctx).Select("delta", "applied_at").
		Where("applied_at >= ?", since).
		Order("applied_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	var out []TimeSeriesPoint
	for _, e := range entries {
		day := e.AppliedAt.UTC().Format("2006-01-02")
		if len(out) == 0 || out[len(out)-1].Date != day {
			out = append(out, TimeSeriesPoint{Date: day})
		}
		p := &out[len(out)-1]
		if e.Delta > 0 {
			p.Credit += e.Delta
		} else {
			p.Debit += -e.Delta
		}
	}
	return out, nil
}

// ListLedger returns ledger entries across all users with an optional type filter.
func (r *AdminRepository) ListLedger(ctx context.Context, entryType string, userID uint, limit, offset int) ([]models.LedgerEntry, int64, error) {
	limit, offset = clampPage(limit, offset)
	q := r.db.WithContext(ctx).Model(&models.LedgerEntry{})
	if entryType != "" {
		q = q.Where("type = ?", entryType)
	}
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.LedgerEntry
	err := q.Order("id DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, total, err
}
