package service

import "github.com/noah-isme/impact-assessment-api/internal/models"

// normalizeImpactStatistics guarantees empty groupings serialise as {} and [] rather than null.
func normalizeImpactStatistics(stats *models.ImpactStatistics) *models.ImpactStatistics {
	if stats == nil {
		stats = &models.ImpactStatistics{}
	}
	if stats.ByProvince == nil {
		stats.ByProvince = map[string]int{}
	}
	if stats.BySeverity == nil {
		stats.BySeverity = map[string]int{}
	}
	if stats.BySchoolType == nil {
		stats.BySchoolType = map[string]int{}
	}
	if stats.ByMonth == nil {
		stats.ByMonth = []models.ImpactMonthCount{}
	}
	return stats
}
