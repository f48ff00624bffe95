package services

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"paper-watch/models"
)

// Profile ohne Department und ohne Papers werden nach dieser Frist abgeräumt.
const emptyProfileMaxAge = 2 * time.Hour

// StatsService berechnet die aggregierten Zugriffstatistiken neu und räumt
// leere Profile ab. Er wird vom HarvestService nach jeder Pipeline und vom
// Cron-Sweep aufgerufen.
type StatsService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewStatsService erstellt einen neuen StatsService.
func NewStatsService(db *gorm.DB, logger *zap.Logger) *StatsService {
	return &StatsService{DB: db, Logger: logger}
}

type statusRow struct {
	OAStatus string
}

// UpdateResearcherStats zählt die sichtbaren Papers eines Researchers pro
// OA-Status neu und hängt die Statistik an das Profil.
func (s *StatsService) UpdateResearcherStats(r *models.Researcher) error {
	var rows []statusRow
	err := s.DB.Model(&models.Paper{}).
		Select("papers.oa_status").
		Joins("JOIN authors ON authors.paper_id = papers.id").
		Where("authors.researcher_id = ? AND papers.visibility = ?", r.ID, models.VisibilityVisible).
		Group("papers.id, papers.oa_status").
		Find(&rows).Error
	if err != nil {
		return err
	}
	return s.saveStats(rows, r.StatsID, func(statsID uint) error {
		r.StatsID = &statsID
		return s.DB.Model(r).Updates(map[string]any{"stats_id": statsID}).Error
	})
}

// UpdatePublisherStats zählt die sichtbaren Papers unter den Journals eines
// Publishers pro OA-Status neu.
func (s *StatsService) UpdatePublisherStats(p *models.Publisher) error {
	var rows []statusRow
	err := s.DB.Model(&models.Paper{}).
		Select("papers.oa_status").
		Joins("JOIN publications ON publications.paper_id = papers.id").
		Joins("JOIN journals ON journals.id = publications.journal_id").
		Where("journals.publisher_id = ? AND papers.visibility = ?", p.ID, models.VisibilityVisible).
		Group("papers.id, papers.oa_status").
		Find(&rows).Error
	if err != nil {
		return err
	}
	return s.saveStats(rows, p.StatsID, func(statsID uint) error {
		p.StatsID = &statsID
		return s.DB.Model(p).Updates(map[string]any{"stats_id": statsID}).Error
	})
}

func (s *StatsService) saveStats(rows []statusRow, statsID *uint, attach func(uint) error) error {
	var stats models.AccessStatistics
	if statsID != nil {
		if err := s.DB.First(&stats, *statsID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}
	stats.Reset()
	for _, row := range rows {
		stats.Count(row.OAStatus)
	}
	if err := s.DB.Save(&stats).Error; err != nil {
		return err
	}
	if statsID == nil || *statsID != stats.ID {
		return attach(stats.ID)
	}
	return nil
}

// PublisherPaperCount zählt die sichtbaren Papers unter einem Publisher.
// Nicht sichtbare Papers (CANDIDATE, DELETED) zählen nicht mit.
func (s *StatsService) PublisherPaperCount(publisherID uint) (int64, error) {
	var count int64
	err := s.DB.Model(&models.Paper{}).
		Distinct("papers.id").
		Joins("JOIN publications ON publications.paper_id = papers.id").
		Joins("JOIN journals ON journals.id = publications.journal_id").
		Where("journals.publisher_id = ? AND papers.visibility = ?", publisherID, models.VisibilityVisible).
		Count(&count).Error
	return count, err
}

// UpdateAllStats berechnet die Statistiken aller Publisher und Researcher
// neu. Gedacht für den periodischen Sweep, unter einem Lock mit Timeout im
// Minutenbereich.
func (s *StatsService) UpdateAllStats() error {
	var publishers []models.Publisher
	err := s.DB.FindInBatches(&publishers, cascadeBatchSize, func(_ *gorm.DB, _ int) error {
		for i := range publishers {
			if err := s.UpdatePublisherStats(&publishers[i]); err != nil {
				s.Logger.Warn("Publisher stats refresh failed",
					zap.Uint("publisher_id", publishers[i].ID),
					zap.Error(err))
			}
		}
		return nil
	}).Error
	if err != nil {
		return err
	}

	var researchers []models.Researcher
	return s.DB.FindInBatches(&researchers, cascadeBatchSize, func(_ *gorm.DB, _ int) error {
		for i := range researchers {
			if err := s.UpdateResearcherStats(&researchers[i]); err != nil {
				s.Logger.Warn("Researcher stats refresh failed",
					zap.Uint("researcher_id", researchers[i].ID),
					zap.Error(err))
			}
		}
		return nil
	}).Error
}

// RemoveEmptyProfiles löscht Researcher ohne Department, ohne gezählte Papers
// und ohne Harvest innerhalb der letzten zwei Stunden.
func (s *StatsService) RemoveEmptyProfiles() (int64, error) {
	cutoff := time.Now().Add(-emptyProfileMaxAge)
	res := s.DB.
		Where("department_id IS NULL AND last_harvest < ?", cutoff).
		Where("stats_id IN (?)", s.DB.Model(&models.AccessStatistics{}).Select("id").Where("num_tot = 0")).
		Delete(&models.Researcher{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		s.Logger.Info("Removed empty researcher profiles", zap.Int64("count", res.RowsAffected))
	}
	return res.RowsAffected, nil
}
