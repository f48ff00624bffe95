package services

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"paper-watch/models"
)

const cascadeBatchSize = 200

// CascadeService propagiert eine Änderung der Publisher-Policy auf alle
// Papers, die über Publication -> Journal an dem Publisher hängen. Der
// Fan-out kann groß werden; Aufrufer starten ihn abseits des Request-Pfads.
type CascadeService struct {
	DB       *gorm.DB
	Resolver *StatusResolver
	Logger   *zap.Logger
}

// NewCascadeService erstellt einen neuen CascadeService.
func NewCascadeService(db *gorm.DB, resolver *StatusResolver, logger *zap.Logger) *CascadeService {
	return &CascadeService{DB: db, Resolver: resolver, Logger: logger}
}

// CascadeResult fasst einen Kaskadenlauf zusammen.
type CascadeResult struct {
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// ChangeOAStatus setzt den OA-Status eines Publishers und berechnet die
// abgeleiteten Felder aller betroffenen Papers neu. Ist der Status bereits
// gesetzt, passiert nichts und es wird nicht geschrieben. Jedes Paper wird
// einzeln persistiert, Teilfortschritt übersteht also einen Abbruch; ein
// fehlgeschlagenes Paper wird übersprungen und bricht die Kaskade nicht ab.
func (c *CascadeService) ChangeOAStatus(ctx context.Context, publisherID uint, newStatus string) (*CascadeResult, error) {
	var publisher models.Publisher
	if err := c.DB.WithContext(ctx).First(&publisher, publisherID).Error; err != nil {
		return nil, err
	}

	result := &CascadeResult{}
	if publisher.OAStatus == newStatus {
		return result, nil
	}

	publisher.OAStatus = newStatus
	if err := c.DB.WithContext(ctx).Save(&publisher).Error; err != nil {
		return nil, err
	}

	log := c.Logger.With(zap.Uint("publisher_id", publisherID), zap.String("new_status", newStatus))
	log.Info("Publisher status changed, recomputing affected papers")

	// Betroffene Papers seitenweise statt als Gesamtmenge laden, damit der
	// Speicherbedarf auch bei großen Publishern beschränkt bleibt.
	var batch []models.Paper
	err := c.DB.WithContext(ctx).Model(&models.Paper{}).
		Select("papers.id").Distinct().
		Joins("JOIN publications ON publications.paper_id = papers.id").
		Joins("JOIN journals ON journals.id = publications.journal_id").
		Where("journals.publisher_id = ?", publisherID).
		FindInBatches(&batch, cascadeBatchSize, func(_ *gorm.DB, _ int) error {
			for _, paper := range batch {
				if err := c.Resolver.Resolve(paper.ID); err != nil {
					result.Skipped++
					log.Warn("Paper resolution failed, skipping",
						zap.Uint("paper_id", paper.ID),
						zap.Error(err))
					continue
				}
				result.Updated++
			}
			return nil
		}).Error
	if err != nil {
		return result, err
	}

	log.Info("Cascade completed",
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped))
	return result, nil
}
