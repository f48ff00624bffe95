package services

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paper-watch/models"
)

// StatusResolver berechnet die abgeleiteten Felder eines Papers (oa_status,
// pdf_url) aus seinen Publikationen und OAI-Records neu. Die Berechnung ist
// idempotent; Aufrufer sichern sie nur gegen doppelte Arbeit mit dem
// TaskLockManager ab, nicht für die Korrektheit.
type StatusResolver struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewStatusResolver erstellt einen neuen StatusResolver.
func NewStatusResolver(db *gorm.DB, logger *zap.Logger) *StatusResolver {
	return &StatusResolver{DB: db, Logger: logger}
}

// Resolve führt beide Schritte in der festen Reihenfolge Status, dann URL aus.
func (r *StatusResolver) Resolve(paperID uint) error {
	if err := r.UpdateOAStatus(paperID); err != nil {
		return err
	}
	return r.UpdatePDFURL(paperID)
}

// UpdateOAStatus bestimmt den OA-Status neu und persistiert ihn.
// Baseline ist der Status der ersten Publikation in Einfügereihenfolge
// (UNK ohne Publikationen). Ein Record aus einer oa-Quelle mit PDF-Link
// erzwingt OA; er stuft einen OA-Baseline-Wert nie zurück.
func (r *StatusResolver) UpdateOAStatus(paperID uint) error {
	var paper models.Paper
	if err := r.DB.First(&paper, paperID).Error; err != nil {
		return err
	}

	var pubs []models.Publication
	err := r.DB.Preload("Journal.Publisher").
		Where("paper_id = ?", paperID).
		Order("id").Limit(1).
		Find(&pubs).Error
	if err != nil {
		return err
	}

	status := models.OAStatusUNK
	if len(pubs) > 0 {
		status = pubs[0].OAStatus()
	}

	var oaRecords int64
	err = r.DB.Model(&models.OaiRecord{}).
		Joins("JOIN oai_sources ON oai_sources.id = oai_records.source_id").
		Where("oai_records.paper_id = ? AND oai_sources.oa = ? AND oai_records.pdf_url IS NOT NULL", paperID, true).
		Count(&oaRecords).Error
	if err != nil {
		return err
	}
	if oaRecords > 0 {
		status = models.OAStatusOA
	}

	paper.OAStatus = status
	return r.DB.Save(&paper).Error
}

// UpdatePDFURL bestimmt die kanonische Volltext-URL neu und persistiert sie.
// Bei OA-Status wird die Verlagsversion bevorzugt: die erste Publikation
// unter einem Journal eines OA-Publishers liefert ihre Splash-URL, OAI-Quellen
// werden in diesem Zweig nicht mehr befragt. Sonst fällt die Auflösung auf den
// OAI-Record mit PDF-Link und höchster gecachter Priorität zurück. Ohne
// Kandidat wird das Feld geleert statt veraltet stehen zu lassen.
func (r *StatusResolver) UpdatePDFURL(paperID uint) error {
	var paper models.Paper
	if err := r.DB.First(&paper, paperID).Error; err != nil {
		return err
	}

	paper.PDFURL = nil

	if paper.OAStatus == models.OAStatusOA {
		var pubs []models.Publication
		err := r.DB.
			Joins("JOIN journals ON journals.id = publications.journal_id").
			Joins("JOIN publishers ON publishers.id = journals.publisher_id").
			Where("publications.paper_id = ? AND publishers.oa_status = ?", paperID, models.OAStatusOA).
			Order("publications.id").Limit(1).
			Find(&pubs).Error
		if err != nil {
			return err
		}
		if len(pubs) > 0 {
			paper.PDFURL = pubs[0].SplashURL()
			return r.DB.Save(&paper).Error
		}
	}

	var records []models.OaiRecord
	err := r.DB.
		Where("paper_id = ? AND pdf_url IS NOT NULL", paperID).
		Order("priority DESC, id").Limit(1).
		Find(&records).Error
	if err != nil {
		return err
	}
	if len(records) > 0 {
		paper.PDFURL = records[0].PDFURL
	}
	return r.DB.Save(&paper).Error
}
