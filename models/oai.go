package models

import (
	"time"

	"gorm.io/gorm"
)

// OaiSource beschreibt eine Harvesting-Quelle. Quellen mit oa=true liefern
// per Definition frei zugängliche Volltexte.
type OaiSource struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	Identifier string `json:"identifier" gorm:"size:300;uniqueIndex"`
	Name       string `json:"name" gorm:"size:100"`
	OA         bool   `json:"oa" gorm:"default:false"`
	Priority   int    `json:"priority" gorm:"default:1"`

	LastStatusUpdate time.Time `json:"last_status_update" gorm:"autoUpdateTime"`
}

// OaiRecord ist ein von einer Quelle geharvesteter Rohdatensatz zu einem Paper.
type OaiRecord struct {
	ID       uint       `json:"id" gorm:"primaryKey"`
	SourceID uint       `json:"source_id" gorm:"index;not null"`
	Source   *OaiSource `json:"source,omitempty"`
	PaperID  uint       `json:"paper_id" gorm:"index;not null"`

	Identifier  string  `json:"identifier" gorm:"size:512;uniqueIndex"`
	SplashURL   *string `json:"splash_url,omitempty" gorm:"size:1024"`
	PDFURL      *string `json:"pdf_url,omitempty" gorm:"size:1024"`
	Description *string `json:"description,omitempty" gorm:"type:text"`

	// Kopie von Source.Priority, damit Records ohne Join sortierbar sind.
	// Wird über UpdatePriority nachgezogen, nicht über einen Live-Join.
	Priority int `json:"priority" gorm:"default:1"`

	LastUpdate time.Time `json:"last_update" gorm:"autoUpdateTime"`
}

// UpdatePriority übernimmt die aktuelle Priorität der Quelle in die Kopie am
// Record (partieller Save, nur das Feld priority).
func (r *OaiRecord) UpdatePriority(db *gorm.DB) error {
	var source OaiSource
	if err := db.First(&source, r.SourceID).Error; err != nil {
		return err
	}
	r.Priority = source.Priority
	return db.Model(r).Update("priority", r.Priority).Error
}
