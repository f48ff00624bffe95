package models

import (
	"time"
)

// Publisher-Policy für Preprints, Postprints und Verlagsversionen.
const (
	PolicyCan        = "can"
	PolicyCannot     = "cannot"
	PolicyRestricted = "restricted"
	PolicyUnclear    = "unclear"
	PolicyUnknown    = "unknown"
)

// Publisher trägt den autoritativen OA-Status. Eine Änderung daran löst die
// Kaskade über alle Papers unter seinen Journals aus (CascadeService).
type Publisher struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	RomeoID string  `json:"romeo_id" gorm:"size:64;index"`
	Name    string  `json:"name" gorm:"size:256"`
	Alias   *string `json:"alias,omitempty" gorm:"size:256"`
	URL     *string `json:"url,omitempty" gorm:"size:1024"`

	Preprint   string `json:"preprint" gorm:"size:32;default:unknown"`
	Postprint  string `json:"postprint" gorm:"size:32;default:unknown"`
	PDFVersion string `json:"pdfversion" gorm:"size:32;default:unknown"`
	OAStatus   string `json:"oa_status" gorm:"size:32;default:UNK"`

	StatsID *uint             `json:"-"`
	Stats   *AccessStatistics `json:"stats,omitempty"`

	Journals []Journal `json:"journals,omitempty"`
}

// Journal gehört zu genau einem Publisher und ist über die ISSN eindeutig,
// sofern eine gesetzt ist.
type Journal struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UpdatedAt time.Time `json:"updated_at"`

	Title       string     `json:"title" gorm:"size:256"`
	ISSN        *string    `json:"issn,omitempty" gorm:"size:10;uniqueIndex"`
	PublisherID uint       `json:"publisher_id" gorm:"index;not null"`
	Publisher   *Publisher `json:"publisher,omitempty"`
}
