package models

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"
)

// Mögliche Werte für den Open-Access-Status eines Papers bzw. Publishers.
const (
	OAStatusOA  = "OA"  // frei zugänglich beim Verlag
	OAStatusOK  = "OK"  // Selbstarchivierung erlaubt
	OAStatusNOK = "NOK" // Selbstarchivierung verboten
	OAStatusUNK = "UNK" // Policy unbekannt
)

// Sichtbarkeit eines Papers.
const (
	VisibilityVisible   = "VISIBLE"
	VisibilityCandidate = "CANDIDATE"
	VisibilityDeleted   = "DELETED"
)

// Paper ist die Aggregationswurzel: Publications und OaiRecords hängen daran
// und werden mit dem Paper gelöscht.
type Paper struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Title       string `json:"title" gorm:"size:1024"`
	Fingerprint string `json:"fingerprint" gorm:"size:64;index"`
	Year        int    `json:"year"`
	Visibility  string `json:"visibility" gorm:"size:32;default:VISIBLE"`

	// Abgeleitete Felder. Werden nur vom StatusResolver geschrieben und sind
	// jederzeit aus Publications und OaiRecords rekonstruierbar.
	OAStatus string  `json:"oa_status" gorm:"size:32;default:UNK"`
	PDFURL   *string `json:"pdf_url,omitempty" gorm:"size:2048"`

	Publications []Publication `json:"publications,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	OaiRecords   []OaiRecord   `json:"oai_records,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	Authors      []Author      `json:"authors,omitempty" gorm:"constraint:OnDelete:CASCADE"`
}

// ValidOAStatus prüft, ob s einer der vier Statuswerte ist.
func ValidOAStatus(s string) bool {
	switch s {
	case OAStatusOA, OAStatusOK, OAStatusNOK, OAStatusUNK:
		return true
	}
	return false
}

// Fingerprint bildet Titel/Jahr deterministisch auf einen stabilen
// Identitätsstring ab, über den doppelte Einreichungen zusammengeführt werden.
func Fingerprint(title string, year int) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s|%d", Unaccent(title), year)))
	return hex.EncodeToString(sum[:])
}

// Author verknüpft ein Paper mit einem Namen und optional einem Researcher.
// Wird der Researcher gelöscht, bleibt der Author mit genulltem Verweis stehen.
type Author struct {
	ID           uint        `json:"id" gorm:"primaryKey"`
	PaperID      uint        `json:"paper_id" gorm:"index;not null"`
	NameID       uint        `json:"name_id" gorm:"index;not null"`
	Name         *Name       `json:"name,omitempty"`
	ResearcherID *uint       `json:"researcher_id,omitempty" gorm:"index"`
	Researcher   *Researcher `json:"-" gorm:"constraint:OnDelete:SET NULL"`
}

// IsKnown gilt genau dann, wenn der Author einem Researcher zugeordnet ist.
func (a *Author) IsKnown() bool {
	return a.ResearcherID != nil
}
