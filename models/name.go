package models

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

const maxNameLength = 256

// Name ist ein Autorenname. Full ist die akzentbereinigte, kleingeschriebene
// Verkettung von Vor- und Nachname und dient als Schlüssel beim Nachschlagen,
// damit "José" und "Jose" auf denselben Datensatz fallen.
type Name struct {
	ID      uint   `json:"id" gorm:"primaryKey"`
	First   string `json:"first" gorm:"size:256"`
	Last    string `json:"last" gorm:"size:256"`
	Full    string `json:"full" gorm:"size:513;uniqueIndex"`
	IsKnown bool   `json:"is_known" gorm:"default:false"`
}

var unaccenter = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Unaccent entfernt diakritische Zeichen und normalisiert auf
// Kleinschreibung ohne Randleerzeichen.
func Unaccent(s string) string {
	folded, _, err := transform.String(unaccenter, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// NewName baut eine Name-Instanz ohne sie zu speichern, praktisch für
// Lookups, bei denen noch unklar ist, ob der Name behalten wird.
func NewName(first, last string) Name {
	first = truncateName(first)
	last = truncateName(last)
	return Name{
		First: first,
		Last:  last,
		Full:  Unaccent(first + " " + last),
	}
}

// GetOrCreateName schlägt einen Namen über den Full-Schlüssel nach und legt
// ihn bei Bedarf an. Der Schlüssel ist bewusst Full und nicht (First, Last),
// damit akzentuierte Varianten zusammengeführt werden.
func GetOrCreateName(db *gorm.DB, first, last string) (*Name, error) {
	candidate := NewName(first, last)
	var name Name
	err := db.Where(Name{Full: candidate.Full}).Attrs(candidate).FirstOrCreate(&name).Error
	if err != nil {
		return nil, err
	}
	return &name, nil
}

func truncateName(s string) string {
	if len(s) > maxNameLength {
		return s[:maxNameLength]
	}
	return s
}
