package models

// Publication ist das Auftreten eines Papers in einem Journal oder
// Konferenzband. Die DOI ist global eindeutig, sofern vorhanden.
type Publication struct {
	ID      uint   `json:"id" gorm:"primaryKey"`
	PaperID uint   `json:"paper_id" gorm:"index;not null"`
	Pubtype string `json:"pubtype" gorm:"size:64"`

	// Journaltitel wie in den Metadaten angegeben, auch wenn kein Journal
	// verknüpft werden konnte.
	Title     string   `json:"title" gorm:"size:512"`
	JournalID *uint    `json:"journal_id,omitempty" gorm:"index"`
	Journal   *Journal `json:"journal,omitempty"`

	Issue  *string `json:"issue,omitempty" gorm:"size:64"`
	Volume *string `json:"volume,omitempty" gorm:"size:64"`
	Pages  *string `json:"pages,omitempty" gorm:"size:64"`
	Date   *string `json:"date,omitempty" gorm:"size:128"`

	DOI *string `json:"doi,omitempty" gorm:"size:1024;uniqueIndex"`
}

// OAStatus leitet den Status aus dem Publisher des Journals ab. Journal und
// Publisher müssen dafür geladen sein (Preload "Journal.Publisher").
func (p *Publication) OAStatus() string {
	if p.Journal != nil && p.Journal.Publisher != nil {
		return p.Journal.Publisher.OAStatus
	}
	return OAStatusUNK
}

// SplashURL gibt die Verlagsseite der Publikation zurück, abgeleitet aus der
// DOI. Ohne DOI gibt es keine Splash-URL.
func (p *Publication) SplashURL() *string {
	if p.DOI != nil && *p.DOI != "" {
		u := "http://dx.doi.org/" + *p.DOI
		return &u
	}
	return nil
}
