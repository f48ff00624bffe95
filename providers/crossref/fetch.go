package crossref

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"paper-watch/config"
	"paper-watch/models"
	"paper-watch/providers"
)

const sourceName = "crossref"

var httpClient = &http.Client{Timeout: 60 * time.Second}

// Fetcher implementiert das PaperSource-Interface für die Crossref-API.
// Anders als ORCID liefert Crossref Verlagsmetadaten, daraus entstehen
// Publications samt Journal- und Publisher-Zuordnung.
type Fetcher struct {
	Config   *config.Config
	DB       *gorm.DB
	Resolver providers.PaperResolver
	Logger   *zap.Logger
}

// NewFetcher erstellt einen neuen Crossref-Fetcher.
func NewFetcher(cfg *config.Config, db *gorm.DB, resolver providers.PaperResolver, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, DB: db, Resolver: resolver, Logger: logger}
}

// Name gibt den Namen der Quelle zurück.
func (f *Fetcher) Name() string {
	return sourceName
}

// FetchAndSave sucht die Works des Researchers über seine ORCID-iD und legt
// Publications an. Alle Schreibzugriffe sind Get-or-Create, der Aufruf ist
// nach Teilfehlern wiederholbar.
func (f *Fetcher) FetchAndSave(ctx context.Context, r *models.Researcher) error {
	if r.Orcid == nil || *r.Orcid == "" {
		f.Logger.Debug("Researcher has no ORCID iD, skipping source", zap.Uint("researcher_id", r.ID))
		return nil
	}

	log := f.Logger.With(zap.Uint("researcher_id", r.ID), zap.String("orcid", *r.Orcid))

	items, err := f.fetchWorks(ctx, *r.Orcid)
	if err != nil {
		return &providers.MetadataSourceError{Source: sourceName, Err: err}
	}
	log.Info("Fetched Crossref works", zap.Int("items", len(items)))

	for i := range items {
		item := &items[i]
		if item.DOI == "" || item.FirstTitle() == "" {
			continue
		}
		if err := f.saveItem(r, item); err != nil {
			log.Warn("Failed to save Crossref work", zap.String("doi", item.DOI), zap.Error(err))
		}
	}
	return nil
}

func (f *Fetcher) fetchWorks(ctx context.Context, orcidID string) ([]Item, error) {
	query := url.Values{}
	query.Set("filter", "orcid:"+orcidID)
	query.Set("rows", fmt.Sprint(f.Config.CrossrefRows))
	if f.Config.CrossrefMailto != "" {
		// Höfliche Nutzung der öffentlichen API, siehe Crossref-Etikette.
		query.Set("mailto", f.Config.CrossrefMailto)
	}
	searchURL := fmt.Sprintf("%s/works?%s", f.Config.CrossrefBaseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("crossref request failed with status: %d", resp.StatusCode)
	}

	var works WorksResponse
	if err := json.NewDecoder(resp.Body).Decode(&works); err != nil {
		return nil, err
	}
	return works.Message.Items, nil
}

func (f *Fetcher) saveItem(r *models.Researcher, item *Item) error {
	title := item.FirstTitle()
	year := item.Year()

	paper := models.Paper{
		Title:       title,
		Fingerprint: models.Fingerprint(title, year),
		Year:        year,
		Visibility:  models.VisibilityVisible,
	}
	var stored models.Paper
	err := f.DB.Where(models.Paper{Fingerprint: paper.Fingerprint}).Attrs(paper).FirstOrCreate(&stored).Error
	if err != nil {
		return err
	}

	author := models.Author{PaperID: stored.ID, NameID: r.NameID}
	err = f.DB.Where(author).Assign(models.Author{ResearcherID: &r.ID}).FirstOrCreate(&author).Error
	if err != nil {
		return err
	}

	journalID, err := f.journalID(item)
	if err != nil {
		return err
	}

	doi := item.DOI
	publication := models.Publication{
		PaperID:   stored.ID,
		Pubtype:   item.Type,
		Title:     item.JournalTitle(),
		JournalID: journalID,
		DOI:       &doi,
	}
	if item.Volume != "" {
		publication.Volume = &item.Volume
	}
	if item.Issue != "" {
		publication.Issue = &item.Issue
	}
	if item.Page != "" {
		publication.Pages = &item.Page
	}
	err = f.DB.Where("doi = ?", doi).Attrs(publication).FirstOrCreate(&publication).Error
	if err != nil {
		return err
	}

	return f.Resolver.Resolve(stored.ID)
}

// journalID ordnet das Work einem Journal zu, sofern eine ISSN vorliegt.
// Unbekannte Publisher entstehen mit UNK-Status; ihre Policy pflegt später
// der RoMEO-Abgleich bzw. der Administrator.
func (f *Fetcher) journalID(item *Item) (*uint, error) {
	if len(item.ISSN) == 0 || item.JournalTitle() == "" {
		return nil, nil
	}

	publisherName := item.Publisher
	if publisherName == "" {
		publisherName = "Unknown publisher"
	}
	var publisher models.Publisher
	err := f.DB.Where(models.Publisher{Name: publisherName}).
		Attrs(models.Publisher{OAStatus: models.OAStatusUNK}).
		FirstOrCreate(&publisher).Error
	if err != nil {
		return nil, err
	}

	issn := item.ISSN[0]
	journal := models.Journal{
		Title:       item.JournalTitle(),
		ISSN:        &issn,
		PublisherID: publisher.ID,
	}
	var stored models.Journal
	err = f.DB.Where("issn = ?", issn).Attrs(journal).FirstOrCreate(&stored).Error
	if err != nil {
		return nil, err
	}
	return &stored.ID, nil
}
