package orcid

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"paper-watch/config"
	"paper-watch/models"
	"paper-watch/providers"
)

const sourceIdentifier = "orcid"

var httpClient = &http.Client{Timeout: 60 * time.Second}

// Fetcher implementiert das PaperSource-Interface für die öffentliche
// ORCID-API. Er legt pro Arbeit ein Paper (zusammengeführt über den
// Fingerprint) und einen OaiRecord an.
type Fetcher struct {
	Config   *config.Config
	DB       *gorm.DB
	Resolver providers.PaperResolver
	Logger   *zap.Logger
}

// NewFetcher erstellt einen neuen ORCID-Fetcher.
func NewFetcher(cfg *config.Config, db *gorm.DB, resolver providers.PaperResolver, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, DB: db, Resolver: resolver, Logger: logger}
}

// Name gibt den Namen der Quelle zurück.
func (f *Fetcher) Name() string {
	return sourceIdentifier
}

// FetchAndSave holt die Works-Liste des Researchers und persistiert sie.
// Researcher ohne ORCID-iD werden übersprungen. Wiederholte Aufrufe sind
// unschädlich, alle Schreibzugriffe sind Get-or-Create.
func (f *Fetcher) FetchAndSave(ctx context.Context, r *models.Researcher) error {
	if r.Orcid == nil || *r.Orcid == "" {
		f.Logger.Debug("Researcher has no ORCID iD, skipping source", zap.Uint("researcher_id", r.ID))
		return nil
	}

	log := f.Logger.With(zap.Uint("researcher_id", r.ID), zap.String("orcid", *r.Orcid))

	works, err := f.fetchWorks(ctx, *r.Orcid)
	if err != nil {
		return &providers.MetadataSourceError{Source: sourceIdentifier, Err: err}
	}
	log.Info("Fetched ORCID works", zap.Int("groups", len(works.Group)))

	source, err := f.source()
	if err != nil {
		return err
	}

	for _, group := range works.Group {
		if len(group.WorkSummary) == 0 {
			continue
		}
		summary := group.WorkSummary[0]
		if summary.Title.Title.Value == "" {
			continue
		}
		if err := f.saveWork(r, source, &summary); err != nil {
			log.Warn("Failed to save ORCID work",
				zap.Int("put_code", summary.PutCode),
				zap.Error(err))
		}
	}
	return nil
}

func (f *Fetcher) fetchWorks(ctx context.Context, orcidID string) (*WorksResponse, error) {
	url := fmt.Sprintf("%s/%s/works", f.Config.OrcidBaseURL, orcidID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("orcid request failed with status: %d", resp.StatusCode)
	}

	var works WorksResponse
	if err := json.NewDecoder(resp.Body).Decode(&works); err != nil {
		return nil, err
	}
	return &works, nil
}

func (f *Fetcher) saveWork(r *models.Researcher, source *models.OaiSource, summary *WorkSummary) error {
	year := 0
	if summary.PublicationDate != nil && summary.PublicationDate.Year != nil {
		year, _ = strconv.Atoi(summary.PublicationDate.Year.Value)
	}

	paper := models.Paper{
		Title:       summary.Title.Title.Value,
		Fingerprint: models.Fingerprint(summary.Title.Title.Value, year),
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

	splash := fmt.Sprintf("https://orcid.org/%s", *r.Orcid)
	if summary.URL != nil && summary.URL.Value != "" {
		splash = summary.URL.Value
	}
	record := models.OaiRecord{
		SourceID:   source.ID,
		PaperID:    stored.ID,
		Identifier: fmt.Sprintf("oai:orcid.org:%s/%d", *r.Orcid, summary.PutCode),
		SplashURL:  &splash,
		Priority:   source.Priority,
	}
	err = f.DB.Where(models.OaiRecord{Identifier: record.Identifier}).Attrs(record).FirstOrCreate(&record).Error
	if err != nil {
		return err
	}

	return f.Resolver.Resolve(stored.ID)
}

func (f *Fetcher) source() (*models.OaiSource, error) {
	var source models.OaiSource
	err := f.DB.Where(models.OaiSource{Identifier: sourceIdentifier}).
		Attrs(models.OaiSource{Name: "ORCID", OA: false, Priority: 1}).
		FirstOrCreate(&source).Error
	if err != nil {
		return nil, err
	}
	return &source, nil
}
