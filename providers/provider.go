package providers

import (
	"context"
	"fmt"

	"paper-watch/models"
)

// PaperSource ist das Interface, das jede externe Metadaten-Quelle
// (z.B. ORCID, Crossref) implementieren muss.
type PaperSource interface {
	// FetchAndSave holt die Publikationsliste eines Researchers und
	// persistiert sie. Der Aufruf muss nach einem Teilfehler gefahrlos
	// wiederholbar sein.
	FetchAndSave(ctx context.Context, r *models.Researcher) error

	// Name gibt den eindeutigen Namen der Quelle zurück (z.B. "orcid").
	Name() string
}

// MetadataSourceError signalisiert, dass eine externe Quelle nicht geliefert
// hat. Die Pipeline räumt auf und reicht den Fehler danach weiter.
type MetadataSourceError struct {
	Source string
	Err    error
}

func (e *MetadataSourceError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("metadata source %s failed: %v", e.Source, e.Err)
}

func (e *MetadataSourceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// PaperResolver stößt die Neuberechnung der abgeleiteten Felder eines Papers
// an, nachdem eine Quelle neue Fakten gespeichert hat.
type PaperResolver interface {
	Resolve(paperID uint) error
}
