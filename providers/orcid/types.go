package orcid

// WorksResponse bildet die Antwort des ORCID-Works-Endpunkts ab. ORCID
// gruppiert Versionen derselben Arbeit; pro Gruppe interessiert uns die
// bevorzugte Zusammenfassung.
type WorksResponse struct {
	Group []WorkGroup `json:"group"`
}

type WorkGroup struct {
	WorkSummary []WorkSummary `json:"work-summary"`
}

type WorkSummary struct {
	PutCode int    `json:"put-code"`
	Type    string `json:"type"`
	Title   struct {
		Title struct {
			Value string `json:"value"`
		} `json:"title"`
	} `json:"title"`
	PublicationDate *struct {
		Year *struct {
			Value string `json:"value"`
		} `json:"year"`
	} `json:"publication-date"`
	ExternalIDs struct {
		ExternalID []ExternalID `json:"external-id"`
	} `json:"external-ids"`
	URL *struct {
		Value string `json:"value"`
	} `json:"url"`
}

type ExternalID struct {
	Type  string `json:"external-id-type"`
	Value string `json:"external-id-value"`
}

// DOI sucht die DOI unter den externen Identifiern einer Arbeit.
func (w *WorkSummary) DOI() string {
	for _, id := range w.ExternalIDs.ExternalID {
		if id.Type == "doi" && id.Value != "" {
			return id.Value
		}
	}
	return ""
}
