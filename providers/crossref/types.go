package crossref

// WorksResponse bildet die Antwort der Crossref-Works-Suche ab.
type WorksResponse struct {
	Message struct {
		Items []Item `json:"items"`
	} `json:"message"`
}

type Item struct {
	DOI            string   `json:"DOI"`
	Type           string   `json:"type"`
	Title          []string `json:"title"`
	ContainerTitle []string `json:"container-title"`
	ISSN           []string `json:"ISSN"`
	Publisher      string   `json:"publisher"`
	Volume         string   `json:"volume"`
	Issue          string   `json:"issue"`
	Page           string   `json:"page"`
	Issued         struct {
		DateParts [][]int `json:"date-parts"`
	} `json:"issued"`
}

// Year gibt das Erscheinungsjahr zurück, 0 wenn unbekannt.
func (i *Item) Year() int {
	if len(i.Issued.DateParts) > 0 && len(i.Issued.DateParts[0]) > 0 {
		return i.Issued.DateParts[0][0]
	}
	return 0
}

// FirstTitle gibt den ersten Titel zurück, leer wenn keiner vorhanden ist.
func (i *Item) FirstTitle() string {
	if len(i.Title) > 0 {
		return i.Title[0]
	}
	return ""
}

// JournalTitle gibt den Titel des Journals zurück, leer wenn keiner
// vorhanden ist.
func (i *Item) JournalTitle() string {
	if len(i.ContainerTitle) > 0 {
		return i.ContainerTitle[0]
	}
	return ""
}
