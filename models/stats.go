package models

// AccessStatistics zählt die sichtbaren Papers einer Entität (Researcher,
// Publisher) pro OA-Status. Wird vom StatsService neu berechnet, nie
// inkrementell gepflegt.
type AccessStatistics struct {
	ID     uint `json:"id" gorm:"primaryKey"`
	NumOA  int  `json:"num_oa" gorm:"default:0"`
	NumOK  int  `json:"num_ok" gorm:"default:0"`
	NumNOK int  `json:"num_nok" gorm:"default:0"`
	NumUNK int  `json:"num_unk" gorm:"default:0"`
	NumTot int  `json:"num_tot" gorm:"default:0"`
}

// Reset setzt alle Zähler auf null, behält aber die Identität.
func (s *AccessStatistics) Reset() {
	*s = AccessStatistics{ID: s.ID}
}

// Count verbucht ein Paper mit dem gegebenen OA-Status.
func (s *AccessStatistics) Count(status string) {
	switch status {
	case OAStatusOA:
		s.NumOA++
	case OAStatusOK:
		s.NumOK++
	case OAStatusNOK:
		s.NumNOK++
	default:
		s.NumUNK++
	}
	s.NumTot++
}
