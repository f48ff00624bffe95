package models

import (
	"time"
)

// Department gruppiert Researcher.
type Department struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"size:300"`
}

// Researcher ist ein Profil, dessen Publikationsliste per Harvest-Pipeline
// aus externen Quellen befüllt wird. CurrentTask und LastHarvest werden
// ausschließlich vom HarvestService geschrieben.
type Researcher struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	NameID uint  `json:"name_id" gorm:"index;not null"`
	Name   *Name `json:"name,omitempty"`

	DepartmentID *uint       `json:"department_id,omitempty" gorm:"index"`
	Department   *Department `json:"department,omitempty"`

	Email    *string `json:"email,omitempty" gorm:"size:254"`
	Homepage *string `json:"homepage,omitempty" gorm:"size:1024"`
	Role     *string `json:"role,omitempty" gorm:"size:128"`
	Orcid    *string `json:"orcid,omitempty" gorm:"size:32;uniqueIndex"`

	// Stage-Marker der laufenden Pipeline, leer im Leerlauf.
	CurrentTask *string    `json:"current_task,omitempty" gorm:"size:512"`
	LastHarvest *time.Time `json:"last_harvest,omitempty"`
	Harvester   *string    `json:"harvester,omitempty" gorm:"size:512"`

	StatsID *uint             `json:"-"`
	Stats   *AccessStatistics `json:"stats,omitempty"`
}
