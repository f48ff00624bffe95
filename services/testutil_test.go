package services

import (
	"testing"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"paper-watch/models"
)

// newTestDB opens an in-memory SQLite database with all tables migrated.
// The pool is limited to a single connection because every new connection
// to ":memory:" would see its own empty database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.AccessStatistics{},
		&models.Name{},
		&models.Department{},
		&models.Researcher{},
		&models.Publisher{},
		&models.Journal{},
		&models.Paper{},
		&models.Publication{},
		&models.Author{},
		&models.OaiSource{},
		&models.OaiRecord{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func strPtr(s string) *string {
	return &s
}

// createPaper inserts a visible paper with the given title.
func createPaper(t *testing.T, db *gorm.DB, title string) *models.Paper {
	t.Helper()
	paper := models.Paper{
		Title:       title,
		Fingerprint: models.Fingerprint(title, 2020),
		Year:        2020,
		Visibility:  models.VisibilityVisible,
		OAStatus:    models.OAStatusUNK,
	}
	if err := db.Create(&paper).Error; err != nil {
		t.Fatalf("failed to create paper: %v", err)
	}
	return &paper
}

// createPublisherWithJournal inserts a publisher with one journal.
func createPublisherWithJournal(t *testing.T, db *gorm.DB, name, oaStatus string) (*models.Publisher, *models.Journal) {
	t.Helper()
	publisher := models.Publisher{Name: name, OAStatus: oaStatus}
	if err := db.Create(&publisher).Error; err != nil {
		t.Fatalf("failed to create publisher: %v", err)
	}
	issn := "1234-" + name[:min(4, len(name))]
	journal := models.Journal{Title: name + " Journal", ISSN: &issn, PublisherID: publisher.ID}
	if err := db.Create(&journal).Error; err != nil {
		t.Fatalf("failed to create journal: %v", err)
	}
	return &publisher, &journal
}

// createPublication links a paper to a journal with the given DOI.
func createPublication(t *testing.T, db *gorm.DB, paperID uint, journalID *uint, doi string) *models.Publication {
	t.Helper()
	pub := models.Publication{
		PaperID:   paperID,
		Pubtype:   "journal-article",
		JournalID: journalID,
		DOI:       &doi,
	}
	if err := db.Create(&pub).Error; err != nil {
		t.Fatalf("failed to create publication: %v", err)
	}
	return &pub
}

// createSource inserts a harvesting source.
func createSource(t *testing.T, db *gorm.DB, identifier string, oa bool, priority int) *models.OaiSource {
	t.Helper()
	source := models.OaiSource{Identifier: identifier, Name: identifier, OA: oa, Priority: priority}
	if err := db.Create(&source).Error; err != nil {
		t.Fatalf("failed to create source: %v", err)
	}
	return &source
}

// createRecord inserts a harvested record for a paper.
func createRecord(t *testing.T, db *gorm.DB, source *models.OaiSource, paperID uint, identifier string, pdfURL *string) *models.OaiRecord {
	t.Helper()
	record := models.OaiRecord{
		SourceID:   source.ID,
		PaperID:    paperID,
		Identifier: identifier,
		PDFURL:     pdfURL,
		Priority:   source.Priority,
	}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("failed to create record: %v", err)
	}
	return &record
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
