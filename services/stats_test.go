package services

import (
	"testing"
	"time"

	"paper-watch/models"
)

func TestUpdateResearcherStats(t *testing.T) {
	db := newTestDB(t)
	stats := NewStatsService(db, testLogger())
	researcher := createResearcher(t, db, "Marie", "Curie")

	oa := createPaper(t, db, "OA paper")
	oa.OAStatus = models.OAStatusOA
	db.Save(oa)
	unk := createPaper(t, db, "UNK paper")
	hidden := createPaper(t, db, "Hidden paper")
	hidden.Visibility = models.VisibilityDeleted
	db.Save(hidden)

	for _, paperID := range []uint{oa.ID, unk.ID, hidden.ID} {
		author := models.Author{PaperID: paperID, NameID: researcher.NameID, ResearcherID: &researcher.ID}
		if err := db.Create(&author).Error; err != nil {
			t.Fatal(err)
		}
	}

	if err := stats.UpdateResearcherStats(researcher); err != nil {
		t.Fatalf("stats update failed: %v", err)
	}

	if researcher.StatsID == nil {
		t.Fatal("expected stats to be attached")
	}
	var got models.AccessStatistics
	db.First(&got, *researcher.StatsID)
	if got.NumOA != 1 || got.NumUNK != 1 || got.NumTot != 2 {
		t.Errorf("unexpected counts: %+v", got)
	}

	// Recomputing reuses the same statistics row.
	unk.OAStatus = models.OAStatusOK
	db.Save(unk)
	if err := stats.UpdateResearcherStats(researcher); err != nil {
		t.Fatal(err)
	}
	var again models.AccessStatistics
	db.First(&again, *researcher.StatsID)
	if again.ID != got.ID {
		t.Errorf("stats row replaced instead of reused: %d -> %d", got.ID, again.ID)
	}
	if again.NumOK != 1 || again.NumUNK != 0 || again.NumTot != 2 {
		t.Errorf("unexpected counts after recompute: %+v", again)
	}
}

func TestPublisherPaperCountIgnoresHidden(t *testing.T) {
	db := newTestDB(t)
	stats := NewStatsService(db, testLogger())

	publisher, journal := createPublisherWithJournal(t, db, "CountPub", models.OAStatusUNK)
	visible := createPaper(t, db, "Visible")
	createPublication(t, db, visible.ID, &journal.ID, "10.3/visible")
	hidden := createPaper(t, db, "Hidden")
	hidden.Visibility = models.VisibilityCandidate
	db.Save(hidden)
	createPublication(t, db, hidden.ID, &journal.ID, "10.3/hidden")

	count, err := stats.PublisherPaperCount(publisher.ID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected 1 visible paper, got %d", count)
	}
}

func TestRemoveEmptyProfiles(t *testing.T) {
	db := newTestDB(t)
	stats := NewStatsService(db, testLogger())

	old := time.Now().Add(-3 * time.Hour)
	recent := time.Now().Add(-10 * time.Minute)

	emptyStats := models.AccessStatistics{}
	db.Create(&emptyStats)
	fullStats := models.AccessStatistics{NumOA: 2, NumTot: 2}
	db.Create(&fullStats)

	dept := models.Department{Name: "Physics"}
	db.Create(&dept)

	// Stale, empty, unaffiliated: removed.
	stale := createResearcher(t, db, "Stale", "Profile")
	db.Model(stale).Updates(map[string]any{"last_harvest": old, "stats_id": emptyStats.ID})

	// Recently harvested: kept.
	fresh := createResearcher(t, db, "Fresh", "Profile")
	db.Model(fresh).Updates(map[string]any{"last_harvest": recent, "stats_id": emptyStats.ID})

	// Has papers: kept.
	productive := createResearcher(t, db, "Productive", "Profile")
	db.Model(productive).Updates(map[string]any{"last_harvest": old, "stats_id": fullStats.ID})

	// Affiliated: kept.
	affiliated := createResearcher(t, db, "Affiliated", "Profile")
	db.Model(affiliated).Updates(map[string]any{"last_harvest": old, "stats_id": emptyStats.ID, "department_id": dept.ID})

	removed, err := stats.RemoveEmptyProfiles()
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed profile, got %d", removed)
	}

	var remaining int64
	db.Model(&models.Researcher{}).Count(&remaining)
	if remaining != 3 {
		t.Errorf("expected 3 surviving profiles, got %d", remaining)
	}
	var gone models.Researcher
	if err := db.First(&gone, stale.ID).Error; err == nil {
		t.Error("stale empty profile still present")
	}
}
