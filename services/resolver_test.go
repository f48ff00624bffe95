package services

import (
	"testing"

	"paper-watch/models"
)

func TestResolveWithoutEvidence(t *testing.T) {
	db := newTestDB(t)
	resolver := NewStatusResolver(db, testLogger())

	paper := createPaper(t, db, "Lonely paper")
	paper.OAStatus = models.OAStatusOA
	paper.PDFURL = strPtr("https://example.org/stale.pdf")
	if err := db.Save(paper).Error; err != nil {
		t.Fatal(err)
	}

	if err := resolver.Resolve(paper.ID); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	var got models.Paper
	db.First(&got, paper.ID)
	if got.OAStatus != models.OAStatusUNK {
		t.Errorf("expected UNK without publications or records, got %s", got.OAStatus)
	}
	if got.PDFURL != nil {
		t.Errorf("expected stale pdf_url to be cleared, got %q", *got.PDFURL)
	}
}

func TestStatusFromFirstPublication(t *testing.T) {
	db := newTestDB(t)
	resolver := NewStatusResolver(db, testLogger())

	paper := createPaper(t, db, "Green paper")
	_, okJournal := createPublisherWithJournal(t, db, "OKPub", models.OAStatusOK)
	_, nokJournal := createPublisherWithJournal(t, db, "NOKPub", models.OAStatusNOK)

	// Baseline is the first publication in insertion order; the second one
	// must not override it.
	createPublication(t, db, paper.ID, &okJournal.ID, "10.1/ok")
	createPublication(t, db, paper.ID, &nokJournal.ID, "10.1/nok")

	if err := resolver.Resolve(paper.ID); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	var got models.Paper
	db.First(&got, paper.ID)
	if got.OAStatus != models.OAStatusOK {
		t.Errorf("expected OK from first publication, got %s", got.OAStatus)
	}
}

func TestOARecordOverridesPublication(t *testing.T) {
	db := newTestDB(t)
	resolver := NewStatusResolver(db, testLogger())

	paper := createPaper(t, db, "Deposited paper")
	_, journal := createPublisherWithJournal(t, db, "NOKPub", models.OAStatusNOK)
	createPublication(t, db, paper.ID, &journal.ID, "10.1/closed")

	arxiv := createSource(t, db, "arxiv", true, 10)
	createRecord(t, db, arxiv, paper.ID, "oai:arxiv.org:1", strPtr("https://arxiv.org/pdf/1"))

	if err := resolver.Resolve(paper.ID); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	var got models.Paper
	db.First(&got, paper.ID)
	if got.OAStatus != models.OAStatusOA {
		t.Errorf("expected OA from repository record with pdf, got %s", got.OAStatus)
	}
	if got.PDFURL == nil || *got.PDFURL != "https://arxiv.org/pdf/1" {
		t.Errorf("expected record pdf_url, got %v", got.PDFURL)
	}
}

func TestRecordWithoutPDFDoesNotForceOA(t *testing.T) {
	db := newTestDB(t)
	resolver := NewStatusResolver(db, testLogger())

	paper := createPaper(t, db, "Metadata only")
	arxiv := createSource(t, db, "arxiv", true, 10)
	createRecord(t, db, arxiv, paper.ID, "oai:arxiv.org:2", nil)

	if err := resolver.Resolve(paper.ID); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	var got models.Paper
	db.First(&got, paper.ID)
	if got.OAStatus != models.OAStatusUNK {
		t.Errorf("record without pdf must not force OA, got %s", got.OAStatus)
	}
}

func TestClosedSourceRecordDoesNotForceOA(t *testing.T) {
	db := newTestDB(t)
	resolver := NewStatusResolver(db, testLogger())

	paper := createPaper(t, db, "Aggregator paper")
	orcid := createSource(t, db, "orcid", false, 1)
	createRecord(t, db, orcid, paper.ID, "oai:orcid.org:3", strPtr("https://example.org/some.pdf"))

	if err := resolver.Resolve(paper.ID); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	var got models.Paper
	db.First(&got, paper.ID)
	if got.OAStatus != models.OAStatusUNK {
		t.Errorf("record from non-oa source must not force OA, got %s", got.OAStatus)
	}
	// The pdf fallback still uses the record.
	if got.PDFURL == nil || *got.PDFURL != "https://example.org/some.pdf" {
		t.Errorf("expected fallback pdf_url, got %v", got.PDFURL)
	}
}

func TestOAPublisherSplashShortCircuit(t *testing.T) {
	db := newTestDB(t)
	resolver := NewStatusResolver(db, testLogger())

	paper := createPaper(t, db, "Gold paper")
	_, journal := createPublisherWithJournal(t, db, "GoldPub", models.OAStatusOA)
	createPublication(t, db, paper.ID, &journal.ID, "10.1/gold")

	// A repository copy exists too, but the publisher version wins.
	arxiv := createSource(t, db, "arxiv", true, 10)
	createRecord(t, db, arxiv, paper.ID, "oai:arxiv.org:4", strPtr("https://arxiv.org/pdf/4"))

	if err := resolver.Resolve(paper.ID); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	var got models.Paper
	db.First(&got, paper.ID)
	if got.OAStatus != models.OAStatusOA {
		t.Errorf("expected OA, got %s", got.OAStatus)
	}
	if got.PDFURL == nil || *got.PDFURL != "http://dx.doi.org/10.1/gold" {
		t.Errorf("expected publisher splash url, got %v", got.PDFURL)
	}
}

func TestPDFFallbackPrefersHigherPriority(t *testing.T) {
	db := newTestDB(t)
	resolver := NewStatusResolver(db, testLogger())

	paper := createPaper(t, db, "Mirrored paper")
	low := createSource(t, db, "hal", true, 2)
	high := createSource(t, db, "arxiv", true, 10)
	createRecord(t, db, low, paper.ID, "oai:hal:5", strPtr("https://hal.science/pdf/5"))
	createRecord(t, db, high, paper.ID, "oai:arxiv.org:5", strPtr("https://arxiv.org/pdf/5"))

	if err := resolver.Resolve(paper.ID); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	var got models.Paper
	db.First(&got, paper.ID)
	if got.PDFURL == nil || *got.PDFURL != "https://arxiv.org/pdf/5" {
		t.Errorf("expected highest-priority record pdf, got %v", got.PDFURL)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	resolver := NewStatusResolver(db, testLogger())

	paper := createPaper(t, db, "Stable paper")
	_, journal := createPublisherWithJournal(t, db, "GoldPub", models.OAStatusOA)
	createPublication(t, db, paper.ID, &journal.ID, "10.1/stable")

	if err := resolver.Resolve(paper.ID); err != nil {
		t.Fatal(err)
	}
	var first models.Paper
	db.First(&first, paper.ID)

	if err := resolver.Resolve(paper.ID); err != nil {
		t.Fatal(err)
	}
	var second models.Paper
	db.First(&second, paper.ID)

	if first.OAStatus != second.OAStatus {
		t.Errorf("oa_status changed on re-resolve: %s -> %s", first.OAStatus, second.OAStatus)
	}
	if (first.PDFURL == nil) != (second.PDFURL == nil) ||
		(first.PDFURL != nil && *first.PDFURL != *second.PDFURL) {
		t.Errorf("pdf_url changed on re-resolve: %v -> %v", first.PDFURL, second.PDFURL)
	}
}
