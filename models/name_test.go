package models

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newNameTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Name{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func TestUnaccent(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"José", "jose"},
		{"  Müller ", "muller"},
		{"Ångström", "angstrom"},
		{"plain", "plain"},
		{"Żółć", "zołc"},
	}
	for _, c := range cases {
		if got := Unaccent(c.in); got != c.want {
			t.Errorf("Unaccent(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestGetOrCreateNameMergesAccentVariants(t *testing.T) {
	db := newNameTestDB(t)

	first, err := GetOrCreateName(db, "José", "García")
	if err != nil {
		t.Fatalf("first lookup failed: %v", err)
	}
	second, err := GetOrCreateName(db, "Jose", "Garcia")
	if err != nil {
		t.Fatalf("second lookup failed: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("accent variants created separate names: %d vs %d", first.ID, second.ID)
	}
	// The stored spelling is the one seen first.
	if second.First != "José" || second.Last != "García" {
		t.Errorf("expected original spelling to be kept, got %q %q", second.First, second.Last)
	}

	var count int64
	db.Model(&Name{}).Count(&count)
	if count != 1 {
		t.Errorf("expected a single name row, got %d", count)
	}
}

func TestGetOrCreateNameDistinctNames(t *testing.T) {
	db := newNameTestDB(t)

	a, err := GetOrCreateName(db, "Ada", "Lovelace")
	if err != nil {
		t.Fatal(err)
	}
	b, err := GetOrCreateName(db, "Alan", "Turing")
	if err != nil {
		t.Fatal(err)
	}
	if a.ID == b.ID {
		t.Error("distinct names merged")
	}
}

func TestFingerprintStability(t *testing.T) {
	a := Fingerprint("Deep Learning", 2015)
	b := Fingerprint("Deep  Learning", 2015)
	if a == b {
		t.Error("whitespace variants are not expected to collide")
	}
	if Fingerprint("Deep Learning", 2015) != a {
		t.Error("fingerprint is not deterministic")
	}
	if Fingerprint("Deep Learning", 2016) == a {
		t.Error("year must contribute to the fingerprint")
	}
	// Accent folding applies before hashing.
	if Fingerprint("Résumé", 2020) != Fingerprint("Resume", 2020) {
		t.Error("accent variants should share a fingerprint")
	}
}
