package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"paper-watch/models"
	"paper-watch/providers"
)

const harvestTaskName = "fetch_researcher"

// StageStats markiert die abschließende Statistik-Phase der Pipeline.
const StageStats = "stats"

// HarvestService orchestriert den mehrstufigen Harvest eines Researchers über
// die konfigurierten Metadaten-Quellen. Pro Researcher läuft höchstens eine
// Pipeline gleichzeitig; das Lock trägt einen Timeout, der die gesamte
// Pipeline abdeckt, damit ein toter Worker den Researcher nicht dauerhaft
// blockiert.
type HarvestService struct {
	DB      *gorm.DB
	Locks   *TaskLockManager
	Stats   *StatsService
	Sources []providers.PaperSource // feste, deklarierte Reihenfolge
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewHarvestService erstellt einen neuen HarvestService.
func NewHarvestService(db *gorm.DB, locks *TaskLockManager, stats *StatsService, sources []providers.PaperSource, timeout time.Duration, logger *zap.Logger) *HarvestService {
	return &HarvestService{
		DB:      db,
		Locks:   locks,
		Stats:   stats,
		Sources: sources,
		Timeout: timeout,
		Logger:  logger,
	}
}

// StartTask setzt den Stage-Marker und stempelt last_harvest.
func (h *HarvestService) StartTask(r *models.Researcher, stage string) error {
	now := time.Now()
	r.CurrentTask = &stage
	r.LastHarvest = &now
	return h.DB.Model(r).Updates(map[string]any{
		"current_task": stage,
		"last_harvest": now,
	}).Error
}

// AdvanceTask überschreibt nur den Stage-Marker, last_harvest bleibt stehen.
func (h *HarvestService) AdvanceTask(r *models.Researcher, stage string) error {
	r.CurrentTask = &stage
	return h.DB.Model(r).Updates(map[string]any{"current_task": stage}).Error
}

// FinishTask setzt den Marker bedingungslos auf Leerlauf zurück.
func (h *HarvestService) FinishTask(r *models.Researcher) error {
	r.CurrentTask = nil
	return h.DB.Model(r).Updates(map[string]any{"current_task": nil}).Error
}

// Run führt die komplette Pipeline für einen Researcher aus. Läuft für den
// Researcher bereits ein Harvest, wird nichts getan und ran=false gemeldet;
// Contention ist kein Fehler.
func (h *HarvestService) Run(ctx context.Context, researcherID uint) (bool, error) {
	return h.Locks.RunGuarded(harvestTaskName, LockKey{"pk": researcherID}, h.Timeout, func() error {
		return h.run(ctx, researcherID)
	})
}

func (h *HarvestService) run(ctx context.Context, researcherID uint) error {
	var researcher models.Researcher
	if err := h.DB.First(&researcher, researcherID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Zwischen Scheduling und Ausführung gelöscht: Job aufgeben,
			// andere Researcher sind nicht betroffen.
			h.Logger.Warn("Researcher vanished before harvest", zap.Uint("researcher_id", researcherID))
			return nil
		}
		return err
	}

	log := h.Logger.With(zap.Uint("researcher_id", researcherID))

	// Aufräumen läuft auf jedem Austrittspfad, auch nach einem Quellenfehler:
	// Marker auf die Statistik-Phase, Statistiken neu berechnen, Harvester-
	// Referenz löschen, Marker auf Leerlauf. Der Fehler selbst wird danach
	// unverändert an den Aufrufer weitergereicht.
	defer func() {
		var fresh models.Researcher
		if err := h.DB.First(&fresh, researcherID).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				log.Error("Failed to reload researcher for cleanup", zap.Error(err))
			}
			return
		}
		if err := h.AdvanceTask(&fresh, StageStats); err != nil {
			log.Error("Failed to enter stats stage", zap.Error(err))
		}
		if err := h.Stats.UpdateResearcherStats(&fresh); err != nil {
			log.Error("Stats refresh after harvest failed", zap.Error(err))
		}
		if err := h.DB.Model(&fresh).Updates(map[string]any{"harvester": nil}).Error; err != nil {
			log.Error("Failed to clear harvester reference", zap.Error(err))
		}
		if err := h.FinishTask(&fresh); err != nil {
			log.Error("Failed to reset task marker", zap.Error(err))
		}
	}()

	initial := StageStats
	if len(h.Sources) > 0 {
		initial = h.Sources[0].Name()
	}
	if err := h.StartTask(&researcher, initial); err != nil {
		return err
	}

	for _, source := range h.Sources {
		if err := h.AdvanceTask(&researcher, source.Name()); err != nil {
			return err
		}
		log.Info("Harvesting source", zap.String("source", source.Name()))
		if err := source.FetchAndSave(ctx, &researcher); err != nil {
			return err
		}
	}

	return h.FinishTask(&researcher)
}
