package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"paper-watch/config"
	"paper-watch/models"
	"paper-watch/providers"
	"paper-watch/providers/crossref"
	"paper-watch/providers/orcid"
	"paper-watch/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	cascadePapersUpdated prometheus.Counter
	cascadePapersSkipped prometheus.Counter
	harvestsStarted      prometheus.Counter
	harvestsSkipped      prometheus.Counter
)

func init() {
	cascadePapersUpdated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cascade_papers_updated_total",
			Help: "Total number of papers recomputed by publisher status cascades.",
		},
	)
	cascadePapersSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cascade_papers_skipped_total",
			Help: "Total number of papers skipped during publisher status cascades.",
		},
	)
	harvestsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvests_started_total",
			Help: "Total number of researcher harvest pipelines started.",
		},
	)
	harvestsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvests_skipped_total",
			Help: "Total number of researcher harvests skipped because one was already running.",
		},
	)
	prometheus.MustRegister(cascadePapersUpdated, cascadePapersSkipped, harvestsStarted, harvestsSkipped)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database Connection
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to database.")

	// Auto-Migration
	logging.Info("Running database auto-migration...")
	db.AutoMigrate(
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

	// Seeding
	seedDefaultSources(db, logging)

	// Setup Services
	locks := services.NewTaskLockManager(logging)
	resolver := services.NewStatusResolver(db, logging)
	statsService := services.NewStatsService(db, logging)
	cascadeService := services.NewCascadeService(db, resolver, logging)

	// Setup Sources
	enabledSourceNames := strings.Split(cfg.EnabledSources, ",")
	var enabledSources []providers.PaperSource
	for _, name := range enabledSourceNames {
		switch name {
		case "orcid":
			enabledSources = append(enabledSources, orcid.NewFetcher(cfg, db, resolver, logging))
		case "crossref":
			enabledSources = append(enabledSources, crossref.NewFetcher(cfg, db, resolver, logging))
		default:
			logging.Warn("Unknown source in config", zap.String("source_name", name))
		}
	}
	if len(enabledSources) == 0 {
		logging.Fatal("No valid sources enabled. Check ENABLED_SOURCES in .env")
	}
	logging.Info("Active sources loaded", zap.Strings("sources", enabledSourceNames))

	harvestService := services.NewHarvestService(db, locks, statsService, enabledSources, cfg.HarvestTimeout, logging)

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Setup Routes
	setupPaperRoutes(router, db, resolver, locks, cfg, logging)
	setupPublisherRoutes(router, db, cascadeService, statsService, locks, cfg, logging)
	setupResearcherRoutes(router, db, harvestService, logging)
	setupDepartmentRoutes(router, db, logging)
	setupSourceRoutes(router, db, logging)

	// Setup Cron
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.StatsCronSchedule, func() {
		ran, err := locks.RunGuarded("refresh_stats", services.LockKey{}, cfg.StatsLockTimeout, func() error {
			logging.Info("Running scheduled stats refresh...")
			return statsService.UpdateAllStats()
		})
		if err != nil {
			logging.Error("Stats refresh cron job failed", zap.Error(err))
		} else if ran {
			logging.Info("Stats refresh cron job completed")
		}
	})
	cronScheduler.AddFunc(cfg.CleanupCronSchedule, func() {
		removed, err := statsService.RemoveEmptyProfiles()
		if err != nil {
			logging.Error("Profile cleanup cron job failed", zap.Error(err))
		} else {
			logging.Info("Profile cleanup cron job completed", zap.Int64("removed", removed))
		}
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func setupPaperRoutes(router *gin.Engine, db *gorm.DB, resolver *services.StatusResolver, locks *services.TaskLockManager, cfg *config.Config, log *zap.Logger) {
	rg := router.Group("/papers")

	rg.GET("/", func(c *gin.Context) {
		query := db.Model(&models.Paper{}).Where("visibility = ?", models.VisibilityVisible)
		if status := c.Query("oa_status"); status != "" {
			query = query.Where("oa_status = ?", status)
		}
		limit := 100
		if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
			limit = v
		}
		var papers []models.Paper
		if err := query.Order("id desc").Limit(limit).Find(&papers).Error; err != nil {
			log.Error("Database query for papers failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, papers)
	})

	rg.GET("/:id", func(c *gin.Context) {
		id := c.Param("id")
		var paper models.Paper
		err := db.Preload("Publications.Journal.Publisher").
			Preload("OaiRecords.Source").
			Preload("Authors.Name").
			First(&paper, id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "paper not found"})
				return
			}
			log.Error("DB error fetching paper", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, paper)
	})

	// Stößt die Neuberechnung der abgeleiteten Felder eines Papers an. Läuft
	// synchron unter Lock; ein bereits laufender Lauf führt zu 409 statt zu
	// doppelter Arbeit.
	rg.POST("/:id/resolve", func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid paper id"})
			return
		}
		paperID := uint(id)

		var paper models.Paper
		if err := db.First(&paper, paperID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "paper not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		ran, err := locks.RunGuarded("consolidate_paper", services.LockKey{"pk": paperID}, cfg.ResolveTimeout, func() error {
			return resolver.Resolve(paperID)
		})
		if err != nil {
			log.Error("Paper resolution failed", zap.Uint("paper_id", paperID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve paper"})
			return
		}
		if !ran {
			c.JSON(http.StatusConflict, gin.H{"error": "resolution already in progress"})
			return
		}

		if err := db.First(&paper, paperID).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, paper)
	})
}

func setupPublisherRoutes(router *gin.Engine, db *gorm.DB, cascade *services.CascadeService, stats *services.StatsService, locks *services.TaskLockManager, cfg *config.Config, log *zap.Logger) {
	rg := router.Group("/publishers")

	rg.GET("/", func(c *gin.Context) {
		var publishers []models.Publisher
		if err := db.Preload("Stats").Find(&publishers).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, publishers)
	})

	rg.GET("/:id", func(c *gin.Context) {
		id := c.Param("id")
		var publisher models.Publisher
		if err := db.Preload("Journals").Preload("Stats").First(&publisher, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "publisher not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		count, err := stats.PublisherPaperCount(publisher.ID)
		if err != nil {
			log.Warn("Failed to count publisher papers", zap.Uint("publisher_id", publisher.ID), zap.Error(err))
		}
		c.JSON(http.StatusOK, gin.H{"publisher": publisher, "paper_count": count})
	})

	// Setzt die OA-Policy eines Publishers und rechnet alle betroffenen Papers
	// asynchron neu durch. Die Antwort kommt sofort, der Fan-out läuft im
	// Hintergrund unter einem Lock pro Publisher.
	rg.POST("/:id/oa-status", func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid publisher id"})
			return
		}
		publisherID := uint(id)

		var req struct {
			OAStatus string `json:"oa_status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body, oa_status required"})
			return
		}
		if !models.ValidOAStatus(req.OAStatus) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid oa_status value"})
			return
		}

		var publisher models.Publisher
		if err := db.First(&publisher, publisherID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "publisher not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		go func() {
			ran, err := locks.RunGuarded("change_publisher_status", services.LockKey{"pk": publisherID}, cfg.HarvestTimeout, func() error {
				result, err := cascade.ChangeOAStatus(context.Background(), publisherID, req.OAStatus)
				if result != nil {
					cascadePapersUpdated.Add(float64(result.Updated))
					cascadePapersSkipped.Add(float64(result.Skipped))
				}
				return err
			})
			if err != nil {
				log.Error("Async publisher cascade failed", zap.Uint("publisher_id", publisherID), zap.Error(err))
			} else if !ran {
				log.Info("Publisher cascade already running, skipped", zap.Uint("publisher_id", publisherID))
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "Publisher status change triggered."})
	})
}

func setupResearcherRoutes(router *gin.Engine, db *gorm.DB, harvest *services.HarvestService, log *zap.Logger) {
	rg := router.Group("/researchers")

	rg.POST("/", func(c *gin.Context) {
		var req struct {
			First        string  `json:"first" binding:"required"`
			Last         string  `json:"last" binding:"required"`
			Orcid        *string `json:"orcid"`
			DepartmentID *uint   `json:"department_id"`
			Email        *string `json:"email"`
			Homepage     *string `json:"homepage"`
			Role         *string `json:"role"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request, first and last required"})
			return
		}

		name, err := models.GetOrCreateName(db, req.First, req.Last)
		if err != nil {
			log.Error("Failed to get or create name", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		if !name.IsKnown {
			// Namen mit Profil gelten als bekannt.
			if err := db.Model(name).Update("is_known", true).Error; err != nil {
				log.Warn("Failed to mark name as known", zap.Uint("name_id", name.ID), zap.Error(err))
			}
		}

		researcher := models.Researcher{
			NameID:       name.ID,
			DepartmentID: req.DepartmentID,
			Email:        req.Email,
			Homepage:     req.Homepage,
			Role:         req.Role,
			Orcid:        req.Orcid,
		}
		if err := db.Create(&researcher).Error; err != nil {
			log.Error("Failed to create researcher", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create researcher"})
			return
		}
		researcher.Name = name
		c.JSON(http.StatusCreated, researcher)
	})

	rg.GET("/", func(c *gin.Context) {
		var researchers []models.Researcher
		if err := db.Preload("Name").Preload("Department").Find(&researchers).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, researchers)
	})

	rg.GET("/:id", func(c *gin.Context) {
		id := c.Param("id")
		var researcher models.Researcher
		err := db.Preload("Name").Preload("Department").Preload("Stats").First(&researcher, id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "researcher not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, researcher)
	})

	// Startet die Harvest-Pipeline asynchron. Läuft für den Researcher schon
	// eine, wird der Start verworfen statt gewartet.
	rg.POST("/:id/harvest", func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid researcher id"})
			return
		}
		researcherID := uint(id)

		var researcher models.Researcher
		if err := db.First(&researcher, researcherID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "researcher not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		go func() {
			ran, err := harvest.Run(context.Background(), researcherID)
			if !ran {
				harvestsSkipped.Inc()
				return
			}
			harvestsStarted.Inc()
			if err != nil {
				log.Error("Async harvest failed", zap.Uint("researcher_id", researcherID), zap.Error(err))
			} else {
				log.Info("Async harvest completed", zap.Uint("researcher_id", researcherID))
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "Harvest triggered."})
	})
}

func setupDepartmentRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/departments")
	rg.POST("/", func(c *gin.Context) {
		var dept models.Department
		if err := c.ShouldBindJSON(&dept); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if err := db.Create(&dept).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create department"})
			return
		}
		c.JSON(http.StatusCreated, dept)
	})
	rg.GET("/", func(c *gin.Context) {
		var depts []models.Department
		if err := db.Find(&depts).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, depts)
	})
}

func setupSourceRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/sources")

	rg.GET("/", func(c *gin.Context) {
		var sources []models.OaiSource
		if err := db.Find(&sources).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, sources)
	})

	// Ändert die Priorität einer Quelle und zieht die gecachte Kopie an allen
	// Records der Quelle nach, damit die pdf_url-Auflösung sie sofort sieht.
	rg.PATCH("/:id/priority", func(c *gin.Context) {
		id := c.Param("id")
		var req struct {
			Priority *int `json:"priority" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request, priority required"})
			return
		}

		var source models.OaiSource
		if err := db.First(&source, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "source not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		if err := db.Model(&source).Update("priority", *req.Priority).Error; err != nil {
			log.Error("Failed to update source priority", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update source"})
			return
		}
		if err := db.Model(&models.OaiRecord{}).
			Where("source_id = ?", source.ID).
			Update("priority", *req.Priority).Error; err != nil {
			log.Error("Failed to propagate source priority to records", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update records"})
			return
		}

		source.Priority = *req.Priority
		c.JSON(http.StatusOK, source)
	})
}

func seedDefaultSources(db *gorm.DB, logger *zap.Logger) {
	var count int64
	db.Model(&models.OaiSource{}).Count(&count)
	if count > 0 {
		return
	}
	sources := []models.OaiSource{
		{Identifier: "arxiv", Name: "arXiv", OA: true, Priority: 10},
		{Identifier: "hal", Name: "HAL", OA: true, Priority: 5},
		{Identifier: "orcid", Name: "ORCID", OA: false, Priority: 1},
	}
	if err := db.Create(&sources).Error; err != nil {
		logger.Warn("Failed to seed default sources", zap.Error(err))
	} else {
		logger.Info("Default sources seeded.")
	}
}
