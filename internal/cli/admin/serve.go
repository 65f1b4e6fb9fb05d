package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fieldbankhq/fieldbank/internal/api/handlers"
	"github.com/fieldbankhq/fieldbank/internal/config"
	"github.com/fieldbankhq/fieldbank/internal/database"
	"github.com/fieldbankhq/fieldbank/internal/domain"
	"github.com/fieldbankhq/fieldbank/internal/jobs"
	"github.com/fieldbankhq/fieldbank/internal/openai"
	"github.com/fieldbankhq/fieldbank/internal/repository"
	"github.com/fieldbankhq/fieldbank/internal/server"
	"github.com/fieldbankhq/fieldbank/internal/service"
	"github.com/fieldbankhq/fieldbank/internal/storage"
	"github.com/fieldbankhq/fieldbank/internal/telemetry"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	openaiapi "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the fieldbank API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.HasSentry() {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	entryRepo := repository.NewEntryRepository(pool)
	embeddingJobRepo := repository.NewEmbeddingJobRepository(pool)
	documentRepo := repository.NewDocumentRepository(pool)
	ownerRepo := repository.NewOwnerRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)

	if cfg.InitOwnerName != "" {
		if err := bootstrapInitialOwner(ctx, cfg, ownerRepo, apiKeyRepo); err != nil {
			return fmt.Errorf("failed to bootstrap initial owner: %w", err)
		}
	}

	var storageClient service.StorageClientInterface
	if cfg.HasS3() {
		s3Config := storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		}
		s3Client, err := storage.NewS3Client(ctx, s3Config)
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		storageClient = &S3StorageAdapter{client: s3Client}
	}

	var embeddingClient service.EmbeddingClient
	var embeddingWorker *jobs.Worker
	if cfg.HasOpenAI() {
		embeddingClient = openai.NewClientWithConfig(openai.Config{
			APIKey:         cfg.OpenAIAPIKey,
			EmbeddingModel: openaiapi.EmbeddingModel(cfg.EmbeddingModel),
		})
		embeddingSvc := service.NewEmbeddingService(embeddingClient, entryRepo)
		embeddingProcessor := jobs.NewEmbeddingWorker(embeddingJobRepo, embeddingSvc)
		embeddingWorker = jobs.NewWorker(embeddingProcessor, cfg.WorkerPollInterval)
		go embeddingWorker.Start(ctx)
		log.Println("embedding worker started")
	}

	uuidGen := &service.DefaultUUIDGenerator{}

	resolverSvc := service.NewResolverServiceWithOptions(entryRepo, embeddingClient, service.ResolverOptions{
		SemanticThreshold: cfg.SemanticThreshold,
		BroadThreshold:    cfg.BroadThreshold,
		EmbedTimeout:      cfg.EmbedTimeout,
	})
	confirmSvc := service.NewConfirmationService(entryRepo, embeddingJobRepo)
	entrySvc := service.NewEntryService(entryRepo, embeddingJobRepo)
	authSvc := service.NewAuthService(ownerRepo, apiKeyRepo, uuidGen)

	var documentHandler *handlers.DocumentHandler
	if storageClient != nil {
		documentHandler = handlers.NewDocumentHandler(service.NewDocumentService(documentRepo, storageClient))
	} else {
		documentHandler = handlers.NewDocumentHandler(&NoOpDocumentService{})
	}

	routerCfg := server.RouterConfig{
		AuthValidator:   authSvc,
		ResolveHandler:  handlers.NewResolveHandler(resolverSvc),
		ConfirmHandler:  handlers.NewConfirmHandler(confirmSvc),
		EntryHandler:    handlers.NewEntryHandler(entrySvc),
		DocumentHandler: documentHandler,
		AuthHandler:     handlers.NewAuthHandler(authSvc),
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if embeddingWorker != nil {
		embeddingWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

type S3StorageAdapter struct {
	client *storage.S3Client
}

func (a *S3StorageAdapter) GenerateUploadURL(ctx context.Context, key string, contentType string) (string, error) {
	return a.client.GenerateUploadURL(ctx, key, contentType)
}

func (a *S3StorageAdapter) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	return a.client.GenerateDownloadURL(ctx, key)
}

func (a *S3StorageAdapter) DeleteObject(ctx context.Context, key string) error {
	return a.client.DeleteObject(ctx, key)
}

func (a *S3StorageAdapter) HeadObject(ctx context.Context, key string) (*service.ObjectMetadata, error) {
	meta, err := a.client.HeadObject(ctx, key)
	if err != nil {
		return nil, err
	}
	return &service.ObjectMetadata{
		ContentLength: meta.ContentLength,
		ContentType:   meta.ContentType,
		ETag:          meta.ETag,
	}, nil
}

type NoOpDocumentService struct{}

func (s *NoOpDocumentService) InitUpload(ctx context.Context, input service.InitUploadInput) (*service.InitUploadResult, error) {
	return nil, fmt.Errorf("document service not configured: S3_ENDPOINT required")
}

func (s *NoOpDocumentService) CompleteUpload(ctx context.Context, input service.CompleteUploadInput) (*domain.Document, error) {
	return nil, fmt.Errorf("document service not configured: S3_ENDPOINT required")
}

func (s *NoOpDocumentService) GetDownloadURL(ctx context.Context, ownerID, documentID string) (string, error) {
	return "", fmt.Errorf("document service not configured: S3_ENDPOINT required")
}

func (s *NoOpDocumentService) GetByID(ctx context.Context, ownerID, documentID string) (*domain.Document, error) {
	return nil, fmt.Errorf("document service not configured: S3_ENDPOINT required")
}

func (s *NoOpDocumentService) List(ctx context.Context, ownerID string) ([]*domain.Document, error) {
	return nil, fmt.Errorf("document service not configured: S3_ENDPOINT required")
}

func (s *NoOpDocumentService) Delete(ctx context.Context, ownerID, documentID string) error {
	return fmt.Errorf("document service not configured: S3_ENDPOINT required")
}

func bootstrapInitialOwner(ctx context.Context, cfg *config.Config, ownerRepo *repository.OwnerRepository, apiKeyRepo *repository.APIKeyRepository) error {
	owner, err := ownerRepo.GetByName(ctx, cfg.InitOwnerName)
	if err != nil && err != domain.ErrOwnerNotFound {
		return fmt.Errorf("failed to check existing owner: %w", err)
	}

	uuidGen := &service.DefaultUUIDGenerator{}
	authSvc := service.NewAuthService(ownerRepo, apiKeyRepo, uuidGen)

	if owner == nil {
		owner, err = authSvc.CreateOwner(ctx, cfg.InitOwnerName)
		if err != nil {
			return fmt.Errorf("failed to create owner: %w", err)
		}
		log.Printf("bootstrap: created owner '%s' (id: %s)", owner.Name, owner.ID)
	} else {
		log.Printf("bootstrap: owner '%s' already exists (id: %s)", owner.Name, owner.ID)
	}

	if cfg.InitAPIKey != "" {
		if !service.IsValidAPIToken(cfg.InitAPIKey) {
			return fmt.Errorf("invalid FIELDBANK_INIT_API_KEY format (expected 'fbk_<64 hex chars>')")
		}

		if _, err := authSvc.ValidateAPIKey(ctx, cfg.InitAPIKey); err == nil {
			log.Printf("bootstrap: API key already exists")
			return nil
		}

		if err := authSvc.CreateAPIKeyWithToken(ctx, owner.ID, "bootstrap", cfg.InitAPIKey); err != nil {
			return fmt.Errorf("failed to create API key: %w", err)
		}
		log.Printf("bootstrap: created API key")
	}

	return nil
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
