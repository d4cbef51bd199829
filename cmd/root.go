package cmd

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	coreconfig "github.com/venadolabs/chanbind/core/config"
	coreDB "github.com/venadolabs/chanbind/core/database"
	"github.com/venadolabs/chanbind/domains/capability"
	domainGateway "github.com/venadolabs/chanbind/domains/gateway"
	infraGateway "github.com/venadolabs/chanbind/infrastructure/gateway"
	"github.com/venadolabs/chanbind/infrastructure/valkey"
	"github.com/venadolabs/chanbind/pkg/utils"
	"github.com/venadolabs/chanbind/repository"
	"github.com/venadolabs/chanbind/usecase"
)

var (
	// Infrastructure
	gatewayClient  domainGateway.IClient
	vkClient       *valkey.Client
	verificationDB *sql.DB
	serverID       string

	// Services
	scopeService     *usecase.ProviderScopeService
	sessionService   *usecase.GatewaySessionService
	bindingService   *usecase.BindingService
	readinessService *usecase.BindingReadinessService
	selectionCtl     *usecase.StepSelectionController
	draftService     *usecase.DraftService
	verifyService    *usecase.VerificationService
	targetService    *usecase.TargetService
	setupService     *usecase.SetupService
)

var rootCmd = &cobra.Command{
	Use:   "chanbind",
	Short: "Messaging channel binding setup service",
	Long: `chanbind orchestrates the setup flow for binding external messaging
channels (WhatsApp, WeChat, WeCom, Discord, Telegram) to internal agent and
team targets, driving a gateway service over HTTP.`,
}

func init() {
	// Load .env before anything reads the environment
	utils.LoadConfig(".")

	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	initFlags()

	cobra.OnInitialize(initEnvConfig, initApp)
}

var (
	flagPort       string
	flagDebug      bool
	flagGatewayURL string
	flagDBDriver   string
)

func initFlags() {
	rootCmd.PersistentFlags().StringVarP(
		&flagPort,
		"port", "p",
		"",
		"change port number with --port <number> | example: --port=8080",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&flagDebug,
		"debug", "d",
		false,
		"hide or displaying log with --debug <true/false> | example: --debug=true",
	)
	rootCmd.PersistentFlags().StringVarP(
		&flagGatewayURL,
		"gateway-url", "",
		"",
		`gateway base url --gateway-url <string> | example: --gateway-url="http://localhost:4500"`,
	)
	rootCmd.PersistentFlags().StringVarP(
		&flagDBDriver,
		"db-driver", "",
		"",
		`database driver --db-driver <sqlite/postgres> | example: --db-driver=sqlite`,
	)

	_ = viper.BindPFlag("app_port", rootCmd.PersistentFlags().Lookup("port"))
	_ = viper.BindPFlag("app_debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("gateway_base_url", rootCmd.PersistentFlags().Lookup("gateway-url"))
	_ = viper.BindPFlag("db_driver", rootCmd.PersistentFlags().Lookup("db-driver"))
}

// initEnvConfig loads the structured config, then applies viper overrides so
// flags win over environment variables.
func initEnvConfig() {
	viper.AutomaticEnv()

	if _, err := coreconfig.LoadConfig(); err != nil {
		logrus.Fatalf("failed to load configuration: %v", err)
	}

	if envPort := viper.GetString("app_port"); envPort != "" {
		coreconfig.Global.App.Port = envPort
	}
	if viper.GetBool("app_debug") {
		coreconfig.Global.App.Debug = true
	}
	if envGateway := viper.GetString("gateway_base_url"); envGateway != "" {
		coreconfig.Global.Gateway.BaseURL = envGateway
	}
	if envDriver := viper.GetString("db_driver"); envDriver != "" {
		coreconfig.Global.Database.Driver = envDriver
	}
}

func initApp() {
	cfg := coreconfig.Global

	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if err := utils.CreateFolder(cfg.Paths.Storages); err != nil {
		logrus.Errorln(err)
	}

	ctx := context.Background()

	// Relational storage for bindings and target options
	db, err := coreDB.NewDatabase(cfg)
	if err != nil {
		logrus.Fatalf("failed to open database: %v", err)
	}
	bindingRepo := repository.NewBindingGormRepository(db)
	if err := bindingRepo.InitSchema(ctx); err != nil {
		logrus.Fatalf("failed to init binding schema: %v", err)
	}
	targetRepo := repository.NewTargetGormRepository(db)
	if err := targetRepo.InitSchema(ctx); err != nil {
		logrus.Fatalf("failed to init target schema: %v", err)
	}

	// Verification history rides the main sqlite connection. A postgres
	// deployment keeps a dedicated sqlite file instead, since the history
	// queries are sqlite-flavored.
	var historyDB *sql.DB
	if cfg.Database.Driver == "postgres" {
		verificationDB, err = repository.OpenVerificationDB(filepath.Join(cfg.Paths.Storages, "verifications.db"))
		if err != nil {
			logrus.Fatalf("failed to open verification db: %v", err)
		}
		historyDB = verificationDB
	} else {
		historyDB, err = coreDB.GetLegacyDB()
		if err != nil {
			logrus.Fatalf("failed to get verification db handle: %v", err)
		}
	}
	verificationRepo := repository.NewVerificationSQLiteRepository(historyDB)
	if err := verificationRepo.InitSchema(ctx); err != nil {
		logrus.Fatalf("failed to init verification schema: %v", err)
	}

	// Valkey is optional; the capability cache degrades to memory
	if cfg.Database.ValkeyEnabled {
		vkClient, err = valkey.NewClient(valkey.Config{
			Address:   cfg.Database.ValkeyAddress,
			Password:  cfg.Database.ValkeyPassword,
			DB:        cfg.Database.ValkeyDB,
			KeyPrefix: cfg.Database.ValkeyKeyPrefix,
		})
		if err != nil {
			logrus.WithError(err).Warn("[APP] Valkey unavailable, falling back to in-memory capability cache")
			vkClient = nil
		}
	}

	var cache capability.Cache = repository.NewMemoryCapabilityCache()
	if vkClient != nil {
		cache = repository.NewValkeyCapabilityCache(vkClient)
	}

	serverID = utils.GetPersistentServerID(cfg.App.ServerID, cfg.Paths.Storages)

	gatewayClient = infraGateway.NewClient(infraGateway.Config{
		BaseURL:        cfg.Gateway.BaseURL,
		APIToken:       cfg.Gateway.APIToken,
		RequestTimeout: cfg.Gateway.RequestTimeout,
	})

	scopeService = usecase.NewProviderScopeService()
	sessionService = usecase.NewGatewaySessionService(gatewayClient, cfg.Setup.SessionSyncInterval)
	bindingService = usecase.NewBindingService(bindingRepo, nil)
	readinessService = usecase.NewBindingReadinessService(bindingService)
	selectionCtl = usecase.NewStepSelectionController()
	targetService = usecase.NewTargetService(targetRepo)
	draftService = usecase.NewDraftService(gatewayClient, bindingService, sessionService, targetService, cfg.Setup.PeerCandidateLimit)
	verifyService = usecase.NewVerificationService(verificationRepo)

	setupService = usecase.NewSetupService(
		scopeService,
		sessionService,
		bindingService,
		readinessService,
		selectionCtl,
		draftService,
		verifyService,
		gatewayClient,
		cache,
		cfg.Setup.CapabilityCacheTTL,
	)

	if err := setupService.Initialize(ctx); err != nil {
		logrus.WithError(err).Warn("[APP] Setup initialization degraded")
	}
	sessionService.StartSessionStatusAutoSync(ctx)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// StopApp performs a clean shutdown of background work and storage handles.
func StopApp() {
	logrus.Info("[APP] Stopping application...")

	if setupService != nil {
		setupService.Shutdown("application shutdown")
	}
	if verificationDB != nil {
		_ = verificationDB.Close()
	}
	if vkClient != nil {
		vkClient.Close()
	}

	logrus.Info("[APP] Application stopped cleanly.")
}
