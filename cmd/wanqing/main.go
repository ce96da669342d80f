package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/cyberFlowTech/wanqing/pkg/bot"
	"github.com/cyberFlowTech/wanqing/pkg/bus"
	"github.com/cyberFlowTech/wanqing/pkg/channels"
	"github.com/cyberFlowTech/wanqing/pkg/config"
	"github.com/cyberFlowTech/wanqing/pkg/cron"
	"github.com/cyberFlowTech/wanqing/pkg/groups"
	"github.com/cyberFlowTech/wanqing/pkg/health"
	"github.com/cyberFlowTech/wanqing/pkg/logger"
	"github.com/cyberFlowTech/wanqing/pkg/memory"
	"github.com/cyberFlowTech/wanqing/pkg/payments"
	"github.com/cyberFlowTech/wanqing/pkg/providers"
	"github.com/cyberFlowTech/wanqing/pkg/store"
	"github.com/cyberFlowTech/wanqing/pkg/tarot"
)

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

const appName = "wanqing"

func formatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

func printVersion() {
	fmt.Printf("%s %s\n", appName, formatVersion())
	if buildTime != "" {
		fmt.Printf("  Build: %s\n", buildTime)
	}
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	fmt.Printf("  Go: %s\n", goVer)
}

func main() {
	if err := executeCLI(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func getConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".wanqing", "config.json")
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfig(getConfigPath())
}

func databasePath(cfg *config.Config) string {
	return filepath.Join(cfg.WorkspacePath(), "state", "wanqing.db")
}

func validateRuntimeConfig(cfg *config.Config) error {
	configPath := getConfigPath()
	if strings.TrimSpace(cfg.Provider.APIKey) == "" {
		return fmt.Errorf("provider.api_key is required in %s or WANQING_PROVIDER_API_KEY", configPath)
	}
	if strings.TrimSpace(cfg.Channels.Discord.Token) == "" && !cfg.Channels.Console.Enabled {
		return fmt.Errorf("no channel configured: set channels.discord.token or enable channels.console in %s", configPath)
	}
	return nil
}

func onboard() error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists at %s", configPath)
	}

	cfg := config.DefaultConfig()
	if err := config.SaveConfig(configPath, cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(cfg.WorkspacePath(), "state"), 0755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	fmt.Printf("%s is ready!\n", appName)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Add your API key to", configPath)
	fmt.Println("  2. (Discord) Add your bot token to channels.discord.token")
	fmt.Println("  3. (Local) Enable channels.console to chat in the terminal")
	fmt.Println("  4. Run the bot: wanqing run")
	fmt.Println("  5. Check readiness: wanqing status")
	return nil
}

func statusCmd() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	configPath := getConfigPath()

	fmt.Printf("%s Status\n", appName)
	fmt.Printf("Version: %s\n\n", formatVersion())

	mark := func(ok bool) string {
		if ok {
			return "✓"
		}
		return "✗"
	}

	_, cfgErr := os.Stat(configPath)
	fmt.Println("Config:", configPath, mark(cfgErr == nil))

	workspace := cfg.WorkspacePath()
	_, wsErr := os.Stat(workspace)
	fmt.Println("Workspace:", workspace, mark(wsErr == nil))

	dbPath := databasePath(cfg)
	if _, err := os.Stat(dbPath); err == nil {
		fmt.Println("Database:", dbPath, "✓")
	} else {
		fmt.Println("Database:", dbPath, "not initialized")
	}

	fmt.Printf("Model: %s\n", cfg.Provider.Model)

	apiReady := strings.TrimSpace(cfg.Provider.APIKey) != ""
	discordReady := strings.TrimSpace(cfg.Channels.Discord.Token) != ""
	fmt.Println("Provider API:", mark(apiReady))
	fmt.Println("Discord token:", mark(discordReady))
	fmt.Println("Console channel:", mark(cfg.Channels.Console.Enabled))
	fmt.Println("Ready:", mark(apiReady && (discordReady || cfg.Channels.Console.Enabled)))
	return nil
}

func runCmd(debug bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if debug {
		logger.SetLevel(logger.DEBUG)
	} else {
		logger.SetLevel(logger.ParseLevel(cfg.Bot.LogLevel))
	}
	if err := validateRuntimeConfig(cfg); err != nil {
		return err
	}

	dbPath := databasePath(cfg)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	provider, err := providers.NewChatCompletionsProvider(
		cfg.Provider.APIBase, cfg.Provider.APIKey, cfg.Provider.Model)
	if err != nil {
		return fmt.Errorf("create provider: %w", err)
	}

	memSvc := memory.NewService(memory.Config{
		MaxTurns:       cfg.Memory.MaxTurns,
		CountThreshold: cfg.Memory.CountThreshold,
		TimeThreshold:  time.Duration(cfg.Memory.TimeThresholdHours) * time.Hour,
	}, st, memory.NewLLMExtractor(provider, st))

	deck := tarot.NewDeck()
	groupsMgr := groups.NewManager(st, deck)
	payMgr := payments.NewManager(st, payments.Pricing{
		TarotReading:   cfg.Payments.PriceTarotReading,
		TarotDetail:    cfg.Payments.PriceTarotDetail,
		AIChat:         cfg.Payments.PriceAIChat,
		FreeTarotDaily: cfg.Tarot.FreeTarotDaily,
		FreeChatDaily:  cfg.Tarot.FreeChatDaily,
	})

	msgBus := bus.NewMessageBus()
	b := bot.New(bot.Deps{
		Config:   cfg,
		Bus:      msgBus,
		Store:    st,
		Memory:   memSvc,
		Provider: provider,
		Deck:     deck,
		Groups:   groupsMgr,
		Payments: payMgr,
	})

	channelManager, err := channels.NewManager(cfg, msgBus)
	if err != nil {
		return fmt.Errorf("create channel manager: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := cron.NewScheduler()
	if err := scheduler.AddJob(cron.Job{
		Name:     "memory-sweep",
		Schedule: cfg.Memory.SweepSchedule,
		Run: func(ctx context.Context) error {
			_, err := memSvc.SweepIdle(ctx)
			return err
		},
	}); err != nil {
		return fmt.Errorf("register sweep job: %w", err)
	}
	if err := scheduler.AddJob(cron.Job{
		Name:     "daily-prune",
		Schedule: "30 4 * * *",
		Run: func(ctx context.Context) error {
			cutoff := time.Now().AddDate(0, 0, -7).Format("2006-01-02")
			n, err := st.PruneDailyRows(ctx, cutoff)
			if err != nil {
				return err
			}
			logger.InfoCF("main", "Pruned stale daily rows", map[string]any{"rows": n})
			return nil
		},
	}); err != nil {
		return fmt.Errorf("register prune job: %w", err)
	}

	if err := channelManager.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	scheduler.Start(ctx)

	healthServer := health.NewServer(cfg.Ops.Host, cfg.Ops.Port, func() health.Status {
		chStatus := map[string]any{}
		for name, running := range channelManager.Status() {
			chStatus[name] = running
		}
		buffered, _ := st.BufferedUserIDs(context.Background())
		return health.Status{
			Status:   "ok",
			Channels: chStatus,
			Buffers:  len(buffered),
			Locks:    memSvc.LockCount(),
		}
	})
	healthServer.Start()

	go func() {
		if err := b.Run(ctx); err != nil {
			logger.ErrorCF("main", "Bot loop exited", map[string]any{"error": err.Error()})
		}
	}()

	fmt.Printf("✓ Channels enabled: %s\n", strings.Join(channelManager.EnabledChannels(), ", "))
	fmt.Printf("✓ Ops endpoints at http://%s:%d/healthz and /metrics\n", cfg.Ops.Host, cfg.Ops.Port)
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	cancel()
	b.Stop()
	scheduler.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = healthServer.Stop(shutdownCtx)
	if err := channelManager.StopAll(shutdownCtx); err != nil {
		logger.WarnCF("main", "Channel shutdown incomplete", map[string]any{"error": err.Error()})
	}
	fmt.Println("✓ Stopped")
	return nil
}
