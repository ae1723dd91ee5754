package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"dmvScheduler/internal/browser"
	"dmvScheduler/internal/finder"
	"dmvScheduler/internal/runner"
	"dmvScheduler/pkg/config"
	"dmvScheduler/pkg/line"
	"dmvScheduler/pkg/notify"
	"dmvScheduler/pkg/scraper"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var flags struct {
	loop       bool
	commit     bool
	gui        bool
	browser    string
	current    string
	notifyTest bool
}

var rootCmd = &cobra.Command{
	Use:   "scheduler <config.json5>",
	Short: "scheduler checks the Texas DPS scheduler for sooner appointments and books them.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, args[0])
		if err != nil {
			return err
		}
		if flags.notifyTest {
			return notifyTest(cmd.Context(), cfg)
		}
		return run(cmd.Context(), cfg)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().BoolVar(&flags.loop, "loop", false, "Keep checking until interrupted.")
	rootCmd.Flags().BoolVar(&flags.commit, "commit", false, "Allow booking a sooner appointment.")
	rootCmd.Flags().BoolVar(&flags.gui, "gui", false, "Show the browser window.")
	rootCmd.Flags().StringVar(&flags.browser, "browser", "", "Browser to drive: firefox or chrome.")
	rootCmd.Flags().StringVar(&flags.current, "current", "", "Currently held appointment date (M/D/YYYY).")
	rootCmd.Flags().BoolVar(&flags.notifyTest, "notify-test", false, "Send a LINE test message and exit.")
}

// loadConfig reads the file and applies the flags that were set explicitly.
func loadConfig(cmd *cobra.Command, path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	changed := cmd.Flags().Changed
	if changed("loop") {
		cfg.Settings.Loop = flags.loop
	}
	if changed("commit") {
		cfg.Settings.Commit = flags.commit
	}
	if changed("gui") {
		cfg.Settings.GUI = flags.gui
	}
	if changed("browser") {
		cfg.Settings.Browser = config.Browser(strings.ToLower(flags.browser))
	}
	if changed("current") {
		cfg.CurrentAppointment = flags.current
	}
	return cfg, cfg.Validate()
}

func buildNotifier(cfg config.Config) notify.Notifier {
	var notifiers notify.Multi
	if cfg.Notify.LineChannelToken != "" && cfg.Notify.LineUserID != "" {
		log.Printf("✓ LINE credentials found (token length: %d, user ID length: %d)",
			len(cfg.Notify.LineChannelToken), len(cfg.Notify.LineUserID))
		notifiers = append(notifiers, line.NewClient(cfg.Notify.LineChannelToken, cfg.Notify.LineUserID))
	}
	if sender := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey: cfg.Notify.SendGridAPIKey,
		From:   cfg.Notify.EmailFrom,
		To:     cfg.Notify.EmailTo,
	}); sender != nil {
		log.Printf("✓ Email notifications to %s", cfg.Notify.EmailTo)
		notifiers = append(notifiers, sender)
	}
	if len(notifiers) == 0 {
		log.Println("Notifications disabled")
		return notify.Nop{}
	}
	return notifiers
}

// notifyTest pushes a test message to the configured LINE user.
func notifyTest(ctx context.Context, cfg config.Config) error {
	if cfg.Notify.LineChannelToken == "" || cfg.Notify.LineUserID == "" {
		return &config.Error{Key: "notify.line-channel-token", Reason: "LINE credentials are not configured"}
	}
	return sendTestMessage(ctx, line.NewClient(cfg.Notify.LineChannelToken, cfg.Notify.LineUserID), cfg)
}

func sendTestMessage(ctx context.Context, client *line.Client, cfg config.Config) error {
	msg := fmt.Sprintf("🧪 DPS scheduler test for %s\nWatching zip code %s", cfg.FullName(), cfg.ZipCode)
	if best := cfg.CurrentBest(); best != nil {
		msg += fmt.Sprintf("\nCurrent appointment: %s", scraper.FormatDate(*best))
	}
	if err := client.SendText(ctx, msg); err != nil {
		return fmt.Errorf("notification test failed: %w", err)
	}
	log.Println("✓ Test notification sent successfully")
	return nil
}

func run(ctx context.Context, cfg config.Config) error {
	interval, err := cfg.CheckInterval()
	if err != nil {
		return err
	}

	best := cfg.CurrentBest()
	if best != nil {
		log.Printf("Current appointment: %s", scraper.FormatDate(*best))
	}
	log.Printf("Checking as %s with %s (loop: %t, commit: %t)",
		cfg.FullName(), cfg.Settings.Browser, cfg.Settings.Loop, cfg.Settings.Commit)

	session, err := browser.New(ctx, browser.OptionsFromConfig(cfg))
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Quit(); err != nil {
			log.Printf("⚠️ Failed to close browser: %v", err)
		}
	}()

	r := &runner.Runner{
		Finder:          finder.New(session, finder.IdentityFromConfig(cfg)),
		Notifier:        buildNotifier(cfg),
		Loop:            cfg.Settings.Loop,
		Commit:          cfg.Settings.Commit,
		Cooldown:        interval,
		BeforeIteration: rotateLogFile,
	}
	best, err = r.Run(ctx, best)
	if best != nil {
		log.Printf("Best appointment: %s", scraper.FormatDate(*best))
	}
	return err
}

func main() {
	setupLogging()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("⚠️ Failed to load .env: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("Scheduler started - press Ctrl+C to stop")
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
