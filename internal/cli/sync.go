package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"toggl-redmine-sync/internal/config"
	"toggl-redmine-sync/internal/journal"
	"toggl-redmine-sync/internal/logger"
	"toggl-redmine-sync/internal/models"
	"toggl-redmine-sync/internal/redmine"
	"toggl-redmine-sync/internal/report"
	"toggl-redmine-sync/internal/sync"
	"toggl-redmine-sync/internal/toggl"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	flagFrom            string
	flagTo              string
	flagWorkspace       int64
	flagDefaultActivity string
	flagYes             bool
	flagNoJournal       bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile and sync a date range",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync()
	},
}

func init() {
	syncCmd.Flags().StringVar(&flagFrom, "from", "", "start of the range (YYYY-MM-DD or RFC3339, default: 1 day ago)")
	syncCmd.Flags().StringVar(&flagTo, "to", "", "end of the range (YYYY-MM-DD or RFC3339, default: now)")
	syncCmd.Flags().Int64Var(&flagWorkspace, "workspace", 0, "Toggl workspace ID (overrides config)")
	syncCmd.Flags().StringVar(&flagDefaultActivity, "default-activity", "", "Redmine activity for entries without an activity tag")
	syncCmd.Flags().BoolVar(&flagYes, "yes", false, "write without asking for confirmation")
	syncCmd.Flags().BoolVar(&flagNoJournal, "no-journal", false, "do not record the run in the local journal")
}

func runSync() error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	from, to, err := resolveRange()
	if err != nil {
		return err
	}

	togglClient := toggl.NewClient(
		cfg.Toggl.BaseURL,
		cfg.Toggl.APIToken,
		time.Duration(cfg.Toggl.Timeout)*time.Second,
		log.Logger,
	)
	redmineClient := redmine.NewClient(
		cfg.Redmine.URL,
		cfg.Redmine.APIKey,
		time.Duration(cfg.Redmine.Timeout)*time.Second,
		log.Logger,
	)

	user, err := togglClient.Me(ctx)
	if err != nil {
		return fmt.Errorf("failed to authenticate with toggl: %w", err)
	}

	workspaceID, err := resolveWorkspace(ctx, togglClient, user, cfg)
	if err != nil {
		return err
	}

	defaultActivity := cfg.Sync.DefaultActivity
	if flagDefaultActivity != "" {
		defaultActivity = flagDefaultActivity
	}

	log.Info("Starting sync",
		zap.Time("from", from),
		zap.Time("to", to),
		zap.Int64("user_id", user.ID),
		zap.Int64("workspace_id", workspaceID),
		zap.String("default_activity", defaultActivity),
	)

	orchestrator := sync.NewOrchestrator(
		togglClient,
		redmineClient,
		user.ID,
		workspaceID,
		defaultActivity,
		cfg.Sync.LedgerPageLimit,
		log.Logger,
	)
	orchestrator.OnDayReport(func(r *sync.DayReport) {
		fmt.Printf("\nTime entries for %s to %s\n",
			r.From.Format("Mon 02.01.2006 15:04"), r.To.Format("15:04"))
		if len(r.Entries) == 0 && len(r.UnmatchedLedger) == 0 {
			fmt.Println("No entries given.")
			return
		}
		report.RenderDay(os.Stdout, r)
	})
	orchestrator.OnConfirm(confirmFunc())

	reports, runErr := orchestrator.Run(ctx, from, to)

	if !flagNoJournal && len(reports) > 0 {
		j, err := journal.Open(cfg.JournalPath, log.Logger)
		if err != nil {
			log.Error("Failed to open journal", zap.Error(err))
		} else {
			defer j.Close()
			if runID, err := j.RecordRun(from, to, reports); err != nil {
				log.Error("Failed to record run", zap.Error(err))
			} else {
				log.Debug("Run recorded", zap.String("run_id", runID))
			}
		}
	}

	if runErr != nil {
		return runErr
	}

	written, failed := 0, 0
	for _, r := range reports {
		written += r.WrittenCount()
		failed += r.FailedCount()
	}
	log.Info("Finished",
		zap.Int("days", len(reports)),
		zap.Int("written", written),
		zap.Int("failed", failed),
	)
	return nil
}

// confirmFunc returns the write-phase confirmation hook: auto-approve with
// --yes, otherwise an interactive y/N prompt.
func confirmFunc() sync.ConfirmFunc {
	if flagYes {
		return func(*sync.DayReport) bool { return true }
	}
	reader := bufio.NewReader(os.Stdin)
	return func(r *sync.DayReport) bool {
		fmt.Printf("%d entries not synced. Process now? [y/N] ", len(r.Pending()))
		answer, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes"
	}
}

func resolveRange() (time.Time, time.Time, error) {
	now := time.Now()

	from := now.AddDate(0, 0, -1)
	if flagFrom != "" {
		parsed, err := parseDate(flagFrom)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from: %w", err)
		}
		from = parsed
	}

	to := now
	if flagTo != "" {
		parsed, err := parseDate(flagTo)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to: %w", err)
		}
		to = parsed
	}

	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("--from (%s) must be before --to (%s)", from, to)
	}
	return from, to, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// resolveWorkspace picks the workspace from flag, config, the account
// default, or the single available workspace, in that order.
func resolveWorkspace(ctx context.Context, client *toggl.Client, user *models.TogglUser, cfg *config.Config) (int64, error) {
	if flagWorkspace != 0 {
		return flagWorkspace, nil
	}
	if cfg.Sync.WorkspaceID != 0 {
		return cfg.Sync.WorkspaceID, nil
	}
	if user.DefaultWorkspaceID != 0 {
		return user.DefaultWorkspaceID, nil
	}

	workspaces, err := client.Workspaces(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list workspaces: %w", err)
	}
	if len(workspaces) == 1 {
		return workspaces[0].ID, nil
	}

	var names []string
	for _, ws := range workspaces {
		names = append(names, fmt.Sprintf("%s [ID:%d]", ws.Name, ws.ID))
	}
	return 0, fmt.Errorf("no workspace given, set --workspace to one of: %s", strings.Join(names, ", "))
}
