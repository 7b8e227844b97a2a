// cmd/archive/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"salesassistant/config"
	"salesassistant/logging"
	"salesassistant/services"
)

var (
	configPath string
	sessionID  string
)

var rootCmd = &cobra.Command{
	Use:           "archive",
	Short:         "Inspect archived sales assistant sessions",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// listCmd prints every archived message and insight of one session.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived records for a session",
	RunE:  runList,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (defaults to $ASSISTANT_CONFIG)")
	listCmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id to list")
	_ = listCmd.MarkFlagRequired("session")
	rootCmd.AddCommand(listCmd)
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	return config.LoadFromEnv()
}

func runList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Archive.Backend != "dynamodb" {
		return fmt.Errorf("archive backend is %q, nothing to list", cfg.Archive.Backend)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	// DynamoDB Local などのエンドポイントに接続
	var db *services.DynamoArchiver
	err = retry(ctx, 3, 2*time.Second, logger, func() error {
		var cerr error
		db, cerr = connect(ctx, cfg.Archive)
		return cerr
	})
	if err != nil {
		return fmt.Errorf("connect to archive after retries: %w", err)
	}

	items, err := db.ListSession(ctx, services.SessionID(sessionID))
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no archived records for session %s\n", sessionID)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tKIND\tDETAIL")
	for _, item := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\n", item.Timestamp.Format(time.RFC3339), item.Kind, describe(item))
	}
	return w.Flush()
}

// retry calls fn up to attempts times, waiting delay between tries. It stops
// early when ctx is done.
func retry(ctx context.Context, attempts int, delay time.Duration, logger *zap.Logger, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		logger.Warn("archive connection failed", zap.Int("attempt", i+1), zap.Error(err))
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
		case <-time.After(delay):
		}
	}
	return err
}

func connect(ctx context.Context, cfg config.ArchiveConfig) (*services.DynamoArchiver, error) {
	client, err := services.NewDynamoDBClient(ctx, cfg.Region, cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	return services.NewDynamoArchiver(ctx, client, cfg.Table)
}

func describe(item services.ArchivedItem) string {
	if item.Kind == "insight" {
		return fmt.Sprintf("#%d %s (%s) %s", item.Index, item.ProductName, item.Category, truncate(item.Content, 80))
	}
	return fmt.Sprintf("%s: %s", item.Role, truncate(item.Content, 80))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
