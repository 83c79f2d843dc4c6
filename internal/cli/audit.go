package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/walletguard/internal/core/config"
	"github.com/vietddude/walletguard/internal/core/domain"
	redisclient "github.com/vietddude/walletguard/internal/infra/redis"
	"github.com/vietddude/walletguard/internal/security/audit"
)

const auditPageSize = 500

var (
	auditSource    string
	auditThreshold int
	auditSince     time.Duration
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Scan the recorded security events for suspicious patterns",
	Run:   runAudit,
}

func init() {
	auditCmd.Flags().StringVar(&auditSource, "source", "storage", "event source: storage or redis")
	auditCmd.Flags().IntVar(&auditThreshold, "threshold", audit.DefaultViolationThreshold, "integrity violations per actor before reporting")
	auditCmd.Flags().DurationVar(&auditSince, "since", 0, "only scan events newer than this (storage source, 0 = all)")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()

	var (
		events []*domain.SecurityEvent
		err    error
	)
	switch auditSource {
	case "storage":
		events, err = storageEvents(ctx, cfg)
	case "redis":
		events, err = streamEvents(ctx, cfg)
	default:
		err = fmt.Errorf("unknown source %q", auditSource)
	}
	if err != nil {
		slog.Error("Failed to read events", "source", auditSource, "error", err)
		os.Exit(1)
	}

	findings := audit.Check(events, auditThreshold)
	slog.Info("Audit complete", "events", len(events), "findings", len(findings))
	if len(findings) == 0 {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "KIND\tWALLET\tACTOR\tTIME\tDETAIL")
	for _, f := range findings {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", f.Kind, f.Wallet.Hex(), f.Actor.Hex(), f.Timestamp, f.Detail)
	}
	_ = w.Flush()
	os.Exit(2)
}

func storageEvents(ctx context.Context, cfg *config.AppConfig) ([]*domain.SecurityEvent, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = store.Close()
	}()

	var since int64
	if auditSince > 0 {
		since = time.Now().Add(-auditSince).Unix()
	}
	return store.Events().List(ctx, since, 0)
}

// streamEvents reads the whole event stream page by page.
func streamEvents(ctx context.Context, cfg *config.AppConfig) ([]*domain.SecurityEvent, error) {
	if cfg.Redis.URL == "" {
		return nil, fmt.Errorf("redis.url is not configured")
	}
	client, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = client.Close()
	}()

	var (
		events []*domain.SecurityEvent
		after  string
	)
	for {
		page, err := client.Read(ctx, after, auditPageSize)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return events, nil
		}
		for _, entry := range page {
			events = append(events, entry.Event)
		}
		after = page[len(page)-1].ID
	}
}
