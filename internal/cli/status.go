package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/walletguard/internal/infra/storage"
	"github.com/vietddude/walletguard/internal/units"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state recorded in the latest snapshot",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = store.Close()
	}()

	snap, err := store.Snapshots().Latest(ctx)
	if errors.Is(err, storage.ErrSnapshotNotFound) {
		fmt.Println("No snapshot recorded yet")
		return
	}
	if err != nil {
		slog.Error("Failed to load snapshot", "error", err)
		os.Exit(1)
	}

	day := time.Now().Add(-24 * time.Hour).Unix()
	recent, err := store.Events().List(ctx, day, 0)
	if err != nil {
		slog.Error("Failed to list events", "error", err)
		os.Exit(1)
	}

	pending := 0
	for _, tx := range snap.Queue {
		if !tx.Executed && !tx.Cancelled {
			pending++
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintf(w, "SNAPSHOT\t%s\n", time.Unix(snap.TakenAt, 0).UTC().Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "INITIALIZED\t%t\n", snap.Global.Initialized)
	_, _ = fmt.Fprintf(w, "PAUSED\t%t\n", snap.Global.Paused)
	_, _ = fmt.Fprintf(w, "WALLETS\t%d\n", len(snap.Wallets))
	_, _ = fmt.Fprintf(w, "PENDING QUEUED\t%d\n", pending)
	_, _ = fmt.Fprintf(w, "BLACKLISTED\t%d\n", len(snap.Global.Blacklist))
	_, _ = fmt.Fprintf(w, "TOKENS\t%d\n", len(snap.Global.Tokens))
	if snap.Stray != nil {
		_, _ = fmt.Fprintf(w, "STRAY\t%s ETH\n", units.FormatEther(snap.Stray))
	}
	_, _ = fmt.Fprintf(w, "EVENTS (24H)\t%d\n", len(recent))
	_ = w.Flush()
}
