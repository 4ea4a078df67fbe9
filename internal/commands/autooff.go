package commands

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"ATLAS-backend/internal/platform/clock"
)

var autoOffAt string

// 読み取り時にも自動退勤は走るが、誰も見ない打刻は cron からこれで閉じる。
var autoOffCmd = &cobra.Command{
	Use:   "autooff",
	Short: "Close attendance records open longer than the duty cap",
	RunE: func(cmd *cobra.Command, args []string) error {
		now := time.Now()
		if autoOffAt != "" {
			t, err := time.Parse(time.RFC3339, autoOffAt)
			if err != nil {
				return fmt.Errorf("--at must be RFC3339: %w", err)
			}
			now = t
		}

		cfg, conn, err := openDB()
		if err != nil {
			return err
		}
		defer conn.Close()

		a, err := newApp(cfg, conn, &clock.Fixed{T: now})
		if err != nil {
			return err
		}
		n, err := a.attendance.SweepAll(cmd.Context(), a.clock.Now())
		if err != nil {
			return err
		}
		log.Printf("[INFO] autooff at %s closed %d record(s)", now.UTC().Format(time.RFC3339), n)
		return nil
	},
}

func init() {
	autoOffCmd.Flags().StringVar(&autoOffAt, "at", "", "evaluate as of this instant (RFC3339), default now")
}
