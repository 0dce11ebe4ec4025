package apps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/h2hsecure/moodlews/internal/domain"
)

var (
	watchInterval time.Duration
	watchOutput   string
)

var WatchCmd = &cobra.Command{
	Use:   "watch [courseid]",
	Short: "Keep a grade report snapshot of a course up to date",
	Long:  AppDescription,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		run(func(ctx context.Context, e *env) error {
			courseID, err := parseID("course id", args[0])
			if err != nil {
				return err
			}
			return Watch(ctx, e, courseID)
		})
	},
}

func init() {
	WatchCmd.Flags().DurationVar(&watchInterval, "interval", time.Minute, "refresh interval")
	WatchCmd.Flags().StringVarP(&watchOutput, "output", "o", "grades.json", "snapshot file")
}

// Watch rewrites the snapshot file every interval until ctx is cancelled.
// A failed refresh is logged and the previous snapshot stays in place.
func Watch(ctx context.Context, e *env, courseID int64) error {
	if watchInterval <= 0 {
		return fmt.Errorf("invalid interval %s: must be positive", watchInterval)
	}

	svc, err := e.service(ctx)
	if err != nil {
		return err
	}

	grp, ctx := errgroup.WithContext(ctx)

	grp.Go(func() error {
		ticker := time.NewTicker(watchInterval)
		defer ticker.Stop()

		for {
			if err := refreshSnapshot(ctx, svc, courseID, watchOutput); err != nil {
				log.Warn().Err(err).Int64("course", courseID).Msg("refresh")
			} else {
				e.close()
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	})

	err = grp.Wait()
	if errors.Is(err, context.Canceled) {
		log.Info().Msg("closing the app")
		return nil
	}

	return err
}

func refreshSnapshot(ctx context.Context, svc domain.IService, courseID int64, path string) error {
	report, err := svc.GradesWithEmails(ctx, courseID)
	if err != nil {
		return err
	}

	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".grades-*")
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("snapshot write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("snapshot close: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("snapshot rename: %w", err)
	}

	log.Info().Int64("course", courseID).Int("users", len(report.UserGrades)).Str("file", path).Msg("snapshot written")

	return nil
}
