package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"text/tabwriter"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"vmetrics/internal/app"
	"vmetrics/internal/config"
	"vmetrics/internal/domain"
	"vmetrics/internal/ports"
	store "vmetrics/internal/storage/badger"
)

// cli holds what every subcommand shares once the root command has run.
type cli struct {
	env     config.Env
	dataDir string
	verbose bool
	logger  *log.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:           "vmetrics",
		Short:         "Score volleyball matches from the command line",
		Long:          "vmetrics records rallies into a local data directory and keeps the scoreboard, rotation and libero state.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd.ErrOrStderr())
		},
	}
	rootCmd.PersistentFlags().StringVar(&c.dataDir, "data-dir", "", "Data directory (defaults to VMETRICS_DATA_DIR)")
	rootCmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Log storage internals")

	var scriptPath, matchID string
	playCmd := &cobra.Command{
		Use:   "play",
		Short: "Run a YAML scoring script against a match",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPlay(cmd.Context(), cmd.OutOrStdout(), scriptPath, matchID)
		},
	}
	playCmd.Flags().StringVarP(&scriptPath, "script", "s", "", "Path to the scoring script")
	playCmd.Flags().StringVarP(&matchID, "match", "m", "", "Match id (overrides the script; a new id is generated when both are empty)")
	_ = playCmd.MarkFlagRequired("script")

	var resumeMatchID string
	var firstServer string
	resumeCmd := &cobra.Command{
		Use:   "resume",
		Short: "Rebuild a match from its records and print the scoreboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runResume(cmd.Context(), cmd.OutOrStdout(), resumeMatchID, domain.Team(firstServer))
		},
	}
	resumeCmd.Flags().StringVarP(&resumeMatchID, "match", "m", "", "Match id")
	resumeCmd.Flags().StringVar(&firstServer, "first-server", string(domain.TeamOurs), "Team serving first in the resumed set (our or opp)")
	_ = resumeCmd.MarkFlagRequired("match")

	var logMatchID string
	var logSet int
	logCmd := &cobra.Command{
		Use:   "log",
		Short: "Print the rally log and set summaries of a match",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLog(cmd.Context(), cmd.OutOrStdout(), logMatchID, logSet)
		},
	}
	logCmd.Flags().StringVarP(&logMatchID, "match", "m", "", "Match id")
	logCmd.Flags().IntVar(&logSet, "set", 0, "Only this set (0 for every set)")
	_ = logCmd.MarkFlagRequired("match")

	rootCmd.AddCommand(playCmd, resumeCmd, logCmd)
	return rootCmd
}

func (c *cli) setup(stderr io.Writer) error {
	env, err := config.LoadEnv(nil)
	if err != nil {
		return err
	}
	c.env = env
	if c.dataDir == "" {
		c.dataDir = env.DataDir
	}

	c.logger = log.NewWithOptions(stderr, log.Options{ReportTimestamp: true, Prefix: "vmetrics"})
	if c.verbose {
		c.logger.SetLevel(log.DebugLevel)
	}

	if err := config.LoadScoringConfig(env.RulesPath); err != nil {
		c.logger.Warn("using default scoring rules", "err", err)
	}
	return nil
}

// openStore opens the badger database in the data directory. The caller closes it.
func (c *cli) openStore() (*store.DB, *store.MatchStore, error) {
	cfg := store.DefaultConfig(filepath.Join(c.dataDir, "badger"))
	if c.verbose {
		cfg.Logger = slog.New(c.logger)
	}
	db, err := store.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	return db, store.NewMatchStore(db), nil
}

func (c *cli) runPlay(ctx context.Context, out io.Writer, scriptPath, matchID string) error {
	script, err := loadScript(scriptPath)
	if err != nil {
		return err
	}
	if matchID == "" {
		matchID = script.MatchID
	}
	if matchID == "" {
		matchID = uuid.NewString()
	}

	db, st, err := c.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	r := newRunner(app.NewService(st, nil), domain.NewMatchSession(config.GetRules()), c.logger)
	c.logger.Info("scoring match", "match", matchID)

	existing, err := st.ListSetSummaries(ctx, matchID)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		err = r.start(ctx, matchID, script.Lineup.lineup(), script.FirstServer)
	} else {
		err = r.resume(ctx, st, matchID, script.Lineup.lineup(), script.FirstServer)
	}
	if err != nil {
		return err
	}

	if err := r.run(ctx, script.Steps); err != nil {
		return err
	}
	return writeView(out, r.session.View())
}

func (c *cli) runResume(ctx context.Context, out io.Writer, matchID string, firstServer domain.Team) error {
	db, st, err := c.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	r := newRunner(app.NewService(st, nil), domain.NewMatchSession(config.GetRules()), c.logger)
	if err := r.resume(ctx, st, matchID, domain.Lineup{}, firstServer); err != nil {
		return err
	}
	return writeView(out, r.session.View())
}

func (c *cli) runLog(ctx context.Context, out io.Writer, matchID string, setNumber int) error {
	db, st, err := c.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	rallies, err := st.ListRallies(ctx, matchID, setNumber)
	if err != nil {
		return err
	}
	summaries, err := st.ListSetSummaries(ctx, matchID)
	if err != nil {
		return err
	}
	if len(rallies) == 0 && len(summaries) == 0 {
		return fmt.Errorf("match %s: %w", matchID, ports.ErrNotFound)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PLAY\tSET\tRALLY\tROT\tATTACK\tRESULT\tSPIKER\tSETTER\tREASON")
	for _, rec := range rallies {
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
			rec.PlayID, rec.SetNumber, rec.RallyID, rec.RotationSlot, rec.AttackType, rec.Result, rec.SpikerID, rec.SetterID, rec.Reason)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "SET\tUS\tTHEM\tRESULT")
	for _, sum := range summaries {
		result := string(sum.Result)
		if sum.Result == domain.SetOpen {
			result = "open"
		}
		fmt.Fprintf(w, "%d\t%d\t%d\t%s\n", sum.SetNumber, sum.OurFinalScore, sum.OpponentFinalScore, result)
	}
	return w.Flush()
}

func writeView(out io.Writer, view domain.View) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

// resumeSet starts the current set of a resumed match with lineup, or with the stored roster of that set.
func resumeSet(ctx context.Context, st *store.MatchStore, matchID string, setNumber int, lineup domain.Lineup) (domain.Lineup, error) {
	if len(lineup.Starters) > 0 {
		return lineup, nil
	}
	stored, err := st.SetRoster(ctx, matchID, setNumber)
	if errors.Is(err, ports.ErrNotFound) && setNumber > 1 {
		// A set that never started has no roster; the previous one is the best guess.
		stored, err = st.SetRoster(ctx, matchID, setNumber-1)
	}
	if err != nil {
		return domain.Lineup{}, fmt.Errorf("no lineup for set %d: %w", setNumber, err)
	}
	return stored, nil
}
