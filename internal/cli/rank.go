package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/guiyumin/vscribe/internal/core/batch"
	"github.com/guiyumin/vscribe/internal/core/config"
	"github.com/guiyumin/vscribe/internal/core/group"
	"github.com/guiyumin/vscribe/internal/core/media"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rankCmd = &cobra.Command{
	Use:   "rank <file>",
	Short: "Run one rank of a distributed transcription",
	Long: `Run one rank of a transcription spread over several processes or hosts.

Every rank runs the same command. Rank 0 splits the input, shares the
segment list through Redis, collects the other ranks' results and writes
the transcript. The work directory must be on storage every rank can read
at the same path.

Rank and size come from --rank/--size, VSCRIBE_RANK/VSCRIBE_SIZE, or the
variables set by mpirun (OMPI_COMM_WORLD_RANK, PMI_RANK and their _SIZE
counterparts). All ranks of one run must agree on --run-id; by default it
is derived from the input path and chunk length.

Each rank transcribes its share in --threads child processes (one by
default); --substrate threads runs them as goroutines sharing one model. A
rank that has not reported within --timeout loses its segments, which are
listed as missing while the rest of the transcript is still written.

Examples:
  mpirun -n 4 vscribe rank /shared/talk.mp3 --redis redis:6379 --work-dir /shared/tmp
  VSCRIBE_RANK=1 VSCRIBE_SIZE=2 vscribe rank /shared/talk.mp3 --run-id talk-1`,
	Args: cobra.ExactArgs(1),
	Run:  runRank,
}

func init() {
	addRankFlags(rankCmd)
	registerRunCompletions(rankCmd)
	rootCmd.AddCommand(rankCmd)
}

func addRankFlags(cmd *cobra.Command) {
	addRunFlags(cmd)
	f := cmd.Flags()
	f.String("substrate", "", "local substrate of this rank: threads or processes (default: processes)")
	f.Int("rank", 0, "this process's rank")
	f.Int("size", 1, "number of ranks")
	f.String("redis", "", "Redis address shared by every rank (default: localhost:6379)")
	f.Int("redis-db", 0, "Redis database")
	f.String("prefix", "", "Redis key prefix (default: vscribe)")
	f.Duration("timeout", 0, "how long to wait for another rank (default: 30m0s)")
	f.String("run-id", "", "id shared by every rank of this run")
}

// rankSettings resolves a rank's settings. Unless told otherwise a rank
// transcribes its share in --threads child processes of its own.
func rankSettings(v *viper.Viper) (settings, error) {
	s := readSettings(v).withSubstrate(config.SubstrateProcesses)
	return s, s.validate()
}

// bindRankEnv maps launcher variables onto the rank and size keys.
func bindRankEnv(v *viper.Viper) {
	_ = v.BindEnv("rank", "VSCRIBE_RANK", "OMPI_COMM_WORLD_RANK", "PMI_RANK")
	_ = v.BindEnv("size", "VSCRIBE_SIZE", "OMPI_COMM_WORLD_SIZE", "PMI_SIZE")
	_ = v.BindEnv("run-id", "VSCRIBE_RUN_ID")
}

// rankRunID names a run after its input so that ranks started without a
// shared --run-id still agree.
func rankRunID(input string, chunk time.Duration) string {
	abs, err := filepath.Abs(input)
	if err != nil {
		abs = input
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("vscribe:%s:%s", abs, chunk))).String()
}

func groupConfig(v *viper.Viper, runID string) group.Config {
	return group.Config{
		Addr:     v.GetString("redis"),
		Password: v.GetString("redis-password"),
		DB:       v.GetInt("redis-db"),
		Prefix:   v.GetString("prefix"),
		RunID:    runID,
		Rank:     v.GetInt("rank"),
		Size:     v.GetInt("size"),
		Timeout:  v.GetDuration("timeout"),
	}
}

func runRank(cmd *cobra.Command, args []string) {
	input := args[0]

	cfg, err := loadConfig()
	if err != nil {
		fatal(err)
	}
	v, err := newViper(cmd, cfg)
	if err != nil {
		fatal(err)
	}
	bindRankEnv(v)
	s, err := rankSettings(v)
	if err != nil {
		fatal(err)
	}

	runID := v.GetString("run-id")
	if runID == "" {
		runID = rankRunID(input, s.Chunk)
	}
	gcfg := groupConfig(v, runID)

	log := newLogger().With("rank", gcfg.Rank)

	ctx := context.Background()
	g, err := group.New(ctx, gcfg, log)
	if err != nil {
		fatal(err)
	}

	bcfg, err := s.batchConfig(runID, 1)
	if err != nil {
		fatal(err)
	}
	pools, err := newPoolFactory(s.Substrate, s.transcriberOptions(), s.Threads, log)
	if err != nil {
		fatal(err)
	}

	var split batch.Splitter
	if gcfg.Rank == 0 {
		split = media.NewSource(s.mediaOptions(), log)
	}

	log.Infow("joining run", "run", runID, "size", gcfg.Size, "substrate", s.Substrate, "input", input)
	report, err := batch.NewRunner(split, pools, bcfg, log).RunRank(ctx, input, g)
	if cerr := g.Close(ctx); cerr != nil {
		log.Warnw("failed to close group", "error", cerr)
	}
	log.Sync()

	// Only rank 0 sees the whole transcript.
	finishRun(report, err, s.Strict && gcfg.Rank == 0)
}
