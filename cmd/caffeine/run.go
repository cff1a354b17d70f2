package main

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/llir/llvm/asm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/caffeine-vm/caffeine"
	"github.com/caffeine-vm/caffeine/interp"
	"github.com/caffeine-vm/caffeine/logger"
	"github.com/caffeine-vm/caffeine/policy"
	"github.com/caffeine-vm/caffeine/solver/z3"
	"github.com/caffeine-vm/caffeine/store"
)

var runFlags struct {
	entry         string
	symbolicArgs  []string
	search        string
	strictUnknown bool
	outDir        string
	budget        int
	pointerWidth  uint
	bigEndian     bool
	logLevel      string
	journal       string
}

var runCmd = &cobra.Command{
	Use:           "run <module.ll>",
	Short:         "Symbolically execute an entry function in an LLVM module",
	Args:          cobra.ExactArgs(1),
	RunE:          cmdRunRun,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := runCmd.Flags()
	flags.StringVar(&runFlags.entry, "entry", "main", "entry function name")
	flags.StringArrayVar(&runFlags.symbolicArgs, "sym", nil, "mark an entry parameter symbolic, as name:bits (repeatable)")
	flags.StringVar(&runFlags.search, "search", "dfs", "search strategy: dfs, bfs, or random")
	flags.BoolVar(&runFlags.strictUnknown, "strict-unknown", false, "treat solver Unknown results as failure-worthy")
	flags.StringVar(&runFlags.outDir, "out", "caffeine-out", "directory to write failure reproducers to")
	flags.IntVar(&runFlags.budget, "budget", 0, "maximum number of paths to complete (0 = unbounded)")
	flags.UintVar(&runFlags.pointerWidth, "pointer-width", 64, "target pointer width in bits")
	flags.BoolVar(&runFlags.bigEndian, "big-endian", false, "target is big-endian (default little-endian)")
	flags.StringVar(&runFlags.logLevel, "log-level", "info", "log level: debug, info, warn, error, or disabled")
	flags.StringVar(&runFlags.journal, "journal", "", "optional bbolt file to journal queued contexts to, for crash-recovery audit")

	rootCmd.AddCommand(runCmd)
}

func cmdRunRun(cmd *cobra.Command, args []string) error {
	log, err := newLogger(runFlags.logLevel)
	if err != nil {
		return withExitCode(err, ExitUsage)
	}

	modulePath := args[0]
	module, err := asm.ParseFile(modulePath)
	if err != nil {
		return withExitCode(fmt.Errorf("caffeine: parsing %s: %w", modulePath, err), ExitConfig)
	}

	symArgs, err := parseSymbolicArgs(runFlags.symbolicArgs)
	if err != nil {
		return withExitCode(err, ExitUsage)
	}

	searchStore, err := newSearchStore(runFlags.search, runFlags.journal)
	if err != nil {
		return withExitCode(err, ExitUsage)
	}
	if closer, ok := searchStore.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	failLogger, err := logger.NewDir(runFlags.outDir)
	if err != nil {
		return withExitCode(err, ExitConfig)
	}
	failLogger.Log = log

	pol := policy.WithBudget(runFlags.strictUnknown, runFlags.budget)

	backend := z3.NewSolver()
	defer backend.Close()
	backend.SetLogger(log)

	engine := interp.NewEngine(module, backend, failLogger, pol, searchStore, runFlags.pointerWidth, !runFlags.bigEndian)
	engine.SetLogger(log)

	if err := engine.Start(runFlags.entry, symArgs); err != nil {
		return withExitCode(err, ExitUsage)
	}
	if err := engine.Run(cmd.Context()); err != nil {
		return withExitCode(err, ExitFailureFound)
	}

	succeeded, failed, dead, unknown := pol.Counts()
	fmt.Fprintf(os.Stdout, "paths: %d succeeded, %d failed, %d dead, %d unknown\n", succeeded, failed, dead, unknown)

	switch {
	case failed > 0:
		return withExitCode(fmt.Errorf("caffeine: %d path(s) failed", failed), ExitFailureFound)
	case unknown > 0 && runFlags.strictUnknown:
		return withExitCode(fmt.Errorf("caffeine: solver Unknown reached under strict mode"), ExitSolverUnknownStrict)
	default:
		return nil
	}
}

// parseSymbolicArgs parses a list of "name:bits" directives into
// SymbolicArg values, the way spec §6 describes entry argument-marking
// directives ("mark this parameter symbolic with name N of size S").
func parseSymbolicArgs(raw []string) ([]interp.SymbolicArg, error) {
	out := make([]interp.SymbolicArg, 0, len(raw))
	for _, s := range raw {
		name, widthStr, ok := strings.Cut(s, ":")
		if !ok {
			return nil, fmt.Errorf("caffeine: --sym must be name:bits, got %q", s)
		}
		width, err := strconv.ParseUint(widthStr, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("caffeine: --sym %q: invalid bit width: %w", s, err)
		}
		out = append(out, interp.SymbolicArg{Name: name, Width: uint(width)})
	}
	return out, nil
}

// newSearchStore picks the ExecutionContextStore a run uses. --journal
// takes priority over --search: PersistentQueue is itself a complete
// (DFS-ordered, journaled) store, not a decorator composed with another
// one, since fanning a context out to two independent stores (as Multi
// does for genuinely redundant searches) would let a single context be
// popped and run twice here.
func newSearchStore(kind string, journalPath string) (caffeine.ExecutionContextStore, error) {
	if journalPath != "" {
		return store.OpenPersistentQueue(journalPath)
	}
	switch kind {
	case "dfs":
		return store.NewDFS(), nil
	case "bfs":
		return store.NewBFS(), nil
	case "random":
		return store.NewRandom(rand.New(rand.NewSource(1))), nil
	default:
		return nil, fmt.Errorf("caffeine: unknown --search strategy: %s", kind)
	}
}

func newLogger(level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("caffeine: invalid --log-level %q: %w", level, err)
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: false}).
		Level(lvl).
		With().Timestamp().Logger(), nil
}
