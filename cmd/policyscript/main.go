// policyscript is the developer CLI for the policy sandbox: validate a
// snippet, run it with explicit inputs, or iterate interactively.
package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/primordium/policyscript"
)

const appName = "policyscript"

var (
	flagConfig string
	flagSeed   int64
	flagInputs []string
	flagParams []string
)

func main() {
	root := &cobra.Command{
		Use:           appName,
		Short:         "validate and run sandboxed policy snippets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "YAML config file with evaluator budgets")

	check := &cobra.Command{
		Use:   "check <file>",
		Short: "validate a snippet against the sandbox grammar",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheck,
	}

	run := &cobra.Command{
		Use:   "run <file>",
		Short: "compile a snippet and invoke it once",
		Args:  cobra.ExactArgs(1),
		RunE:  runRun,
	}
	run.Flags().Int64Var(&flagSeed, "seed", 1, "rng seed for the invocation")
	run.Flags().StringArrayVar(&flagInputs, "input", nil, "input as name=value (repeatable)")
	run.Flags().StringArrayVar(&flagParams, "param", nil, "tunable param as name=value (repeatable)")

	repl := &cobra.Command{
		Use:   "repl",
		Short: "interactively edit and invoke a snippet",
		Args:  cobra.NoArgs,
		RunE:  runRepl,
	}
	repl.Flags().Int64Var(&flagSeed, "seed", 1, "rng seed for each invocation")

	root.AddCommand(check, run, repl)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (policyscript.Config, error) {
	if flagConfig == "" {
		return policyscript.DefaultConfig(), nil
	}
	return policyscript.LoadConfig(flagConfig)
}

func runCheck(cmd *cobra.Command, args []string) error {
	src, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	if _, err := policyscript.ValidateSource(string(src)); err != nil {
		return policyscript.WrapErrorWithName(err, args[0], string(src))
	}
	fmt.Println("ok")
	return nil
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	src, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	inputs, err := parsePairs(flagInputs)
	if err != nil {
		return err
	}
	params, err := parsePairs(flagParams)
	if err != nil {
		return err
	}

	key := policyscript.ComponentKey{ID: args[0], Version: 1}
	pol, err := policyscript.Compile(key, string(src), cfg)
	if err != nil {
		return policyscript.WrapErrorWithName(err, args[0], string(src))
	}
	out, err := pol.Invoke(inputs, params, policyscript.NewSeededRand(flagSeed))
	if err != nil {
		return policyscript.WrapErrorWithName(err, args[0], string(src))
	}
	printOutputs(out)
	return nil
}

// parsePairs turns repeated name=value flags into a float mapping.
func parsePairs(pairs []string) (map[string]float64, error) {
	out := map[string]float64{}
	for _, p := range pairs {
		name, val, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("expected name=value, got %q", p)
		}
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, fmt.Errorf("value of %q is not a number: %q", name, val)
		}
		out[strings.TrimSpace(name)] = f
	}
	return out, nil
}

func printOutputs(out map[string]float64) {
	keys := make([]string, 0, len(out))
	for k := range out {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s = %g\n", k, out[k])
	}
}
