package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/primordium/policyscript"
)

const (
	historyFile = ".policyscript_history"
	promptCode  = "... "
	promptInput = "inputs> "
)

func red(s string) string   { return "\x1b[31m" + s + "\x1b[0m" }
func green(s string) string { return "\x1b[32m" + s + "\x1b[0m" }

// runRepl drives an edit/invoke loop: paste a snippet, terminate it with a
// blank line, then feed it input lines of name=value pairs. `:edit` starts a
// new snippet, `:quit` exits.
func runRepl(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	histPath := filepath.Join(os.TempDir(), historyFile)
	if f, err := os.Open(histPath); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Println("policyscript REPL: blank line compiles, :edit restarts, :quit exits")

	version := 0
	for {
		src, quit := readSnippet(line)
		if quit {
			return nil
		}
		if strings.TrimSpace(src) == "" {
			continue
		}
		version++
		key := policyscript.ComponentKey{ID: "repl", Version: version}
		pol, err := policyscript.Compile(key, src, cfg)
		if err != nil {
			fmt.Println(red(policyscript.WrapErrorWithSource(err, src).Error()))
			continue
		}
		fmt.Println(green(fmt.Sprintf("compiled %s (%s)", key, pol.Name)))
		if quit := invokeLoop(line, pol); quit {
			return nil
		}
	}
}

// readSnippet accumulates lines until a blank line. Returns quit=true on
// :quit or EOF.
func readSnippet(line *liner.State) (string, bool) {
	var b strings.Builder
	for {
		text, err := line.Prompt(promptCode)
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			return "", true
		}
		if err != nil {
			fmt.Println(red(err.Error()))
			return "", false
		}
		switch strings.TrimSpace(text) {
		case ":quit":
			return "", true
		case "":
			return b.String(), false
		}
		line.AppendHistory(text)
		b.WriteString(text)
		b.WriteByte('\n')
	}
}

// invokeLoop reads name=value lines and invokes the policy on each.
func invokeLoop(line *liner.State, pol *policyscript.Policy) bool {
	for {
		text, err := line.Prompt(promptInput)
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			return true
		}
		if err != nil {
			fmt.Println(red(err.Error()))
			return false
		}
		trimmed := strings.TrimSpace(text)
		switch trimmed {
		case ":quit":
			return true
		case ":edit", "":
			return false
		}
		line.AppendHistory(text)
		inputs, err := parsePairs(strings.Fields(trimmed))
		if err != nil {
			fmt.Println(red(err.Error()))
			continue
		}
		out, err := pol.Invoke(inputs, nil, policyscript.NewSeededRand(flagSeed))
		if err != nil {
			fmt.Println(red(policyscript.WrapErrorWithSource(err, pol.Source()).Error()))
			continue
		}
		printOutputs(out)
	}
}
