package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/picodoc/picodoc-go"
	"github.com/picodoc/picodoc-go/config"
	"github.com/picodoc/picodoc-go/internal/errors"
	"github.com/picodoc/picodoc-go/render"
)

var (
	outputFile    string
	envFlags      []string
	cssFlags      []string
	jsFlags       []string
	metaFlags     []string
	configFile    string
	filterPaths   []string
	filterTimeout float64
	watchMode     bool
	debugAST      bool
	fragmentMode  bool
	noColor       bool

	exitCode int
)

var rootCmd = &cobra.Command{
	Use:           "picodoc <input>",
	Short:         "PicoDoc markup language compiler",
	Long:          "Compiles PicoDoc markup (.pdoc) to HTML.",
	Version:       picodoc.Version,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := resolveOptions(cmd, args[0])
		if err != nil {
			return err
		}
		if watchMode {
			return runWatch(opts)
		}
		exitCode = runBuild(opts)
		return nil
	},
}

// Execute runs the CLI and returns the process exit code: 0 on
// success, 1 for lex and parse errors, 2 for usage and evaluation
// errors.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	return exitCode
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	flags.StringArrayVarP(&envFlags, "env", "e", nil, "Set environment variable NAME=VALUE (repeatable)")
	flags.StringArrayVar(&cssFlags, "css", nil, "CSS file to include (repeatable)")
	flags.StringArrayVar(&jsFlags, "js", nil, "JS file to include (repeatable)")
	flags.StringArrayVar(&metaFlags, "meta", nil, "Meta tag NAME=VALUE to add (repeatable)")
	flags.StringVar(&configFile, "config", "", "Config file (default: auto-discover picodoc.toml)")
	flags.StringArrayVar(&filterPaths, "filter-path", nil, "Extra filter search directory (repeatable)")
	flags.Float64Var(&filterTimeout, "filter-timeout", 0, "Filter execution timeout in seconds (default: 5)")
	flags.BoolVar(&watchMode, "watch", false, "Watch for changes and recompile")
	flags.BoolVar(&debugAST, "debug-ast", false, "Dump the expanded AST to stderr")
	flags.BoolVar(&fragmentMode, "fragment", false, "Emit body content only, no HTML scaffolding")
	flags.BoolVar(&noColor, "no-color", false, "Disable colored error output")

	rootCmd.AddCommand(replCmd)
}

// options is the merged result of config file and CLI flags. Flags
// win over config values.
type options struct {
	inputFile     string
	outputFile    string
	env           map[string]string
	cssFiles      []string
	jsFiles       []string
	metaTags      []render.MetaTag
	filterPaths   []string
	filterTimeout time.Duration
	debugAST      bool
	fragment      bool
}

func resolveOptions(cmd *cobra.Command, input string) (*options, error) {
	inputDir := filepath.Dir(input)

	cfg, err := config.LoadOrDefault(configFile, inputDir)
	if err != nil {
		return nil, err
	}

	env := map[string]string{}
	for k, v := range cfg.Env {
		env[k] = v
	}
	for _, raw := range envFlags {
		name, value, err := splitPair(raw, "env")
		if err != nil {
			return nil, err
		}
		env[name] = value
	}

	var metaTags []render.MetaTag
	for k, v := range cfg.Meta {
		metaTags = append(metaTags, render.MetaTag{Name: k, Content: v})
	}
	for _, raw := range metaFlags {
		name, value, err := splitPair(raw, "meta")
		if err != nil {
			return nil, err
		}
		metaTags = append(metaTags, render.MetaTag{Name: name, Content: value})
	}

	timeout := 5 * time.Second
	if cfg.Filters.Timeout > 0 {
		timeout = time.Duration(cfg.Filters.Timeout * float64(time.Second))
	}
	if cmd.Flags().Changed("filter-timeout") {
		timeout = time.Duration(filterTimeout * float64(time.Second))
	}

	return &options{
		inputFile:     input,
		outputFile:    outputFile,
		env:           env,
		cssFiles:      append(append([]string{}, cfg.CSS.Files...), cssFlags...),
		jsFiles:       append(append([]string{}, cfg.JS.Files...), jsFlags...),
		metaTags:      metaTags,
		filterPaths:   append(append([]string{}, cfg.Filters.Paths...), filterPaths...),
		filterTimeout: timeout,
		debugAST:      debugAST,
		fragment:      fragmentMode,
	}, nil
}

func splitPair(raw, kind string) (string, string, error) {
	name, value, ok := strings.Cut(raw, "=")
	if !ok {
		return "", "", fmt.Errorf("invalid %s format (expected NAME=VALUE): %s", kind, raw)
	}
	return name, value, nil
}

// exitCodeFor maps an error to the process exit code. Evaluation
// errors exit 2, everything structural exits 1.
func exitCodeFor(err error) int {
	if perr, ok := err.(*errors.Error); ok {
		switch perr.Kind {
		case errors.KindEval, errors.KindConfig:
			return 2
		}
	}
	return 1
}
