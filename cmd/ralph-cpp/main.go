package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ralph/ralphcpp/pkg/cpp"
	"github.com/ralph/ralphcpp/pkg/cppconfig"
)

var version = "0.1.0"

var (
	includePaths   []string
	systemPaths    []string
	defineFlags    []string
	undefineFlags  []string
	preprocessOnly bool
	outputPath     string
	configPath     string
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ralph-cpp [file]",
		Short:         "ralph-cpp is a standalone C preprocessor",
		Long:          `ralph-cpp runs #include/#define/#if macro expansion over a C source file, independent of any downstream compiler stage.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := "-"
			if len(args) > 0 {
				filename = args[0]
			}
			return doPreprocess(filename, out, errOut)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.Flags().StringArrayVarP(&includePaths, "include", "I", nil, "Add directory to include search path")
	rootCmd.Flags().StringArrayVar(&systemPaths, "isystem", nil, "Add directory to system include search path")
	rootCmd.Flags().StringArrayVarP(&defineFlags, "define", "D", nil, "Define macro (NAME or NAME=VALUE)")
	rootCmd.Flags().StringArrayVarP(&undefineFlags, "undefine", "U", nil, "Undefine macro")
	rootCmd.Flags().BoolVarP(&preprocessOnly, "preprocess", "E", true, "Preprocess only, output to stdout (the only mode this binary runs in)")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write output to file instead of stdout")
	rootCmd.Flags().StringVar(&configPath, "config", "", "Load defines/undefines/search paths from a YAML config file")

	return rootCmd
}

// buildPreprocessorOptions assembles options from CLI flags, CPATH, and an
// optional config file. CPATH entries are inserted after -I directories and
// before --isystem directories, matching this implementation's documented
// search order (user paths, then CPATH, then system paths).
func buildPreprocessorOptions() cpp.PreprocessorOptions {
	var systemSearch []string
	if cpath := os.Getenv("CPATH"); cpath != "" {
		systemSearch = append(systemSearch, strings.Split(cpath, string(os.PathListSeparator))...)
	}
	systemSearch = append(systemSearch, systemPaths...)

	opts := cpp.PreprocessorOptions{
		Defines:      defineFlags,
		Undefines:    undefineFlags,
		IncludePaths: includePaths,
		SystemPaths:  systemSearch,
	}

	if configPath != "" {
		cfg, err := cppconfig.Load(configPath)
		if err == nil {
			opts = cfg.Merge(opts)
		}
	}

	return opts
}

// doPreprocess preprocesses filename ("-" for stdin) and writes the result
// to outputPath, or to out if outputPath is empty.
func doPreprocess(filename string, out, errOut io.Writer) error {
	opts := buildPreprocessorOptions()
	pp, err := cpp.NewPreprocessor(opts)
	if err != nil {
		fmt.Fprintf(errOut, "ralph-cpp: %v\n", err)
		return err
	}

	var result string
	if filename == "-" {
		content, readErr := io.ReadAll(os.Stdin)
		if readErr != nil {
			fmt.Fprintf(errOut, "ralph-cpp: reading stdin: %v\n", readErr)
			return readErr
		}
		result, err = pp.PreprocessString(string(content), "<stdin>")
	} else {
		result, err = pp.PreprocessFile(filename)
	}
	if err != nil {
		fmt.Fprintf(errOut, "ralph-cpp: %v\n", err)
		return err
	}

	if outputPath != "" && outputPath != "-" {
		return os.WriteFile(outputPath, []byte(result), 0o644)
	}
	fmt.Fprint(out, result)
	return nil
}
