package cmd

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/josephlewis42/rush/core"
	"github.com/josephlewis42/rush/core/config"
	"github.com/spf13/cobra"
)

var (
	cfgPath       string
	readStdin     bool
	useTerminal   bool
	commandString string

	// exitCode is the status the process exits with once the command returns.
	exitCode int
)

var errNotTerminal = errors.New("standard input and output must be a terminal, use -i to read commands from standard input")

func loadConfig() (*config.Configuration, error) {
	return config.LoadOrDefault(cfgPath)
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "rush")
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rush [-i|-t] [-c COMMAND] [SCRIPT [ARGS...]]",
	Short: "A small command shell",
	Long: `rush runs commands from a terminal, a script or a string.

With a SCRIPT it runs each statement and stops at the first one that fails.
With -i it sources SCRIPT, if given, then runs lines from standard input.
With -t it sources SCRIPT, if given, then starts the interactive terminal.
With -c it runs COMMAND, ARGS become the positional parameters.`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		configuration, err := loadConfig()
		if err != nil {
			return err
		}

		sh, err := core.NewShell(configuration, os.Stdin, os.Stdout, os.Stderr)
		if err != nil {
			return err
		}
		defer sh.Close()

		switch {
		case cmd.Flags().Changed("command"):
			exitCode = sh.RunCommandString(commandString, args)

		case readStdin:
			if len(args) > 0 {
				sh.Source(args[0])
			}
			exitCode = sh.RunReader(os.Stdin)

		case useTerminal:
			if len(args) > 0 {
				sh.Source(args[0])
			}
			exitCode = sh.RunInteractive()

		case len(args) > 0:
			exitCode = sh.RunScript(args[0], args[1:])

		default:
			if !core.IsTerminal(os.Stdin) || !core.IsTerminal(os.Stdout) {
				return errNotTerminal
			}
			sh.SourceStartup()
			exitCode = sh.RunInteractive()
		}

		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
	os.Exit(exitCode)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigPath(), "config directory")

	flags := rootCmd.Flags()
	flags.SetInterspersed(false)
	flags.BoolVarP(&readStdin, "stdin", "i", false, "read commands from standard input after sourcing SCRIPT")
	flags.BoolVarP(&useTerminal, "terminal", "t", false, "start the terminal after sourcing SCRIPT")
	flags.StringVarP(&commandString, "command", "c", "", "run COMMAND and exit")
}
