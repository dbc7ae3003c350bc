// Command whisper-server accepts audio uploads over HTTP, transcribes them
// with whisper.cpp and streams the result back as server-sent events.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kbukum/whisperserver/app"
	"github.com/kbukum/whisperserver/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootFlags struct {
	configFile string
	envFile    string
}

func (f *rootFlags) load() (*app.Config, error) {
	return app.Load(app.LoadOptions{ConfigFile: f.configFile, EnvFile: f.envFile})
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           version.ServiceName,
		Short:         "Transcribe uploaded audio with whisper.cpp over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags)
		},
	}
	root.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "config file (default: search ./cmd/whisper-server, ./config, .)")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", "", ".env file loaded before the environment")

	root.AddCommand(
		serveCmd(flags),
		checkCmd(flags),
		transcribeCmd(),
		versionCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Get()
			if short {
				fmt.Fprintln(cmd.OutOrStdout(), info.Short())
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), info.String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "print the version only")
	return cmd
}
