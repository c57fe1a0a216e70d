// Command harrowd runs the IRC daemon core: it loads configuration and
// serves client connections until the process is killed. Grounded on
// the teacher's args.go, with the hand-rolled flag.String parsing
// replaced by github.com/spf13/cobra — the CLI framework
// sandia-minimega-minimega/phenix's cmd package uses for the same
// root-command-with-persistent-flags job.
package main

import (
	"log"
	"os"

	"github.com/harrow-ircd/harrowd/internal/config"
	"github.com/harrow-ircd/harrowd/internal/server"
	"github.com/spf13/cobra"
)

func main() {
	var configFile string

	root := &cobra.Command{
		Use:   "harrowd",
		Short: "harrowd is an RFC 2812 IRC daemon core",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configFile)
		},
	}

	root.PersistentFlags().StringVar(&configFile, "config", "harrowd.yaml", "path to the YAML configuration file")

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func run(configFile string) error {
	logger := log.New(os.Stderr, "harrowd: ", log.LstdFlags)

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	srv := server.New(cfg, logger)
	return srv.ListenAndServe()
}
