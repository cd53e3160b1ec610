package main

import (
	"errors"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/unixpickle/anylisten/anylas"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

type globalFlags struct {
	configPath string
	modelPath  string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "listen",
		Short: "Encode acoustic features with a Listener",
		Long: `listen builds convolutional-recurrent Listener encoders.

A Listener is described by a YAML configuration (see anylas.Config) and can
be saved to a model file with "listen init". Either a configuration or a
model can be used to encode feature batches.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flags.verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "",
		"listener configuration (YAML)")
	root.PersistentFlags().StringVarP(&flags.modelPath, "model", "m", "",
		"serialized listener")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false,
		"log at debug level")

	root.AddCommand(newInitCmd(flags), newEncodeCmd(flags), newShapesCmd(flags))
	return root
}

// loadListener creates a Listener from the model file if
// one is given, or from the configuration otherwise.
func (g *globalFlags) loadListener() (*anylas.Listener, error) {
	if g.modelPath != "" {
		data, err := os.ReadFile(g.modelPath)
		if err != nil {
			return nil, essentials.AddCtx("load model", err)
		}
		var l *anylas.Listener
		if err := serializer.DeserializeAny(data, &l); err != nil {
			return nil, essentials.AddCtx("load model", err)
		}
		logrus.WithField("path", g.modelPath).Debug("loaded model")
		return l, nil
	}
	if g.configPath == "" {
		return nil, errors.New("either --config or --model is required")
	}
	cfg, err := anylas.LoadConfig(g.configPath)
	if err != nil {
		return nil, err
	}
	return anylas.NewListener(*cfg)
}
