package main

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/unixpickle/anylisten/anylas"
	"github.com/unixpickle/serializer"
)

func newInitCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a randomized model from a configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.configPath == "" || flags.modelPath == "" {
				return errors.New("both --config and --model are required")
			}
			cfg, err := anylas.LoadConfig(flags.configPath)
			if err != nil {
				return err
			}
			l, err := anylas.NewListener(*cfg)
			if err != nil {
				return err
			}
			data, err := serializer.SerializeAny(l)
			if err != nil {
				return err
			}
			if err := writeFile(flags.modelPath, data); err != nil {
				return err
			}
			logrus.WithFields(logrus.Fields{
				"path":       flags.modelPath,
				"parameters": len(l.Parameters()),
			}).Info("saved model")
			return nil
		},
	}
}

func newEncodeCmd(flags *globalFlags) *cobra.Command {
	var inputPath, outputPath string
	var randomSize, randomSteps int
	var seed int64
	var training bool

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode a batch of features",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputPath == "" {
				return errors.New("--output is required")
			}
			l, err := flags.loadListener()
			if err != nil {
				return err
			}
			l.SetTraining(training)

			var batch *FeatureBatch
			if inputPath != "" {
				batch, err = readBatch(inputPath)
				if err != nil {
					return err
				}
			} else {
				if randomSize <= 0 || randomSteps <= 0 {
					return errors.New("--input or a positive --random-batch and " +
						"--random-steps is required")
				}
				gen := rand.New(rand.NewSource(seed))
				batch = randomBatch(gen, randomSize, randomSteps, l.Config.InputSize)
			}

			in, err := batch.Tensor(l.Config.Creator, l.Config.InputSize)
			if err != nil {
				return err
			}
			start := time.Now()
			res, err := l.Forward(in, batch.Lengths)
			if err != nil {
				return err
			}
			enc := &Encoding{
				Path:    res.Path,
				Time:    res.Time,
				Width:   res.Width,
				Lengths: res.Lengths,
				Output:  unflatten(res.Output.Output(), len(batch.Lengths), res.Width),
			}
			for _, h := range res.Hidden {
				enc.Hidden = append(enc.Hidden,
					unflatten(h.Output(), 1, l.Config.HiddenDim)[0])
			}
			logrus.WithFields(logrus.Fields{
				"batch":    len(batch.Lengths),
				"time":     res.Time,
				"width":    res.Width,
				"duration": time.Since(start),
			}).Info("encoded batch")
			return writeMsgpack(outputPath, enc)
		},
	}
	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "feature batch (msgpack)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output encoding (msgpack)")
	cmd.Flags().IntVar(&randomSize, "random-batch", 0, "random batch size")
	cmd.Flags().IntVar(&randomSteps, "random-steps", 0, "random batch timesteps")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random batch seed")
	cmd.Flags().BoolVar(&training, "training", false, "encode in training mode")
	return cmd
}

func newShapesCmd(flags *globalFlags) *cobra.Command {
	var lengths []int
	cmd := &cobra.Command{
		Use:   "shapes",
		Short: "Print output shapes for some input lengths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(lengths) == 0 {
				return errors.New("--lengths is required")
			}
			l, err := flags.loadListener()
			if err != nil {
				return err
			}
			steps := 0
			for _, length := range lengths {
				if length > steps {
					steps = length
				}
			}
			outSteps, width := l.OutputShape(steps)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "path: %s\n", l.Config.ConvType)
			fmt.Fprintf(out, "rnn input width: %d\n", l.RNNInputWidth)
			fmt.Fprintf(out, "output: %d x %d\n", outSteps, width)
			fmt.Fprintf(out, "output lengths: %s\n", joinInts(l.OutputLengths(lengths)))
			return nil
		},
	}
	cmd.Flags().IntSliceVar(&lengths, "lengths", nil, "input sequence lengths")
	return cmd
}

func joinInts(nums []int) string {
	var parts []string
	for _, x := range nums {
		parts = append(parts, fmt.Sprint(x))
	}
	return strings.Join(parts, ",")
}
