package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tsawler/go-marker/device"
	"github.com/tsawler/go-marker/marker"
	"github.com/tsawler/go-marker/vision/dataloader"
	"github.com/tsawler/go-marker/vision/dataset"
	"github.com/tsawler/go-marker/vision/preprocessing"
)

func newCreateCommand() *cobra.Command {
	var (
		dev    string
		width  int
		height int
		depth  int
	)

	cmd := &cobra.Command{
		Use:   "create <model-file>",
		Short: "Create a new untrained model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			if !device.Probe(dev) {
				return fmt.Errorf("device %q is not available", dev)
			}

			m, err := marker.New(dev, width, height, depth)
			if err != nil {
				return err
			}
			if err := m.Save(args[0]); err != nil {
				return err
			}

			logger.Info("model created",
				"path", args[0],
				"width", m.Width(),
				"height", m.Height(),
				"depth", m.Depth(),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&dev, "device", "cpu", "compute device")
	cmd.Flags().IntVar(&width, "width", 512, "working canvas width")
	cmd.Flags().IntVar(&height, "height", 512, "working canvas height")
	cmd.Flags().IntVar(&depth, "depth", 4, "encoder/decoder depth")
	return cmd
}

func newTrainCommand() *cobra.Command {
	var (
		dev       string
		dataDir   string
		epochs    int
		batchSize int
		workers   int
		sortMode  string
		seed      int64
		logEvery  int
	)

	cmd := &cobra.Command{
		Use:   "train <model-file>",
		Short: "Train a model on paired image/mask files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			m, err := marker.Load(dev, args[0])
			if err != nil {
				return err
			}

			ds, err := dataset.NewPairDataset(dataDir, dataset.SortMode(sortMode))
			if err != nil {
				return err
			}
			if ds.Len() == 0 {
				return fmt.Errorf("no image/mask pairs found in %s", dataDir)
			}
			logger.Info("dataset loaded", "dir", dataDir, "samples", ds.Len())

			config := dataloader.DefaultConfig()
			config.BatchSize = batchSize
			config.Width = m.Width()
			config.Height = m.Height()
			config.NumWorkers = workers
			config.Seed = seed
			loader, err := dataloader.NewDataLoader(ds, config)
			if err != nil {
				return err
			}

			if logEvery > 0 {
				m.SetProgress(func(batch int, loss float64) {
					if batch%logEvery == 0 {
						logger.Info("batch complete", "batch", batch, "loss", loss)
					}
				})
			}

			for epoch := 1; epoch <= epochs; epoch++ {
				telemetry, err := m.TrainEpoch(loader)
				if err != nil {
					return fmt.Errorf("epoch %d failed: %v", epoch, err)
				}
				logger.Info("epoch complete",
					"epoch", epoch,
					"loss", telemetry.Loss,
					"iterations", telemetry.Iterations,
					"duration", telemetry.Duration.String(),
				)

				if err := m.Save(args[0]); err != nil {
					return fmt.Errorf("failed to save after epoch %d: %v", epoch, err)
				}
				loader.Reset()
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dev, "device", "cpu", "compute device")
	cmd.Flags().StringVar(&dataDir, "data", "", "directory of paired image/mask files")
	cmd.Flags().IntVar(&epochs, "epochs", 1, "number of training epochs")
	cmd.Flags().IntVar(&batchSize, "batch-size", 4, "samples per batch")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel decode workers (0 = all CPUs)")
	cmd.Flags().StringVar(&sortMode, "sort", "name", "dataset order: name, date or size")
	cmd.Flags().Int64Var(&seed, "seed", 0, "shuffle seed")
	cmd.Flags().IntVar(&logEvery, "log-every", 0, "log progress every N batches (0 = epochs only)")
	cmd.MarkFlagRequired("data")
	return cmd
}

func newMarkCommand() *cobra.Command {
	var (
		dev    string
		output string
	)

	cmd := &cobra.Command{
		Use:   "mark <model-file> <image>",
		Short: "Segment an image and write the mask as a PNG",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			m, err := marker.Load(dev, args[0])
			if err != nil {
				return err
			}

			img, err := preprocessing.LoadImageTensor(args[1], 3)
			if err != nil {
				return err
			}

			mask, err := m.Mark(img)
			if err != nil {
				return err
			}

			if err := preprocessing.WriteMaskPNG(mask, output); err != nil {
				return err
			}
			logger.Info("mask written", "image", args[1], "output", output)
			return nil
		},
	}

	cmd.Flags().StringVar(&dev, "device", "cpu", "compute device")
	cmd.Flags().StringVarP(&output, "output", "o", "mask.png", "output PNG path")
	return cmd
}

func newInfoCommand() *cobra.Command {
	var dev string

	cmd := &cobra.Command{
		Use:   "info <model-file>",
		Short: "Print a model's dimensions and training progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := marker.Load(dev, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("size:        %d x %d\n", m.Width(), m.Height())
			fmt.Printf("depth:       %d\n", m.Depth())
			fmt.Printf("loss:        %g\n", m.Loss())
			fmt.Printf("iterations:  %d\n", m.Iterations())
			return nil
		},
	}

	cmd.Flags().StringVar(&dev, "device", "cpu", "compute device")
	return cmd
}
