package cli

import (
	"fmt"
	"io"

	rosbag "github.com/lherman-cs/rosa-bag"
	"github.com/lherman-cs/rosa-bag/internal/config"
	"github.com/lherman-cs/rosa-bag/internal/export"
	"github.com/lherman-cs/rosa-bag/internal/inspect"
	"github.com/lherman-cs/rosa-bag/internal/topics"
	"go.uber.org/zap"
)

// Run opens the bag once and runs every selected operation on it. The first error aborts
// the run.
func Run(opts Options, cfg *config.Config, logger *zap.Logger, stdout io.Writer) error {
	mode, err := opts.Resolve()
	if err != nil {
		return err
	}

	logger.Debug("resolved operations", zap.Stringer("mode", mode), zap.String("bag", opts.Bag))

	bag, err := rosbag.Open(opts.Bag)
	if err != nil {
		return err
	}
	defer bag.Close()

	if mode.Has(ModeInfo) {
		info, err := bag.Info()
		if err != nil {
			return fmt.Errorf("reading %s: %w", opts.Bag, err)
		}

		if err := inspect.WriteInfo(stdout, info); err != nil {
			return err
		}
	}

	if mode.Has(ModePrint) {
		style, err := inspect.ParseStyle(cfg.Print.Style)
		if err != nil {
			return err
		}

		var selected []string
		if opts.Topic != "" {
			selected = append(selected, opts.Topic)
		}

		dumper := inspect.NewDumper(style, cfg.Print.Color, logger)
		if _, err := dumper.Dump(stdout, bag, selected...); err != nil {
			return fmt.Errorf("reading %s: %w", opts.Bag, err)
		}
	}

	if mode.Has(ModeExport) || mode.Has(ModeExportAll) {
		compression, err := export.ParseCompression(cfg.Export.Compression)
		if err != nil {
			return err
		}

		exporter := export.New(topics.NewTable(cfg.Topics.Namespace), export.Options{
			Dir:         cfg.Export.Dir,
			Name:        opts.ExportName,
			Compression: compression,
		}, logger)

		if mode.Has(ModeExport) {
			_, err = exporter.Topic(bag, opts.Topic)
		} else {
			_, err = exporter.All(bag)
		}
		if err != nil {
			return err
		}
	}

	return nil
}
