package convert

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"gj2kml/archive"
	"gj2kml/config"
	"gj2kml/geojson"
	"gj2kml/kml"
	"gj2kml/misc"
	"gj2kml/state"
)

const bytesPerMB = 1024 * 1024

// Run is the action of the root command.
func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	if cmd.NArg() != 3 {
		// not an error, just tell how to use the program
		printUsage(cmd)
		return nil
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("convert")

	src, prefix := cmd.Args().Get(0), cmd.Args().Get(1)
	limit, err := parseLimit(cmd.Args().Get(2))
	if err != nil {
		return err
	}

	var o state.Overrides
	if cmd.IsSet("overwrite") {
		v := cmd.Bool("overwrite")
		o.Overwrite = &v
	}
	if cmd.IsSet("transliterate") {
		v := cmd.Bool("transliterate")
		o.Transliterate = &v
	}
	if mode := cmd.String("split"); len(mode) > 0 {
		m := config.SplitMode(mode)
		o.SplitMode = &m
	}
	if err := env.ResolveSettings(o); err != nil {
		log.Warn("Ignoring requested split mode", zap.Error(err))
	}

	log.Info("Processing starting",
		zap.String("source", src),
		zap.String("prefix", prefix),
		zap.Int64("limit", limit),
		zap.Stringer("mode", env.SplitMode))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	input := src
	if zpath, _, err := archive.Locate(src); err == nil && len(zpath) > 0 {
		// keep the whole archive, entry could not be stored by itself
		input = zpath
	}
	env.Rpt.Store(filepath.ToSlash(filepath.Join("input", filepath.Base(input))), input)

	outputs, err := Convert(ctx, src, prefix, limit, &env.Cfg.Document, Options{
		Mode:          env.SplitMode,
		Overwrite:     env.Overwrite,
		Transliterate: env.Transliterate,
	}, log)

	files := make([]string, 0, len(outputs))
	for _, o := range outputs {
		files = append(files, o.Path)
		env.Rpt.Store(filepath.ToSlash(filepath.Join("output", filepath.Base(o.Path))), o.Path)
	}
	if err != nil {
		if len(files) > 0 {
			log.Warn("Some KML files were written before failure", zap.Strings("files", files))
		}
		return err
	}

	log.Info("KML files created successfully", zap.Strings("files", files))
	return nil
}

// Convert loads GeoJSON from src and writes its features into one or more KML
// files named <prefix>_<N>.kml trying to keep each file within limit bytes.
// It returns files written, even when error is returned.
func Convert(ctx context.Context, src, prefix string, limit int64, cfg *config.DocumentConfig, opts Options, log *zap.Logger) ([]Output, error) {
	fc, err := geojson.Load(src, log)
	if err != nil {
		return nil, err
	}

	if prefix, err = buildOutputPrefix(prefix, opts.Transliterate); err != nil {
		return nil, err
	}

	s, err := NewSplitter(prefix, limit, kml.NewBuilder(cfg, log), opts, log)
	if err != nil {
		return nil, err
	}
	for _, f := range fc.Features {
		if err := ctx.Err(); err != nil {
			return s.Outputs(), err
		}
		if err := s.Add(f); err != nil {
			return s.Outputs(), err
		}
	}
	if err := s.Close(); err != nil {
		return s.Outputs(), err
	}
	return s.Outputs(), nil
}

// parseLimit converts size limit in whole megabytes into bytes.
func parseLimit(s string) (int64, error) {
	mb, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("file size limit '%s' is not a whole number of megabytes: %w", s, err)
	}
	if mb < 0 {
		return 0, fmt.Errorf("file size limit '%s' is negative", s)
	}
	if mb > math.MaxInt64/bytesPerMB {
		return 0, fmt.Errorf("file size limit '%s' is too large", s)
	}
	return mb * bytesPerMB, nil
}

func printUsage(cmd *cli.Command) {
	var out io.Writer = os.Stdout
	if w := cmd.Root().Writer; w != nil {
		out = w
	}
	fmt.Fprintf(out, "Usage: %s <inputGeoJSONFilePath> <outputKMLFilePrefix> <fileSizeLimitInMB>\n", misc.GetAppName())
}
