package analysis

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tphakala/mfcc-go/internal/conf"
	"github.com/tphakala/mfcc-go/internal/errors"
	"github.com/tphakala/mfcc-go/internal/logger"
	"github.com/tphakala/mfcc-go/internal/myaudio"
	"github.com/tphakala/mfcc-go/internal/output"
)

// DirectoryAnalysis extracts features from every supported audio file under
// dir. One feature module is shared by all files. With an output directory
// configured, the rows of dir/a/b.wav go to <output>/a/b.wav.<format>. A
// failing file is logged and skipped; the returned error joins all failures.
func DirectoryAnalysis(ctx context.Context, settings *conf.Settings, dir string, opts Options) error {
	files, err := findAudioFiles(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		GetLogger().Warn("no audio files found", logger.String("dir", dir))
		return nil
	}

	// Several inputs cannot share one output file.
	if settings.Output.Path != "" {
		if err := os.MkdirAll(settings.Output.Path, 0o755); err != nil {
			return errors.New(fmt.Errorf("failed to create output directory: %w", err)).
				Component("analysis").
				Category(errors.CategoryFileIO).
				Context("path", settings.Output.Path).
				Build()
		}
	}

	extractor, err := NewExtractor(settings, opts.Metrics)
	if err != nil {
		return err
	}
	defer closeExtractor(extractor)

	var failures []error
	for i, path := range files {
		if ctx.Err() != nil {
			return errors.Join(append(failures, ErrAnalysisCanceled)...)
		}

		GetLogger().Info("processing file",
			logger.String("path", path),
			logger.Int("index", i+1),
			logger.Int("total", len(files)))

		outputPath := ""
		if settings.Output.Path != "" {
			if outputPath, err = output.TreePath(settings.Output.Path, dir, path, settings.Output.Format); err != nil {
				failures = append(failures, fmt.Errorf("%s: %w", relativeName(dir, path), err))
				continue
			}
		}

		if err := analyzeFile(ctx, extractor, settings, path, outputPath, opts); err != nil {
			if ctx.Err() != nil {
				return errors.Join(append(failures, ErrAnalysisCanceled, err)...)
			}
			GetLogger().Error("file extraction failed",
				logger.String("path", path),
				logger.Error(err))
			failures = append(failures, fmt.Errorf("%s: %w", relativeName(dir, path), err))
		}
	}

	if len(failures) > 0 {
		GetLogger().Warn("directory extraction finished with failures",
			logger.Int("failed", len(failures)),
			logger.Int("total", len(files)))
	}
	return errors.Join(failures...)
}

// findAudioFiles returns the supported audio files under dir in lexical order.
func findAudioFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if isSupportedAudioFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.New(fmt.Errorf("error walking directory %s: %w", dir, err)).
			Component("analysis").
			Category(errors.CategoryFileIO).
			Context("path", dir).
			Build()
	}
	slices.Sort(files)
	return files, nil
}

// relativeName names path relative to dir for error messages.
func relativeName(dir, path string) string {
	if rel, err := filepath.Rel(dir, path); err == nil {
		return rel
	}
	return filepath.Base(path)
}

func isSupportedAudioFile(path string) bool {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case myaudio.FormatWAV, myaudio.FormatFLAC:
		return true
	default:
		return false
	}
}
