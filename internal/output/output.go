// Package output serialises extracted feature rows.
package output

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tphakala/mfcc-go/internal/conf"
	"github.com/tphakala/mfcc-go/internal/errors"
	"github.com/tphakala/mfcc-go/internal/logger"
	"github.com/tphakala/mfcc-go/internal/pipeline"
)

// Document is the serialised form of one extraction.
type Document struct {
	Source       string                `json:"source" yaml:"source"`
	SampleRate   int                   `json:"sample_rate" yaml:"sample_rate"`
	Channels     int                   `json:"channels" yaml:"channels"`
	TotalFrames  int                   `json:"total_frames" yaml:"total_frames"`
	WindowSize   int                   `json:"window_size" yaml:"window_size"`
	HopSize      int                   `json:"hop_size" yaml:"hop_size"`
	FeatureWidth int                   `json:"feature_width" yaml:"feature_width"`
	Rows         []pipeline.FeatureRow `json:"rows" yaml:"rows"`
}

// Write serialises doc to w in the given format.
func Write(w io.Writer, format string, doc *Document) error {
	var err error
	switch strings.ToLower(format) {
	case conf.OutputFormatCSV, "":
		err = writeCSV(w, doc)
	case conf.OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(doc)
	case conf.OutputFormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err = enc.Encode(doc); err == nil {
			err = enc.Close()
		}
	default:
		return errors.Newf("unsupported output format %q", format).
			Component("output").
			Category(errors.CategoryValidation).
			Context("format", format).
			Build()
	}
	if err != nil {
		return errors.New(fmt.Errorf("failed to write %s output: %w", format, err)).
			Component("output").
			Category(errors.CategoryFileIO).
			Build()
	}
	return nil
}

// writeCSV writes a header of frame,c0..cN followed by one line per row.
func writeCSV(w io.Writer, doc *Document) error {
	cw := csv.NewWriter(w)

	width := doc.FeatureWidth
	if width <= 0 && len(doc.Rows) > 0 {
		width = len(doc.Rows[0])
	}
	header := make([]string, 0, width+1)
	header = append(header, "frame")
	for i := range width {
		header = append(header, "c"+strconv.Itoa(i))
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	record := make([]string, 0, width+1)
	for i, row := range doc.Rows {
		record = append(record[:0], strconv.Itoa(i))
		for _, v := range row {
			record = append(record, strconv.FormatFloat(float64(v), 'g', -1, 32))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ResolvePath returns the file the rows of inputPath are written to.
// An empty outputPath means stdout and returns "". A directory receives a
// file named after the input with the format's extension.
func ResolvePath(outputPath, inputPath, format string) string {
	if outputPath == "" {
		return ""
	}
	ext := "." + strings.ToLower(format)
	if info, err := os.Stat(outputPath); (err == nil && info.IsDir()) || strings.HasSuffix(outputPath, string(os.PathSeparator)) {
		base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
		return filepath.Join(outputPath, base+ext)
	}
	if filepath.Ext(outputPath) == "" {
		return outputPath + ext
	}
	return outputPath
}

// TreePath returns the file the rows of inputPath are written to when the
// tree under root is extracted into outputDir. The path relative to root is
// kept together with the source extension, so day1/take.wav and
// day2/take.wav map to day1/take.wav.csv and day2/take.wav.csv.
func TreePath(outputDir, root, inputPath, format string) (string, error) {
	rel, err := filepath.Rel(root, inputPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", errors.Newf("input %s is outside of %s", inputPath, root).
			Component("output").
			Category(errors.CategoryValidation).
			Context("root", root).
			Build()
	}
	return filepath.Join(outputDir, rel+"."+strings.ToLower(format)), nil
}

// WriteFile writes doc according to settings, to stdout when no path is
// configured. It returns the path written, or "" for stdout.
func WriteFile(settings *conf.OutputSettings, doc *Document) (string, error) {
	path := ResolvePath(settings.Path, doc.Source, settings.Format)
	return path, WriteFileTo(path, settings.Format, doc)
}

// WriteFileTo writes doc to path in format, creating missing parent
// directories. An empty path writes to stdout.
func WriteFileTo(path, format string, doc *Document) error {
	if path == "" {
		return Write(os.Stdout, format, doc)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.New(fmt.Errorf("failed to create output directory: %w", err)).
				Component("output").
				Category(errors.CategoryFileIO).
				Context("path", dir).
				Build()
		}
	}

	file, err := os.Create(path) //nolint:gosec // output path comes from user configuration
	if err != nil {
		return errors.New(fmt.Errorf("failed to create file %s: %w", path, err)).
			Component("output").
			Category(errors.CategoryFileIO).
			Build()
	}

	bw := bufio.NewWriter(file)
	if err := Write(bw, format, doc); err != nil {
		_ = file.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = file.Close()
		return errors.New(fmt.Errorf("failed to flush %s: %w", path, err)).
			Component("output").
			Category(errors.CategoryFileIO).
			Build()
	}
	if err := file.Close(); err != nil {
		return errors.New(fmt.Errorf("failed to close %s: %w", path, err)).
			Component("output").
			Category(errors.CategoryFileIO).
			Build()
	}

	logger.Global().Module("output").Info("feature rows written",
		logger.String("path", path),
		logger.String("format", format),
		logger.Int("rows", len(doc.Rows)))
	return nil
}
