package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/stylr/migrate/internal/conf"
	"github.com/stylr/migrate/internal/errors"
	"github.com/stylr/migrate/internal/logger"
)

// CompressionStats records the outcome of one compression attempt. Partial
// stats are returned even when the tool fails and the verbatim fallback runs.
type CompressionStats struct {
	OriginalSize   int64         `json:"original_size"`
	CompressedSize int64         `json:"compressed_size"`
	Ratio          float64       `json:"ratio"` // percent size reduction, 0 for the fallback copy
	Duration       time.Duration `json:"duration"`
	ToolSucceeded  bool          `json:"tool_succeeded"`
}

// Compressor shells out to an external image tool with format-specific
// quality flags. Lossy formats get lower quality than lossless ones.
type Compressor struct {
	settings conf.CompressionSettings
	tempDir  string
	log      logger.Logger
}

// NewCompressor creates a Compressor writing temp output under tempDir.
func NewCompressor(settings conf.CompressionSettings, tempDir string, log logger.Logger) *Compressor {
	if log == nil {
		log = logger.NewSlogLogger(nil, logger.LogLevelInfo, nil)
	}
	return &Compressor{
		settings: settings,
		tempDir:  tempDir,
		log:      log.Module("compress"),
	}
}

// qualityFor returns the tool quality flag value for a content type.
func (c *Compressor) qualityFor(mimeType string) int {
	switch mimeType {
	case "image/jpeg":
		return c.settings.JPEGQuality
	case "image/webp":
		return c.settings.WebPQuality
	case "image/png":
		return c.settings.PNGQuality
	case "image/gif":
		return c.settings.GIFQuality
	default:
		return c.settings.JPEGQuality
	}
}

// Compress produces a compressed copy of srcPath in the temp directory and
// returns its path with stats. If the tool fails, the original file is copied
// verbatim instead (ToolSucceeded = false, Ratio = 0) so the upload can still
// proceed. The caller owns the returned file and must remove it.
func (c *Compressor) Compress(ctx context.Context, srcPath, mimeType string) (string, CompressionStats, error) {
	stats := CompressionStats{}

	srcInfo, err := os.Stat(srcPath)
	if err != nil {
		return "", stats, errors.New(err).
			Component("media").
			Category(errors.CategoryFileIO).
			Context("path", srcPath).
			Build()
	}
	stats.OriginalSize = srcInfo.Size()

	if err := os.MkdirAll(c.tempDir, 0o755); err != nil {
		return "", stats, errors.New(err).
			Component("media").
			Category(errors.CategoryFileIO).
			Context("path", c.tempDir).
			Build()
	}

	ext := supportedMIMETypes[mimeType]
	if ext == "" {
		ext = filepath.Ext(srcPath)
	}
	tmp, err := os.CreateTemp(c.tempDir, "compress-*"+ext)
	if err != nil {
		return "", stats, err
	}
	outPath := tmp.Name()
	tmp.Close()

	start := time.Now()
	cmd := exec.CommandContext(ctx, c.settings.Tool, srcPath,
		"-quality", fmt.Sprintf("%d", c.qualityFor(mimeType)),
		outPath)
	output, err := cmd.CombinedOutput()
	stats.Duration = time.Since(start)

	if err != nil {
		c.log.Warn("compression tool failed, copying original verbatim",
			logger.String("path", srcPath),
			logger.String("output", string(output)),
			logger.Error(err))

		if copyErr := copyFile(srcPath, outPath); copyErr != nil {
			os.Remove(outPath)
			return "", stats, errors.Newf("compression fallback copy failed: %w", copyErr).
				Component("media").
				Category(errors.CategoryCompression).
				Context("path", srcPath).
				Build()
		}
		stats.CompressedSize = stats.OriginalSize
		return outPath, stats, nil
	}

	outInfo, err := os.Stat(outPath)
	if err != nil {
		os.Remove(outPath)
		return "", stats, err
	}
	stats.CompressedSize = outInfo.Size()
	stats.ToolSucceeded = true
	if stats.OriginalSize > 0 {
		stats.Ratio = (1 - float64(stats.CompressedSize)/float64(stats.OriginalSize)) * 100
	}

	c.log.Debug("compressed file",
		logger.String("path", srcPath),
		logger.Int64("original_size", stats.OriginalSize),
		logger.Int64("compressed_size", stats.CompressedSize),
		logger.Float64("ratio", stats.Ratio))

	return outPath, stats, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
