package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"vidgrab/services"

	"github.com/schollz/progressbar/v3"
)

// ReadURLFile reads one URL per line, skipping blank lines and # comments
func ReadURLFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open url file: %w", err)
	}
	defer file.Close()

	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read url file: %w", err)
	}
	return urls, nil
}

// RunBatch downloads each URL in turn into outputDir, keeping the
// title-based file names the engine produces. It stops at the first failure.
func RunBatch(ctx context.Context, retriever services.Retriever, urls []string, outputDir string, out io.Writer) ([]string, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("no URLs to download")
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", outputDir, err)
	}

	template := filepath.Join(outputDir, "%(title)s.%(ext)s")
	paths := make([]string, 0, len(urls))

	for i, url := range urls {
		prefix := fmt.Sprintf("[%d/%d]", i+1, len(urls))
		bar := progressbar.NewOptions(100,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription(prefix+" "+url),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(false),
		)

		path, err := retriever.Retrieve(ctx, url, template, func(ev services.ProgressEvent) {
			switch ev.Phase {
			case services.PhaseDownloading:
				bar.Describe(fmt.Sprintf("%s %s", prefix, ev.Speed))
				_ = bar.Set(int(ev.Percent))
			case services.PhaseFinished:
				_ = bar.Finish()
			}
		})
		if err != nil {
			fmt.Fprintf(out, "\n%s download failed: %v\n", prefix, err)
			return paths, fmt.Errorf("download %s: %w", url, err)
		}

		_ = bar.Finish()
		fmt.Fprintf(out, "\n%s saved %s\n", prefix, path)
		paths = append(paths, path)
	}

	return paths, nil
}
