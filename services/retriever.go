package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
)

const (
	// DefaultFormat asks for the best video and audio streams, falling back to the best single file
	DefaultFormat = "bestvideo+bestaudio/best"

	// DefaultContainer is the container every download is merged into
	DefaultContainer = "mp4"

	// DefaultFragments is the number of fragments fetched in parallel
	DefaultFragments = 16

	progressInterval = 500 * time.Millisecond
)

// Progress phases reported to callers
const (
	PhaseDownloading = "downloading"
	PhaseFinished    = "finished"
	PhaseError       = "error"
)

// ProgressEvent is one progress report from the download engine
type ProgressEvent struct {
	Phase    string
	Percent  float64
	Speed    string
	Filename string
}

// ProgressFunc receives progress events while a download runs
type ProgressFunc func(ProgressEvent)

// Retriever downloads a media URL to a file described by an output template
// and returns the path it wrote.
type Retriever interface {
	Retrieve(ctx context.Context, sourceURL, outputTemplate string, onProgress ProgressFunc) (string, error)
}

// YtdlpRetriever drives yt-dlp through go-ytdlp
type YtdlpRetriever struct {
	executable string
	format     string
	container  string
	fragments  int

	// install resolves the yt-dlp binary when no executable is configured
	install func(ctx context.Context) error
}

// NewYtdlpRetriever creates a retriever. An empty executable means yt-dlp
// is resolved (and installed if needed) by go-ytdlp on first use.
func NewYtdlpRetriever(executable string) *YtdlpRetriever {
	return &YtdlpRetriever{
		executable: executable,
		format:     DefaultFormat,
		container:  DefaultContainer,
		fragments:  DefaultFragments,
		install:    installYtdlp,
	}
}

func installYtdlp(ctx context.Context) error {
	_, err := ytdlp.Install(ctx, nil)
	return err
}

// ensureInstalled runs on every download. go-ytdlp caches a resolved binary,
// so only a failed attempt is retried by the next job.
func (r *YtdlpRetriever) ensureInstalled(ctx context.Context) error {
	if r.executable != "" {
		return nil
	}
	if err := r.install(ctx); err != nil {
		return fmt.Errorf("install yt-dlp: %w", err)
	}
	return nil
}

// Retrieve downloads sourceURL and returns the final file path
func (r *YtdlpRetriever) Retrieve(ctx context.Context, sourceURL, outputTemplate string, onProgress ProgressFunc) (string, error) {
	if err := r.ensureInstalled(ctx); err != nil {
		return "", err
	}

	dl := ytdlp.New().
		Format(r.format).
		MergeOutputFormat(r.container).
		ConcurrentFragments(r.fragments).
		RestrictFilenames().
		NoPlaylist().
		Print("after_move:filepath").
		Output(outputTemplate)

	if r.executable != "" {
		dl.SetExecutable(r.executable)
	}

	if onProgress != nil {
		dl.ProgressFunc(progressInterval, func(update ytdlp.ProgressUpdate) {
			onProgress(progressFromUpdate(&update))
		})
	}

	result, err := dl.Run(ctx, sourceURL)
	if err != nil {
		if onProgress != nil {
			onProgress(ProgressEvent{Phase: PhaseError})
		}
		return "", fmt.Errorf("yt-dlp: %w", err)
	}

	if path := printedPath(result.Stdout); path != "" {
		return path, nil
	}

	path, err := FindProducedFile(outputTemplate)
	if err != nil {
		return "", err
	}
	return path, nil
}

// printedPath returns the last stdout line that names an existing file
func printedPath(stdout string) string {
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if info, err := os.Stat(line); err == nil && !info.IsDir() {
			return line
		}
	}
	return ""
}

func progressFromUpdate(update *ytdlp.ProgressUpdate) ProgressEvent {
	event := ProgressEvent{
		Phase:    PhaseDownloading,
		Percent:  update.Percent(),
		Filename: update.Filename,
	}

	switch string(update.Status) {
	case "finished", "post_processing":
		event.Phase = PhaseFinished
		event.Percent = 100
	case "error":
		event.Phase = PhaseError
	}

	if !update.Started.IsZero() {
		elapsed := time.Since(update.Started)
		if elapsed.Seconds() > 0 {
			bytesPerSecond := float64(update.DownloadedBytes) / elapsed.Seconds()
			event.Speed = fmt.Sprintf("%.1fMB/s", bytesPerSecond/1024/1024)
		}
	}

	return event
}
