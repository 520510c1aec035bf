package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Concat joins clips in order into out. Each clip must carry one video and
// one audio stream. The concat filter is tried first; if it fails the concat
// demuxer is used, and as a last resort the first clip is copied to out and
// ErrPartialConcat is returned.
func (p *FFmpegProcessor) Concat(ctx context.Context, clips []string, out string) error {
	if len(clips) == 0 {
		return ErrNoClips
	}
	if len(clips) == 1 {
		return copyFile(clips[0], out)
	}

	filterErr := p.concatWithFilter(ctx, clips, out)
	if filterErr == nil {
		return nil
	}
	if ctx.Err() != nil {
		return filterErr
	}

	demuxErr := p.JoinVideos(ctx, clips, out)
	if demuxErr == nil {
		return nil
	}
	if ctx.Err() != nil {
		return demuxErr
	}

	if err := copyFile(clips[0], out); err != nil {
		return fmt.Errorf("concat fallback to first clip: %w", err)
	}
	return fmt.Errorf("%w: %w", ErrPartialConcat, errors.Join(filterErr, demuxErr))
}

// concatWithFilter runs the concat filter over all clips, re-encoding once.
func (p *FFmpegProcessor) concatWithFilter(ctx context.Context, clips []string, out string) error {
	args := []string{"-y"}
	var inputs strings.Builder
	for i, clip := range clips {
		args = append(args, "-i", clip)
		fmt.Fprintf(&inputs, "[%d:v:0][%d:a:0]", i, i)
	}

	filter := fmt.Sprintf("%sconcat=n=%d:v=1:a=1[outv][outa]", inputs.String(), len(clips))
	args = append(args,
		"-filter_complex", filter,
		"-map", "[outv]",
		"-map", "[outa]",
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "22",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "128k",
		out,
	)

	return p.runFFmpegTimeout(ctx, p.concatTimeout, args)
}

// JoinVideos concatenates video files with the concat demuxer. It first
// attempts a stream copy and falls back to re-encoding with libx264/aac.
func (p *FFmpegProcessor) JoinVideos(ctx context.Context, videoPaths []string, output string) error {
	if len(videoPaths) == 0 {
		return ErrNoClips
	}
	if len(videoPaths) == 1 {
		return copyFile(videoPaths[0], output)
	}

	listFile, err := createConcatList(filepath.Dir(output), videoPaths)
	if err != nil {
		return fmt.Errorf("create concat list: %w", err)
	}
	defer func() { _ = os.Remove(listFile) }()

	copyArgs := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		output,
	}
	if err := p.runFFmpegTimeout(ctx, p.concatTimeout, copyArgs); err == nil {
		return nil
	}

	reencodeArgs := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		output,
	}
	return p.runFFmpegTimeout(ctx, p.concatTimeout, reencodeArgs)
}

// createConcatList writes the file list consumed by ffmpeg's concat demuxer.
func createConcatList(dir string, videoPaths []string) (string, error) {
	f, err := os.CreateTemp(dir, "concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = f.Close() }()

	for _, path := range videoPaths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("get absolute path for %s: %w", path, err)
		}
		escapedPath := strings.ReplaceAll(absPath, "'", "'\\''")
		if _, err := fmt.Fprintf(f, "file '%s'\n", escapedPath); err != nil {
			return "", fmt.Errorf("write to concat list: %w", err)
		}
	}

	return f.Name(), nil
}
