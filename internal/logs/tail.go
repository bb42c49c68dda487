package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	maxLineBytes = 1024 * 1024
	pollInterval = 250 * time.Millisecond
)

// TailResult carries the lines read and the byte offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Last returns up to limit trailing lines of path. A missing file yields an
// empty result; limit <= 0 returns no lines but still reports the end offset.
func Last(path string, limit int) (TailResult, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return TailResult{}, nil
	}
	if err != nil {
		return TailResult{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if info, err := file.Stat(); err != nil {
		return TailResult{}, fmt.Errorf("stat log file: %w", err)
	} else if info.IsDir() {
		return TailResult{}, fmt.Errorf("log path %q is a directory", path)
	}

	var ring []string
	if limit > 0 {
		ring = make([]string, 0, limit)
	}
	scanner := newScanner(file)
	for scanner.Scan() {
		if limit <= 0 {
			continue
		}
		if len(ring) == limit {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return TailResult{}, fmt.Errorf("read log file: %w", err)
	}
	offset, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return TailResult{}, fmt.Errorf("seek log file: %w", err)
	}
	return TailResult{Lines: ring, Offset: offset}, nil
}

// ReadFrom returns the complete lines appended after offset. A partially
// written final line is left for the next call. An offset past the end of
// the file (truncation) restarts from the beginning.
func ReadFrom(path string, offset int64) (TailResult, error) {
	result := TailResult{Offset: offset}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return result, fmt.Errorf("stat log file: %w", err)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return result, fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReaderSize(file, 64*1024)
	for {
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return result, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(line))
		result.Lines = append(result.Lines, trimNewline(line))
	}
	result.Offset = offset
	return result, nil
}

// Follow emits lines appended to path after offset until ctx is cancelled or
// finished reports true. Lines written before finished flipped are drained
// before returning.
func Follow(ctx context.Context, path string, offset int64, finished func() bool, emit func(string)) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		done := finished != nil && finished()
		res, err := ReadFrom(path, offset)
		if err != nil {
			return err
		}
		for _, line := range res.Lines {
			emit(line)
		}
		offset = res.Offset
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return scanner
}

func trimNewline(line string) string {
	line = line[:len(line)-1]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line
}
