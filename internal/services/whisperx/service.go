package whisperx

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"scriptsync/internal/services"
	"scriptsync/internal/transcript"
)

// CommandRunner executes an external command.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Service provides WhisperX transcription.
type Service struct {
	cfg           Config
	ffmpegBinary  string
	commandRunner CommandRunner
}

// NewService creates a WhisperX service with the given configuration.
func NewService(cfg Config, ffmpegBinary string) *Service {
	if ffmpegBinary == "" {
		ffmpegBinary = FFmpegCommand
	}
	return &Service{
		cfg:          cfg,
		ffmpegBinary: ffmpegBinary,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner CommandRunner) {
	s.commandRunner = runner
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return DefaultModel
}

// CUDAEnabled returns whether CUDA is enabled.
func (s *Service) CUDAEnabled() bool {
	return s.cfg.CUDAEnabled
}

// Result describes one transcription run.
type Result struct {
	AudioPath string
	JSONPath  string
	Segments  []transcript.Segment
}

// Transcribe extracts the audio of video into workDir and transcribes it.
func (s *Service) Transcribe(ctx context.Context, video, workDir, language string) (Result, error) {
	var result Result
	if strings.TrimSpace(video) == "" {
		return result, services.Wrap(services.ErrValidation, "transcribe", "input", "video path required", nil)
	}
	if _, err := os.Stat(video); err != nil {
		return result, services.Wrap(services.ErrNotFound, "transcribe", "input", "video not readable", err)
	}
	if workDir == "" {
		return result, services.Wrap(services.ErrConfiguration, "transcribe", "input", "work dir required", nil)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return result, services.Wrap(services.ErrConfiguration, "transcribe", "ensure work dir", "", err)
	}

	base := strings.TrimSuffix(filepath.Base(video), filepath.Ext(video))
	result.AudioPath = filepath.Join(workDir, base+".wav")
	if err := s.run(ctx, s.ffmpegBinary, buildFFmpegArgs(video, result.AudioPath)...); err != nil {
		return result, services.Wrap(services.ErrExternalTool, "transcribe", "extract audio", "", err)
	}
	if err := s.run(ctx, UVXCommand, s.buildArgs(result.AudioPath, workDir, language)...); err != nil {
		return result, services.Wrap(services.ErrExternalTool, "transcribe", "whisperx", "", err)
	}

	result.JSONPath = filepath.Join(workDir, base+".json")
	raw, err := transcript.LoadFile(result.JSONPath)
	if err != nil {
		return result, fmt.Errorf("transcribe: load whisperx output: %w", err)
	}
	segments, err := transcript.Validate(raw)
	if err != nil {
		return result, fmt.Errorf("transcribe: %w", err)
	}
	result.Segments = segments
	return result, nil
}

// run executes a command, using the custom runner if set.
func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 changed torch.load to weights_only=true, which breaks the
	// pyannote checkpoints WhisperX loads.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// buildFFmpegArgs extracts the first audio stream as mono 16kHz PCM.
func buildFFmpegArgs(source, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-map", "0:a:0",
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (s *Service) buildArgs(source, outputDir, language string) []string {
	args := make([]string, 0, 40)

	if s.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", s.Model(),
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--segment_resolution", SegmentResolution,
		"--chunk_size", ChunkSize,
		"--vad_onset", VADOnset,
		"--vad_offset", VADOffset,
		"--beam_size", BeamSize,
		"--temperature", Temperature,
	)

	vadMethod := s.cfg.VADMethod
	if vadMethod == "" {
		vadMethod = VADMethodSilero
	}
	args = append(args, "--vad_method", vadMethod)
	if vadMethod == VADMethodPyannote && s.cfg.HFToken != "" {
		args = append(args, "--hf_token", s.cfg.HFToken)
	}

	lang := strings.ToLower(strings.TrimSpace(language))
	if lang == "" {
		lang = DefaultLanguage
	}
	args = append(args, "--language", lang)

	if s.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}
	return args
}
