package config

const (
	defaultConfigPath  = "~/.config/scriptsync/config.toml"
	projectConfigName  = "scriptsync.toml"
	defaultWorkDir     = "~/.local/share/scriptsync/work"
	defaultLogDir      = "~/.local/share/scriptsync/logs"
	defaultReviewDir   = "~/.local/share/scriptsync/review"
	defaultStateDir    = "~/.local/state/scriptsync"
	defaultLogFormat   = "console"
	defaultLogLevel    = "info"
	defaultLogRetain   = 30
	defaultTimePrec    = 2
	defaultDelimiter   = ";"
	defaultOracleTitle = "scriptsync"

	defaultOracleTimeoutSeconds   = 600
	defaultOracleThinkingBudget   = 20000
	defaultOracleMaxOutputTokens  = 65536
	defaultOracleFallbackAttempts = 1

	defaultOpenRouterBaseURL       = "https://openrouter.ai/api/v1/chat/completions"
	defaultOpenRouterModel         = "google/gemini-2.5-flash"
	defaultOpenRouterFallbackModel = "google/gemini-2.0-flash-001"
	defaultGeminiModel             = "gemini-2.5-flash"
	defaultGeminiFallbackModel     = "gemini-2.0-flash"

	defaultWhisperXModel = "large-v3"
	defaultLanguage      = "ja"
	defaultVADMethod     = "silero"

	defaultDPI                = 300
	defaultRotateDegrees      = 270
	defaultConcurrency        = 4
	defaultRequestsPerMinute  = 60
	defaultExtractorMaxOutput = 1500
	defaultSubtitleFontName   = "Arial"
	defaultSubtitleFontSize   = 22
	defaultSubtitleFormat     = FormatASS
	defaultExtractor          = ExtractorLLM
	defaultResponseFormat     = ResponseDelimited
	defaultProvider           = ProviderOpenRouter
	defaultNtfyTimeout        = 10
)

// Provider names accepted by oracle.provider.
const (
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
)

// Response shapes accepted by oracle.response_format.
const (
	ResponseDelimited  = "delimited"
	ResponseStructured = "structured"
)

// Extractor names accepted by reference.extractor.
const (
	ExtractorLLM    = "llm"
	ExtractorVision = "vision"
)

// Subtitle formats accepted by subtitles.format.
const (
	FormatASS = "ass"
	FormatSRT = "srt"
)

// Default returns a Config populated with repository defaults. Provider
// dependent values (base URL, models, API key) are filled during Load.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:   defaultWorkDir,
			LogDir:    defaultLogDir,
			ReviewDir: defaultReviewDir,
			StateDir:  defaultStateDir,
		},
		Oracle: Oracle{
			Provider:         defaultProvider,
			FallbackAttempts: defaultOracleFallbackAttempts,
			TimeoutSeconds:   defaultOracleTimeoutSeconds,
			ThinkingBudget:   defaultOracleThinkingBudget,
			MaxOutputTokens:  defaultOracleMaxOutputTokens,
			ResponseFormat:   defaultResponseFormat,
			Delimiter:        defaultDelimiter,
			Title:            defaultOracleTitle,
		},
		Transcript: Transcript{
			TimePrecision: defaultTimePrec,
			WhisperXModel: defaultWhisperXModel,
			Language:      defaultLanguage,
			VADMethod:     defaultVADMethod,
		},
		Reference: Reference{
			SuppressDuplicates: true,
			Extractor:          defaultExtractor,
			DPI:                defaultDPI,
			RotateDegrees:      defaultRotateDegrees,
			Concurrency:        defaultConcurrency,
			RequestsPerMinute:  defaultRequestsPerMinute,
			MaxOutputTokens:    defaultExtractorMaxOutput,
		},
		Subtitles: Subtitles{
			Format:   defaultSubtitleFormat,
			FontName: defaultSubtitleFontName,
			FontSize: defaultSubtitleFontSize,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetain,
		},
	}
}
