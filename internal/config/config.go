package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Paths    PathsConfig    `mapstructure:"paths"`
	Runtime  RuntimeConfig  `mapstructure:"runtime"`
	Server   ServerConfig   `mapstructure:"server"`
	TTS      TTSConfig      `mapstructure:"tts"`
	Text     TextConfig     `mapstructure:"text"`
	Voice    VoiceConfig    `mapstructure:"voice"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Preload  PreloadConfig  `mapstructure:"preload"`
	Hardware HardwareConfig `mapstructure:"hardware"`
	LogLevel string         `mapstructure:"log_level"`
}

// TextConfig toggles the ordered normalization stages. Fields are named
// after the stage they gate; ordering itself is fixed in textpipe and
// not configurable.
type TextConfig struct {
	ExpandContractions     bool    `mapstructure:"expand_contractions"`
	UsePronunciationRules  bool    `mapstructure:"use_pronunciation_rules"`
	UseLegacyPhonetic      bool    `mapstructure:"use_legacy_phonetic"`
	UseInterjectionFixes   bool    `mapstructure:"use_interjection_fixes"`
	UseTickerProcessing    bool    `mapstructure:"use_ticker_processing"`
	UseProperNameFixes     bool    `mapstructure:"use_proper_name_fixes"`
	UseAdvancedCurrency    bool    `mapstructure:"use_advanced_currency"`
	UseEnhancedDateTime    bool    `mapstructure:"use_enhanced_datetime"`
	UseAdvancedSymbols     bool    `mapstructure:"use_advanced_symbols"`
	UseEspeakSymbols       bool    `mapstructure:"use_espeak_symbols"`
	PunctuationMode        string  `mapstructure:"punctuation_mode"`
	PreserveWordCount      bool    `mapstructure:"preserve_word_count"`
	PreserveOriginalOnErr  bool    `mapstructure:"preserve_original_on_error"`
	WordCountToleranceFrac float64 `mapstructure:"word_count_tolerance_frac"`
}

type VoiceConfig struct {
	VoicesDir       string `mapstructure:"voices_dir"`
	UseCombinedFile bool   `mapstructure:"use_combined_file"`
	MaxBlendVoices  int    `mapstructure:"max_blend_voices"`
}

type CacheConfig struct {
	MaxEntries  int `mapstructure:"max_entries"`
	TTLSeconds  int `mapstructure:"ttl_secs"`
	PhoneticCap int `mapstructure:"phonetic_cap"`
}

type PreloadConfig struct {
	WarmOnStartup     bool     `mapstructure:"warm_on_startup"`
	IdleThresholdSecs float64  `mapstructure:"idle_threshold_secs"`
	WarmingBatchSize  int      `mapstructure:"warming_batch_size"`
	MaxConcurrentWarm int      `mapstructure:"max_concurrent_warming"`
	CacheTTLHours     int      `mapstructure:"cache_ttl_hours"`
	RefreshCron       string   `mapstructure:"refresh_cron"`
	PrimaryVoices     []string `mapstructure:"primary_voices"`
}

type HardwareConfig struct {
	MinThresholdPercent   float64 `mapstructure:"min_threshold_percent"`
	MaxThresholdPercent   float64 `mapstructure:"max_threshold_percent"`
	MaxCores              int     `mapstructure:"max_cores"`
	AllocationCooldownSec int     `mapstructure:"allocation_cooldown_secs"`
	RescanCron            string  `mapstructure:"rescan_cron"`
	OverridePath          string  `mapstructure:"override_path"`
}

type PathsConfig struct {
	ModelPath      string `mapstructure:"model_path"`
	VoicePath      string `mapstructure:"voice_path"`
	ONNXManifest   string `mapstructure:"onnx_manifest"`
	TokenizerModel string `mapstructure:"tokenizer_model"`
}

type RuntimeConfig struct {
	Threads        int    `mapstructure:"threads"`
	InterOpThreads int    `mapstructure:"inter_op_threads"`
	ConvWorkers    int    `mapstructure:"conv_workers"`
	ORTLibraryPath string `mapstructure:"ort_library_path"`
	ORTVersion     string `mapstructure:"ort_version"`
}

type ServerConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	GRPCAddr        string `mapstructure:"grpc_addr"`
	Workers         int    `mapstructure:"workers"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout_secs"`
	MaxTextBytes    int    `mapstructure:"max_text_bytes"`
	RequestTimeout  int    `mapstructure:"request_timeout_secs"`
}

type TTSConfig struct {
	Backend        string  `mapstructure:"backend"`
	Voice          string  `mapstructure:"voice"`
	CLIPath        string  `mapstructure:"cli_path"`
	CLIConfigPath  string  `mapstructure:"cli_config_path"`
	Concurrency    int     `mapstructure:"concurrency"`
	Quiet          bool    `mapstructure:"quiet"`
	Temperature    float64 `mapstructure:"temperature"`
	EOSThreshold   float64 `mapstructure:"eos_threshold"`
	MaxSteps       int     `mapstructure:"max_steps"`
	LSDDecodeSteps int     `mapstructure:"lsd_decode_steps"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			ModelPath:      "models/tts_b6369a24.safetensors",
			VoicePath:      "models/voice.bin",
			ONNXManifest:   "models/onnx/manifest.json",
			TokenizerModel: "models/tokenizer.model",
		},
		Runtime: RuntimeConfig{
			Threads:        4,
			InterOpThreads: 1,
			ConvWorkers:    2,
			ORTLibraryPath: "",
			ORTVersion:     "",
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			GRPCAddr:        ":9090",
			Workers:         2,
			ShutdownTimeout: 30,
			MaxTextBytes:    4096,
			RequestTimeout:  60,
		},
		TTS: TTSConfig{
			Backend:        BackendNative,
			Voice:          "",
			CLIPath:        "",
			CLIConfigPath:  "",
			Concurrency:    1,
			Quiet:          true,
			Temperature:    0.7,
			EOSThreshold:   -4.0,
			MaxSteps:       256,
			LSDDecodeSteps: 1,
		},
		Text: TextConfig{
			ExpandContractions:    true,
			UsePronunciationRules: true,
			UseLegacyPhonetic:     false,
			UseInterjectionFixes:  true,
			UseTickerProcessing:   true,
			UseProperNameFixes:    true,
			UseAdvancedCurrency:   true,
			UseEnhancedDateTime:   true,
			UseAdvancedSymbols:    true,
			UseEspeakSymbols:      true,
			PunctuationMode:       "some",
			PreserveWordCount:     true,
			PreserveOriginalOnErr: true,
			WordCountToleranceFrac: 0.1,
		},
		Voice: VoiceConfig{
			VoicesDir:       "models/voices",
			UseCombinedFile: true,
			MaxBlendVoices:  4,
		},
		Cache: CacheConfig{
			MaxEntries:  500,
			TTLSeconds:  0,
			PhoneticCap: 2000,
		},
		Preload: PreloadConfig{
			WarmOnStartup:     false,
			IdleThresholdSecs: 5.0,
			WarmingBatchSize:  5,
			MaxConcurrentWarm: 2,
			CacheTTLHours:     24,
			RefreshCron:       "0 */6 * * *",
			PrimaryVoices:     []string{"af_heart", "am_adam"},
		},
		Hardware: HardwareConfig{
			MinThresholdPercent:   25.0,
			MaxThresholdPercent:   80.0,
			MaxCores:              0,
			AllocationCooldownSec: 30,
			RescanCron:            "0 * * * *",
			OverridePath:          "override.json",
		},
		LogLevel: "info",
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("paths-model-path", defaults.Paths.ModelPath, "Path to model file (.safetensors for native, .onnx for native-onnx)")
	fs.String("paths-voice-path", defaults.Paths.VoicePath, "Path to voice/profile asset")
	fs.String("paths-onnx-manifest", defaults.Paths.ONNXManifest, "Path to ONNX model manifest JSON")
	fs.String("paths-tokenizer-model", defaults.Paths.TokenizerModel, "Path to SentencePiece tokenizer model")
	fs.Int("runtime-threads", defaults.Runtime.Threads, "Inference thread count (ONNX intra-op for native-onnx backend)")
	fs.Int("runtime-inter-op-threads", defaults.Runtime.InterOpThreads, "Inter-op thread count (ONNX-only, native-onnx backend)")
	fs.Int("conv-workers", defaults.Runtime.ConvWorkers, "Parallel goroutines for Conv1D/ConvTranspose1D (1 = sequential, default 2)")
	fs.String("runtime-ort-library-path", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library")
	fs.String("ort-lib", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library (alias for --runtime-ort-library-path)")
	fs.String("runtime-ort-version", defaults.Runtime.ORTVersion, "Expected ONNX Runtime version")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.String("server-grpc-addr", defaults.Server.GRPCAddr, "gRPC listen address")
	fs.Int("workers", defaults.Server.Workers, "Max concurrent pocket-tts subprocesses for serve command")
	fs.Int("shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown drain timeout in seconds")
	fs.Int("max-text-bytes", defaults.Server.MaxTextBytes, "Maximum POST /tts text size in bytes")
	fs.Int("request-timeout", defaults.Server.RequestTimeout, "Per-request synthesis timeout in seconds")
	fs.String(
		"backend",
		defaults.TTS.Backend,
		"Synthesis backend (native-safetensors|native-onnx|cli; native is alias for native-safetensors)",
	)
	fs.String("tts-voice", defaults.TTS.Voice, "Voice name or .safetensors file path")
	fs.String("tts-cli-path", defaults.TTS.CLIPath, "Path to pocket-tts executable")
	fs.String("tts-cli-config-path", defaults.TTS.CLIConfigPath, "Path to pocket-tts config file")
	fs.Int("tts-concurrency", defaults.TTS.Concurrency, "Max concurrent pocket-tts subprocesses")
	fs.Bool("tts-quiet", defaults.TTS.Quiet, "Pass --quiet to pocket-tts generate")
	fs.Float64("temperature", defaults.TTS.Temperature, "Noise temperature for flow sampling")
	fs.Float64("eos-threshold", defaults.TTS.EOSThreshold, "Raw logit threshold for EOS detection")
	fs.Int("max-steps", defaults.TTS.MaxSteps, "Maximum autoregressive generation steps")
	fs.Int("lsd-steps", defaults.TTS.LSDDecodeSteps, "Euler integration steps per latent frame")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")

	fs.Bool("text-expand-contractions", defaults.Text.ExpandContractions, "Expand contractions during conservative preprocessing")
	fs.Bool("text-pronunciation-rules", defaults.Text.UsePronunciationRules, "Apply contraction pronunciation rules")
	fs.Bool("text-legacy-phonetic", defaults.Text.UseLegacyPhonetic, "Apply legacy phonetic contraction expansion (default off)")
	fs.Bool("text-interjection-fixes", defaults.Text.UseInterjectionFixes, "Normalize interjection pronunciation (hmm/uh/um/...)")
	fs.Bool("text-ticker-processing", defaults.Text.UseTickerProcessing, "Letter-spell known and contextual ticker symbols")
	fs.Bool("text-proper-name-fixes", defaults.Text.UseProperNameFixes, "Apply proper-name pronunciation fixes")
	fs.Bool("text-advanced-currency", defaults.Text.UseAdvancedCurrency, "Expand currency amounts to spoken form")
	fs.Bool("text-enhanced-datetime", defaults.Text.UseEnhancedDateTime, "Expand dates and times to natural language")
	fs.Bool("text-advanced-symbols", defaults.Text.UseAdvancedSymbols, "Apply the default symbol-to-word table")
	fs.Bool("text-espeak-symbols", defaults.Text.UseEspeakSymbols, "Apply eSpeak-style symbol/punctuation handling (overrides advanced symbols)")
	fs.String("text-punctuation-mode", defaults.Text.PunctuationMode, "Punctuation vocalization mode: none|some|all")
	fs.Bool("text-preserve-word-count", defaults.Text.PreserveWordCount, "Enforce the word-count preservation contract")
	fs.Bool("text-preserve-original-on-error", defaults.Text.PreserveOriginalOnErr, "Fall back to original text on catastrophic pipeline failure")
	fs.Float64("text-word-count-tolerance-frac", defaults.Text.WordCountToleranceFrac, "Allowed fractional word-count drift")

	fs.String("voice-dir", defaults.Voice.VoicesDir, "Directory containing voice .bin style matrices")
	fs.Bool("voice-use-combined-file", defaults.Voice.UseCombinedFile, "Maintain a combined_voices archive alongside individual files")
	fs.Int("voice-max-blend", defaults.Voice.MaxBlendVoices, "Maximum number of voices accepted in a single blend request")

	fs.Int("cache-max-entries", defaults.Cache.MaxEntries, "Maximum audio cache entries before LRU eviction")
	fs.Int("cache-ttl-secs", defaults.Cache.TTLSeconds, "Absolute audio cache entry TTL in seconds (0 disables)")
	fs.Int("cache-phonetic-cap", defaults.Cache.PhoneticCap, "Maximum entries in the phonetic lookup cache")

	fs.Bool("preload-warm-on-startup", defaults.Preload.WarmOnStartup, "Run cache warming automatically at startup")
	fs.Float64("preload-idle-threshold-secs", defaults.Preload.IdleThresholdSecs, "Seconds of inactivity before warming resumes")
	fs.Int("preload-batch-size", defaults.Preload.WarmingBatchSize, "Warming tasks dequeued per batch")
	fs.Int("preload-max-concurrent", defaults.Preload.MaxConcurrentWarm, "Maximum concurrent warming synthesis calls")
	fs.Int("preload-cache-ttl-hours", defaults.Preload.CacheTTLHours, "Hours before a warmed entry is eligible for re-warming")
	fs.String("preload-refresh-cron", defaults.Preload.RefreshCron, "Cron schedule for full warm-cache refresh")

	fs.Float64("hw-min-threshold-percent", defaults.Hardware.MinThresholdPercent, "CPU utilization floor below which threads may be increased")
	fs.Float64("hw-max-threshold-percent", defaults.Hardware.MaxThresholdPercent, "CPU utilization ceiling above which threads may be decreased")
	fs.Int("hw-max-cores", defaults.Hardware.MaxCores, "Upper bound on inference threads (0 = detected core count)")
	fs.Int("hw-allocation-cooldown-secs", defaults.Hardware.AllocationCooldownSec, "Debounce window between allocator adjustments")
	fs.String("hw-rescan-cron", defaults.Hardware.RescanCron, "Cron schedule for full hardware re-detection")
	fs.String("hw-override-path", defaults.Hardware.OverridePath, "Path to persisted hardware-optimized settings override")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}
	registerAliases(v)

	v.SetEnvPrefix("POCKETTTS")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	if err := v.BindEnv("runtime.ort_library_path", "POCKETTTS_ORT_LIB", "ORT_LIBRARY_PATH"); err != nil {
		return Config{}, fmt.Errorf("bind ort env vars: %w", err)
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("pockettts")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.model_path", c.Paths.ModelPath)
	v.SetDefault("paths.voice_path", c.Paths.VoicePath)
	v.SetDefault("paths.onnx_manifest", c.Paths.ONNXManifest)
	v.SetDefault("paths.tokenizer_model", c.Paths.TokenizerModel)
	v.SetDefault("runtime.threads", c.Runtime.Threads)
	v.SetDefault("runtime.inter_op_threads", c.Runtime.InterOpThreads)
	v.SetDefault("runtime.conv_workers", c.Runtime.ConvWorkers)
	v.SetDefault("runtime.ort_library_path", c.Runtime.ORTLibraryPath)
	v.SetDefault("runtime.ort_version", c.Runtime.ORTVersion)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.grpc_addr", c.Server.GRPCAddr)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.shutdown_timeout_secs", c.Server.ShutdownTimeout)
	v.SetDefault("server.max_text_bytes", c.Server.MaxTextBytes)
	v.SetDefault("server.request_timeout_secs", c.Server.RequestTimeout)
	v.SetDefault("tts.backend", c.TTS.Backend)
	v.SetDefault("tts.voice", c.TTS.Voice)
	v.SetDefault("tts.cli_path", c.TTS.CLIPath)
	v.SetDefault("tts.cli_config_path", c.TTS.CLIConfigPath)
	v.SetDefault("tts.concurrency", c.TTS.Concurrency)
	v.SetDefault("tts.quiet", c.TTS.Quiet)
	v.SetDefault("tts.temperature", c.TTS.Temperature)
	v.SetDefault("tts.eos_threshold", c.TTS.EOSThreshold)
	v.SetDefault("tts.max_steps", c.TTS.MaxSteps)
	v.SetDefault("tts.lsd_decode_steps", c.TTS.LSDDecodeSteps)
	v.SetDefault("log_level", c.LogLevel)

	v.SetDefault("text.expand_contractions", c.Text.ExpandContractions)
	v.SetDefault("text.use_pronunciation_rules", c.Text.UsePronunciationRules)
	v.SetDefault("text.use_legacy_phonetic", c.Text.UseLegacyPhonetic)
	v.SetDefault("text.use_interjection_fixes", c.Text.UseInterjectionFixes)
	v.SetDefault("text.use_ticker_processing", c.Text.UseTickerProcessing)
	v.SetDefault("text.use_proper_name_fixes", c.Text.UseProperNameFixes)
	v.SetDefault("text.use_advanced_currency", c.Text.UseAdvancedCurrency)
	v.SetDefault("text.use_enhanced_datetime", c.Text.UseEnhancedDateTime)
	v.SetDefault("text.use_advanced_symbols", c.Text.UseAdvancedSymbols)
	v.SetDefault("text.use_espeak_symbols", c.Text.UseEspeakSymbols)
	v.SetDefault("text.punctuation_mode", c.Text.PunctuationMode)
	v.SetDefault("text.preserve_word_count", c.Text.PreserveWordCount)
	v.SetDefault("text.preserve_original_on_error", c.Text.PreserveOriginalOnErr)
	v.SetDefault("text.word_count_tolerance_frac", c.Text.WordCountToleranceFrac)

	v.SetDefault("voice.voices_dir", c.Voice.VoicesDir)
	v.SetDefault("voice.use_combined_file", c.Voice.UseCombinedFile)
	v.SetDefault("voice.max_blend_voices", c.Voice.MaxBlendVoices)

	v.SetDefault("cache.max_entries", c.Cache.MaxEntries)
	v.SetDefault("cache.ttl_secs", c.Cache.TTLSeconds)
	v.SetDefault("cache.phonetic_cap", c.Cache.PhoneticCap)

	v.SetDefault("preload.warm_on_startup", c.Preload.WarmOnStartup)
	v.SetDefault("preload.idle_threshold_secs", c.Preload.IdleThresholdSecs)
	v.SetDefault("preload.warming_batch_size", c.Preload.WarmingBatchSize)
	v.SetDefault("preload.max_concurrent_warming", c.Preload.MaxConcurrentWarm)
	v.SetDefault("preload.cache_ttl_hours", c.Preload.CacheTTLHours)
	v.SetDefault("preload.refresh_cron", c.Preload.RefreshCron)
	v.SetDefault("preload.primary_voices", c.Preload.PrimaryVoices)

	v.SetDefault("hardware.min_threshold_percent", c.Hardware.MinThresholdPercent)
	v.SetDefault("hardware.max_threshold_percent", c.Hardware.MaxThresholdPercent)
	v.SetDefault("hardware.max_cores", c.Hardware.MaxCores)
	v.SetDefault("hardware.allocation_cooldown_secs", c.Hardware.AllocationCooldownSec)
	v.SetDefault("hardware.rescan_cron", c.Hardware.RescanCron)
	v.SetDefault("hardware.override_path", c.Hardware.OverridePath)
}

func registerAliases(v *viper.Viper) {
	v.RegisterAlias("paths.model_path", "paths-model-path")
	v.RegisterAlias("paths.voice_path", "paths-voice-path")
	v.RegisterAlias("paths.onnx_manifest", "paths-onnx-manifest")
	v.RegisterAlias("paths.tokenizer_model", "paths-tokenizer-model")
	v.RegisterAlias("runtime.threads", "runtime-threads")
	v.RegisterAlias("runtime.inter_op_threads", "runtime-inter-op-threads")
	v.RegisterAlias("runtime.conv_workers", "conv-workers")
	v.RegisterAlias("runtime.ort_library_path", "runtime-ort-library-path")
	v.RegisterAlias("runtime.ort_library_path", "ort-lib")
	v.RegisterAlias("runtime.ort_version", "runtime-ort-version")
	v.RegisterAlias("server.listen_addr", "server-listen-addr")
	v.RegisterAlias("server.grpc_addr", "server-grpc-addr")
	v.RegisterAlias("server.workers", "workers")
	v.RegisterAlias("server.shutdown_timeout_secs", "shutdown-timeout")
	v.RegisterAlias("server.max_text_bytes", "max-text-bytes")
	v.RegisterAlias("server.request_timeout_secs", "request-timeout")
	v.RegisterAlias("tts.backend", "backend")
	v.RegisterAlias("tts.voice", "tts-voice")
	v.RegisterAlias("tts.cli_path", "tts-cli-path")
	v.RegisterAlias("tts.cli_config_path", "tts-cli-config-path")
	v.RegisterAlias("tts.concurrency", "tts-concurrency")
	v.RegisterAlias("tts.quiet", "tts-quiet")
	v.RegisterAlias("tts.temperature", "temperature")
	v.RegisterAlias("tts.eos_threshold", "eos-threshold")
	v.RegisterAlias("tts.max_steps", "max-steps")
	v.RegisterAlias("tts.lsd_decode_steps", "lsd-steps")
	v.RegisterAlias("log_level", "log-level")

	v.RegisterAlias("text.expand_contractions", "text-expand-contractions")
	v.RegisterAlias("text.use_pronunciation_rules", "text-pronunciation-rules")
	v.RegisterAlias("text.use_legacy_phonetic", "text-legacy-phonetic")
	v.RegisterAlias("text.use_interjection_fixes", "text-interjection-fixes")
	v.RegisterAlias("text.use_ticker_processing", "text-ticker-processing")
	v.RegisterAlias("text.use_proper_name_fixes", "text-proper-name-fixes")
	v.RegisterAlias("text.use_advanced_currency", "text-advanced-currency")
	v.RegisterAlias("text.use_enhanced_datetime", "text-enhanced-datetime")
	v.RegisterAlias("text.use_advanced_symbols", "text-advanced-symbols")
	v.RegisterAlias("text.use_espeak_symbols", "text-espeak-symbols")
	v.RegisterAlias("text.punctuation_mode", "text-punctuation-mode")
	v.RegisterAlias("text.preserve_word_count", "text-preserve-word-count")
	v.RegisterAlias("text.preserve_original_on_error", "text-preserve-original-on-error")
	v.RegisterAlias("text.word_count_tolerance_frac", "text-word-count-tolerance-frac")

	v.RegisterAlias("voice.voices_dir", "voice-dir")
	v.RegisterAlias("voice.use_combined_file", "voice-use-combined-file")
	v.RegisterAlias("voice.max_blend_voices", "voice-max-blend")

	v.RegisterAlias("cache.max_entries", "cache-max-entries")
	v.RegisterAlias("cache.ttl_secs", "cache-ttl-secs")
	v.RegisterAlias("cache.phonetic_cap", "cache-phonetic-cap")

	v.RegisterAlias("preload.warm_on_startup", "preload-warm-on-startup")
	v.RegisterAlias("preload.idle_threshold_secs", "preload-idle-threshold-secs")
	v.RegisterAlias("preload.warming_batch_size", "preload-batch-size")
	v.RegisterAlias("preload.max_concurrent_warming", "preload-max-concurrent")
	v.RegisterAlias("preload.cache_ttl_hours", "preload-cache-ttl-hours")
	v.RegisterAlias("preload.refresh_cron", "preload-refresh-cron")

	v.RegisterAlias("hardware.min_threshold_percent", "hw-min-threshold-percent")
	v.RegisterAlias("hardware.max_threshold_percent", "hw-max-threshold-percent")
	v.RegisterAlias("hardware.max_cores", "hw-max-cores")
	v.RegisterAlias("hardware.allocation_cooldown_secs", "hw-allocation-cooldown-secs")
	v.RegisterAlias("hardware.rescan_cron", "hw-rescan-cron")
	v.RegisterAlias("hardware.override_path", "hw-override-path")
}
