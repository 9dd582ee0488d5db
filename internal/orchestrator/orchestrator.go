// Package orchestrator implements synthesis request handling: cache lookup,
// the ordered text-variant retry ladder, acoustic-model invocation,
// container encoding, and cache insertion, instrumented via the perf
// monitor. An attached CPU allocator is held but not consulted.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/example/go-pocket-tts/internal/audio"
	"github.com/example/go-pocket-tts/internal/audiocache"
	"github.com/example/go-pocket-tts/internal/cpualloc"
	"github.com/example/go-pocket-tts/internal/perf"
	"github.com/example/go-pocket-tts/internal/textpipe"
	"github.com/example/go-pocket-tts/internal/tts"
	"github.com/example/go-pocket-tts/internal/voiceasset"
)

// Model is the opaque acoustic-model collaborator: (text, style embedding)
// -> samples; speed is applied afterwards by resampling. The phonemizer and tokenizer live behind
// this interface; the orchestrator only ever sees text in and PCM out.
type Model interface {
	SynthesizeEmbeddingCtx(ctx context.Context, text string, emb *tts.VoiceEmbedding) ([]float32, error)
}

// Format is one of the container formats a request may ask for.
type Format string

const (
	FormatMP3  Format = "mp3"
	FormatWAV  Format = "wav"
	FormatFLAC Format = "flac"
	FormatOGG  Format = "ogg"
	FormatOpus Format = "opus"
	FormatAAC  Format = "aac"
)

// Encoder encodes raw PCM samples into a named container format. Only WAV
// ships a concrete implementation; a server wiring additional formats
// registers more Encoders via WithEncoder.
type Encoder interface {
	Encode(samples []float32, sampleRate int) ([]byte, error)
}

type wavEncoder struct{}

func (wavEncoder) Encode(samples []float32, _ int) ([]byte, error) {
	return audio.EncodeWAV(samples)
}

// Request is the validated, in-flight request flowing through the
// pipeline. VoiceWeights, when non-empty, requests a blend of several
// voices; otherwise Voice names a single asset.
type Request struct {
	Text         string
	Voice        string
	VoiceWeights map[string]float64
	Format       Format
	Speed        float64
}

// Result is the successful outcome of Synthesize.
type Result struct {
	Bytes    []byte
	CacheHit bool
	Format   Format
}

// Config tunes retry and cache behavior.
type Config struct {
	MaxRetries       int
	RetryDelay       time.Duration
	CacheCapacity    int
	CacheTTL         time.Duration
	DefaultFormat    Format
	PipelineConfig   textpipe.Config
	MaxBlendVoices   int
}

// DefaultConfig returns 3 retries and a zero (disabled) cache TTL.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		RetryDelay:     200 * time.Millisecond,
		CacheCapacity:  500,
		CacheTTL:       0,
		DefaultFormat:  FormatWAV,
		PipelineConfig: textpipe.DefaultConfig(),
		MaxBlendVoices: 4,
	}
}

// Orchestrator wires together the voice manager, acoustic model, audio
// cache, normalization pipeline, perf monitor, and CPU allocator.
type Orchestrator struct {
	cfg      Config
	model    Model
	voices   *voiceasset.Manager
	pipeline *textpipe.Pipeline
	cache    *audiocache.Cache
	monitor  *perf.Monitor
	alloc    *cpualloc.Allocator
	encoders map[Format]Encoder
	log      *slog.Logger
}

// Option configures an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithEncoder registers (or overrides) the Encoder used for a format.
func WithEncoder(f Format, e Encoder) Option {
	return func(o *Orchestrator) { o.encoders[f] = e }
}

// WithMonitor attaches a perf.Monitor; if omitted, samples are dropped.
func WithMonitor(m *perf.Monitor) Option {
	return func(o *Orchestrator) { o.monitor = m }
}

// WithAllocator attaches a cpualloc.Allocator. Synthesize does not query
// its thread recommendation.
func WithAllocator(a *cpualloc.Allocator) Option {
	return func(o *Orchestrator) { o.alloc = a }
}

// WithLogger overrides the default slog.Logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// New builds an Orchestrator. model and voices must be non-nil.
func New(cfg Config, model Model, voices *voiceasset.Manager, opts ...Option) (*Orchestrator, error) {
	cache, err := audiocache.New(cfg.CacheCapacity, cfg.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: build cache: %w", err)
	}

	o := &Orchestrator{
		cfg:      cfg,
		model:    model,
		voices:   voices,
		pipeline: textpipe.New(),
		cache:    cache,
		encoders: map[Format]Encoder{FormatWAV: wavEncoder{}},
		log:      slog.Default(),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o, nil
}

// Synthesize runs the full pipeline: cache lookup, variant retry ladder,
// encode, cache insert, perf sample.
func (o *Orchestrator) Synthesize(ctx context.Context, req Request) (Result, error) {
	if o.model == nil {
		return Result{}, newError(KindModelNotReady, "acoustic model is not initialized")
	}

	format := req.Format
	if format == "" {
		format = o.cfg.DefaultFormat
	}

	encoder, ok := o.encoders[format]
	if !ok {
		return Result{}, newError(KindEncoding, fmt.Sprintf("no encoder registered for format %q", format))
	}

	emb, err := o.resolveVoice(req)
	if err != nil {
		return Result{}, err
	}

	key := audiocache.NewKey(req.Text, req.Voice, req.Speed, string(format))

	if entry, hit := o.cache.Get(key); hit {
		o.recordSample(req, format, 0, 0, true)
		return Result{Bytes: entry.Bytes, CacheHit: true, Format: format}, nil
	}

	genStart := time.Now()

	samples, attemptsUsed, lastVariantName, err := o.synthesizeWithRetries(ctx, req, emb)
	if err != nil {
		return Result{}, err
	}

	genElapsed := time.Since(genStart)

	if req.Speed > 0 {
		samples = audio.Resample(samples, req.Speed)
	}

	encoded, err := encoder.Encode(samples, tts.SampleRate)
	if err != nil {
		return Result{}, newError(KindEncoding, err.Error())
	}

	o.cache.Put(key, audiocache.Entry{
		Bytes:           encoded,
		Voice:           req.Voice,
		TextFingerprint: audiocache.FingerprintText(req.Text),
		Speed:           req.Speed,
		Format:          string(format),
	})

	// Real-time factor relates wall-clock generation time to the duration of
	// audio it produced: below 1.0 means synthesis runs faster than playback.
	durationSec := float64(len(samples)) / float64(tts.SampleRate)
	rtf := 0.0

	if durationSec > 0 {
		rtf = genElapsed.Seconds() / durationSec
	}

	o.recordSample(req, format, rtf, attemptsUsed, false)

	o.log.Debug("orchestrator: synthesis complete",
		"voice", req.Voice, "format", format, "attempts", attemptsUsed, "final_variant", lastVariantName)

	return Result{Bytes: encoded, CacheHit: false, Format: format}, nil
}

func (o *Orchestrator) recordSample(req Request, format Format, rtf float64, attempts int, hit bool) {
	if o.monitor == nil {
		return
	}

	o.monitor.Record(perf.Sample{
		Timestamp:  time.Now(),
		RTF:        rtf,
		CacheHit:   hit,
		Voice:      req.Voice,
		TextLength: len(req.Text),
		Format:     string(format),
		Speed:      req.Speed,
	})
}

// resolveVoice looks up (or blends) the style matrix and converts it into
// the model-neutral VoiceEmbedding payload.
func (o *Orchestrator) resolveVoice(req Request) (*tts.VoiceEmbedding, error) {
	if o.voices == nil {
		return nil, nil
	}

	if len(req.VoiceWeights) > 0 {
		return o.resolveBlend(req.VoiceWeights)
	}

	if req.Voice == "" {
		return nil, nil
	}

	asset, ok := o.voices.Get(req.Voice)
	if !ok {
		return nil, o.voiceNotFoundError(req.Voice)
	}

	rows, cols := asset.Dims()

	return &tts.VoiceEmbedding{Data: asset.Matrix, Shape: []int64{1, int64(rows), int64(cols)}}, nil
}

func (o *Orchestrator) resolveBlend(weights map[string]float64) (*tts.VoiceEmbedding, error) {
	if o.cfg.MaxBlendVoices > 0 && len(weights) > o.cfg.MaxBlendVoices {
		return nil, newError(KindValidation, fmt.Sprintf("blend requests at most %d voices, got %d", o.cfg.MaxBlendVoices, len(weights)))
	}

	assets := make([]*voiceasset.Asset, 0, len(weights))
	ws := make([]float64, 0, len(weights))

	for name, w := range weights {
		a, ok := o.voices.Get(name)
		if !ok {
			return nil, o.voiceNotFoundError(name)
		}

		assets = append(assets, a)
		ws = append(ws, w)
	}

	blended, err := voiceasset.BlendWeighted(assets, ws)
	if err != nil {
		return nil, newError(KindValidation, err.Error())
	}

	rows, cols := blended.Dims()

	return &tts.VoiceEmbedding{Data: blended.Matrix, Shape: []int64{1, int64(rows), int64(cols)}}, nil
}

func (o *Orchestrator) voiceNotFoundError(name string) *Error {
	e := newError(KindVoiceNotFound, fmt.Sprintf("unknown voice %q", name))
	if o.voices != nil {
		e.Diagnostics = map[string]any{"suggestions": nearestVoices(name, o.voices.List())}
	}

	return e
}

// synthesizeWithRetries walks the conservative/minimal/standard/aggressive
// variant ladder, selecting a variant per attempt and accepting the first
// non-empty, all-finite sample buffer.
func (o *Orchestrator) synthesizeWithRetries(ctx context.Context, req Request, emb *tts.VoiceEmbedding) ([]float32, int, string, error) {
	maxRetries := o.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	variants := []textpipe.Variant{
		textpipe.VariantConservative,
		textpipe.VariantMinimal,
		textpipe.VariantStandard,
		textpipe.VariantAggressive,
	}

	var (
		lastVariantName string
		sawNonFinite    bool
	)

	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, attempt, lastVariantName, err
		}

		idx := attempt
		if idx > 3 {
			idx = 3
		}

		variant := variants[idx]
		res := o.pipeline.PrepareVariant(req.Text, o.cfg.PipelineConfig, variant)
		lastVariantName = variantName(variant)

		samples, err := o.model.SynthesizeEmbeddingCtx(ctx, res.Text, emb)
		if err == nil && len(samples) > 0 {
			if allFinite(samples) {
				return samples, attempt + 1, lastVariantName, nil
			}

			sawNonFinite = true
		}

		if err != nil {
			o.log.Warn("orchestrator: model invocation failed, retrying", "attempt", attempt, "variant", lastVariantName, "error", err)
		}

		if attempt < maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, attempt + 1, lastVariantName, ctx.Err()
			case <-time.After(o.cfg.RetryDelay):
			}
		}
	}

	// A run that produced samples but with NaN/Inf content is a distinct
	// failure mode from one that never produced any samples at all.
	kind := KindEmptyAudio
	detail := "acoustic model produced no usable audio after exhausting retries"

	if sawNonFinite {
		kind = KindInvalidAudio
		detail = "acoustic model produced non-finite samples after exhausting retries"
	}

	diagErr := newError(kind, detail)
	diagErr.Diagnostics = map[string]any{
		"voice":         req.Voice,
		"text_length":   len(req.Text),
		"final_variant": lastVariantName,
	}

	return nil, maxRetries, lastVariantName, diagErr
}

func variantName(v textpipe.Variant) string {
	switch v {
	case textpipe.VariantConservative:
		return "conservative"
	case textpipe.VariantMinimal:
		return "minimal"
	case textpipe.VariantStandard:
		return "standard"
	default:
		return "aggressive"
	}
}

func allFinite(samples []float32) bool {
	for _, s := range samples {
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
			return false
		}
	}

	return true
}

// nearestVoices returns known voice names sharing a case-insensitive
// prefix with name, for the VoiceNotFound suggestion list.
func nearestVoices(name string, known []string) []string {
	var out []string

	lower := strings.ToLower(name)
	for _, k := range known {
		if len(lower) > 0 && len(k) >= len(lower) && strings.ToLower(k[:min(len(lower), len(k))]) == lower {
			out = append(out, k)
		}
	}

	return out
}
