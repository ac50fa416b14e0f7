package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/talevox/talevox/internal/history"
	"github.com/talevox/talevox/internal/observe"
	"github.com/talevox/talevox/internal/persona"
	"github.com/talevox/talevox/pkg/provider/llm"
	"github.com/talevox/talevox/pkg/provider/stt"
	"github.com/talevox/talevox/pkg/provider/tts"
)

// Stage identifies a pipeline stage in errors and telemetry.
type Stage string

const (
	StageInput       Stage = "input"
	StageRecognition Stage = "recognition"
	StageGeneration  Stage = "generation"
	StageSynthesis   Stage = "synthesis"
)

// StageError wraps a failure with the stage it occurred in. UserError marks
// failures caused by the request itself rather than a downstream provider,
// so the HTTP layer can choose the right status code.
type StageError struct {
	Stage     Stage
	UserError bool
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Mode selects the input interpretation of a request.
type Mode string

const (
	ModeAudio Mode = "audio"
	ModeText  Mode = "text"
)

// Request is one player interaction.
type Request struct {
	NPCID    string
	PlayerID string
	Mode     Mode

	// AudioPayload is base64 text, optionally wrapped in a data: URI.
	// Required in audio mode, forbidden in text mode.
	AudioPayload string

	// Text is the player's utterance. Required in text mode, forbidden in
	// audio mode.
	Text string

	// Language is an ISO 639-1 code. Defaults to [DefaultLanguage].
	Language string
}

// DefaultLanguage is used when a request carries no language code.
const DefaultLanguage = "fr"

// Result is a successful interaction outcome. All three fields are always
// populated on success; a fatal stage failure yields no partial result.
type Result struct {
	Transcript string
	ReplyText  string
	ReplyAudio []byte
}

// systemPrompt frames every generation request.
const systemPrompt = "You are a non-player character (NPC) in a video game."

// Pipeline drives one interaction through its stages: validate input,
// recognize audio, assemble the prompt, generate the reply, synthesize
// speech and record the exchange. Stages run strictly in order and the
// first fatal failure aborts the rest. Only the final history append is
// best effort.
//
// A Pipeline is safe for concurrent use; every interaction is an
// independent unit of work sharing only the stores.
type Pipeline struct {
	recognizer  stt.Provider
	generator   llm.Provider
	synthesizer tts.Provider
	personas    persona.Store
	histories   history.Store

	logger       *slog.Logger
	metrics      *observe.Metrics
	window       int
	defaultVoice tts.VoiceProfile
	defaultLang  string
	stageTimeout time.Duration
}

// Option configures a [Pipeline].
type Option func(*Pipeline)

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithHistoryWindow bounds how many recent exchanges are included in a
// prompt. Defaults to [DefaultHistoryWindow].
func WithHistoryWindow(n int) Option {
	return func(p *Pipeline) { p.window = n }
}

// WithDefaultVoice sets the voice used for NPCs without a registered voice
// selector.
func WithDefaultVoice(v tts.VoiceProfile) Option {
	return func(p *Pipeline) { p.defaultVoice = v }
}

// WithStageTimeout bounds each provider call and store operation
// individually. Zero disables per-stage deadlines.
func WithStageTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.stageTimeout = d }
}

// WithDefaultLanguage overrides the language assumed for requests that carry
// no code. Defaults to [DefaultLanguage].
func WithDefaultLanguage(code string) Option {
	return func(p *Pipeline) {
		if code != "" {
			p.defaultLang = code
		}
	}
}

// NewPipeline wires a pipeline from its collaborators. The recognizer may be
// nil if only text-mode requests will be served.
func NewPipeline(recognizer stt.Provider, generator llm.Provider, synthesizer tts.Provider,
	personas persona.Store, histories history.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		recognizer:  recognizer,
		generator:   generator,
		synthesizer: synthesizer,
		personas:    personas,
		histories:   histories,
		window:      DefaultHistoryWindow,
		defaultLang: DefaultLanguage,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	if p.window <= 0 {
		p.window = DefaultHistoryWindow
	}
	return p
}

// Interact runs one request through the full pipeline. It returns either a
// complete [Result] or a [*StageError]; no partial artifacts are exposed.
func (p *Pipeline) Interact(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	log := p.logger.With(
		slog.String("interaction_id", uuid.NewString()),
		slog.String("npc_id", req.NPCID),
		slog.String("player_id", req.PlayerID),
	)

	if req.Language == "" {
		req.Language = p.defaultLang
	}

	res, err := p.interact(ctx, req, log)

	status := "ok"
	if err != nil {
		status = "error"
	}
	p.metrics.RecordInteraction(ctx, req.NPCID, status)
	p.metrics.InteractionDuration.Record(ctx, time.Since(start).Seconds())
	return res, err
}

func (p *Pipeline) interact(ctx context.Context, req Request, log *slog.Logger) (*Result, error) {
	if err := validateRequest(req); err != nil {
		return nil, &StageError{Stage: StageInput, UserError: true, Err: err}
	}

	transcript, err := p.transcribe(ctx, req, log)
	if err != nil {
		return nil, err
	}

	prompt, voice, err := p.assemble(ctx, req, transcript)
	if err != nil {
		return nil, err
	}

	replyText, err := p.generate(ctx, prompt, log)
	if err != nil {
		return nil, err
	}

	replyAudio, err := p.synthesize(ctx, replyText, voice, log)
	if err != nil {
		return nil, err
	}

	// Best effort: a lost history entry is acceptable, a lost reply is not.
	p.record(ctx, req, transcript, replyText, log)

	return &Result{
		Transcript: transcript,
		ReplyText:  replyText,
		ReplyAudio: replyAudio,
	}, nil
}

func validateRequest(req Request) error {
	var errs []error
	if req.NPCID == "" {
		errs = append(errs, errors.New("npc_id is required"))
	}
	if req.PlayerID == "" {
		errs = append(errs, errors.New("player_id is required"))
	}
	switch req.Mode {
	case ModeAudio:
		if req.AudioPayload == "" {
			errs = append(errs, errors.New("audio payload is required in audio mode"))
		}
		if req.Text != "" {
			errs = append(errs, errors.New("text must be empty in audio mode"))
		}
	case ModeText:
		if req.Text == "" {
			errs = append(errs, errors.New("text is required in text mode"))
		}
		if req.AudioPayload != "" {
			errs = append(errs, errors.New("audio payload must be empty in text mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown mode %q", req.Mode))
	}
	return errors.Join(errs...)
}

// stageCtx bounds a single external call when a stage timeout is configured.
func (p *Pipeline) stageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.stageTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.stageTimeout)
}

func (p *Pipeline) transcribe(ctx context.Context, req Request, log *slog.Logger) (string, error) {
	if req.Mode == ModeText {
		return req.Text, nil
	}

	if p.recognizer == nil {
		return "", &StageError{Stage: StageRecognition, Err: errors.New("no recognizer configured")}
	}

	audio, err := decodeAudioPayload(req.AudioPayload)
	if err != nil {
		return "", &StageError{Stage: StageInput, UserError: true, Err: err}
	}

	cctx, cancel := p.stageCtx(ctx)
	defer cancel()

	start := time.Now()
	transcript, err := p.recognizer.Transcribe(cctx, audio, req.Language)
	p.metrics.RecognitionDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordProviderError(ctx, "recognizer", string(StageRecognition))
		return "", &StageError{Stage: StageRecognition, Err: err}
	}
	p.metrics.RecordProviderRequest(ctx, "recognizer", string(StageRecognition), "ok")
	log.Debug("audio transcribed", slog.Int("audio_bytes", len(audio)))
	return transcript, nil
}

// assemble resolves persona and history and builds the prompt. A missing
// persona is absorbed via the default description, a missing history is an
// empty window. Store read failures after that substitution would still hide
// real outages, so they are fatal.
func (p *Pipeline) assemble(ctx context.Context, req Request, transcript string) (string, tts.VoiceProfile, error) {
	cctx, cancel := p.stageCtx(ctx)
	defer cancel()

	desc := DefaultPersonaDescription
	voice := p.defaultVoice
	np, err := p.personas.Get(cctx, req.NPCID)
	if err != nil {
		return "", tts.VoiceProfile{}, &StageError{Stage: StageGeneration,
			Err: fmt.Errorf("load persona: %w", err)}
	}
	if np != nil {
		desc = np.Description
		if np.VoiceID != "" {
			voice = tts.VoiceProfile{ID: np.VoiceID}
		}
	}

	hctx, hcancel := p.stageCtx(ctx)
	defer hcancel()

	window, err := p.histories.Recent(hctx, req.PlayerID, req.NPCID, p.window)
	if err != nil {
		return "", tts.VoiceProfile{}, &StageError{Stage: StageGeneration,
			Err: fmt.Errorf("load history: %w", err)}
	}

	prompt := AssemblePrompt(PromptInput{
		PersonaDescription: desc,
		History:            window,
		PlayerID:           req.PlayerID,
		NPCID:              req.NPCID,
		InputText:          transcript,
		Language:           req.Language,
		Window:             p.window,
	})
	return prompt, voice, nil
}

func (p *Pipeline) generate(ctx context.Context, prompt string, log *slog.Logger) (string, error) {
	cctx, cancel := p.stageCtx(ctx)
	defer cancel()

	start := time.Now()
	resp, err := p.generator.Complete(cctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Prompt:       prompt,
	})
	p.metrics.GenerationDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordProviderError(ctx, "generator", string(StageGeneration))
		return "", &StageError{Stage: StageGeneration, Err: err}
	}
	if resp == nil || resp.Content == "" {
		p.metrics.RecordProviderError(ctx, "generator", string(StageGeneration))
		return "", &StageError{Stage: StageGeneration, Err: errors.New("empty completion")}
	}
	p.metrics.RecordProviderRequest(ctx, "generator", string(StageGeneration), "ok")
	log.Debug("reply generated", slog.Int("reply_chars", len(resp.Content)))
	return resp.Content, nil
}

func (p *Pipeline) synthesize(ctx context.Context, text string, voice tts.VoiceProfile, log *slog.Logger) ([]byte, error) {
	cctx, cancel := p.stageCtx(ctx)
	defer cancel()

	start := time.Now()
	audio, err := p.synthesizer.Synthesize(cctx, text, voice)
	p.metrics.SynthesisDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordProviderError(ctx, "synthesizer", string(StageSynthesis))
		return nil, &StageError{Stage: StageSynthesis, Err: err}
	}
	p.metrics.RecordProviderRequest(ctx, "synthesizer", string(StageSynthesis), "ok")
	log.Debug("reply synthesized", slog.Int("audio_bytes", len(audio)))
	return audio, nil
}

// record appends the finished exchange to the history store. Failures are
// logged and counted, never surfaced.
func (p *Pipeline) record(ctx context.Context, req Request, transcript, replyText string, log *slog.Logger) {
	cctx, cancel := p.stageCtx(ctx)
	defer cancel()

	err := p.histories.Append(cctx, req.PlayerID, req.NPCID, history.Exchange{
		PlayerText: transcript,
		NPCText:    replyText,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		p.metrics.RecordHistoryAppendDropped(ctx, req.NPCID)
		log.Warn("history append failed, exchange dropped", slog.String("error", err.Error()))
	}
}
