package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"studio/internal/domain"
	"studio/internal/session"
)

// Generator is the remote generation capability the orchestrator drives. It is
// the only place in the system that performs network I/O.
type Generator interface {
	SuggestScenarios(ctx context.Context, product domain.ImageRef, productDescription string) ([]domain.Scenario, error)
	DecomposeScenario(ctx context.Context, model, product domain.ImageRef, scenarioDescription string) ([]string, error)
	GenerateSceneImage(ctx context.Context, model, product domain.ImageRef, promptText string) (domain.ImageRef, error)
	RenderVideo(ctx context.Context, promptText string, seed domain.ImageRef) (domain.VideoClip, error)
}

// Options tunes the per-scene image fan-out.
type Options struct {
	SceneImageInterval time.Duration
	SceneImageBurst    int
}

// Orchestrator sequences the pipeline stages and fans out per-scene work. All
// session mutation happens here and in the session transition methods it
// calls; the generator stays side-effect free.
type Orchestrator struct {
	gen      Generator
	logger   zerolog.Logger
	interval time.Duration
	burst    int
}

func New(gen Generator, logger zerolog.Logger, opts Options) *Orchestrator {
	interval := opts.SceneImageInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	burst := opts.SceneImageBurst
	if burst <= 0 {
		burst = 2
	}
	return &Orchestrator{
		gen:      gen,
		logger:   logger,
		interval: interval,
		burst:    burst,
	}
}

// GenerateScenarios runs the Upload -> ScenarioSelection transition. On
// failure the stage is left where it was and the error message slot is set.
func (o *Orchestrator) GenerateScenarios(ctx context.Context, sess *session.Session, productDescription string) error {
	product, err := sess.BeginScenarioGeneration(productDescription)
	if err != nil {
		return err
	}

	scenarios, err := o.gen.SuggestScenarios(ctx, product, productDescription)
	if err != nil {
		o.logger.Warn().Err(err).Str("session", sess.ID()).Msg("scenario generation failed")
		sess.FailScenarioGeneration(userMessage(err))
		return err
	}

	sess.CompleteScenarioGeneration(scenarios)
	o.logger.Info().Str("session", sess.ID()).Int("scenarios", len(scenarios)).Msg("scenarios generated")
	return nil
}

// SelectScenario runs ScenarioSelection -> Generating -> Ready: scenario
// decomposition followed by the parallel per-scene image fan-out. Scenes whose
// image synthesis fails are dropped; the stage rolls back to scenario
// selection only when decomposition fails or no scene survives.
func (o *Orchestrator) SelectScenario(ctx context.Context, sess *session.Session, scenario domain.Scenario) error {
	model, product, err := sess.BeginSceneGeneration(scenario)
	if err != nil {
		return err
	}

	prompts, err := o.gen.DecomposeScenario(ctx, model, product, scenario.Description)
	if err != nil {
		o.logger.Warn().Err(err).Str("session", sess.ID()).Msg("scenario decomposition failed")
		sess.FailSceneGeneration(userMessage(err))
		return err
	}
	if len(prompts) == 0 {
		err := fmt.Errorf("%w: scenario produced no scene prompts", domain.ErrGenerationFailed)
		sess.FailSceneGeneration(userMessage(err))
		return err
	}

	sess.SetBusyMessage(fmt.Sprintf("Visualizing %d scenes... this may take a while.", len(prompts)))

	scenes, err := o.illustrate(ctx, sess.ID(), model, product, prompts)
	if err != nil {
		sess.FailSceneGeneration(userMessage(err))
		return err
	}
	if len(scenes) == 0 {
		err := fmt.Errorf("%w: could not visualize any scene", domain.ErrGenerationFailed)
		sess.FailSceneGeneration(userMessage(err))
		return err
	}

	sess.CompleteSceneGeneration(scenes)
	o.logger.Info().
		Str("session", sess.ID()).
		Int("prompts", len(prompts)).
		Int("scenes", len(scenes)).
		Msg("storyboard ready")
	return nil
}

// illustrate synthesizes one still per prompt concurrently. Results land in an
// index-keyed slice so completion order never reorders scenes; failed slots
// are logged and compacted away.
func (o *Orchestrator) illustrate(ctx context.Context, sessionID string, model, product domain.ImageRef, prompts []string) ([]domain.ScenePrompt, error) {
	results := make([]*domain.ScenePrompt, len(prompts))
	eg, egCtx := errgroup.WithContext(ctx)
	limiter := rate.NewLimiter(rate.Every(o.interval), o.burst)

	for i, prompt := range prompts {
		i, prompt := i, prompt
		eg.Go(func() error {
			if err := limiter.Wait(egCtx); err != nil {
				return err
			}
			img, err := o.gen.GenerateSceneImage(egCtx, model, product, prompt)
			if err != nil {
				o.logger.Warn().
					Err(err).
					Str("session", sessionID).
					Int("scene", i+1).
					Msg("scene image synthesis failed; dropping scene")
				return nil
			}
			results[i] = &domain.ScenePrompt{Prompt: prompt, Image: img}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	scenes := make([]domain.ScenePrompt, 0, len(results))
	for _, r := range results {
		if r != nil {
			scenes = append(scenes, *r)
		}
	}
	return scenes, nil
}

// RegenerateScene resynthesizes one scene's still. On failure the previous
// image stays untouched; on success the scene's stored video is dropped since
// it no longer matches the still.
func (o *Orchestrator) RegenerateScene(ctx context.Context, sess *session.Session, index int) error {
	scene, model, product, release, err := sess.BeginSceneOperation(session.OpRegenerate, index)
	if err != nil {
		return err
	}
	defer release()

	img, err := o.gen.GenerateSceneImage(ctx, model, product, scene.Prompt)
	if err != nil {
		o.logger.Warn().Err(err).Str("session", sess.ID()).Int("scene", index).Msg("scene regeneration failed")
		sess.SetError(userMessage(err))
		return err
	}

	sess.CompleteRegeneration(index, img)
	o.logger.Info().Str("session", sess.ID()).Int("scene", index).Msg("scene image regenerated")
	return nil
}

// RenderSceneVideo renders one scene's clip, seeded with its current still.
func (o *Orchestrator) RenderSceneVideo(ctx context.Context, sess *session.Session, index int) error {
	scene, _, _, release, err := sess.BeginSceneOperation(session.OpRenderVideo, index)
	if err != nil {
		return err
	}
	defer release()

	clip, err := o.gen.RenderVideo(ctx, scene.Prompt, scene.Image)
	if err != nil {
		o.logger.Warn().Err(err).Str("session", sess.ID()).Int("scene", index).Msg("video render failed")
		sess.SetError(userMessage(err))
		return err
	}

	sess.SetVideo(index, clip)
	o.logger.Info().
		Str("session", sess.ID()).
		Int("scene", index).
		Int("bytes", len(clip.Data)).
		Msg("scene video rendered")
	return nil
}

// userMessage maps an operation failure to the single user-visible message
// slot. Credential problems get a more actionable message than raw provider
// errors.
func userMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrMissingCredential):
		return "Your API key is missing or not valid. Make sure you are using a key from a billing-enabled project."
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return "The operation was interrupted before it finished."
	case err != nil:
		return err.Error()
	}
	return ""
}
