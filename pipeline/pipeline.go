package pipeline

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"auto_linkedin_post_publisher/content"
	"auto_linkedin_post_publisher/discovery"
	"auto_linkedin_post_publisher/draft"
	"auto_linkedin_post_publisher/failure"
	"auto_linkedin_post_publisher/generator"
	"auto_linkedin_post_publisher/imagegen"
)

// Searcher fetches grounding snippets for a topic.
type Searcher interface {
	Fetch(ctx context.Context, topic string) (content.SearchContext, error)
}

// Writer produces the raw post text.
type Writer interface {
	Generate(ctx context.Context, topic string, sc content.SearchContext) (content.GeneratedText, error)
}

// forgetter is implemented by searchers that cache contexts.
type forgetter interface {
	Forget(topic string)
}

// Illustrator produces the post image from a bounded prompt.
type Illustrator interface {
	Generate(ctx context.Context, prompt string) (content.Image, error)
	MaxPromptChars() int
}

// Publisher runs one two-phase publish attempt.
type Publisher interface {
	Publish(ctx context.Context, snap content.Snapshot) content.PublishResult
}

// TopicSource suggests topics. Optional.
type TopicSource interface {
	Headlines(ctx context.Context) ([]discovery.Headline, error)
}

// Pipeline runs search, text generation, normalization and image generation
// in sequence, then publishes the current draft on request.
type Pipeline struct {
	Search    Searcher
	Writer    Writer
	Images    Illustrator
	Publisher Publisher
	Topics    TopicSource
	Drafts    *draft.Manager

	Retry failure.Policy
	// StageTimeout bounds each generation stage. Zero means no extra bound.
	StageTimeout time.Duration

	Verbose bool
	Logger  *log.Logger
}

func (p *Pipeline) logger() *log.Logger {
	if p.Logger == nil {
		return log.New(io.Discard, "", 0)
	}
	return p.Logger
}

func (p *Pipeline) infof(format string, args ...interface{}) {
	if !p.Verbose {
		return
	}
	p.logger().Printf("[INFO] "+format, args...)
}

func (p *Pipeline) check() error {
	if p.Drafts == nil || p.Search == nil || p.Writer == nil || p.Images == nil {
		return errors.New("pipeline is missing a stage")
	}
	return nil
}

// Generate replaces the active draft with a fresh one for topic and fills it.
// A stage failure leaves the draft FAILED with the text produced so far; the
// error is returned alongside the resulting draft.
func (p *Pipeline) Generate(ctx context.Context, topic string) (draft.Draft, error) {
	if err := p.check(); err != nil {
		return draft.Draft{}, err
	}
	id, err := p.Drafts.StartGeneration(topic)
	if err != nil {
		return p.Drafts.Current(), err
	}
	cur := p.Drafts.Current()
	topic = cur.Topic
	p.infof("Generating draft %s topic=%q", id, topic)

	fail := func(text string, cause error) (draft.Draft, error) {
		p.logger().Printf("[ERROR] draft %s: %v", id, cause)
		if f, ok := p.Search.(forgetter); ok {
			f.Forget(topic)
		}
		d, err := p.Drafts.FailGeneration(id, text, cause)
		if err != nil {
			return p.Drafts.Current(), err
		}
		return d, cause
	}

	sc, err := stage(ctx, p, func(ctx context.Context) (content.SearchContext, error) {
		return p.Search.Fetch(ctx, topic)
	})
	if err != nil {
		return fail("", err)
	}
	if sc.Empty() {
		p.infof("No search results for %q; generating without grounding", topic)
	} else {
		p.infof("Search returned %d snippets", len(sc.Snippets))
	}

	gen, err := stage(ctx, p, func(ctx context.Context) (content.GeneratedText, error) {
		return p.Writer.Generate(ctx, topic, sc)
	})
	if err != nil {
		return fail("", err)
	}
	text := generator.Normalize(gen.Content)
	p.infof("Generated text model=%s tokens=%d chars=%d", gen.Model, gen.TotalTokens, len(text))
	if text == "" {
		return fail("", failure.New(failure.KindMalformedResponse, "normalize", "generated text is empty after cleanup"))
	}

	prompt := imagegen.BuildPrompt(topic, text, p.Images.MaxPromptChars())
	img, err := stage(ctx, p, func(ctx context.Context) (content.Image, error) {
		return p.Images.Generate(ctx, prompt)
	})
	if err != nil {
		return fail(text, err)
	}
	p.infof("Generated image %s (%d bytes)", img.ContentType, len(img.Data))

	d, err := p.Drafts.CompleteGeneration(id, text, &img)
	if err != nil {
		return p.Drafts.Current(), err
	}
	if d.Status != draft.StatusReady {
		return d, failure.New(d.Failure.Kind, "generate", "%s", d.Failure.Message)
	}
	p.infof("Draft %s ready", id)
	return d, nil
}

// stage runs one generation step with the rate-limit retry policy and the
// per-stage timeout.
func stage[T any](ctx context.Context, p *Pipeline, fn func(ctx context.Context) (T, error)) (T, error) {
	return failure.Retry(ctx, p.Retry, func(ctx context.Context) (T, error) {
		if p.StageTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.StageTimeout)
			defer cancel()
		}
		out, err := fn(ctx)
		if err != nil {
			return out, failure.Classify("generate", err)
		}
		return out, nil
	})
}

// SetText replaces the draft text with the user's edit.
func (p *Pipeline) SetText(text string) (draft.Draft, error) {
	if p.Drafts == nil {
		return draft.Draft{}, errors.New("pipeline has no draft manager")
	}
	return p.Drafts.SetText(text)
}

// Draft returns the active draft.
func (p *Pipeline) Draft() draft.Draft {
	if p.Drafts == nil {
		return draft.Draft{Status: draft.StatusEmpty}
	}
	return p.Drafts.Current()
}

// Publish publishes the current draft text and image. The returned result
// is nil when the attempt never started.
func (p *Pipeline) Publish(ctx context.Context) (draft.Draft, *content.PublishResult, error) {
	if p.Drafts == nil || p.Publisher == nil {
		return draft.Draft{}, nil, errors.New("pipeline has no publisher")
	}
	snap, err := p.Drafts.BeginPublish()
	if err != nil {
		return p.Drafts.Current(), nil, err
	}
	p.infof("Publishing draft %s (%d chars)", snap.DraftID, len(snap.Text))

	res := p.Publisher.Publish(ctx, snap)
	d, err := p.Drafts.CompletePublish(snap.DraftID, res)
	if err != nil {
		return p.Drafts.Current(), &res, err
	}
	if !res.OK() {
		p.logger().Printf("[ERROR] publish draft %s: %s (%s)", snap.DraftID, res.Kind, res.Message)
		return d, &res, res.Err()
	}
	p.infof("Published draft %s as %s", snap.DraftID, res.PostID)
	return d, &res, nil
}

// Suggest lists topic suggestions from the discovery source.
func (p *Pipeline) Suggest(ctx context.Context) ([]discovery.Headline, error) {
	if p.Topics == nil {
		return nil, failure.New(failure.KindValidation, "discover topics", "topic discovery is not configured")
	}
	return p.Topics.Headlines(ctx)
}
