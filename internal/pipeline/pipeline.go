package pipeline

import (
	"context"
	"log/slog"

	"github.com/CityBaseInc/cityscrape/internal/model"
)

// Step is one stage of a pipeline. Each step receives the report built by
// the steps before it.
type Step interface {
	// Do executes the step. A returned error stops the pipeline unless it
	// was created with WithContinueOnError.
	Do(ctx context.Context, report *model.CrawlReport) error

	// Name returns the step's name for logging.
	Name() string
}

// finalizer marks steps that run after cancellation. They receive a
// context without the cancellation.
type finalizer interface {
	runsAfterCancel()
}

// Pipeline executes steps in order.
type Pipeline struct {
	steps           []Step
	logger          *slog.Logger
	continueOnError bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError keeps executing steps after one fails. The first
// error is still returned by Execute.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{steps: make([]Step, 0)}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends several steps.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the steps in order. Once ctx is canceled only finalizing
// steps still run; Execute then returns ctx.Err() unless an earlier step
// failed.
func (p *Pipeline) Execute(ctx context.Context, report *model.CrawlReport) error {
	var firstErr error
	for _, step := range p.steps {
		stepCtx := ctx
		if ctx.Err() != nil {
			if _, ok := step.(finalizer); !ok {
				p.logger.Warn("skipping step after cancel",
					"step", step.Name(),
					"session", report.SessionID,
				)
				continue
			}
			stepCtx = context.WithoutCancel(ctx)
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"session", report.SessionID,
		)

		if err := step.Do(stepCtx, report); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"session", report.SessionID,
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
			if !p.continueOnError {
				return err
			}
			continue
		}

		p.logger.Debug("step completed",
			"step", step.Name(),
			"session", report.SessionID,
		)
	}

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// StepCount returns the number of steps.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
