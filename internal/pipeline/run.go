package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/OFFIS-RIT/keggflow/pkg/common"
	"github.com/OFFIS-RIT/keggflow/pkg/ident"
	"github.com/OFFIS-RIT/keggflow/pkg/logger"
)

const (
	StageExtract        = "extract"
	StageValidate       = "validate"
	StageLink           = "link"
	StageUnify          = "unify"
	StageFetchReactions = "fetch-reactions"
	StageParseReactions = "parse-reactions"
	StageClosure        = "closure"
	StageFetchCompounds = "fetch-compounds"
	StageParseCompounds = "parse-compounds"
)

// Step is one stage with the files it reads and writes. Outputs decide
// freshness and are removed when the stage fails. Logs are side files that
// are kept either way.
type Step struct {
	Name    string
	Inputs  []string
	Outputs []string
	Logs    []string
	Run     func(ctx context.Context) error
}

// Locker serializes stage runs across processes.
type Locker interface {
	WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

// Recorder keeps a history of stage durations.
type Recorder interface {
	RecordStage(ctx context.Context, stage string, start time.Time, duration time.Duration, err error) error
	PredictStage(ctx context.Context, stage string) (time.Duration, error)
}

// Pipeline runs the stages over one file layout.
type Pipeline struct {
	layout   Layout
	fetching Fetching
	locker   Locker
	recorder Recorder
}

type NewPipelineParams struct {
	Layout   Layout
	Fetching Fetching
	// Locker and Recorder are optional.
	Locker   Locker
	Recorder Recorder
}

func NewPipeline(params NewPipelineParams) *Pipeline {
	return &Pipeline{
		layout:   params.Layout,
		fetching: params.Fetching,
		locker:   params.Locker,
		recorder: params.Recorder,
	}
}

// Steps returns the stages in dependency order.
func (p *Pipeline) Steps() []Step {
	l := p.layout

	unifyInputs := []string{l.KOReaction}
	if l.Supplement != "" {
		unifyInputs = append(unifyInputs, l.Supplement)
	}

	return []Step{
		{
			Name:    StageExtract,
			Inputs:  []string{l.GroupedInput},
			Outputs: []string{l.GroupedEdges, l.KOCandidates},
			Run: func(ctx context.Context) error {
				_, err := Extract(ExtractParams{Input: l.GroupedInput, EdgesOutput: l.GroupedEdges, IDsOutput: l.KOCandidates})
				return err
			},
		},
		{
			Name:    StageValidate,
			Inputs:  []string{l.KOCandidates},
			Outputs: []string{l.KOValid},
			Logs:    []string{l.KOInvalid},
			Run: func(ctx context.Context) error {
				_, err := ValidateList(ValidateParams{Kind: ident.KO, Input: l.KOCandidates, Output: l.KOValid, InvalidOutput: l.KOInvalid})
				return err
			},
		},
		{
			Name:    StageLink,
			Inputs:  []string{l.KOValid},
			Outputs: []string{l.KOReaction, l.KOModule, l.KOPathway},
			Logs:    []string{l.LinkErrors},
			Run: func(ctx context.Context) error {
				return Link(ctx, p.fetching, LinkParams{Input: l.KOValid, Relations: l.Relations(), ErrorLog: l.LinkErrors})
			},
		},
		{
			Name:    StageUnify,
			Inputs:  unifyInputs,
			Outputs: []string{l.Reactions},
			Logs:    []string{l.ReactionsBad},
			Run: func(ctx context.Context) error {
				_, err := Unify(UnifyParams{Links: l.KOReaction, Supplement: l.Supplement, Output: l.Reactions, InvalidOutput: l.ReactionsBad})
				return err
			},
		},
		{
			Name:    StageFetchReactions,
			Inputs:  []string{l.Reactions},
			Outputs: []string{l.ReactionFlat},
			Logs:    []string{l.ReactionFetch},
			Run: func(ctx context.Context) error {
				_, err := FetchRecords(ctx, p.fetching, FetchParams{Kind: ident.Reaction, Input: l.Reactions, Output: l.ReactionFlat, ErrorLog: l.ReactionFetch})
				return err
			},
		},
		{
			Name:    StageParseReactions,
			Inputs:  []string{l.ReactionFlat},
			Outputs: []string{l.Equations, l.ECs, l.Edges, l.Classes, l.Summary},
			Logs:    []string{l.ReactionParse},
			Run: func(ctx context.Context) error {
				_, err := ParseReactions(ParseReactionsParams{
					Input:     l.ReactionFlat,
					Equations: l.Equations,
					ECs:       l.ECs,
					Edges:     l.Edges,
					Classes:   l.Classes,
					Summary:   l.Summary,
					Log:       l.ReactionParse,
				})
				return err
			},
		},
		{
			Name:    StageClosure,
			Inputs:  []string{l.Edges},
			Outputs: []string{l.Compounds},
			Run: func(ctx context.Context) error {
				_, err := Closure(ClosureParams{Edges: l.Edges, Output: l.Compounds})
				return err
			},
		},
		{
			Name:    StageFetchCompounds,
			Inputs:  []string{l.Compounds},
			Outputs: []string{l.CompoundFlat},
			Logs:    []string{l.CompoundFetch},
			Run: func(ctx context.Context) error {
				_, err := FetchRecords(ctx, p.fetching, FetchParams{Kind: ident.Compound, Input: l.Compounds, Output: l.CompoundFlat, ErrorLog: l.CompoundFetch})
				return err
			},
		},
		{
			Name:    StageParseCompounds,
			Inputs:  []string{l.CompoundFlat},
			Outputs: []string{l.CompoundTable},
			Logs:    []string{l.CompoundParse},
			Run: func(ctx context.Context) error {
				_, err := ParseCompounds(ParseCompoundsParams{Input: l.CompoundFlat, Output: l.CompoundTable, Log: l.CompoundParse})
				return err
			},
		},
	}
}

// StageNames lists the stage names in order.
func (p *Pipeline) StageNames() []string {
	steps := p.Steps()
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Name
	}
	return names
}

// Run executes every stage in order, skipping fresh ones unless force is set.
func (p *Pipeline) Run(ctx context.Context, force bool) error {
	start := time.Now()
	for _, step := range p.Steps() {
		if err := p.runStep(ctx, step, force); err != nil {
			return err
		}
	}
	logger.Info("[Run] Pipeline finished", "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

// RunStage executes one stage by name.
func (p *Pipeline) RunStage(ctx context.Context, name string, force bool) error {
	for _, step := range p.Steps() {
		if step.Name == name {
			return p.runStep(ctx, step, force)
		}
	}
	return fmt.Errorf("%w %q", common.ErrUnknownStage, name)
}

func (p *Pipeline) runStep(ctx context.Context, step Step, force bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !force {
		fresh, err := Fresh(step)
		if err != nil {
			return err
		}
		if fresh {
			logger.Info("[Run] Stage is up to date", "stage", step.Name)
			return nil
		}
	}

	run := func(ctx context.Context) error {
		start := time.Now()
		logger.Info("[Run] Starting stage", "stage", step.Name, "expected", p.predict(ctx, step.Name))
		err := step.Run(ctx)
		p.record(ctx, step.Name, start, err)
		if err != nil {
			discard(step)
			return fmt.Errorf("stage %s: %w", step.Name, err)
		}
		logger.Info("[Run] Finished stage", "stage", step.Name, "duration", time.Since(start).Round(time.Millisecond))
		return nil
	}
	if p.locker == nil {
		return run(ctx)
	}
	return p.locker.WithLock(ctx, "stage:"+step.Name, run)
}

func (p *Pipeline) predict(ctx context.Context, stage string) time.Duration {
	if p.recorder == nil {
		return 0
	}
	d, err := p.recorder.PredictStage(ctx, stage)
	if err != nil {
		logger.Debug("[Run] No duration estimate", "stage", stage, "err", err)
		return 0
	}
	return d
}

// record stores the run even when ctx was canceled by a signal.
func (p *Pipeline) record(ctx context.Context, stage string, start time.Time, runErr error) {
	if p.recorder == nil {
		return
	}
	err := p.recorder.RecordStage(context.WithoutCancel(ctx), stage, start, time.Since(start), runErr)
	if err != nil {
		logger.Warn("[Run] Failed to record stage duration", "stage", stage, "err", err)
	}
}

// discard removes the outputs of a failed step so that a later run does not
// take a partial file for a finished one.
func discard(step Step) {
	for _, out := range step.Outputs {
		if err := os.Remove(out); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("[Run] Failed to remove stage output", "stage", step.Name, "path", out, "err", err)
		}
	}
}

// Fresh reports whether every output of step exists, is non-empty and none
// is older than its newest input. A step whose input is missing is never
// fresh, so it runs and reports the missing file itself.
func Fresh(step Step) (bool, error) {
	var newestInput time.Time
	for _, in := range step.Inputs {
		info, err := os.Stat(in)
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if info.ModTime().After(newestInput) {
			newestInput = info.ModTime()
		}
	}
	for _, out := range step.Outputs {
		info, err := os.Stat(out)
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if info.Size() == 0 || info.ModTime().Before(newestInput) {
			return false, nil
		}
	}
	return len(step.Outputs) > 0, nil
}
