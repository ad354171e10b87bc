package pipeline

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"diaglog/src/contracts"
	"diaglog/src/fn"
	"diaglog/src/synthesis"
)

// Input is one log of a multi-log run. Path takes precedence over Content.
type Input struct {
	Path    string
	Content string
	Request Request
}

// InputError records a log that produced no report.
type InputError struct {
	Index  int    `json:"index"`
	Source string `json:"source"`
	Error  string `json:"error"`
}

// MultiReport is the result of AnalyzeMany. Reports holds the successful
// runs in input order; evidence sources "log[i]" index into it.
type MultiReport struct {
	Reports    []*contracts.Report  `json:"reports"`
	Errors     []InputError         `json:"errors,omitempty"`
	Conclusion contracts.Conclusion `json:"conclusion"`
}

// AnalyzeMany analyses independent logs in parallel, at most Workers at a
// time, then merges their conclusions. Runs share no mutable state. A failed
// log is listed in Errors and left out of the merge. Partial best-effort
// reports are merged and also listed in Errors. The only error returned is
// the context's.
func (e *Engine) AnalyzeMany(ctx context.Context, inputs []Input) (*MultiReport, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.analyze_many")
	defer span.End()
	span.SetAttributes(attribute.Int("diaglog.inputs", len(inputs)))

	results := fn.ParMapResult(inputs, e.opts.Workers, func(in Input) (*contracts.Report, error) {
		if in.Path != "" {
			return e.AnalyzeFile(ctx, in.Path, in.Request)
		}
		return e.AnalyzeString(ctx, in.Content, in.Request)
	})

	if err := ctx.Err(); err != nil {
		anyPartial := false
		for _, r := range results {
			report, _ := r.Unwrap()
			anyPartial = anyPartial || report != nil
		}
		if !anyPartial {
			return nil, err
		}
	}

	multi := &MultiReport{}
	var conclusions []contracts.Conclusion
	for i, r := range results {
		report, err := r.Unwrap()
		if !r.IsOk() {
			source := inputs[i].Request.Source
			if source == "" {
				source = inputs[i].Path
			}
			multi.Errors = append(multi.Errors, InputError{Index: i, Source: source, Error: err.Error()})
			e.log.Error("[Engine] %s: %v", source, err)
		}
		if report != nil {
			multi.Reports = append(multi.Reports, report)
			conclusions = append(conclusions, report.Conclusion)
		}
	}

	multi.Conclusion = synthesis.Merge(conclusions)
	return multi, ctx.Err()
}
