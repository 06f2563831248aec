package pipeline

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mapsproj/maps/pkg/document"
)

// Input is one document queued for batch processing.
type Input struct {
	Name   string
	Raw    []byte
	Format document.Format
}

// RunBatch processes inputs with at most workers documents in flight.
// A document that fails does not abort the batch; its error is captured
// in the corresponding result. Results keep input order. Cancellation is
// the only way the batch stops early, and the context error is recorded
// on every document that never ran.
func (p *Pipeline) RunBatch(ctx context.Context, inputs []Input, workers int) []Result {
	if workers < 1 {
		workers = 1
	}
	results := make([]Result, len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, in := range inputs {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(inputs); j++ {
				results[j] = Result{Input: inputs[j].Name, Err: err}
			}
			break
		}
		g.Go(func() error {
			res, err := p.Process(ctx, in.Raw, in.Format)
			if err != nil {
				p.logger.Warn("document failed",
					zap.String("input", in.Name),
					zap.Error(err))
				results[i] = Result{Input: in.Name, Err: err}
				return nil
			}
			res.Input = in.Name
			results[i] = *res
			return nil
		})
	}
	g.Wait()
	return results
}
