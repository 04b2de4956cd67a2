package compiler

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Source is one script of a batch
type Source struct {
	Name string
	Text string
}

// CompileAll compiles sources concurrently, at most limit at a time when
// limit is positive. Programs are returned in the order of sources. The
// first failure cancels the compilations that have not started yet.
// A nil cache compiles every source afresh.
func CompileAll(ctx context.Context, sources []Source, opts Options, cache *Cache, limit int) ([]*Program, error) {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	progs := make([]*Program, len(sources))
	for i, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var p *Program
			var err error
			if cache != nil {
				p, err = cache.Compile(src.Text, src.Name, opts)
			} else {
				p, err = Compile(src.Text, src.Name, opts)
			}
			if err != nil {
				return err
			}
			progs[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return progs, nil
}
