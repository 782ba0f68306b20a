package submit

import (
	"context"
	"iter"

	"github.com/3leaps/ntbatch/pkg/catalog"
	"github.com/3leaps/ntbatch/pkg/selection"
)

type queryResult struct {
	sel     selection.Concrete
	records []catalog.Record
	err     error
}

// queries runs one catalog query per concrete selection and yields the
// results in selection order.
//
// With QueryConcurrency > 1 up to that many queries run ahead of the
// consumer. Partitioning still sees results in order, so chunk numbering
// does not depend on query timing.
func (d *Driver) queries(ctx context.Context, sels iter.Seq[selection.Concrete]) iter.Seq[queryResult] {
	width := d.opts.QueryConcurrency
	if width <= 1 {
		return func(yield func(queryResult) bool) {
			for sel := range sels {
				recs, err := d.catalog.Query(ctx, d.opts.Table, sel.Names, sel.Values)
				if !yield(queryResult{sel: sel, records: recs, err: err}) {
					return
				}
			}
		}
	}

	return func(yield func(queryResult) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		next, stop := iter.Pull(sels)
		defer stop()

		window := make([]chan queryResult, 0, width)
		launch := func() bool {
			sel, ok := next()
			if !ok {
				return false
			}
			ch := make(chan queryResult, 1)
			go func() {
				recs, err := d.catalog.Query(ctx, d.opts.Table, sel.Names, sel.Values)
				ch <- queryResult{sel: sel, records: recs, err: err}
			}()
			window = append(window, ch)
			return true
		}

		for len(window) < width && launch() {
		}
		for len(window) > 0 {
			res := <-window[0]
			window = window[1:]
			if !yield(res) {
				return
			}
			launch()
		}
	}
}
