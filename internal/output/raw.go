package output

import (
	"context"
	"fmt"
	"io"
)

// Raw writes each batch's bytes to w as they arrive, in order, with no
// decoding or reformatting — the columnar payload is opaque to this
// package, per spec.md §3.
func Raw(ctx context.Context, w io.Writer, it BatchIterator) error {
	for {
		data, err := it.Next(ctx)
		if err != nil {
			return err
		}
		if data == nil {
			return nil
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("output: writing batch: %w", err)
		}
	}
}
