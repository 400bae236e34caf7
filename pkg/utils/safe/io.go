package safe

import (
	"context"
	"io"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmatrix/pkg/utils/errutil"
)

// Close closes closer and reports a failure instead of returning it. Nil closers are ignored.
func Close(ctx context.Context, closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		_ = errutil.Handle(ctx, goerr.Wrap(err, "close failed"), "Failed to close")
	}
}

// Write writes data to w for response bodies where the status is already sent.
// Failures are reported, not returned. Nil writers are ignored.
func Write(ctx context.Context, w io.Writer, data []byte) {
	if w == nil {
		return
	}
	if _, err := w.Write(data); err != nil {
		_ = errutil.Handle(ctx, goerr.Wrap(err, "write failed", goerr.V("bytes", len(data))), "Failed to write")
	}
}
