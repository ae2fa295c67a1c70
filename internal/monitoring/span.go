package monitoring

import (
	"time"

	"go.uber.org/zap"
)

// Span logs the duration and outcome of an operation. Call it at the top of a
// function and defer the returned func with a pointer to the named error:
//
//	func (p *Pipeline) Run(ctx context.Context) (err error) {
//		defer monitoring.Span("pipeline.run")(&err)
//		...
//	}
func Span(name string, fields ...zap.Field) func(errp *error) {
	start := time.Now()
	return func(errp *error) {
		elapsed := time.Since(start)
		fs := append([]zap.Field{zap.Duration("elapsed", elapsed)}, fields...)
		if errp != nil && *errp != nil {
			fs = append(fs, zap.Error(*errp))
			zap.L().Warn(name+" failed", fs...)
			return
		}
		zap.L().Debug(name+" done", fs...)
	}
}
