package reqlog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapDiagnostics пишет в zap, по умолчанию в stderr
type ZapDiagnostics struct {
	logger *zap.Logger
}

func NewZapDiagnostics(logger *zap.Logger) *ZapDiagnostics {
	if logger == nil {
		logger = zap.New(zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.Lock(os.Stderr),
			zap.WarnLevel,
		))
	}
	return &ZapDiagnostics{logger: logger}
}

func (d *ZapDiagnostics) Report(msg string, err error, fields ...zap.Field) {
	d.logger.Error(msg, append(fields, zap.Error(err))...)
}
