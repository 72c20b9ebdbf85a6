// Package log provides the module-scoped structured logger used across
// meshchain, modeled on klaytn's log.NewModuleLogger convention.
package log

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Module identifies the subsystem a Logger is bound to.
type Module string

const (
	Common     Module = "common"
	Crypto     Module = "crypto"
	CoreTypes  Module = "core/types"
	CorePow    Module = "core/pow"
	Ledger     Module = "ledger"
	P2PWire    Module = "p2pwire"
	Peer       Module = "peer"
	Election   Module = "election"
	Proposer   Module = "proposer"
	ForkChoice Module = "forkchoice"
	Node       Module = "node"
	CmdNode    Module = "cmd/meshnode"
)

var root *zap.Logger

func init() {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.OutputPaths = []string{"stderr"}

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		l = zap.NewNop()
		os.Stderr.WriteString("log: falling back to no-op logger: " + err.Error() + "\n")
	}
	root = l
}

// Logger is a thin wrapper over a bound zap.SugaredLogger.
type Logger struct {
	sugar *zap.SugaredLogger
}

// NewModuleLogger returns a Logger tagged with the given module name.
func NewModuleLogger(m Module) Logger {
	return Logger{sugar: root.Sugar().With("module", string(m))}
}

// NewWith returns a child logger with additional bound key/value pairs,
// mirroring klaytn's logger.NewWith(...) used throughout the consensus
// package to scope a logger to the current state or peer.
func (l Logger) NewWith(kv ...interface{}) Logger {
	return Logger{sugar: l.sugar.With(kv...)}
}

func (l Logger) Debug(msg string, kv ...interface{}) { l.sugar.Debugw(msg, kv...) }
func (l Logger) Info(msg string, kv ...interface{})  { l.sugar.Infow(msg, kv...) }
func (l Logger) Warn(msg string, kv ...interface{})  { l.sugar.Warnw(msg, kv...) }
func (l Logger) Error(msg string, kv ...interface{}) { l.sugar.Errorw(msg, kv...) }

// Sync flushes any buffered log entries, intended to be deferred from main.
func Sync() {
	_ = root.Sync()
}
