// Package main compiles the approval circuit and runs the Groth16 trusted
// setup, writing the artifacts the proving oracle loads at runtime.
package main

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/waas-labs/backend/config"
	"github.com/waas-labs/backend/internal/zkproof"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	paths := zkproof.ArtifactPaths{
		ConstraintSystem: cfg.Circuit.ConstraintSystemPath,
		ProvingKey:       cfg.Circuit.ProvingKeyPath,
		VerifyingKey:     cfg.Circuit.VerifyingKeyPath,
	}
	if err := zkproof.CompileAndSetup(paths); err != nil {
		logger.Fatal("circuit setup", zap.Error(err))
	}
	logger.Info("circuit artifacts written",
		zap.String("constraint_system", paths.ConstraintSystem),
		zap.String("proving_key", paths.ProvingKey),
		zap.String("verifying_key", paths.VerifyingKey))
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
