package logging

import "go.uber.org/zap"

func NewSugaredLogger() *zap.SugaredLogger {
	logger, err := zap.NewProduction()
	if err != nil {
		panic("cannot initialize zap")
	}
	return logger.Sugar()
}
