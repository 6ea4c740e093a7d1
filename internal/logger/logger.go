package logger

import (
	"go.uber.org/zap"
)

// New returns a JSON production logger, or a console logger outside production.
func New(appEnv string) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if appEnv == "production" {
		l, err = zap.NewProduction()
	} else {
		l, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	return l
}
