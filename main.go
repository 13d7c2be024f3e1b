package main

import (
	"context"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/mdobak/go-xerrors"

	"surveil-screener/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logger := utils.GetLogger()
		err := xerrors.New(err)
		logger.DebugContext(context.Background(), "No .env file loaded.", slog.Any("error", err))
	}

	Execute()
}
