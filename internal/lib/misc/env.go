/*
 * Copyright (c) 2022. TxnLab Inc.
 * All Rights reserved.
 */

package misc

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
)

// LoadEnvSettings loads .env.local then .env - earlier files win as godotenv never overrides
// variables which are already set.
func LoadEnvSettings(logger *slog.Logger) {
	loadIfPresent(logger, ".env.local")
	loadIfPresent(logger, ".env")
}

// LoadEnvForNetwork loads network specific overrides - ie: .env.kovan
func LoadEnvForNetwork(logger *slog.Logger, network string) {
	loadIfPresent(logger, fmt.Sprintf(".env.%s", network))
}

func loadIfPresent(logger *slog.Logger, filename string) {
	err := godotenv.Load(filename)
	if err == nil {
		Debugf(logger, "loaded env file:%s", filename)
		return
	}
	if !errors.Is(err, fs.ErrNotExist) {
		Warnf(logger, "unable to load env file:%s, err:%v", filename, err)
	}
}
