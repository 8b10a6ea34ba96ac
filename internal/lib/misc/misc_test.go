package misc

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinimalHandler(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(NewMinimalHandler(&out, MinimalHandlerOptions{SlogOpts: slog.HandlerOptions{Level: slog.LevelInfo}}))

	Infof(logger, "plan computed for %d pools", 3)
	logger.Warn("catalog stale", "age", "5m")
	Debugf(logger, "not shown")

	assert.Equal(t, "plan computed for 3 pools \nWARN: catalog stale {\"age\":\"5m\"}\n", out.String())
}

func TestGetSecret(t *testing.T) {
	SetSecret("STAKEPLAN_TEST_SECRET", "from-map")
	assert.Equal(t, "from-map", GetSecret("STAKEPLAN_TEST_SECRET"))

	t.Setenv("STAKEPLAN_TEST_SECRET", "from-env")
	assert.Equal(t, "from-env", GetSecret("STAKEPLAN_TEST_SECRET"))

	assert.Equal(t, "(length:8)", MaskSecret("from-env"))
	assert.Equal(t, "(unset)", MaskSecret(""))
}
