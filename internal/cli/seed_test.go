package cli_test

import (
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/finwatch/internal/config"
	"github.com/rshade/finwatch/internal/source/redissource"
)

func TestSeedThenSnapshotFromRedis(t *testing.T) {
	setupCLIEnv(t)
	mr := miniredis.RunT(t)
	t.Setenv(config.EnvRedisAddr, mr.Addr())

	out, err := executeCmd(t, "seed", "--ticks", "2", "--interval", "10ms")
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded 7 of 8 records into redis at "+mr.Addr())
	assert.Contains(t, out, "Tick 2/2: published 7 quotes")

	assert.True(t, mr.Exists(redissource.RecordPrefix+"AAPL"))
	assert.True(t, mr.Exists(redissource.QuotePrefix+"AAPL"))
	assert.False(t, mr.Exists(redissource.RecordPrefix+"TSLA"))

	out, err = executeCmd(t, "snapshot", "--source", "redis", "--output", "json")
	require.NoError(t, err)

	var got snapshotJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.True(t, got.Complete)
	assert.Len(t, got.Records, 7)
	assert.Equal(t, []string{"TSLA"}, got.Unavailable)
}

func TestSeed_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"negative ttl", []string{"--ttl", "-1s"}, "--ttl"},
		{"negative ticks", []string{"--ticks", "-1"}, "--ticks"},
		{"zero interval", []string{"--ticks", "1", "--interval", "0s"}, "--interval"},
		{"unknown view", []string{"--view", "nope"}, "unknown view"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupCLIEnv(t)
			_, err := executeCmd(t, append([]string{"seed"}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("redis unreachable", func(t *testing.T) {
		setupCLIEnv(t)
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()
		t.Setenv(config.EnvRedisAddr, addr)

		_, err := executeCmd(t, "seed")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connecting to redis")
	})
}
