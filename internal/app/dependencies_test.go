package app_test

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/phonebill/internal/app"
	"github.com/noah-isme/phonebill/internal/billing"
	"github.com/noah-isme/phonebill/internal/config"
)

func TestBuildWithoutRedis(t *testing.T) {
	cfg := &config.Config{Tariff: billing.DefaultTariff()}
	deps, err := app.Build(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	require.Nil(t, deps.Redis)
	require.NoError(t, deps.Close())

	svc := deps.Service(cfg, zerolog.Nop(), "test")
	require.Nil(t, svc.Cache)
	require.Empty(t, deps.TaskRedisOpt().Addr)
}

func TestBuildWithRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := &config.Config{Tariff: billing.DefaultTariff(), RedisURL: "redis://" + mr.Addr() + "/2"}
	deps, err := app.Build(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })

	require.NotNil(t, deps.Redis)
	opt := deps.TaskRedisOpt()
	require.Equal(t, mr.Addr(), opt.Addr)
	require.Equal(t, 2, opt.DB)

	svc := deps.Service(cfg, zerolog.Nop(), "test")
	require.NotNil(t, svc.Cache)
	bill, err := svc.Calculate(context.Background(), "420774567454,13-01-2025 08:05:10,13-01-2025 08:10:20")
	require.NoError(t, err)
	require.Equal(t, "5.2", bill.Total.StringFixed(1))
}

func TestBuildRejectsInvalidTariff(t *testing.T) {
	tariff := billing.DefaultTariff()
	tariff.PeakStart = tariff.PeakEnd
	_, err := app.Build(context.Background(), &config.Config{Tariff: tariff}, zerolog.Nop())
	require.ErrorIs(t, err, billing.ErrInvalidInput)
}

func TestConnectRedisBadURL(t *testing.T) {
	_, _, err := app.ConnectRedis(context.Background(), "not-a-url")
	require.Error(t, err)
}
