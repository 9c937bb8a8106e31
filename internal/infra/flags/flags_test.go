package flags

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notification-prep/internal/domain/entity"
)

const sample = `
default:
  notification: 60
  configurations: 60
  brand: 120
tenants:
  acme:
    drafts: 30
  acme/test:
    notification: 5
`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flags.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestParse(t *testing.T) {
	f, err := Parse([]byte(sample))

	require.NoError(t, err)
	assert.Equal(t, entity.CacheVariation{Notification: 60, Configurations: 60, Brand: 120}, f.Default)
	assert.Equal(t, entity.CacheVariation{Drafts: 30}, f.Tenants["acme"])
	assert.Len(t, f.Tenants, 2)
}

func TestParse_UnknownKey(t *testing.T) {
	_, err := Parse([]byte("default:\n  notifications: 60\n"))

	assert.Error(t, err)
}

func TestSource_CacheVariation(t *testing.T) {
	ctx := context.Background()
	s := NewSource(writeFile(t, sample), quietLogger())

	_, err := s.CacheVariation(ctx, "acme")
	assert.ErrorIs(t, err, ErrNotLoaded)

	require.NoError(t, s.Load())
	assert.False(t, s.LoadedAt().IsZero())

	tests := []struct {
		tenant string
		want   entity.CacheVariation
	}{
		{tenant: "acme", want: entity.CacheVariation{Drafts: 30}},
		{tenant: "acme/test", want: entity.CacheVariation{Notification: 5}},
		{tenant: "globex", want: entity.CacheVariation{Notification: 60, Configurations: 60, Brand: 120}},
	}
	for _, tt := range tests {
		t.Run(tt.tenant, func(t *testing.T) {
			got, err := s.CacheVariation(ctx, tt.tenant)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSource_FailedReloadKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	path := writeFile(t, sample)
	s := NewSource(path, quietLogger())
	require.NoError(t, s.Load())

	require.NoError(t, os.WriteFile(path, []byte("default: [not, a, map]"), 0o600))
	assert.Error(t, s.Load())

	got, err := s.CacheVariation(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 30, got.Drafts)
}

func TestSource_MissingFile(t *testing.T) {
	s := NewSource(filepath.Join(t.TempDir(), "absent.yaml"), quietLogger())

	err := s.Load()

	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestSource_Schedule(t *testing.T) {
	path := writeFile(t, "default:\n  brand: 10\n")
	s := NewSource(path, quietLogger())
	require.NoError(t, s.Load())

	require.NoError(t, os.WriteFile(path, []byte("default:\n  brand: 20\n"), 0o600))

	var reloads atomic.Int32
	c := cron.New()
	_, err := s.Schedule(c, "@every 1s", func(err error) {
		if err == nil {
			reloads.Add(1)
		}
	})
	require.NoError(t, err)
	c.Start()
	defer c.Stop()

	assert.Eventually(t, func() bool { return reloads.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	got, err := s.CacheVariation(context.Background(), "any")
	require.NoError(t, err)
	assert.Equal(t, 20, got.Brand)
}

func TestSource_ScheduleRejectsBadSpec(t *testing.T) {
	s := NewSource("unused", quietLogger())

	_, err := s.Schedule(cron.New(), "whenever", nil)

	assert.Error(t, err)
}
