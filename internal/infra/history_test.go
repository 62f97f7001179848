package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/remapd/internal/domain"
)

// newTestHistory creates an encrypted history in a temp directory for testing.
func newTestHistory(t *testing.T) (*EncryptedHistory, string) {
	t.Helper()
	dataDir := t.TempDir()
	key, err := GenerateKey()
	require.NoError(t, err)

	h, err := NewEncryptedHistory(dataDir, key)
	require.NoError(t, err)

	t.Cleanup(func() { h.Close() })
	return h, dataDir
}

func launch(cmd string, at time.Time) domain.LaunchRecord {
	return domain.LaunchRecord{SessionID: "s1", Command: cmd, PID: 100, LaunchedAt: at}
}

func TestEncryptedHistory_RecordAndRecent(t *testing.T) {
	base := time.Unix(1700000000, 0)

	tests := []struct {
		name    string
		records []domain.LaunchRecord
		limit   int
		want    []string
	}{
		{
			name:  "empty history",
			limit: 10,
			want:  nil,
		},
		{
			name: "newest first",
			records: []domain.LaunchRecord{
				launch("xterm", base),
				launch("firefox", base.Add(time.Second)),
				launch("emacs", base.Add(2*time.Second)),
			},
			limit: 10,
			want:  []string{"emacs", "firefox", "xterm"},
		},
		{
			name: "limit applies",
			records: []domain.LaunchRecord{
				launch("a", base),
				launch("b", base.Add(time.Second)),
				launch("c", base.Add(2*time.Second)),
			},
			limit: 2,
			want:  []string{"c", "b"},
		},
		{
			name: "same timestamp keeps insertion order",
			records: []domain.LaunchRecord{
				launch("first", base),
				launch("second", base),
			},
			limit: 10,
			want:  []string{"second", "first"},
		},
		{
			name:    "non-positive limit",
			records: []domain.LaunchRecord{launch("a", base)},
			limit:   0,
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHistory(t)
			for _, rec := range tt.records {
				require.NoError(t, h.Record(rec))
			}

			got, err := h.Recent(tt.limit)
			require.NoError(t, err)

			var cmds []string
			for _, rec := range got {
				cmds = append(cmds, rec.Command)
			}
			assert.Equal(t, tt.want, cmds)
		})
	}
}

func TestEncryptedHistory_RoundTripsFields(t *testing.T) {
	h, _ := newTestHistory(t)

	at := time.Unix(1700000000, 123456789)
	require.NoError(t, h.Record(domain.LaunchRecord{
		SessionID:  "5f1c1b0e-0000-4000-8000-000000000001",
		Command:    "notify-send 'hello world'",
		PID:        4242,
		LaunchedAt: at,
	}))

	got, err := h.Recent(1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "5f1c1b0e-0000-4000-8000-000000000001", got[0].SessionID)
	assert.Equal(t, "notify-send 'hello world'", got[0].Command)
	assert.Equal(t, 4242, got[0].PID)
	assert.True(t, at.Equal(got[0].LaunchedAt))
}

func TestEncryptedHistory_Prunes(t *testing.T) {
	h, _ := newTestHistory(t)

	base := time.Unix(1700000000, 0)
	for i := 0; i < historyKeep+5; i++ {
		require.NoError(t, h.Record(launch("cmd", base.Add(time.Duration(i)*time.Second))))
	}

	var count int
	require.NoError(t, h.db.QueryRow(`SELECT COUNT(*) FROM launches`).Scan(&count))
	assert.Equal(t, historyKeep, count)

	got, err := h.Recent(1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, base.Add(time.Duration(historyKeep+4)*time.Second).Equal(got[0].LaunchedAt))
}

func TestEncryptedHistory_Encryption(t *testing.T) {
	tests := []struct {
		name   string
		testFn func(t *testing.T)
	}{
		{
			name: "database file is unreadable without key",
			testFn: func(t *testing.T) {
				dataDir := t.TempDir()
				key, err := GenerateKey()
				require.NoError(t, err)

				h, err := NewEncryptedHistory(dataDir, key)
				require.NoError(t, err)
				require.NoError(t, h.Record(launch("secret-launcher --token=abc", time.Now())))
				h.Close()

				rawData, err := os.ReadFile(filepath.Join(dataDir, historyDBName))
				require.NoError(t, err)
				assert.NotContains(t, string(rawData), "secret-launcher")
				assert.NotContains(t, string(rawData), "launches")
			},
		},
		{
			name: "wrong key fails to open",
			testFn: func(t *testing.T) {
				dataDir := t.TempDir()
				key1, _ := GenerateKey()
				key2, _ := GenerateKey()

				h1, err := NewEncryptedHistory(dataDir, key1)
				require.NoError(t, err)
				require.NoError(t, h1.Record(launch("xterm", time.Now())))
				h1.Close()

				_, err = NewEncryptedHistory(dataDir, key2)
				assert.Error(t, err)
			},
		},
		{
			name: "correct key reads data",
			testFn: func(t *testing.T) {
				dataDir := t.TempDir()
				key, _ := GenerateKey()

				h1, err := NewEncryptedHistory(dataDir, key)
				require.NoError(t, err)
				require.NoError(t, h1.Record(launch("xterm", time.Now())))
				h1.Close()

				h2, err := NewEncryptedHistory(dataDir, key)
				require.NoError(t, err)
				defer h2.Close()

				got, err := h2.Recent(5)
				require.NoError(t, err)
				require.Len(t, got, 1)
				assert.Equal(t, "xterm", got[0].Command)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.testFn)
	}
}

func TestOpenHistory_GeneratesKeyOnce(t *testing.T) {
	dataDir := t.TempDir()

	h1, err := OpenHistory(dataDir)
	require.NoError(t, err)
	require.NoError(t, h1.Record(launch("xterm", time.Now())))
	require.NoError(t, h1.Close())

	assert.FileExists(t, filepath.Join(dataDir, keyFileName))

	h2, err := OpenHistory(dataDir)
	require.NoError(t, err)
	defer h2.Close()

	got, err := h2.Recent(5)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, filepath.Join(dataDir, historyDBName), h2.Path())
}

func TestEncryptedHistory_Close_Idempotent(t *testing.T) {
	dataDir := t.TempDir()
	key, err := GenerateKey()
	require.NoError(t, err)

	h, err := NewEncryptedHistory(dataDir, key)
	require.NoError(t, err)

	assert.NoError(t, h.Close())

	h.db = nil
	assert.NoError(t, h.Close())
}
