package caravel_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caravelhq/caravel"
	"github.com/caravelhq/caravel/internal/fsitem"
	"github.com/caravelhq/caravel/internal/transfer"
)

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoopbackTransfer(t *testing.T) {
	tests := []struct {
		name      string
		websocket bool
	}{
		{name: "tcp"},
		{name: "websocket", websocket: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := t.TempDir()
			dest := t.TempDir()
			writeFile(t, filepath.Join(src, "notes.txt"), "A frog walks into a bank...")
			writeFile(t, filepath.Join(src, "photos", "a.jpg"), "aaaa")
			writeFile(t, filepath.Join(src, "photos", "raw", "b.raw"), "bb")
			writeFile(t, filepath.Join(src, "photos", "empty"), "")

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			var deviceNames []string
			l, err := caravel.Listen("127.0.0.1:0",
				caravel.WithWebsocket(tt.websocket),
				caravel.WithCollision(fsitem.CollisionFail),
				caravel.WithObserver(transfer.Observer{
					DeviceNameChanged: func(name string) { deviceNames = append(deviceNames, name) },
				}),
			)
			require.NoError(t, err)

			recvErr := make(chan error, 1)
			go func() { recvErr <- l.Receive(ctx, dest) }()

			err = caravel.Send(ctx, l.Addr().String(),
				[]string{filepath.Join(src, "notes.txt"), filepath.Join(src, "photos")},
				caravel.WithWebsocket(tt.websocket),
				caravel.WithDeviceName("alpha"),
				caravel.WithChunkSize(3), // force several content packets
			)
			require.NoError(t, err)
			require.NoError(t, <-recvErr)

			assert.Equal(t, []string{"alpha"}, deviceNames)

			for path, want := range map[string]string{
				"notes.txt":        "A frog walks into a bank...",
				"photos/a.jpg":     "aaaa",
				"photos/raw/b.raw": "bb",
				"photos/empty":     "",
			} {
				got, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(path)))
				require.NoError(t, err, path)
				assert.Equal(t, want, string(got), path)
			}
		})
	}
}

func TestLoopbackEmptySend(t *testing.T) {
	dest := t.TempDir()
	src := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(src, "hollow"), 0755))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	l, err := caravel.Listen("127.0.0.1:0")
	require.NoError(t, err)

	recvErr := make(chan error, 1)
	go func() { recvErr <- l.Receive(ctx, dest) }()

	// A single empty directory: one zero-size item, no content packets.
	err = caravel.Send(ctx, l.Addr().String(), []string{filepath.Join(src, "hollow")})
	require.NoError(t, err)
	require.NoError(t, <-recvErr)

	info, err := os.Stat(filepath.Join(dest, "hollow"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestReceiveContextCancelled(t *testing.T) {
	l, err := caravel.Listen("127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	recvErr := make(chan error, 1)
	go func() { recvErr <- l.Receive(ctx, t.TempDir()) }()

	cancel()
	select {
	case err := <-recvErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("receive did not observe cancellation")
	}
}

func TestSendConnectionRefused(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "notes.txt"), "x")

	// Bind and immediately release a port so nothing is listening on it.
	l, err := caravel.Listen("127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	err = caravel.Send(context.Background(), addr, []string{filepath.Join(src, "notes.txt")})
	assert.Error(t, err)
}
