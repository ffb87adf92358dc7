package storage

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, s Storage, bucket, key string) string {
	t.Helper()

	rc, _, err := s.GetObject(context.Background(), bucket, key)
	require.NoError(t, err)
	defer rc.Close()

	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestAppendObject_Local(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocal(LocalOptions{Root: t.TempDir()})
	require.NoError(t, err)

	_, _, err = s.GetObject(ctx, "otp", "codes/a@b.com.txt")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, err = AppendObject(ctx, s, "otp", "codes/a@b.com.txt", []byte("line 1\n"), "text/plain")
	require.NoError(t, err)
	info, err := AppendObject(ctx, s, "otp", "codes/a@b.com.txt", []byte("line 2\n"), "text/plain")
	require.NoError(t, err)

	assert.Equal(t, int64(14), info.Size)
	assert.Equal(t, "line 1\nline 2\n", readAll(t, s, "otp", "codes/a@b.com.txt"))
}

func TestLocal_RejectsTraversal(t *testing.T) {
	s, err := NewLocal(LocalOptions{Root: t.TempDir()})
	require.NoError(t, err)

	_, err = s.PutObject(context.Background(), "otp", "../../etc/passwd", nil, PutOptions{})
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestNewFromDriver(t *testing.T) {
	_, err := NewFromDriver(context.Background(), "ftp", FactoryOptions{})
	assert.ErrorIs(t, err, ErrUnknownDriver)

	s, err := NewFromDriver(context.Background(), "LOCAL", FactoryOptions{Local: LocalOptions{Root: t.TempDir()}})
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}
