package delivery

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/shandysiswandi/onetime/internal/pkg/clock"
	"github.com/shandysiswandi/onetime/internal/pkg/storage"
)

// File appends codes to a per-address text object. It is meant for local
// development and diagnostics, never for real users.
type File struct {
	store  storage.Storage
	bucket string
	prefix string
	clock  clock.Clocker
}

func NewFile(store storage.Storage, bucket, prefix string, clk clock.Clocker) *File {
	return &File{store: store, bucket: bucket, prefix: prefix, clock: clk}
}

func (f *File) Send(ctx context.Context, address, code string) error {
	line := fmt.Sprintf("[%s] OTP Code: %s\n", f.clock.Now().Format(time.RFC3339), code)
	key := path.Join(f.prefix, address+".txt")

	_, err := storage.AppendObject(ctx, f.store, f.bucket, key, []byte(line), "text/plain; charset=utf-8")
	return err
}
