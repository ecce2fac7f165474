package transport

import (
	"context"
	"os"
	"time"
)

// FileSource reads the alert file for the current day. The path is
// resolved on every fetch so a long-running process follows the date.
type FileSource struct {
	resolve func(day time.Time) string
	now     func() time.Time
}

func NewFileSource(resolve func(day time.Time) string, now func() time.Time) *FileSource {
	if now == nil {
		now = time.Now
	}
	return &FileSource{resolve: resolve, now: now}
}

// Path is the file the next fetch will read.
func (f *FileSource) Path() string {
	return f.resolve(f.now())
}

// Fetch returns nothing, without error, while the file does not exist yet.
func (f *FileSource) Fetch(ctx context.Context) ([]RawAlert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return decodeAlerts(data)
}
