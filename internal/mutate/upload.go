package mutate

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"warbler/internal/blob/core"
	"warbler/internal/metrics"
	"warbler/pkg/domain"
)

// File is one image selected for upload.
type File struct {
	Name        string // original filename, kept as alt text
	ContentType string
	Data        io.Reader
}

// idFunc is swapped in tests for deterministic upload keys.
var idFunc = uuid.NewString

// UploadImages stores each file under <userID>/<generated id> and returns
// the previews to embed in a tweet. An empty file list returns nil.
func UploadImages(ctx context.Context, store core.Store, userID string, files []File) ([]domain.ImagePreview, error) {
	if len(files) == 0 {
		return nil, nil
	}
	previews := make([]domain.ImagePreview, 0, len(files))
	for _, file := range files {
		id := idFunc()
		key := userID + "/" + id
		if _, err := store.Put(ctx, key, file.Data, core.PutOptions{
			ContentType: file.ContentType,
			Metadata:    map[string]string{"alt": file.Name},
		}); err != nil {
			return nil, fmt.Errorf("upload %s: %w", file.Name, err)
		}
		src, err := store.PublicURL(key)
		if err != nil {
			return nil, fmt.Errorf("resolve url for %s: %w", file.Name, err)
		}
		metrics.Uploads.Inc()
		previews = append(previews, domain.ImagePreview{
			ID:   id,
			Src:  src,
			Alt:  file.Name,
			Type: file.ContentType,
		})
	}
	return previews, nil
}
