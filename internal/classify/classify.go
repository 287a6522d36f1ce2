package classify

import (
	"path/filepath"
	"strings"

	"github.com/Confuzu/CivitAI-Downloader/internal/domain"
)

// MinCheckpointSize is the threshold above which a safetensors file is
// assumed to be a full checkpoint rather than a LoRA.
const MinCheckpointSize = 2 * 1024 * 1024 * 1024 // 2 GiB

// supported extensions, lower-case
var validExtensions = map[string]struct{}{
	".pt":          {},
	".safetensors": {},
}

// IsSupported reports whether the filename's extension passes the
// download gate. Comparison is case-insensitive.
func IsSupported(filename string) bool {
	_, ok := validExtensions[Ext(filename)]
	return ok
}

// Ext returns the lower-cased extension of filename.
func Ext(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// Classify maps a sanitized filename and its final byte size to a
// destination folder:
//
//	.pt                       -> embeddings (size-independent)
//	.safetensors  <  2 GiB    -> loras
//	.safetensors  >= 2 GiB    -> models
//
// Pure function of (extension, size); never consults in-flight state.
func Classify(filename string, sizeBytes int64) domain.Folder {
	if Ext(filename) == ".pt" {
		return domain.FolderEmbeddings
	}
	if sizeBytes >= MinCheckpointSize {
		return domain.FolderModels
	}
	return domain.FolderLoras
}
