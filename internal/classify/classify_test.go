package classify

import (
	"testing"

	"github.com/Confuzu/CivitAI-Downloader/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestClassify_PtAlwaysEmbeddings(t *testing.T) {
	assert.Equal(t, domain.FolderEmbeddings, Classify("embedding.pt", 0))
	assert.Equal(t, domain.FolderEmbeddings, Classify("embedding.pt", MinCheckpointSize*3))
	assert.Equal(t, domain.FolderEmbeddings, Classify("UPPER.PT", 123))
}

func TestClassify_SafetensorsBySize(t *testing.T) {
	assert.Equal(t, domain.FolderLoras, Classify("lora.safetensors", 0))
	assert.Equal(t, domain.FolderLoras, Classify("lora.safetensors", MinCheckpointSize-1))
	assert.Equal(t, domain.FolderModels, Classify("ckpt.safetensors", MinCheckpointSize))
	assert.Equal(t, domain.FolderModels, Classify("ckpt.safetensors", MinCheckpointSize+1))
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("a.pt"))
	assert.True(t, IsSupported("a.SafeTensors"))
	assert.False(t, IsSupported("a.json"))
	assert.False(t, IsSupported("a.ckpt"))
	assert.False(t, IsSupported("noextension"))
}
