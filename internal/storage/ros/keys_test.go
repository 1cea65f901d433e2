package ros

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLFSKey_SplitsCanonicalPrefixes(t *testing.T) {
	got := LFSKey("abcdef0123456789")
	assert.Equal(t, "lfs/ab/cd/abcdef0123456789", got)
}

func TestStagingKey_IsDeterministicPerUpload(t *testing.T) {
	a := StagingKey("m-carol-llama-abc", "main", "upload-1")
	b := StagingKey("m-carol-llama-abc", "main", "upload-1")
	assert.Equal(t, a, b)
}
