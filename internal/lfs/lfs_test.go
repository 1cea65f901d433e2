package lfs

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kohakuhub/hub/internal/metadata"
)

func TestEligible_BySizeThreshold(t *testing.T) {
	repo := &metadata.Repository{}
	assert.True(t, Eligible(repo, 1000, "model.bin", 2000))
	assert.False(t, Eligible(repo, 1000, "model.bin", 500))
}

func TestEligible_BySuffixRule(t *testing.T) {
	repo := &metadata.Repository{LFSSuffixRules: []string{".safetensors"}}
	assert.True(t, Eligible(repo, 1_000_000, "weights.safetensors", 10))
	assert.False(t, Eligible(repo, 1_000_000, "README.md", 10))
}

func TestEligible_RepoThresholdOverridesDefault(t *testing.T) {
	threshold := int64(50)
	repo := &metadata.Repository{LFSThresholdBytes: &threshold}
	assert.True(t, Eligible(repo, 1_000_000, "x.bin", 60))
}

func TestPartPlan_DividesEvenlyAndRoundsUp(t *testing.T) {
	assert.Equal(t, 1, PartPlan(maxPartBytes))
	assert.Equal(t, 2, PartPlan(maxPartBytes+1))
	assert.Equal(t, 1, PartPlan(0))
}

func TestNeedsMultipart_CrossesCeiling(t *testing.T) {
	assert.False(t, NeedsMultipart(maxSinglePutBytes))
	assert.True(t, NeedsMultipart(maxSinglePutBytes+1))
}

func TestValidOID_RejectsMalformed(t *testing.T) {
	assert.True(t, ValidOID(repeatHex(64)))
	assert.False(t, ValidOID("not-hex"))
	assert.False(t, ValidOID(""))
}

func repeatHex(n int) string {
	out := make([]byte, n)
	for i := range out {
		out[i] = 'a'
	}

	return string(out)
}
