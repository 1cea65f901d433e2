// Package lfs implements the Git LFS batch negotiation protocol over
// the raw object store (spec §4.E). Request/response DTO shapes are
// grounded on the other_examples LFS server handlers
// (handler_git_lfs.go's lfsBatchVars/lfsRepresentation,
// gitcha's modules/lfs/server.go, gitraf-server's lfs.go), generalized
// from a local-disk content store to the hub's ROS-backed one and from
// a single-PUT action to a size-gated single-PUT-vs-multipart plan.
package lfs

import (
	"regexp"

	"github.com/kohakuhub/hub/internal/metadata"
)

// sha256Pattern validates an oid is a well-formed lowercase hex SHA-256.
var sha256Pattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// ValidOID reports whether oid is a syntactically valid sha256 digest.
func ValidOID(oid string) bool {
	return sha256Pattern.MatchString(oid)
}

// maxSinglePutBytes is the spec §4.E cutoff above which a multipart
// plan is issued instead of one presigned PUT.
const maxSinglePutBytes = 5 << 30 // 5 GiB

// maxPartBytes bounds each multipart part's size.
const maxPartBytes = 1 << 30 // 1 GiB

// Eligible reports whether a path_in_repo/size pair must be stored via
// LFS rather than inline, per spec §4.E(a)/(b).
func Eligible(repo *metadata.Repository, defaultThreshold int64, pathInRepo string, size int64) bool {
	threshold := defaultThreshold
	if repo.LFSThresholdBytes != nil {
		threshold = *repo.LFSThresholdBytes
	}

	if size >= threshold {
		return true
	}

	for _, suffix := range repo.LFSSuffixRules {
		if matchesSuffix(pathInRepo, suffix) {
			return true
		}
	}

	return false
}

func matchesSuffix(path, suffix string) bool {
	if suffix == "" {
		return false
	}

	if len(path) < len(suffix) {
		return false
	}

	return path[len(path)-len(suffix):] == suffix
}

// PartPlan returns how many parts a multipart upload of size bytes
// needs, each no larger than maxPartBytes.
func PartPlan(size int64) int {
	if size <= 0 {
		return 1
	}

	parts := size / maxPartBytes
	if size%maxPartBytes != 0 {
		parts++
	}

	if parts == 0 {
		parts = 1
	}

	return int(parts)
}

// NeedsMultipart reports whether size exceeds the single-PUT ceiling.
func NeedsMultipart(size int64) bool {
	return size > maxSinglePutBytes
}
