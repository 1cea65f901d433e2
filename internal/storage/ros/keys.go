package ros

// LFSKey returns the canonical raw-store key for an LFS object, spec
// §4.E: lfs/{oid[:2]}/{oid[2:4]}/{oid}.
func LFSKey(oid string) string {
	if len(oid) < 4 {
		return "lfs/" + oid
	}

	return "lfs/" + oid[:2] + "/" + oid[2:4] + "/" + oid
}

// StagingKey returns the deterministic per-branch staging key an
// inline `file` commit operation's decoded bytes are uploaded to
// before VOS.stage_object is called (spec §4.F step 5).
func StagingKey(repoVOSName, branch, uploadID string) string {
	return "staging/" + repoVOSName + "/" + branch + "/" + uploadID
}
