// Package metadata defines the relational data model and the typed
// repository ports every other component depends on, mirroring the
// teacher's adapters/database/postgres layering: domain structs here,
// SQL-backed implementations under metadata/postgres.
package metadata

import "time"

// RepoType enumerates the three kinds of repository the hub serves.
type RepoType string

const (
	RepoTypeModel   RepoType = "model"
	RepoTypeDataset RepoType = "dataset"
	RepoTypeSpace   RepoType = "space"
)

// TypeChar returns the single-letter code used when deriving a VOS
// repository name (§6's repo-naming algorithm).
func (t RepoType) TypeChar() byte {
	switch t {
	case RepoTypeDataset:
		return 'd'
	case RepoTypeSpace:
		return 's'
	default:
		return 'm'
	}
}

// OrgRole enumerates a user's standing within an organization.
type OrgRole string

const (
	RoleVisitor    OrgRole = "visitor"
	RoleMember     OrgRole = "member"
	RoleAdmin      OrgRole = "admin"
	RoleSuperAdmin OrgRole = "super-admin"
)

// InvitationAction enumerates what redeeming an Invitation does.
type InvitationAction string

const (
	ActionRegisterAccount InvitationAction = "register_account"
	ActionJoinOrg         InvitationAction = "join_org"
)

// SourceType enumerates the shape a FallbackSource's upstream API has.
type SourceType string

const (
	SourceHuggingFace SourceType = "huggingface"
	SourceKohakuHub   SourceType = "kohakuhub"
)

// User represents either a regular user (IsOrg=false) or an organization
// (IsOrg=true, Email/PasswordHash nil). See spec §3: a shared, case
// normalized namespace is enforced via NormalizedName.
type User struct {
	ID                int64
	Username          string
	NormalizedName    string
	IsOrg             bool
	Email             *string
	PasswordHash      *string
	EmailVerified     bool
	IsActive          bool
	PrivateQuotaBytes *int64
	PublicQuotaBytes  *int64
	PrivateUsedBytes  int64
	PublicUsedBytes   int64
	FullName          string
	Bio               string
	Avatar            string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// UserOrganization is a membership row linking a user to an org with a role.
type UserOrganization struct {
	UserID int64
	OrgID  int64
	Role   OrgRole
}

// Session is a server-side login session identified by an opaque id.
type Session struct {
	SessionID string
	UserID    int64
	Secret    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Token is an API token; TokenHash is SHA3-512 of the raw token value,
// the raw value is never persisted (§4.C).
type Token struct {
	ID         int64
	UserID     int64
	TokenHash  string
	Name       string
	LastUsed   *time.Time
	CreatedAt  time.Time
}

// Invitation gates a one-time or multi-use registration/join action.
type Invitation struct {
	Token      string
	Action     InvitationAction
	Parameters map[string]any
	CreatedBy  *int64
	ExpiresAt  time.Time
	MaxUsage   *int64 // nil = one-time, -1 = unlimited, N = up to N uses
	UsageCount int64
	UsedAt     *time.Time
	UsedBy     *int64
}

// Available reports whether inv can still be redeemed, per spec §3.
func (inv Invitation) Available(now time.Time) bool {
	if !inv.ExpiresAt.After(now) {
		return false
	}

	switch {
	case inv.MaxUsage == nil:
		return inv.UsageCount == 0
	case *inv.MaxUsage == -1:
		return true
	default:
		return inv.UsageCount < *inv.MaxUsage
	}
}

// Repository is a versioned model/dataset/space entry.
type Repository struct {
	ID                int64
	RepoType          RepoType
	Namespace         string
	Name              string
	FullID            string
	Private           bool
	OwnerID           int64
	CreatedAt         time.Time
	QuotaBytes        *int64
	UsedBytes         int64
	LFSThresholdBytes *int64
	LFSKeepVersions   int
	LFSSuffixRules    []string
	Downloads         int64
	LikesCount        int64
	VOSRepoName       string
	DefaultBranch     string
}

// File is a per-path index row representing the tip of a branch.
type File struct {
	ID           int64
	RepositoryID int64
	Branch       string
	PathInRepo   string
	SHA256       string
	Size         int64
	LFS          bool
	IsDeleted    bool
	CreatedAt    time.Time
}

// Commit records one atomic versioned-store commit.
type Commit struct {
	CommitID     string
	RepositoryID int64
	RepoType     RepoType
	Branch       string
	AuthorID     *int64
	Username     string
	Message      string
	Description  string
	CreatedAt    time.Time
}

// LFSObjectHistory is the append-only, sha256-keyed dedup registry.
type LFSObjectHistory struct {
	SHA256      string
	Size        int64
	FirstSeenAt time.Time
	LastSeenAt  time.Time
}

// StagingUpload tracks a resumable multipart LFS upload in progress.
type StagingUpload struct {
	UploadID     string
	RepositoryID int64
	Path         string
	Size         int64
	SHA256       string
	CreatedAt    time.Time
}

// FallbackSource is a mirror the hub may proxy a miss to.
type FallbackSource struct {
	ID             int64
	Namespace      string // "" = global
	URL            string
	Name           string
	SourceType     SourceType
	Priority       int
	EncryptedToken *string
	Enabled        bool
}

// UserExternalToken is a per-user override credential for a source URL.
type UserExternalToken struct {
	UserID         int64
	URL            string
	EncryptedToken string
}

// ConfirmationToken gates a two-step dangerous operation.
type ConfirmationToken struct {
	Token      string
	ActionType string
	ActionData map[string]any
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// DailyRepoStats is one day's download activity for a repository.
type DailyRepoStats struct {
	RepositoryID           int64
	Date                   string // YYYY-MM-DD
	DownloadSessions       int64
	AuthenticatedDownloads int64
	AnonymousDownloads     int64
	TotalFiles             int64
}
