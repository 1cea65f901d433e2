package metadata

import "context"

// UserRepository is the typed accessor for User and UserOrganization rows.
type UserRepository interface {
	Create(ctx context.Context, u *User) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByNormalizedName(ctx context.Context, normalized string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) (*User, error)
	Delete(ctx context.Context, id int64) error
	ApplyUsageDelta(ctx context.Context, id int64, privateDelta, publicDelta int64) error

	AddMember(ctx context.Context, orgID, userID int64, role OrgRole) error
	RemoveMember(ctx context.Context, orgID, userID int64) error
	Membership(ctx context.Context, orgID, userID int64) (*UserOrganization, error)
	ListMembers(ctx context.Context, orgID int64) ([]UserOrganization, error)
}

// SessionRepository is the typed accessor for Session and Token rows.
type SessionRepository interface {
	CreateSession(ctx context.Context, s *Session) (*Session, error)
	FindSession(ctx context.Context, sessionID string) (*Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)

	CreateToken(ctx context.Context, t *Token) (*Token, error)
	FindTokenByHash(ctx context.Context, tokenHash string) (*Token, error)
	ListTokens(ctx context.Context, userID int64) ([]Token, error)
	DeleteToken(ctx context.Context, id int64) error
	TouchToken(ctx context.Context, id int64) error
}

// InvitationRepository is the typed accessor for Invitation rows.
type InvitationRepository interface {
	Create(ctx context.Context, inv *Invitation) (*Invitation, error)
	FindByToken(ctx context.Context, token string) (*Invitation, error)
	Redeem(ctx context.Context, token string, usedBy int64) error
}

// RepositoryRepository is the typed accessor for Repository rows.
type RepositoryRepository interface {
	Create(ctx context.Context, r *Repository) (*Repository, error)
	FindByFullID(ctx context.Context, repoType RepoType, namespace, name string) (*Repository, error)
	FindByID(ctx context.Context, id int64) (*Repository, error)
	FindByVOSName(ctx context.Context, vosName string) (*Repository, error)
	List(ctx context.Context, f RepositoryFilter) ([]Repository, error)
	Update(ctx context.Context, r *Repository) (*Repository, error)
	Delete(ctx context.Context, id int64) error
	ApplyUsageDelta(ctx context.Context, id int64, delta int64) error
	IncrementDownloads(ctx context.Context, id int64, by int64) error
}

// RepositoryFilter narrows List's results; zero values are unconstrained.
type RepositoryFilter struct {
	RepoType  RepoType
	Author    string
	Search    string
	Limit     int
	PublicOnly bool
}

// FileRepository is the typed accessor for the per-branch file index.
type FileRepository interface {
	Upsert(ctx context.Context, f *File) error
	MarkDeleted(ctx context.Context, repoID int64, branch, path string) error
	Find(ctx context.Context, repoID int64, branch, path string) (*File, error)
	ListByPrefix(ctx context.Context, repoID int64, branch, prefix string, after string, limit int) ([]File, error)
	Move(ctx context.Context, repoID int64, branch, fromPath, toPath string) error

	// FindAnyBySHA256 locates one live File row with the given content
	// hash, across every repository, for the top-level CAS
	// reconstruction API (spec §4.G).
	FindAnyBySHA256(ctx context.Context, sha256 string) (*File, error)
}

// CommitRepository is the typed accessor for Commit rows.
type CommitRepository interface {
	Create(ctx context.Context, c *Commit) (*Commit, error)
	Exists(ctx context.Context, repoID int64, commitID string) (bool, error)
	List(ctx context.Context, repoID int64, branch string, after string, limit int) ([]Commit, error)
}

// LFSRepository is the typed accessor for the LFS dedup registry.
type LFSRepository interface {
	Touch(ctx context.Context, sha256 string, size int64) error
	Find(ctx context.Context, sha256 string) (*LFSObjectHistory, error)
}

// StagingRepository is the typed accessor for resumable multipart uploads.
type StagingRepository interface {
	Create(ctx context.Context, s *StagingUpload) error
	Find(ctx context.Context, uploadID string) (*StagingUpload, error)
	Delete(ctx context.Context, uploadID string) error
	ListOlderThan(ctx context.Context, cutoff int64) ([]StagingUpload, error)
}

// FallbackRepository is the typed accessor for mirror configuration.
type FallbackRepository interface {
	ListEnabled(ctx context.Context, namespace string) ([]FallbackSource, error)
	FindUserToken(ctx context.Context, userID int64, url string) (*UserExternalToken, error)
	UpsertUserToken(ctx context.Context, t *UserExternalToken) error
}

// ConfirmationRepository is the typed accessor for two-step op tokens.
type ConfirmationRepository interface {
	Create(ctx context.Context, c *ConfirmationToken) error
	Consume(ctx context.Context, token string) (*ConfirmationToken, error)
}

// StatsRepository is the typed accessor for DailyRepoStats rows.
type StatsRepository interface {
	IncrementDownload(ctx context.Context, repoID int64, date string, authenticated bool) error
	ListForRepo(ctx context.Context, repoID int64, sinceDate string) ([]DailyRepoStats, error)
	TrendingCandidates(ctx context.Context, sinceDate string) ([]DailyRepoStats, error)
}

// Store aggregates every repository port, the unit the commit engine and
// HTTP handlers actually depend on, plus transaction demarcation.
type Store interface {
	Users() UserRepository
	Sessions() SessionRepository
	Invitations() InvitationRepository
	Repositories() RepositoryRepository
	Files() FileRepository
	Commits() CommitRepository
	LFS() LFSRepository
	Staging() StagingRepository
	Fallback() FallbackRepository
	Confirmations() ConfirmationRepository
	Stats() StatsRepository

	// WithTx runs fn against a Store bound to a single DB transaction,
	// committing on nil return and rolling back otherwise.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
