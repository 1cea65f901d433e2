package httpapi

import (
	"github.com/redis/go-redis/v9"

	"github.com/kohakuhub/hub/internal/admin"
	"github.com/kohakuhub/hub/internal/commit"
	"github.com/kohakuhub/hub/internal/config"
	"github.com/kohakuhub/hub/internal/fallback"
	"github.com/kohakuhub/hub/internal/logging"
	"github.com/kohakuhub/hub/internal/metadata"
	"github.com/kohakuhub/hub/internal/resolve"
	"github.com/kohakuhub/hub/internal/stats"
	"github.com/kohakuhub/hub/internal/storage/ros"
	"github.com/kohakuhub/hub/internal/storage/vos"
)

// Handlers owns every dependency a route needs, mirroring the
// teacher's per-entity handler structs (AccountHandler, LedgerHandler,
// ...) collapsed into one struct since this hub has a single
// aggregate Store rather than one service per entity.
type Handlers struct {
	Store    metadata.Store
	VOS      vos.Store
	ROS      ros.Store
	Commit   *commit.Engine
	Resolve  *resolve.Engine
	Fallback *fallback.Proxy // nil disables spec §4.H entirely
	Stats    *stats.Producer // nil: RecordDownload writes the daily stats row directly
	Admin    *admin.Console  // nil: the admin console route answers 503
	Dedup    *redis.Client   // nil: every download counts as a new session hit
	Config   *config.Config
	Logger   logging.Logger
}
