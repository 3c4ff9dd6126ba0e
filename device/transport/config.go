package transport

import "time"

// Config holds every tunable named across §4 and §5 of the transport core
// design, defaulted in New the way the teacher's constructors default
// theirs (if cfg.X <= 0 { cfg.X = DefaultX }).
type Config struct {
	// MaintenanceInterval is the maintenance loop's nominal tick period.
	// Default: 250ms.
	MaintenanceInterval time.Duration

	// MaxAnnounceRetries (R) bounds announce rebroadcast attempts.
	// Default: 1 (two attempts total).
	MaxAnnounceRetries int

	// AnnounceHopBase (C) is the exponential backoff base used in both
	// the rebroadcast schedule and the retry grace period. Default: 2.0.
	AnnounceHopBase float64

	// AnnounceRetryGrace (T) is added to the backoff when scheduling a
	// retry. Default: 10s.
	AnnounceRetryGrace time.Duration

	// AnnounceJitterWindow (RW) is the width of the random jitter window
	// added to an announce's first retransmit deadline; a retry deadline
	// adds the full width instead. Default: 10s.
	AnnounceJitterWindow time.Duration

	// PathExpiry (E) is how long a Destination Table entry remains valid
	// before it may be replaced by a higher-hop-count announce. Default:
	// 900s.
	PathExpiry time.Duration

	// MaxHops (M) bounds how many hops an announce may have travelled
	// before this node stops propagating it. Default: 18.
	MaxHops int

	// LocalRebroadcastsMax caps how many times a peer may repeat our own
	// rebroadcast before we give up on ours. Default: 2.
	LocalRebroadcastsMax int

	// ReverseTimeout bounds how long a Reverse Table entry lives waiting
	// for a reply. Default: 30 minutes.
	ReverseTimeout time.Duration

	// LinkTimeout bounds how long a Link Table entry lives. Default:
	// 2 × KeepAliveInterval.
	LinkTimeout time.Duration

	// KeepAliveInterval feeds LinkTimeout's default when LinkTimeout
	// itself is unset. Default: 30s (matching device/connection's
	// DefaultKeepAliveInterval).
	KeepAliveInterval time.Duration

	// DestinationTimeout bounds how long a Destination Table entry lives
	// without being refreshed. Default: 7 days.
	DestinationTimeout time.Duration

	// HashlistMax is the dedup hashlist's capacity. Default: 1,000,000.
	HashlistMax int

	// PathRequestGrace is how long a path-response announce waits before
	// its first (only) retransmission, giving directly-reachable peers a
	// head start. Default: 250ms.
	PathRequestGrace time.Duration

	// ReceiptCheckInterval defaults to 1s but is not passed to the receipt
	// tracker, which sweeps on its own fixed one-second interval.
	ReceiptCheckInterval time.Duration

	// AnnounceCheckInterval is how often the maintenance loop walks the
	// Announce Table. Default: 1s.
	AnnounceCheckInterval time.Duration

	// TablesCullInterval is how often Reverse/Link/Destination tables are
	// culled for expired entries. Default: 5s.
	TablesCullInterval time.Duration

	// HashlistPath, if set, persists the hashlist across restarts
	// (§6, "<configdir>/packet_hashlist").
	HashlistPath string
}

const (
	DefaultMaintenanceInterval   = 250 * time.Millisecond
	DefaultMaxAnnounceRetries    = 1
	DefaultAnnounceHopBase       = 2.0
	DefaultAnnounceRetryGrace    = 10 * time.Second
	DefaultAnnounceJitterWindow  = 10 * time.Second
	DefaultPathExpiry            = 900 * time.Second
	DefaultMaxHops               = 18
	DefaultLocalRebroadcastsMax  = 2
	DefaultReverseTimeout        = 30 * time.Minute
	DefaultKeepAliveInterval     = 30 * time.Second
	DefaultDestinationTimeout    = 7 * 24 * time.Hour
	DefaultHashlistMax           = 1_000_000
	DefaultPathRequestGrace      = 250 * time.Millisecond
	DefaultReceiptCheckInterval  = time.Second
	DefaultAnnounceCheckInterval = time.Second
	DefaultTablesCullInterval    = 5 * time.Second
)

func (c *Config) setDefaults() {
	if c.MaintenanceInterval <= 0 {
		c.MaintenanceInterval = DefaultMaintenanceInterval
	}
	if c.MaxAnnounceRetries <= 0 {
		c.MaxAnnounceRetries = DefaultMaxAnnounceRetries
	}
	if c.AnnounceHopBase <= 0 {
		c.AnnounceHopBase = DefaultAnnounceHopBase
	}
	if c.AnnounceRetryGrace <= 0 {
		c.AnnounceRetryGrace = DefaultAnnounceRetryGrace
	}
	if c.AnnounceJitterWindow <= 0 {
		c.AnnounceJitterWindow = DefaultAnnounceJitterWindow
	}
	if c.PathExpiry <= 0 {
		c.PathExpiry = DefaultPathExpiry
	}
	if c.MaxHops <= 0 {
		c.MaxHops = DefaultMaxHops
	}
	if c.LocalRebroadcastsMax <= 0 {
		c.LocalRebroadcastsMax = DefaultLocalRebroadcastsMax
	}
	if c.KeepAliveInterval <= 0 {
		c.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if c.ReverseTimeout <= 0 {
		c.ReverseTimeout = DefaultReverseTimeout
	}
	if c.LinkTimeout <= 0 {
		c.LinkTimeout = 2 * c.KeepAliveInterval
	}
	if c.DestinationTimeout <= 0 {
		c.DestinationTimeout = DefaultDestinationTimeout
	}
	if c.HashlistMax <= 0 {
		c.HashlistMax = DefaultHashlistMax
	}
	if c.PathRequestGrace <= 0 {
		c.PathRequestGrace = DefaultPathRequestGrace
	}
	if c.ReceiptCheckInterval <= 0 {
		c.ReceiptCheckInterval = DefaultReceiptCheckInterval
	}
	if c.AnnounceCheckInterval <= 0 {
		c.AnnounceCheckInterval = DefaultAnnounceCheckInterval
	}
	if c.TablesCullInterval <= 0 {
		c.TablesCullInterval = DefaultTablesCullInterval
	}
}
