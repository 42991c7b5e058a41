package models

import (
	"strings"
	"time"
)

type Role string

const (
	RolePublic Role = "PUBLIC"
	RoleNGO    Role = "NGO"
	RoleAdmin  Role = "ADMIN"
)

// SessionInfo is the externally visible view of the current session. It is
// always replaced as a whole; callers never observe an address from one
// connect mixed with a role from another.
type SessionInfo struct {
	Address      string    `json:"address"`
	Role         Role      `json:"role"`
	OwnerAddress string    `json:"owner_address,omitempty"`
	ChainID      uint64    `json:"chain_id,omitempty"`
	ConnectedAt  time.Time `json:"connected_at,omitempty"`
}

func (s SessionInfo) Connected() bool {
	return strings.TrimSpace(s.Address) != ""
}

// AnonymousSession is the state before any connect and after disconnect.
func AnonymousSession() SessionInfo {
	return SessionInfo{Role: RolePublic}
}

type PlantationStatus uint8

const (
	StatusSubmitted PlantationStatus = iota
	StatusAIVerified
	StatusAdminVerified
	StatusSurvivalVerified
	StatusDisputed
	StatusRejected
)

func (s PlantationStatus) String() string {
	switch s {
	case StatusSubmitted:
		return "Submitted"
	case StatusAIVerified:
		return "AIVerified"
	case StatusAdminVerified:
		return "AdminVerified"
	case StatusSurvivalVerified:
		return "SurvivalVerified"
	case StatusDisputed:
		return "Disputed"
	case StatusRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// Plantation mirrors the registry contract's project record. The contract
// copy is authoritative; this type only reflects reads.
type Plantation struct {
	ID          uint64           `json:"id"`
	Uploader    string           `json:"uploader"`
	Species     string           `json:"species"`
	TreeCount   uint64           `json:"tree_count"`
	ContentRef  string           `json:"content_ref"`
	Status      PlantationStatus `json:"status"`
	StatusLabel string           `json:"status_label"`
	Description string           `json:"description"`
	Latitude    string           `json:"latitude"`
	Longitude   string           `json:"longitude"`
}

type NGOStatus uint8

const (
	NGOPending NGOStatus = iota
	NGOWhitelisted
	NGOBlacklisted
)

func (s NGOStatus) String() string {
	switch s {
	case NGOPending:
		return "Pending"
	case NGOWhitelisted:
		return "Whitelisted"
	case NGOBlacklisted:
		return "Blacklisted"
	default:
		return "Unknown"
	}
}

type NGO struct {
	WalletAddress string    `json:"wallet_address"`
	Name          string    `json:"name"`
	Country       string    `json:"country"`
	Status        NGOStatus `json:"status"`
	StatusLabel   string    `json:"status_label"`
}

// ScoreEvent holds the last authoritative survival score observed for a
// project. The value comes from a follow-up contract read, not from the
// event payload, so out-of-order deliveries cannot regress it.
type ScoreEvent struct {
	RequestID  string    `json:"request_id"`
	ProjectID  uint64    `json:"project_id"`
	Score      uint64    `json:"score"`
	ObservedAt time.Time `json:"observed_at"`
}

type Reputation struct {
	Address       string `json:"address"`
	Score         uint64 `json:"score"`
	StakedAmount  string `json:"staked_amount"`
	CreditBalance string `json:"credit_balance"`
}

type OperationMetric struct {
	Count         int   `json:"count"`
	Errors        int   `json:"errors"`
	AvgLatencyMs  int64 `json:"avg_latency_ms"`
	MaxLatencyMs  int64 `json:"max_latency_ms"`
	LastLatencyMs int64 `json:"last_latency_ms"`
}

type MetricsSnapshot struct {
	ErrorCounters map[string]int             `json:"error_counters"`
	Operations    map[string]OperationMetric `json:"operations"`
	LastUpdatedAt time.Time                  `json:"last_updated_at"`
}
