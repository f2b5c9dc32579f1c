// Package types defines the core data structures shared across hpos-core:
// the document-store entities (§3 of the design), workload manifests, and
// the workload state machine. Identifiers are plain values, never handles —
// cross-references between Host and Workload are by DocID only.
package types

import (
	"encoding/hex"
	"errors"
	"time"
)

// DocID is an opaque 12-byte document identifier, mirroring the document
// store's native id shape (analogous to a Mongo ObjectID: 4 bytes of
// timestamp, 5 bytes of randomness, 3 bytes of counter).
type DocID [12]byte

// String renders the id as lowercase hex, the form stored in JSON bodies
// and used in bus subjects.
func (id DocID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is the unset value.
func (id DocID) IsZero() bool {
	return id == DocID{}
}

// MarshalText implements encoding.TextMarshaler so DocID round-trips
// through JSON as a hex string.
func (id DocID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *DocID) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	if len(b) != len(id) {
		return errors.New("types: DocID must decode to 12 bytes")
	}
	copy(id[:], b)
	return nil
}

// Metadata carries the common lifecycle fields every top-level entity owns.
type Metadata struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt time.Time
	IsDeleted bool
}

// Jurisdiction is a free-form regulatory/geographic tag attached to users.
type Jurisdiction string

// Permission is an opaque scope string granted to a user.
type Permission string

// User is an account that may additionally hold a Hoster or Developer role.
type User struct {
	ID           DocID
	Metadata     Metadata
	Jurisdiction Jurisdiction
	Permissions  []Permission
	UserInfoID   *DocID
	DeveloperID  *DocID
	HosterID     *DocID
}

// UserInfo is the 1:1 profile record for a User.
type UserInfo struct {
	ID         DocID
	UserID     DocID
	Email      string
	GivenName  string
	FamilyName string
}

// Hoster is a user authorized to operate one or more hosts.
type Hoster struct {
	ID            DocID
	UserID        DocID
	Pubkey        string // Holochain pubkey used to pair with a host at callout time
	AssignedHosts []DocID
}

// Developer is a user authorized to create workloads.
type Developer struct {
	ID     DocID
	UserID DocID
}

// NetworkSpeedMbps is a rolling average network throughput sample.
type NetworkSpeedMbps float64

// HostInventory is the hardware snapshot reported by hpos-hal (external,
// contract only — see the HamClient-style boundary in pkg/executor).
type HostInventory struct {
	DriveBytes  int64
	Cores       int
	MemoryBytes int64
	ReportedAt  time.Time
}

// Host is a physical or virtual machine running a host agent.
type Host struct {
	ID                DocID
	DeviceID          string // machine-unique, typically /etc/machine-id
	Inventory         HostInventory
	AvgUptime         time.Duration
	AvgNetworkSpeed   NetworkSpeedMbps
	AvgLatency        time.Duration
	IP                string
	AssignedHoster    *DocID
	AssignedWorkloads []DocID
	Status            HostStatus
	LastHeartbeat     time.Time
}

// HostStatus mirrors the per-host credential state machine (§4.2, I5).
type HostStatus string

const (
	HostStatusUnauthenticated HostStatus = "unauthenticated"
	HostStatusAuthenticated   HostStatus = "authenticated"
	HostStatusAuthorized      HostStatus = "authorized"
	HostStatusForbidden       HostStatus = "forbidden"
)

// Capacity is the resource envelope a workload requires of a host.
type Capacity struct {
	DriveBytes int64
	Cores      int
}

// SystemSpecs are the scheduling-relevant requirements of a workload.
type SystemSpecs struct {
	Capacity        Capacity
	AvgNetworkSpeed NetworkSpeedMbps
	AvgUptime       time.Duration
}

// ManifestKind discriminates the tagged union of workload manifests.
type ManifestKind string

const (
	ManifestKindNone           ManifestKind = "none"
	ManifestKindContainerPath  ManifestKind = "container_path"
	ManifestKindStorePath      ManifestKind = "store_path"
	ManifestKindBuildCmd       ManifestKind = "build_cmd"
	ManifestKindHolochainDhtV1 ManifestKind = "holochain_dht_v1"
)

// ManifestSpec is the tagged-union interface every manifest variant
// satisfies. Concrete variants carry their own payload fields; Kind
// identifies which one a decoded value is.
type ManifestSpec interface {
	Kind() ManifestKind
	// ManifestID is a stable content fingerprint used by the reconciler's
	// relevance check (§4.3: fire-host propagation on manifest_id change).
	ManifestID() string
}

// NoneManifest is a workload with no executable payload yet (freshly
// created, awaiting a build/push).
type NoneManifest struct{}

func (NoneManifest) Kind() ManifestKind { return ManifestKindNone }
func (NoneManifest) ManifestID() string { return "" }

// ContainerPathManifest addresses an OCI image by reference.
type ContainerPathManifest struct {
	ImageRef string // e.g. "registry.example/app:1.2.3"
	Command  []string
	Env      []string
}

func (m ContainerPathManifest) Kind() ManifestKind { return ManifestKindContainerPath }
func (m ContainerPathManifest) ManifestID() string { return "container:" + m.ImageRef }

// StorePathManifest addresses a content-addressed path in a local/nix-like
// store the host agent already has access to.
type StorePathManifest struct {
	Path string
}

func (m StorePathManifest) Kind() ManifestKind { return ManifestKindStorePath }
func (m StorePathManifest) ManifestID() string { return "store:" + m.Path }

// BuildCmdManifest describes a build step to run locally before execution.
type BuildCmdManifest struct {
	Command []string
	WorkDir string
}

func (m BuildCmdManifest) Kind() ManifestKind { return ManifestKindBuildCmd }
func (m BuildCmdManifest) ManifestID() string {
	id := "build:" + m.WorkDir
	for _, c := range m.Command {
		id += ":" + c
	}
	return id
}

// HolochainDhtV1Manifest describes a Holochain happ to be installed via Ham.
type HolochainDhtV1Manifest struct {
	DnaHash       string
	HappBundleURL string
	MembraneProof []byte
	NetworkSeed   string
}

func (m HolochainDhtV1Manifest) Kind() ManifestKind { return ManifestKindHolochainDhtV1 }
func (m HolochainDhtV1Manifest) ManifestID() string { return "hha:" + m.DnaHash }

// WorkloadState is the closed enumeration from §3. Error and Unknown carry
// a payload, so the zero-value Tag/Detail pair is used uniformly rather
// than bare string constants for those two variants.
type WorkloadState struct {
	Tag    WorkloadStateTag
	Detail string // populated only for Error/Unknown
}

// WorkloadStateTag names one of the twelve closed states.
type WorkloadStateTag string

const (
	WorkloadReported    WorkloadStateTag = "reported"
	WorkloadAssigned    WorkloadStateTag = "assigned"
	WorkloadPending     WorkloadStateTag = "pending"
	WorkloadInstalled   WorkloadStateTag = "installed"
	WorkloadRunning     WorkloadStateTag = "running"
	WorkloadUpdating    WorkloadStateTag = "updating"
	WorkloadUpdated     WorkloadStateTag = "updated"
	WorkloadDeleted     WorkloadStateTag = "deleted"
	WorkloadRemoved     WorkloadStateTag = "removed"
	WorkloadUninstalled WorkloadStateTag = "uninstalled"
	WorkloadError       WorkloadStateTag = "error"
	WorkloadUnknown     WorkloadStateTag = "unknown"
)

// StateError builds an Error(msg) state value.
func StateError(msg string) WorkloadState {
	return WorkloadState{Tag: WorkloadError, Detail: msg}
}

// StateUnknown builds an Unknown(ctx) state value.
func StateUnknown(ctx string) WorkloadState {
	return WorkloadState{Tag: WorkloadUnknown, Detail: ctx}
}

// State builds a plain (payload-less) state value.
func State(tag WorkloadStateTag) WorkloadState {
	return WorkloadState{Tag: tag}
}

// WorkloadStatus carries desired intent and last-observed truth (§3).
type WorkloadStatus struct {
	Desired WorkloadState
	Actual  WorkloadState
	Payload string // opaque host-reported detail, transport-only
}

// Workload is a deployable bundle addressed by a manifest.
type Workload struct {
	ID                DocID
	Metadata          Metadata
	AssignedDeveloper DocID
	Version           string // semver
	MinHosts          int
	SystemSpecs       SystemSpecs
	AssignedHosts     []DocID
	Status            WorkloadStatus
	Manifest          ManifestSpec
	ExecutionPolicy   string // opaque fingerprint used by the relevance check
	Owner             string
	Context           string
}

// PublicServiceType enumerates the kinds of DNS-visible public service.
type PublicServiceType string

// PublicService is read-only for DNS purposes; out of band from the
// reconciliation loop.
type PublicService struct {
	ID      DocID
	Type    PublicServiceType
	DNSName string
	AddrsV4 []string
	AddrsV6 []string
}
