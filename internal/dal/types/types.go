// Package types carries the wire-level vocabulary shared by the Back-end
// Adapter contract, the Write-Back Cache, the Dispatch Queue and the
// Manager Facade: the entity-kind enumeration, the opaque object
// identifier, the Record interface records must satisfy, the request and
// completion shapes, and the three disjoint request-ID spaces the core
// generates (caller, intake, commit).
package types

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Kind is the closed enumeration of entity kinds the system handles. Every
// Dispatch Queue serves exactly one Kind; object IDs never collide across
// kinds.
type Kind string

const (
	KindDevice        Kind = "device"
	KindUser          Kind = "user"
	KindSession       Kind = "session"
	KindSchedule      Kind = "schedule"
	KindSyncJob       Kind = "sync_job"
	KindLog           Kind = "log"
	KindStatistic     Kind = "statistic"
	KindSystemSetting Kind = "system_setting"
	// KindBatch is the internal kind that wraps a sequence of records
	// returned by a READ whose constraint matched more than one object.
	KindBatch Kind = "batch"
)

// AllKinds enumerates every non-internal entity kind the Manager Facade
// instantiates a Dispatch Queue for.
func AllKinds() []Kind {
	return []Kind{
		KindDevice, KindUser, KindSession, KindSchedule,
		KindSyncJob, KindLog, KindStatistic, KindSystemSetting,
	}
}

func (k Kind) String() string { return string(k) }

// ObjectID is the 128-bit opaque, assumed-universally-unique identifier
// carried by every stored record.
type ObjectID uuid.UUID

// ZeroObjectID is the empty object-ID used when a failure has no known
// target.
var ZeroObjectID ObjectID

// NewObjectID mints a fresh random object-ID.
func NewObjectID() ObjectID { return ObjectID(uuid.New()) }

// ParseObjectID parses a canonical UUID string into an ObjectID.
func ParseObjectID(s string) (ObjectID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ZeroObjectID, err
	}
	return ObjectID(u), nil
}

func (o ObjectID) String() string { return uuid.UUID(o).String() }
func (o ObjectID) IsZero() bool   { return o == ZeroObjectID }

// Record is the opaque per-entity-kind payload the core moves around. The
// core never inspects fields beyond this interface; everything else is
// the owning subsystem's concern.
type Record interface {
	ObjectID() ObjectID
	Kind() Kind
	// Modified reports whether a mutator has touched this record since it
	// was last committed. Cleared only by the Write-Back Cache after a
	// successful commit.
	Modified() bool
	SetModified(bool)
	// Clone returns a deep copy, used by adapters that must persist their
	// own representation independent of the caller's reference.
	Clone() Record
}

// Batch wraps an ordered sequence of constituent records, used when a READ
// constraint matches more than one object.
type Batch struct {
	Items []Record
}

func (b *Batch) ObjectID() ObjectID { return ZeroObjectID }
func (b *Batch) Kind() Kind         { return KindBatch }
func (b *Batch) Modified() bool     { return false }
func (b *Batch) SetModified(m bool) {}
func (b *Batch) Clone() Record {
	items := make([]Record, len(b.Items))
	for i, r := range b.Items {
		items[i] = r.Clone()
	}
	return &Batch{Items: items}
}

// AsBatch reports whether rec is a Batch and returns it.
func AsBatch(rec Record) (*Batch, bool) {
	b, ok := rec.(*Batch)
	return b, ok
}

// Op identifies a pending mutation kind: the tagged variant the
// pending-mutation table collapses to at most one entry per object.
type Op int

const (
	OpInsert Op = iota
	OpUpdate
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpInsert:
		return "INSERT"
	case OpUpdate:
		return "UPDATE"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// ConstraintTag names the bound parameter of a READ intake. Tags are
// kind-specific except for the identity tag ByID, which every kind
// supports and which the cache uses to resolve a READ to an object-ID
// without consulting the downstream adapter.
type ConstraintTag string

const (
	ByID    ConstraintTag = "by-id"
	ByName  ConstraintTag = "by-name"
	ByOwner ConstraintTag = "by-owner"
	All     ConstraintTag = "all"
)

// IntakeOp identifies which of the four asynchronous operations an intake
// represents.
type IntakeOp int

const (
	IntakeRead IntakeOp = iota
	IntakeInsert
	IntakeUpdate
	IntakeDelete
)

// Intake is the kind-scoped request payload a caller hands to a Dispatch
// Queue (or a Dispatch Queue hands to an Adapter/Write-Back Cache).
type Intake struct {
	Op              IntakeOp
	ConstraintTag   ConstraintTag
	ConstraintValue any
	Record          Record
	ObjectID        ObjectID
}

// FailureReason refines a failure completion.
type FailureReason string

const (
	ReasonUnspecified           FailureReason = ""
	ReasonNotFound              FailureReason = "not-found"
	ReasonAlreadyExists         FailureReason = "already-exists"
	ReasonConflictPendingDelete FailureReason = "conflict-pending-delete"
	ReasonTimeout               FailureReason = "timeout"
	ReasonShutdown              FailureReason = "shutdown"
	ReasonAdapterRejected       FailureReason = "adapter-rejected"
	ReasonAdapterFailed         FailureReason = "adapter-failed"
)

// Outcome is the single per-request completion surfaced to a caller.
type Outcome struct {
	Success  bool
	Record   Record
	ObjectID ObjectID
	Reason   FailureReason
}

// Failure builds a failure Outcome with an optionally-known object-ID.
func Failure(objID ObjectID, reason FailureReason) Outcome {
	return Outcome{Success: false, ObjectID: objID, Reason: reason}
}

// Success builds a success Outcome, optionally carrying the record.
func Success(rec Record) Outcome {
	objID := ZeroObjectID
	if rec != nil {
		objID = rec.ObjectID()
	}
	return Outcome{Success: true, Record: rec, ObjectID: objID}
}

// RequestID is the universal wire identifier threaded through
// Adapter.Submit*/completion calls. CallerID, IntakeID and CommitID are
// views onto the same underlying type assigned by three independent,
// disjoint counters: a caller-ID for the Manager Facade's
// own bookkeeping, an intake-ID the Dispatch Queue assigns to route and
// aggregate, and a commit-ID the Write-Back Cache assigns to its own
// downstream submissions. Commit-IDs are tagged with the high bit set so
// that, even though every counter starts at one, a commit-ID and an
// intake-ID can never collide in the same map — this is what keeps
// completion-routing unambiguous in the Write-Back Cache (see
// CommitIDTagBit).
type RequestID uint64

type (
	CallerID = RequestID
	IntakeID = RequestID
	CommitID = RequestID
)

// idGen is a monotonic, goroutine-safe counter shared by the three ID
// generators below.
type idGen struct {
	n uint64
}

func (g *idGen) next() uint64 { return atomic.AddUint64(&g.n, 1) }

// CallerIDGen allocates Manager Facade caller IDs.
type CallerIDGen struct{ idGen }

func (g *CallerIDGen) Next() CallerID { return CallerID(g.next()) }

// IntakeIDGen allocates Dispatch Queue intake IDs.
type IntakeIDGen struct{ idGen }

func (g *IntakeIDGen) Next() IntakeID { return IntakeID(g.next()) }

// CommitIDTagBit marks a RequestID as belonging to the Write-Back Cache's
// commit-ID space rather than an intake-ID space, guaranteeing the two
// spaces never collide regardless of each counter's current value.
const CommitIDTagBit uint64 = 1 << 63

// CommitIDGen allocates Write-Back Cache commit IDs, tagged disjoint from
// intake IDs.
type CommitIDGen struct{ idGen }

func (g *CommitIDGen) Next() CommitID { return CommitID(g.next() | CommitIDTagBit) }

// IsCommitID reports whether id was minted by a CommitIDGen.
func IsCommitID(id RequestID) bool { return uint64(id)&CommitIDTagBit != 0 }
