package store

import (
	"context"
	"errors"
	"time"

	"github.com/busgate/server/internal/busgate/fieldcrypt"
	"github.com/busgate/server/internal/busgate/types"
)

// ErrNotFound is returned by lookups for records that do not exist.
var ErrNotFound = errors.New("store: not found")

// CredentialRecord is the provisioning record for one kiosk.  The
// secret hash is replaced wholesale on rotation (the old hash stops
// verifying the moment the row is updated) and rows are never deleted,
// only deactivated, so the audit trail stays intact.
type CredentialRecord struct {
	DeviceID   string
	SecretHash string
	Active     bool
	BusID      string
	CreatedAt  time.Time
	RotatedAt  time.Time
}

type CredentialStore interface {
	GetCredential(ctx context.Context, deviceID string) (CredentialRecord, error)
	PutCredential(ctx context.Context, rec CredentialRecord) error
	RotateSecret(ctx context.Context, deviceID, newHash string, at time.Time) error
	SetActive(ctx context.Context, deviceID string, active bool) error
}

// RouteRecord is the route currently assigned to a bus.  A bus with no
// active route cannot attribute boarding events.
type RouteRecord struct {
	RouteID string
	BusID   string
	Name    string
	Active  bool
}

type RouteStore interface {
	GetActiveRoute(ctx context.Context, busID string) (RouteRecord, error)
}

// StudentRecord holds a rider's PII, encrypted field by field.  The
// student ref is an opaque application identifier, not PII.
type StudentRecord struct {
	StudentRef    string
	BusID         string
	Name          fieldcrypt.EncryptedField
	GuardianEmail fieldcrypt.EncryptedField
	GuardianPhone fieldcrypt.EncryptedField
	CreatedAt     time.Time
}

type StudentStore interface {
	GetStudent(ctx context.Context, studentRef string) (StudentRecord, error)
	PutStudent(ctx context.Context, rec StudentRecord) error

	// ReEncryptStudents migrates every student's encrypted fields to
	// the cipher's active key.  Idempotent: rows already under the
	// active key are left untouched.  Returns the number of rows
	// rewritten.
	ReEncryptStudents(ctx context.Context, cipher *fieldcrypt.Cipher) (int, error)
}

// BoardingEventRecord is one board/alight occurrence and its decision.
// Append-only; ChainHash links each event to its predecessor so any
// after-the-fact edit or deletion breaks the chain.
type BoardingEventRecord struct {
	ID         string
	DeviceID   string
	BusID      string
	RouteID    string
	StudentRef fieldcrypt.EncryptedField
	Direction  string
	FaceScore  *float64 // nil when no face was detected
	Decision   string
	Reason     string
	DecidedAt  time.Time
	ChainHash  []byte
}

type BoardingEventStore interface {
	// AppendEvent persists rec with a freshly computed chain hash and
	// returns the stored record.  All-or-nothing: a cancelled context
	// leaves no partial row.
	AppendEvent(ctx context.Context, rec BoardingEventRecord) (BoardingEventRecord, error)

	// VerifyChain walks the full event log in insertion order,
	// recomputing each hash.
	VerifyChain(ctx context.Context) (types.ChainVerifyResponse, error)
}

// HeartbeatRecord is the latest liveness report from a kiosk.
type HeartbeatRecord struct {
	ReceivedAt time.Time
	Request    types.HeartbeatRequest
}

type HeartbeatStore interface {
	UpsertHeartbeat(ctx context.Context, deviceID string, rec HeartbeatRecord) error
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
