package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/busgate/server/internal/busgate/fieldcrypt"
	"github.com/busgate/server/internal/busgate/store"
	"github.com/busgate/server/internal/busgate/types"
)

var (
	ErrInvalidStudentRef = errors.New("student_ref is required")
	ErrInvalidDirection  = errors.New("direction must be board or alight")

	// ErrNoActiveRoute means the device's bus has no route assigned.
	// A boarding event on an unrouted bus would be unattributable, so
	// the call fails outright and no event is written.
	ErrNoActiveRoute = errors.New("bus has no active route")
)

// BoardingService applies the accept/reject decision to face-match
// scores and appends exactly one immutable event per call, accepted or
// not.  A rejection is a valid outcome, not an error.
type BoardingService struct {
	creds     store.CredentialStore
	routes    store.RouteStore
	events    store.BoardingEventStore
	cipher    *fieldcrypt.Cipher
	threshold float64
}

// NewBoardingService builds the gate.  The face-match threshold is
// fixed for the life of the service: past decisions are never
// reinterpreted under a new threshold.
func NewBoardingService(
	creds store.CredentialStore,
	routes store.RouteStore,
	events store.BoardingEventStore,
	cipher *fieldcrypt.Cipher,
	threshold float64,
) *BoardingService {
	return &BoardingService{
		creds:     creds,
		routes:    routes,
		events:    events,
		cipher:    cipher,
		threshold: threshold,
	}
}

// LogEvent records one board/alight occurrence for the authenticated
// device.  Repeated identical calls produce repeated distinct events:
// each scan is a real-world occurrence, not a duplicate request.
func (s *BoardingService) LogEvent(ctx context.Context, deviceID string, req types.LogEventRequest) (types.LogEventResponse, error) {
	now := time.Now().UTC()

	studentRef := strings.TrimSpace(req.StudentRef)
	if studentRef == "" {
		return types.LogEventResponse{}, ErrInvalidStudentRef
	}
	if req.Direction != types.DirectionBoard && req.Direction != types.DirectionAlight {
		return types.LogEventResponse{}, ErrInvalidDirection
	}

	cred, err := s.creds.GetCredential(ctx, deviceID)
	if errors.Is(err, store.ErrNotFound) {
		// The token verified but its device has vanished from the
		// credential table.  Same uniform error as bad credentials.
		return types.LogEventResponse{}, ErrAuthentication
	}
	if err != nil {
		return types.LogEventResponse{}, err
	}

	route, err := s.routes.GetActiveRoute(ctx, cred.BusID)
	if errors.Is(err, store.ErrNotFound) {
		return types.LogEventResponse{}, ErrNoActiveRoute
	}
	if err != nil {
		return types.LogEventResponse{}, err
	}

	decision, reason := s.decide(cred, req.FaceScore)

	encRef, err := s.cipher.Encrypt([]byte(studentRef))
	if err != nil {
		return types.LogEventResponse{}, err
	}

	rec := store.BoardingEventRecord{
		ID:         uuid.NewString(),
		DeviceID:   deviceID,
		BusID:      cred.BusID,
		RouteID:    route.RouteID,
		StudentRef: encRef,
		Direction:  req.Direction,
		FaceScore:  req.FaceScore,
		Decision:   decision,
		Reason:     reason,
		DecidedAt:  now,
	}

	stored, err := s.events.AppendEvent(ctx, rec)
	if err != nil {
		return types.LogEventResponse{}, err
	}

	return types.LogEventResponse{
		OK:         true,
		EventID:    stored.ID,
		Decision:   decision,
		Reason:     reason,
		ServerTime: now.Format(time.RFC3339Nano),
	}, nil
}

// decide applies the gate policy.  Tokens outlive deactivation, so the
// credential's active flag is re-checked here on every call; an
// inactive device still gets its event recorded, rejected.
func (s *BoardingService) decide(cred store.CredentialRecord, faceScore *float64) (decision, reason string) {
	switch {
	case !cred.Active:
		return types.DecisionRejected, types.ReasonDeviceInactive
	case faceScore == nil:
		return types.DecisionRejected, types.ReasonNoFaceDetected
	case *faceScore >= s.threshold:
		return types.DecisionAccepted, types.ReasonFaceMatch
	default:
		return types.DecisionRejected, types.ReasonFaceMismatch
	}
}

// VerifyChain re-walks the boarding-event hash chain.
func (s *BoardingService) VerifyChain(ctx context.Context) (types.ChainVerifyResponse, error) {
	return s.events.VerifyChain(ctx)
}
