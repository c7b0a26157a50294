package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/busgate/server/internal/busgate/store"
	"github.com/busgate/server/internal/busgate/types"
)

var ErrInvalidHeartbeatDevice = errors.New("device id is required")

type HeartbeatService struct {
	heartbeatStore store.HeartbeatStore
}

func NewHeartbeatService(hs store.HeartbeatStore) *HeartbeatService {
	return &HeartbeatService{heartbeatStore: hs}
}

// Record stores a kiosk liveness report.  The device id comes from the
// verified token, never from the request body.
func (s *HeartbeatService) Record(ctx context.Context, deviceID string, req types.HeartbeatRequest) (types.HeartbeatResponse, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return types.HeartbeatResponse{}, ErrInvalidHeartbeatDevice
	}

	rec := store.HeartbeatRecord{
		ReceivedAt: time.Now().UTC(),
		Request:    req,
	}

	if err := s.heartbeatStore.UpsertHeartbeat(ctx, deviceID, rec); err != nil {
		return types.HeartbeatResponse{}, err
	}

	return types.HeartbeatResponse{
		OK:         true,
		DeviceID:   deviceID,
		ServerTime: time.Now().UTC().Format(time.RFC3339Nano),
	}, nil
}
