package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/NoroNetwork/ppv-streaming/internal/core/domain"
	"github.com/NoroNetwork/ppv-streaming/internal/core/port"
	"github.com/NoroNetwork/ppv-streaming/internal/repository"
)

// StreamService gates playback on entitlements and manages ingest paths on the media server.
type StreamService struct {
	streams port.StreamRepository
	ledger  *EntitlementLedger
	media   port.MediaServer
	logger  *zap.Logger
}

func NewStreamService(streams port.StreamRepository, ledger *EntitlementLedger, media port.MediaServer) *StreamService {
	return &StreamService{streams: streams, ledger: ledger, media: media, logger: zap.NewNop()}
}

func (s *StreamService) WithLogger(logger *zap.Logger) *StreamService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Playback returns the playback URL when the caller is an admin or holds a grant.
func (s *StreamService) Playback(ctx context.Context, claims domain.TokenClaims, streamID string) (domain.StreamEndpoints, error) {
	stream, err := s.load(ctx, streamID)
	if err != nil {
		return domain.StreamEndpoints{}, err
	}

	if claims.Role != domain.RoleAdmin {
		ok, err := s.ledger.HasAccess(ctx, claims.Subject, stream.ID)
		if err != nil {
			return domain.StreamEndpoints{}, err
		}
		if !ok {
			return domain.StreamEndpoints{}, domain.NewAuthorizationError("Access denied")
		}
	}

	endpoints := s.media.Endpoints(stream.StreamKey)
	// Viewers never receive ingest credentials.
	endpoints.RTMPURL = ""
	endpoints.StreamKey = ""
	return endpoints, nil
}

// Provision registers the stream's ingest path on the media server.
func (s *StreamService) Provision(ctx context.Context, streamID string) (domain.StreamEndpoints, error) {
	stream, err := s.load(ctx, streamID)
	if err != nil {
		return domain.StreamEndpoints{}, err
	}
	endpoints, err := s.media.CreateStream(ctx, stream.StreamKey)
	if err != nil {
		return domain.StreamEndpoints{}, err
	}
	s.logger.Info("stream provisioned", zap.String("stream_id", stream.ID))
	return endpoints, nil
}

// Deprovision removes the stream's ingest path.
func (s *StreamService) Deprovision(ctx context.Context, streamID string) error {
	stream, err := s.load(ctx, streamID)
	if err != nil {
		return err
	}
	if err := s.media.DeleteStream(ctx, stream.StreamKey); err != nil {
		return err
	}
	s.logger.Info("stream deprovisioned", zap.String("stream_id", stream.ID))
	return nil
}

// Stats reports live state for the stream together with its sales totals.
func (s *StreamService) Stats(ctx context.Context, streamID string) (domain.StreamStats, error) {
	stream, err := s.load(ctx, streamID)
	if err != nil {
		return domain.StreamStats{}, err
	}
	stats, err := s.media.GetStats(ctx, stream.StreamKey)
	if err != nil {
		return domain.StreamStats{}, err
	}
	stats.Sales, err = s.streams.Totals(ctx, stream.ID)
	if err != nil {
		return domain.StreamStats{}, fmt.Errorf("load stream totals: %w", err)
	}
	return stats, nil
}

func (s *StreamService) load(ctx context.Context, streamID string) (*domain.Stream, error) {
	stream, err := s.streams.GetByID(ctx, streamID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewNotFoundError("Stream not found")
		}
		return nil, fmt.Errorf("load stream: %w", err)
	}
	return stream, nil
}
