package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/welloul/CyptoTerminal/internal/feed"
	"github.com/welloul/CyptoTerminal/internal/market"
	"github.com/welloul/CyptoTerminal/internal/store"
	"github.com/welloul/CyptoTerminal/internal/verdict"
)

// StateSource is the read side of the store.
type StateSource interface {
	Current() (*market.State, bool)
	Subscribe() <-chan store.Snapshot
	Unsubscribe(<-chan store.Snapshot)
}

// SubjectChanger switches the streamed instrument.
type SubjectChanger interface {
	Change(symbol string) (string, error)
}

// Handler implements VerdictServiceServer.
type Handler struct {
	state   StateSource
	subject SubjectChanger
	log     zerolog.Logger
}

func NewHandler(state StateSource, subject SubjectChanger, logger zerolog.Logger) *Handler {
	return &Handler{
		state:   state,
		subject: subject,
		log:     logger.With().Str("component", "rpc").Logger(),
	}
}

// GetVerdicts evaluates the current snapshot. Before the first snapshot it
// returns a neutral report with hasData false.
func (h *Handler) GetVerdicts(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st, _ := h.state.Current()
	return toStruct(verdict.Evaluate(st))
}

// GetState returns the raw current snapshot.
func (h *Handler) GetState(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st, ok := h.state.Current()
	if !ok {
		return nil, status.Error(codes.Unavailable, "no market data yet")
	}
	return toStruct(st)
}

// ChangeSubject expects {"symbol": "<instrument>"}.
func (h *Handler) ChangeSubject(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	symbol := req.GetFields()["symbol"].GetStringValue()
	sym, err := h.subject.Change(symbol)
	switch {
	case errors.Is(err, feed.ErrEmptySymbol):
		return nil, status.Error(codes.InvalidArgument, "symbol is required")
	case err != nil:
		return nil, status.Errorf(codes.Unavailable, "send subscribe: %v", err)
	}
	h.log.Info().Str("symbol", sym).Msg("subject changed over rpc")
	return structpb.NewStruct(map[string]any{"symbol": sym})
}

// WatchVerdicts streams a report for every snapshot the caller can keep up
// with. Intermediate snapshots are skipped for slow readers.
func (h *Handler) WatchVerdicts(_ *emptypb.Empty, stream VerdictService_WatchVerdictsServer) error {
	sub := h.state.Subscribe()
	defer h.state.Unsubscribe(sub)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-sub:
			if !ok {
				return nil
			}
			msg, err := toStruct(verdict.Evaluate(snap.State))
			if err != nil {
				return status.Errorf(codes.Internal, "encode report: %v", err)
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

// toStruct converts a JSON-tagged value into a structpb.Struct.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return structpb.NewStruct(m)
}
