package transport

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nrigby/lsmkv/pkg/auth"
	"github.com/nrigby/lsmkv/pkg/bulkload"
	"github.com/nrigby/lsmkv/pkg/logging"
	"github.com/nrigby/lsmkv/pkg/lsm"
	"github.com/nrigby/lsmkv/pkg/metrics"
	"github.com/nrigby/lsmkv/pkg/parser"
	"github.com/nrigby/lsmkv/pkg/validation"
)

// AuthOptions configures the optional shared-secret/JWT gate on the
// command socket. Validator is consulted for every CMD frame's token;
// it is typically a CompositeTokenValidator trying JWTManager first and
// falling back to a SharedSecretValidator for scripted clients that skip
// the AUTH handshake. JWTManager is kept separately because IssueToken
// is not part of the TokenValidator interface.
type AuthOptions struct {
	Enabled    bool
	SecretHash string // bcrypt hash produced by auth.HashSecret
	JWTManager *auth.JWTManager
	Validator  auth.TokenValidator
}

// Server accepts one connection at a time on a mangos REP socket and
// executes each request frame against a tree.
type Server struct {
	tree    *lsm.LSMTree
	sock    ListenSocket
	auth    AuthOptions
	metrics *metrics.Registry
	logger  logging.Logger
}

// NewServer wires a tree to a listening socket. metricsReg may be nil,
// in which case command outcomes are not recorded.
func NewServer(tree *lsm.LSMTree, factory SocketFactory, listenAddr string, authOpts AuthOptions, metricsReg *metrics.Registry, logger logging.Logger) (*Server, error) {
	sock, err := factory.NewReplySocket()
	if err != nil {
		return nil, fmt.Errorf("transport: new reply socket: %w", err)
	}
	if err := sock.Listen(listenAddr); err != nil {
		sock.Close()
		return nil, fmt.Errorf("transport: listen %s: %w", listenAddr, err)
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}
	if authOpts.Enabled && authOpts.Validator == nil {
		authOpts.Validator = authOpts.JWTManager
	}
	return &Server{tree: tree, sock: sock, auth: authOpts, metrics: metricsReg, logger: logger}, nil
}

// Close releases the underlying socket.
func (s *Server) Close() error {
	return s.sock.Close()
}

// Serve loops accepting request frames until ctx is canceled or Recv
// returns an error (typically because the socket was closed).
func (s *Server) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		req, err := s.sock.Recv()
		if err != nil {
			return fmt.Errorf("transport: recv: %w", err)
		}

		resp := s.handleFrame(ctx, string(req))
		if err := s.sock.Send([]byte(resp)); err != nil {
			s.logger.Warn("transport: send failed", logging.Error(err))
		}
	}
}

func (s *Server) handleFrame(ctx context.Context, frame string) string {
	if s.auth.Enabled && strings.HasPrefix(frame, frameAuth+" ") {
		return s.handleAuth(strings.TrimPrefix(frame, frameAuth+" "))
	}

	req, ok := parseFrame(frame, s.auth.Enabled)
	if !ok {
		return respErr + " malformed frame"
	}

	if s.auth.Enabled {
		claims, err := s.auth.Validator.ValidateToken(ctx, req.Token)
		if err != nil {
			if s.metrics != nil {
				s.metrics.RecordAuthFailure()
			}
			return respErr + " " + err.Error()
		}
		s.logger.Debug("command authenticated",
			logging.String("client_id", claims.ClientID), logging.String("session_id", claims.SessionID))
	}

	return s.executeCommand(ctx, req.Line)
}

func (s *Server) handleAuth(rest string) string {
	auReq, ok := parseAuthRequest(rest)
	if !ok {
		return respErr + " malformed auth request"
	}
	if err := auth.VerifySecret(s.auth.SecretHash, auReq.Secret); err != nil {
		if s.metrics != nil {
			s.metrics.RecordAuthFailure()
		}
		return respErr + " " + err.Error()
	}
	token, err := s.auth.JWTManager.IssueToken(auReq.ClientID)
	if err != nil {
		return respErr + " " + err.Error()
	}
	return respToken + " " + token
}

func (s *Server) executeCommand(ctx context.Context, line string) string {
	start := time.Now()
	cmd, err := parser.Parse(line)
	if err != nil {
		s.record(cmd.Op.String(), "bad_argument", start)
		return respErr + " " + err.Error()
	}

	resp, status := s.dispatch(ctx, cmd)
	s.record(cmd.Op.String(), status, start)
	return resp
}

func (s *Server) record(op, status string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordCommand(op, status, time.Since(start))
	s.metrics.UpdateStorageMetrics(treeStats(s.tree.Stats()))
	s.metrics.SetBloomFalsePositiveEstimate(s.tree.BloomFalsePositiveEstimate())
}

func treeStats(s lsm.Stats) metrics.TreeStats {
	return metrics.TreeStats{
		LogicalPairs:    s.LogicalPairs,
		BufferCount:     s.BufferCount,
		PerLevelCounts:  s.PerLevelCounts,
		FlushCount:      s.FlushCount,
		CompactionCount: s.CompactionCount,
	}
}

func (s *Server) dispatch(ctx context.Context, cmd parser.Command) (resp, status string) {
	switch cmd.Op {
	case parser.OpPut:
		s.tree.Put(cmd.Key, cmd.Val)
		return respOK, "ok"

	case parser.OpGet:
		if v, ok := s.tree.Get(cmd.Key); ok {
			return fmt.Sprintf("Get: Key = %d, Value = %d", cmd.Key, v), "ok"
		}
		return fmt.Sprintf("Get: Key = %d, not found", cmd.Key), "not_found"

	case parser.OpRange:
		if err := validation.ValidateRangeRequest(validation.RangeRequest{Lo: cmd.Lo, Hi: cmd.Hi}); err != nil {
			return respErr + " " + err.Error(), "bad_argument"
		}
		pairs := s.tree.Range(cmd.Lo, cmd.Hi)
		parts := make([]string, len(pairs))
		for i, kv := range pairs {
			parts[i] = strconv.Itoa(int(kv.Key)) + ":" + strconv.Itoa(int(kv.Value))
		}
		return "Range: " + strings.Join(parts, " "), "ok"

	case parser.OpDelete:
		s.tree.Delete(cmd.Key)
		return respOK, "ok"

	case parser.OpBulkLoad:
		if err := validation.ValidateBulkLoadRequest(validation.BulkLoadRequest{Path: cmd.Path}); err != nil {
			return respErr + " " + err.Error(), "bad_argument"
		}
		r, err := bulkload.OpenReader(ctx, cmd.Path)
		if err != nil {
			return respErr + " " + err.Error(), "io_failure"
		}
		defer r.Close()
		n, err := s.tree.BulkLoad(r)
		if err != nil {
			return respErr + " " + err.Error(), "io_failure"
		}
		return fmt.Sprintf("Loaded %d pairs from %s", n, cmd.Path), "ok"

	case parser.OpStats:
		return s.tree.StatsString(), "ok"

	default:
		return respErr + " unknown command", "bad_argument"
	}
}
