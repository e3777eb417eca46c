package signature

import (
	"log/slog"

	"github.com/google/uuid"
)

// State is the conceptual position of a signing session. Nothing is kept
// between calls; states are logged for audit.
type State int

const (
	Unauthenticated State = iota
	Authenticated
	ChallengeIssued
	Authorized
	Signed
	Published
	Failed
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	case ChallengeIssued:
		return "challenge-issued"
	case Authorized:
		return "authorized"
	case Signed:
		return "signed"
	case Published:
		return "published"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

type session struct {
	id    string
	op    string
	state State
}

func begin(op string, from State) *session {
	s := &session{id: uuid.NewString(), op: op, state: from}
	slog.Debug("Session started", slog.String("session", s.id), slog.String("op", op), slog.String("state", from.String()))
	return s
}

func (s *session) advance(to State) {
	if to == s.state {
		return
	}
	slog.Info("Session transition",
		slog.String("session", s.id),
		slog.String("op", s.op),
		slog.String("from", s.state.String()),
		slog.String("to", to.String()))
	s.state = to
}

func failed[T any](s *session, err error) Result[T] {
	f := failureOf(err)
	slog.Error("Operation failed",
		slog.String("session", s.id),
		slog.String("op", s.op),
		slog.String("state", s.state.String()),
		slog.String("kind", string(f.Kind)),
		slog.Any("error", err))
	s.advance(Failed)
	return Fail[T](f)
}
