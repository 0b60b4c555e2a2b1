package session

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
)

// CreationState is where a main session creation stands.
type CreationState int

const (
	StatePending     CreationState = iota // nothing written yet
	StateProvisional                      // main session row exists, sub-sessions may be partial
	StateCommitted                        // every sub-session is stored
	StateAborted                          // compensation ran
)

func (st CreationState) String() string {
	switch st {
	case StatePending:
		return "pending"
	case StateProvisional:
		return "provisional"
	case StateCommitted:
		return "committed"
	case StateAborted:
		return "aborted"
	}
	return fmt.Sprintf("CreationState(%d)", int(st))
}

var errCreationState = errors.New("invalid creation state")

// creation drives one main session through pending -> provisional -> committed | aborted.
type creation struct {
	svc   *Service
	actor core.Actor
	state CreationState
	main  MainSession
	subs  []Session
}

func (cr *creation) begin(ctx context.Context, ms MainSession) error {
	if cr.state != StatePending {
		return errors.Wrap(errCreationState, cr.state.String())
	}
	created, err := cr.svc.repo.CreateMainSession(ctx, ms)
	if err != nil {
		return errors.Wrap(err, "creating main session")
	}
	cr.main = created
	cr.state = StateProvisional
	return nil
}

func (cr *creation) add(ctx context.Context, s Session) error {
	if cr.state != StateProvisional {
		return errors.Wrap(errCreationState, cr.state.String())
	}
	created, err := cr.svc.repo.CreateSession(ctx, s)
	if err != nil {
		return err
	}
	cr.subs = append(cr.subs, created)
	return nil
}

func (cr *creation) commit() MainSession {
	cr.state = StateCommitted
	ms := cr.main
	ms.Sessions = cr.subs
	return ms
}

// abort deletes the sub-sessions written so far, then the main session.
// Failures are logged only; a crash before this runs can leave an empty main session behind.
func (cr *creation) abort(ctx context.Context, cause error) {
	if cr.state != StateProvisional {
		return
	}
	cr.state = StateAborted

	// the request context may already be done; compensation still has to run
	ctx = context.WithoutCancel(ctx)
	extra := map[string]interface{}{
		"main_session_id": cr.main.ID,
		"cause":           cause.Error(),
	}
	if len(cr.subs) > 0 {
		if err := cr.svc.repo.DeleteSessionsByMainSession(ctx, cr.main.ID); err != nil {
			cr.svc.logger.Error("rolling back sessions", errors.Wrap(err, "deleting sessions"), extra, cr.actor)
		}
	}
	if err := cr.svc.repo.DeleteMainSession(ctx, cr.main.ID); err != nil {
		cr.svc.logger.Error("rolling back main session", errors.Wrap(err, "deleting main session"), extra, cr.actor)
		return
	}
	if _, ok := IsConflict(cause); !ok {
		cr.svc.logger.Warn("main session creation rolled back", extra, cr.actor)
	}
}
