package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calassist/calassist/core"
)

func TestSession_SingleActiveRun(t *testing.T) {
	sess := core.NewSession("alice", core.ModeMultiTurn, core.SupersedeKeep)

	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	done, err := sess.BeginRun("run-1", cancel)
	require.NoError(t, err)
	assert.Equal(t, "run-1", sess.ActiveRunID())

	_, err = sess.BeginRun("run-2", cancel)
	assert.ErrorIs(t, err, core.ErrRunActive)

	sess.EndRun("run-1")
	assert.Equal(t, "", sess.ActiveRunID())

	select {
	case <-done:
	default:
		t.Fatal("done channel not closed after EndRun")
	}
}

func TestSession_CancelActive(t *testing.T) {
	sess := core.NewSession("alice", core.ModeMultiTurn, core.SupersedeKeep)

	// Idle session has nothing to cancel.
	assert.Nil(t, sess.CancelActive())

	ctx, cancel := context.WithCancel(context.Background())
	done, err := sess.BeginRun("run-1", cancel)
	require.NoError(t, err)

	waited := sess.CancelActive()
	require.NotNil(t, waited)
	assert.Error(t, ctx.Err())

	// The run winds down and signals completion.
	sess.EndRun("run-1")
	select {
	case <-waited:
	default:
		t.Fatal("cancel wait channel not closed")
	}
	_ = done
}

func TestSession_LateEndRunIgnored(t *testing.T) {
	sess := core.NewSession("alice", core.ModeMultiTurn, core.SupersedeKeep)

	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := sess.BeginRun("run-2", cancel)
	require.NoError(t, err)

	// A stale EndRun from a superseded run must not clobber the successor.
	sess.EndRun("run-1")
	assert.Equal(t, "run-2", sess.ActiveRunID())
}
