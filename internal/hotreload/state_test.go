package hotreload

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReloadState_StartsRunning(t *testing.T) {
	s := NewReloadState()
	phase, msg := s.Snapshot()
	require.Equal(t, PhaseRunning, phase)
	require.Empty(t, msg)
}

func TestReloadState_TransitionsAndReportsFailure(t *testing.T) {
	s := NewReloadState()
	s.set(PhaseReloading, "")
	phase, _ := s.Snapshot()
	require.Equal(t, PhaseReloading, phase)

	s.set(PhaseReloadFailed, "bad yaml at line 4")
	phase, msg := s.Snapshot()
	require.Equal(t, PhaseReloadFailed, phase)
	require.Equal(t, "bad yaml at line 4", msg)

	s.set(PhaseRunning, "")
	phase, msg = s.Snapshot()
	require.Equal(t, PhaseRunning, phase)
	require.Empty(t, msg)
}

func TestPhase_String(t *testing.T) {
	require.Equal(t, "running", PhaseRunning.String())
	require.Equal(t, "reloading", PhaseReloading.String())
	require.Equal(t, "reload_failed", PhaseReloadFailed.String())
}
