package progress

import (
	"testing"

	"github.com/fetchbox/fetchbox/internal/testutil"
)

func TestManager_Lifecycle(t *testing.T) {
	m := NewManager(nil, testutil.NopLogger())

	m.Start("t1", "download.mp4")

	active := m.Active()
	if len(active) != 1 {
		t.Fatalf("Active() returned %d transfers, want 1", len(active))
	}
	if active[0].Status != StatusRequesting {
		t.Errorf("Status = %q, want %q", active[0].Status, StatusRequesting)
	}
	if active[0].Percent != Indeterminate {
		t.Errorf("Percent = %d, want %d before any bytes", active[0].Percent, Indeterminate)
	}

	m.Update("t1", 512, 1024, 50)
	active = m.Active()
	if active[0].Status != StatusStreaming {
		t.Errorf("Status = %q, want %q", active[0].Status, StatusStreaming)
	}
	if active[0].ReceivedBytes != 512 || active[0].Percent != 50 {
		t.Errorf("progress = (%d bytes, %d%%), want (512, 50)", active[0].ReceivedBytes, active[0].Percent)
	}

	m.Finish("t1", StatusCompleted, "")
	active = m.Active()
	if len(active) != 1 {
		t.Fatalf("Active() returned %d transfers right after finish, want 1", len(active))
	}
	if active[0].Status != StatusCompleted {
		t.Errorf("Status = %q, want %q", active[0].Status, StatusCompleted)
	}
	if active[0].Percent != 100 {
		t.Errorf("Percent = %d, want 100 on completion", active[0].Percent)
	}
	if active[0].CompletedAt == nil {
		t.Error("CompletedAt = nil, want a timestamp")
	}
}

func TestManager_FinishFailedKeepsError(t *testing.T) {
	m := NewManager(nil, testutil.NopLogger())

	m.Start("t1", "download.mp4")
	m.Finish("t1", StatusFailed, "the extractor tool failed")

	active := m.Active()
	if len(active) != 1 {
		t.Fatalf("Active() returned %d transfers, want 1", len(active))
	}
	if active[0].Error != "the extractor tool failed" {
		t.Errorf("Error = %q, want the failure message", active[0].Error)
	}
	if active[0].Percent == 100 {
		t.Error("Percent = 100 on failure, want it left as-is")
	}
}

func TestManager_UpdateUnknownIDIsNoop(t *testing.T) {
	m := NewManager(nil, testutil.NopLogger())

	m.Update("missing", 1, 2, 50)
	m.Finish("missing", StatusCompleted, "")

	if got := m.Active(); len(got) != 0 {
		t.Errorf("Active() returned %d transfers, want 0", len(got))
	}
}
