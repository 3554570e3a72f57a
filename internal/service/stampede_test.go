package service

import "testing"

func TestStampedeTracker(t *testing.T) {
	st := newStampedeTracker("weather")

	if got := st.RecordMiss("a"); got != 1 {
		t.Errorf("first RecordMiss = %d, want 1", got)
	}
	if got := st.RecordMiss("a"); got != 2 {
		t.Errorf("second RecordMiss = %d, want 2", got)
	}
	if got := st.RecordMiss("b"); got != 1 {
		t.Errorf("other key RecordMiss = %d, want 1", got)
	}

	st.RecordDone("a")
	if got := st.active("a"); got != 1 {
		t.Errorf("active(a) = %d, want 1", got)
	}
	st.RecordDone("a")
	st.RecordDone("a")
	if got := st.active("a"); got != 0 {
		t.Errorf("active(a) = %d, want 0", got)
	}
	if _, ok := st.activeMisses["a"]; ok {
		t.Error("key a not removed after last RecordDone")
	}
}
