package wsutil

import "testing"

func TestSafeSend(t *testing.T) {
	ch := make(chan []byte, 1)
	if !SafeSend(ch, []byte("a")) {
		t.Error("expected send on an empty buffer to succeed")
	}
	if SafeSend(ch, []byte("b")) {
		t.Error("expected send on a full buffer to be skipped")
	}
	if got := string(<-ch); got != "a" {
		t.Errorf("expected %q, got %q", "a", got)
	}

	close(ch)
	if SafeSend(ch, []byte("c")) {
		t.Error("expected send on a closed channel to report false")
	}
}
