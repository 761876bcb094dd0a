package worker

import "testing"

type stubHandler struct{ jobType string }

func (s stubHandler) Type() string            { return s.jobType }
func (s stubHandler) Run(ctx *Context) error { return nil }

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(stubHandler{jobType: "attachChunk"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	h, ok := reg.Get("attachChunk")
	if !ok || h.Type() != "attachChunk" {
		t.Fatalf("expected to find registered handler, got ok=%v h=%v", ok, h)
	}
	if _, ok := reg.Get("missing"); ok {
		t.Fatalf("expected no handler for unregistered job_type")
	}
}

func TestRegistry_DuplicateRegistrationFails(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(stubHandler{jobType: "consolidate"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(stubHandler{jobType: "consolidate"}); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

func TestRegistry_NilHandlerRejected(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(nil); err == nil {
		t.Fatalf("expected nil handler to be rejected")
	}
}

func TestQueueConcurrency_MatchesSpecCaps(t *testing.T) {
	cases := map[string]int{
		"memory.ingest":          5,
		"memory.attachEpisode":   5,
		"memory.consolidate":     1,
		"memory.generateThoughts": 1,
		"memory.fileUpload":      2,
	}
	for queue, want := range cases {
		if got := QueueConcurrency(queue); got != want {
			t.Fatalf("QueueConcurrency(%q) = %d, want %d", queue, got, want)
		}
	}
}
