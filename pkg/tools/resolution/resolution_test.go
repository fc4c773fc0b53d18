package resolution

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeRetriever struct {
	chunks []string
	err    error
}

func (r *fakeRetriever) Chunks(ctx context.Context, query string) ([]string, error) {
	return r.chunks, r.err
}

func TestCallJoinsChunks(t *testing.T) {
	s := New(&fakeRetriever{chunks: []string{
		"Section: E42\nRestart the device.",
		"Section: E43\nReinstall the firmware.",
	}})

	out, err := s.Call(context.Background(), map[string]string{"query": "error E42"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !strings.Contains(out, "Restart the device.") || !strings.Contains(out, "Reinstall the firmware.") {
		t.Errorf("out = %q", out)
	}
	if !strings.Contains(out, "\n\n---\n\n") {
		t.Errorf("chunks not separated: %q", out)
	}
}

func TestCallNoMatches(t *testing.T) {
	s := New(&fakeRetriever{})

	out, err := s.Call(context.Background(), map[string]string{"query": "unknown issue"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if out != NoResolutionFound {
		t.Errorf("out = %q, want sentinel", out)
	}
}

func TestCallRetrieverError(t *testing.T) {
	boom := errors.New("index unavailable")
	s := New(&fakeRetriever{err: boom})

	_, err := s.Call(context.Background(), map[string]string{"query": "q"})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want retriever error", err)
	}
}

func TestSpec(t *testing.T) {
	spec := New(&fakeRetriever{}).Spec()
	if spec.Name != "ir_tool" {
		t.Errorf("Name = %q", spec.Name)
	}
	if spec.Terminal {
		t.Error("resolution tool must be advisory")
	}
	if len(spec.Params) != 1 || spec.Params[0].Name != "query" || !spec.Params[0].Required {
		t.Errorf("Params = %+v", spec.Params)
	}
}
