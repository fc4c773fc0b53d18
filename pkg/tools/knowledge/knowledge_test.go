package knowledge

import (
	"testing"
)

func TestFormatChunk(t *testing.T) {
	cases := []struct {
		name     string
		metadata map[string]any
		want     string
	}{
		{
			name:     "title and content",
			metadata: map[string]any{"title": "Login Errors", "content": "Reset your password."},
			want:     "Section: Login Errors\nReset your password.",
		},
		{
			name:     "content only",
			metadata: map[string]any{"content": "Reset your password."},
			want:     "Reset your password.",
		},
		{
			name:     "title only",
			metadata: map[string]any{"title": "Login Errors"},
			want:     "Section: Login Errors",
		},
		{
			name:     "empty metadata",
			metadata: map[string]any{},
			want:     "",
		},
		{
			name:     "non-string values ignored",
			metadata: map[string]any{"title": 42, "content": "Reset your password."},
			want:     "Reset your password.",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := formatChunk(tc.metadata); got != tc.want {
				t.Errorf("formatChunk(%v) = %q, want %q", tc.metadata, got, tc.want)
			}
		})
	}
}

func TestSpec(t *testing.T) {
	s := &Service{}
	spec := s.Spec()
	if spec.Name != "kb_tool" {
		t.Errorf("Name = %q", spec.Name)
	}
	if spec.Terminal {
		t.Error("knowledge tool must be advisory")
	}
	if len(spec.Params) != 1 || spec.Params[0].Name != "query" || !spec.Params[0].Required {
		t.Errorf("Params = %+v", spec.Params)
	}
}
