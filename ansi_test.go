package downstream

import (
	"context"
	"strings"
	"testing"
	"time"
)

func newReadyANSIRenderer(t *testing.T, width int) *ANSIRenderer {
	t.Helper()
	r := NewANSIRenderer(width)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := r.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady: %v", err)
	}
	return r
}

func TestANSIRenderer_NotReadyFailsFast(t *testing.T) {
	t.Parallel()

	// Construct the gate by hand so readiness is deterministically absent.
	r := &ANSIRenderer{ready: make(chan struct{})}
	if r.Ready() {
		t.Fatal("renderer must not be ready before warm-up")
	}
	if _, err := r.Render(context.Background(), "text"); err != ErrRendererNotReady {
		t.Fatalf("Render error = %v, want ErrRendererNotReady", err)
	}
}

func TestANSIRenderer_Render(t *testing.T) {
	t.Parallel()

	r := newReadyANSIRenderer(t, 60)

	tests := []struct {
		name         string
		input        string
		wantContains []string
		wantComplete bool
	}{
		{
			name:         "heading keeps marker",
			input:        "# Title",
			wantContains: []string{"# Title"},
			wantComplete: true,
		},
		{
			name:         "unordered list",
			input:        "- one\n- two",
			wantContains: []string{"• one", "• two"},
			wantComplete: true,
		},
		{
			name:         "ordered list",
			input:        "1. first\n2. second",
			wantContains: []string{"1. first", "2. second"},
			wantComplete: true,
		},
		{
			name:         "blockquote gutter",
			input:        "> quoted",
			wantContains: []string{"│", "quoted"},
			wantComplete: true,
		},
		{
			name:         "open fence is incomplete",
			input:        "```go\nfunc main() {}",
			wantContains: []string{"func", "main"},
			wantComplete: false,
		},
		{
			name:         "closed fence is complete",
			input:        "```go\nfunc main() {}\n```",
			wantContains: []string{"func", "main"},
			wantComplete: true,
		},
		{
			name:         "task list",
			input:        "- [x] done\n- [ ] todo",
			wantContains: []string{"[x] done", "[ ] todo"},
			wantComplete: true,
		},
		{
			name:         "inline raw html passes through",
			input:        "before <br/> after",
			wantContains: []string{"before", "<br/>", "after"},
			wantComplete: true,
		},
		{
			name:         "html block passes through",
			input:        "<div>\nliteral\n</div>",
			wantContains: []string{"<div>", "literal", "</div>"},
			wantComplete: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := r.Render(context.Background(), tt.input)
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			plain := stripANSI(res.Output)
			for _, want := range tt.wantContains {
				if !strings.Contains(plain, want) {
					t.Errorf("output missing %q:\n%s", want, plain)
				}
			}
			if res.Complete != tt.wantComplete {
				t.Errorf("Complete = %v, want %v", res.Complete, tt.wantComplete)
			}
		})
	}
}

func TestANSIRenderer_WrapsProse(t *testing.T) {
	t.Parallel()

	r := newReadyANSIRenderer(t, 20)
	res, err := r.Render(context.Background(), "five words that will not fit on one short line")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, line := range strings.Split(stripANSI(res.Output), "\n") {
		if len(line) > 20 {
			t.Errorf("line %q exceeds wrap width", line)
		}
	}
}

func TestANSIRenderer_Idempotent(t *testing.T) {
	t.Parallel()

	r := newReadyANSIRenderer(t, 60)
	const input = "## Sub\n\ntext with **bold** and *italic*\n\n```go\nx := 1\n"
	first, err := r.Render(context.Background(), input)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	second, err := r.Render(context.Background(), input)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if first != second {
		t.Error("renders of identical text differ")
	}
}

// stripANSI removes CSI escape sequences so assertions can match plain
// text regardless of styling.
func stripANSI(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); {
		if s[i] == 0x1b && i+1 < len(s) && s[i+1] == '[' {
			i += 2
			for i < len(s) {
				c := s[i]
				i++
				if c >= 0x40 && c <= 0x7e {
					break
				}
			}
			continue
		}
		sb.WriteByte(s[i])
		i++
	}
	return sb.String()
}
