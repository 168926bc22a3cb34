package resend

import (
	"strings"
	"testing"

	"github.com/brk3/flux/internal/nudge"
)

func TestRender(t *testing.T) {
	html, err := render(nudge.Reminder{
		Day:     "2026-04-02",
		Habits:  []string{"Reading", "<script>"},
		Pending: "$3.25",
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"2026-04-02", "<li>Reading</li>", "$3.25", "&lt;script&gt;"} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered email missing %q:\n%s", want, html)
		}
	}
}
