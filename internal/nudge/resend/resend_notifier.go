package resend

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/brk3/flux/internal/nudge"
	"github.com/resend/resend-go/v2"
)

type ResendNotifier struct {
	ApiKey string
	Email  string
	From   string
}

const htmlTemplate = `
<p>These habits are still open for {{.Day}}:</p>
<ul>
{{range .Habits}}
  <li>{{.}}</li>
{{end}}
</ul>
<p>Pending payout: <strong>{{.Pending}}</strong></p>
`

var tmpl = template.Must(template.New("email").Parse(htmlTemplate))

func render(r nudge.Reminder) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, r); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (n *ResendNotifier) SendNudge(ctx context.Context, r nudge.Reminder) error {
	html, err := render(r)
	if err != nil {
		return err
	}

	client := resend.NewClient(n.ApiKey)
	params := &resend.SendEmailRequest{
		From:    n.From,
		To:      []string{n.Email},
		Subject: fmt.Sprintf("%d habit(s) still open today", len(r.Habits)),
		Html:    html,
	}

	_, err = client.Emails.SendWithContext(ctx, params)
	return err
}

var _ nudge.Notifier = (*ResendNotifier)(nil)
