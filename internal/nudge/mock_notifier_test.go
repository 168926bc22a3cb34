package nudge

import "context"

type mockNotifier struct {
	called   bool
	reminder Reminder
	err      error
}

func (m *mockNotifier) SendNudge(ctx context.Context, r Reminder) error {
	m.called = true
	m.reminder = r
	return m.err
}
