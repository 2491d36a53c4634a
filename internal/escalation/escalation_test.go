package escalation

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/project-health/internal/engine"
	perrors "github.com/p-blackswan/project-health/internal/errors"
	"github.com/p-blackswan/project-health/internal/models"
	"github.com/p-blackswan/project-health/internal/retry"
)

type recordingNotifier struct {
	mu    sync.Mutex
	got   []Escalation
	errs  []error // returned in order, then nil
	calls int
}

func (r *recordingNotifier) Notify(_ context.Context, e Escalation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		if err != nil {
			return err
		}
	}
	r.got = append(r.got, e)
	return nil
}

type countingRecorder map[string]int

func (c countingRecorder) RecordNotification(outcome string) { c[outcome]++ }

var t0 = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func alert(typ models.AlertType, sev models.Severity, project, task string) models.Alert {
	meta := map[string]any{}
	if task != "" {
		meta["task_id"] = task
	}
	return models.Alert{
		ID: string(typ) + "_" + project + "_" + task, ProjectName: project,
		AlertType: typ, Severity: sev, Title: "title " + task, Description: "desc",
		Metadata: meta, SuggestedActions: []string{"do something"},
	}
}

func TestLogNotifier_Notify(t *testing.T) {
	n := NewLogNotifier(zerolog.Nop())
	err := n.Notify(context.Background(), Escalation{
		Severity: models.SeverityCritical,
		Title:    "test",
		Message:  "something happened",
		Error:    errors.New("boom"),
	})
	require.NoError(t, err)
}

func TestMultiNotifier_JoinsErrors(t *testing.T) {
	ok := &recordingNotifier{}
	bad := &recordingNotifier{errs: []error{errors.New("down")}}
	multi := NewMultiNotifier(bad, ok)

	err := multi.Notify(context.Background(), Escalation{Title: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
	assert.Equal(t, 1, ok.calls)
	assert.Equal(t, 1, bad.calls)
}

func TestFromAlert(t *testing.T) {
	e := FromAlert(alert(models.AlertBlockedTask, models.SeverityHigh, "Rooftop-A", "T1"))
	assert.Equal(t, models.SeverityHigh, e.Severity)
	assert.Equal(t, "Rooftop-A", e.Project)
	assert.Equal(t, "blocked_task", e.Source)
	assert.Equal(t, []string{"do something"}, e.Actions)
}

func TestDispatcher_FiltersAndDedups(t *testing.T) {
	n := &recordingNotifier{}
	rec := countingRecorder{}
	now := t0
	d := NewDispatcher(n, DispatcherConfig{MinSeverity: models.SeverityHigh, DedupWindow: time.Hour}, zerolog.Nop(),
		WithClock(func() time.Time { return now }), WithRecorder(rec))

	res := &engine.CycleResult{ID: "c1", Alerts: []models.Alert{
		alert(models.AlertBlockedTask, models.SeverityCritical, "p", "T1"),
		alert(models.AlertBlockedTask, models.SeverityHigh, "p", "T2"),
		alert(models.AlertBlockedTask, models.SeverityMedium, "p", "T3"),
	}}
	require.NoError(t, d.HandleCycle(context.Background(), res))
	assert.Len(t, n.got, 2)

	now = now.Add(30 * time.Minute)
	require.NoError(t, d.HandleCycle(context.Background(), res))
	assert.Len(t, n.got, 2)
	assert.Equal(t, 2, rec[OutcomeSuppressed])

	now = now.Add(time.Hour)
	require.NoError(t, d.HandleCycle(context.Background(), res))
	assert.Len(t, n.got, 4)
	assert.Equal(t, 4, rec[OutcomeSent])
}

func TestDispatcher_RetriesAndForgetsFailures(t *testing.T) {
	n := &recordingNotifier{errs: []error{perrors.ErrUnavailable, nil}}
	fast := retry.Config{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	d := NewDispatcher(n, DispatcherConfig{DedupWindow: time.Hour, Retry: fast}, zerolog.Nop(),
		WithClock(func() time.Time { return t0 }))

	res := &engine.CycleResult{ID: "c1", Alerts: []models.Alert{alert(models.AlertProjectOnHold, models.SeverityHigh, "p", "")}}
	require.NoError(t, d.HandleCycle(context.Background(), res))
	assert.Equal(t, 2, n.calls)
	assert.Len(t, n.got, 1)

	failing := &recordingNotifier{errs: []error{errors.New("bad token")}}
	d = NewDispatcher(failing, DispatcherConfig{DedupWindow: time.Hour, Retry: fast}, zerolog.Nop(),
		WithClock(func() time.Time { return t0 }))
	err := d.HandleCycle(context.Background(), res)
	require.Error(t, err)
	assert.Equal(t, 1, failing.calls, "non-retryable errors are not retried")

	require.NoError(t, d.HandleCycle(context.Background(), res))
	assert.Len(t, failing.got, 1, "failed alert is retried next cycle")
}

func TestDispatcher_CycleFailure(t *testing.T) {
	n := &recordingNotifier{}
	d := NewDispatcher(n, DispatcherConfig{DedupWindow: time.Hour}, zerolog.Nop(),
		WithClock(func() time.Time { return t0 }))
	d.HandleCycleFailure(context.Background(), errors.New("source unreadable"))
	d.HandleCycleFailure(context.Background(), errors.New("source unreadable"))
	require.Len(t, n.got, 1)
	assert.Equal(t, "monitor", n.got[0].Source)
	assert.EqualError(t, n.got[0].Error, "source unreadable")
}

type fakeSlack struct {
	channel string
	opts    int
	err     error
}

func (f *fakeSlack) PostMessageContext(_ context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	f.channel = channelID
	f.opts = len(options)
	return channelID, "1700000000.000100", f.err
}

func TestSlackNotifier_Notify(t *testing.T) {
	api := &fakeSlack{}
	n := NewSlackNotifier(api, "C123", zerolog.Nop())
	require.NoError(t, n.Notify(context.Background(), FromAlert(alert(models.AlertBlockedTask, models.SeverityHigh, "p", "T1"))))
	assert.Equal(t, "C123", api.channel)
	assert.Equal(t, 2, api.opts)
}

func TestSlackNotifier_ClassifiesErrors(t *testing.T) {
	api := &fakeSlack{err: &slack.RateLimitedError{RetryAfter: time.Second}}
	err := NewSlackNotifier(api, "C1", zerolog.Nop()).Notify(context.Background(), Escalation{Title: "x"})
	assert.True(t, perrors.IsRetryable(err))
	var apiErr *perrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, time.Second, apiErr.RetryAfter)

	api.err = slack.StatusCodeError{Code: http.StatusBadGateway, Status: "502 Bad Gateway"}
	err = NewSlackNotifier(api, "C1", zerolog.Nop()).Notify(context.Background(), Escalation{Title: "x"})
	assert.True(t, perrors.IsRetryable(err))

	api.err = errors.New("invalid_auth")
	err = NewSlackNotifier(api, "C1", zerolog.Nop()).Notify(context.Background(), Escalation{Title: "x"})
	assert.False(t, perrors.IsRetryable(err))
}

func TestBuildBlocks(t *testing.T) {
	e := Escalation{
		Severity: models.SeverityCritical,
		Title:    strings.Repeat("long ", 50),
		Message:  "Task blocked",
		Project:  "Rooftop-A",
		Source:   "blocked_task",
		Actions:  []string{"Contact alice", "Reassign"},
		Error:    errors.New("boom"),
	}
	blocks := BuildBlocks(e)
	require.Len(t, blocks, 5)

	header, ok := blocks[0].(*slack.HeaderBlock)
	require.True(t, ok)
	assert.LessOrEqual(t, len([]rune(header.Text.Text)), 150)
	assert.True(t, strings.HasPrefix(header.Text.Text, "🚨"))

	actions, ok := blocks[2].(*slack.SectionBlock)
	require.True(t, ok)
	assert.Contains(t, actions.Text.Text, "• Contact alice")

	ctxBlock, ok := blocks[4].(*slack.ContextBlock)
	require.True(t, ok)
	require.Len(t, ctxBlock.ContextElements.Elements, 1)

	assert.Len(t, BuildBlocks(Escalation{Title: "t", Message: "m"}), 3)
}

func TestSeverityEmoji(t *testing.T) {
	assert.Equal(t, "🚨", severityEmoji(models.SeverityCritical))
	assert.Equal(t, "🔴", severityEmoji(models.SeverityHigh))
	assert.Equal(t, "⚠️", severityEmoji(models.SeverityMedium))
	assert.Equal(t, "ℹ️", severityEmoji(models.SeverityLow))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
