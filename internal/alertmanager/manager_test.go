package alertmanager

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/iptvprobe/internal/models"
)

type fakeAlertRepo struct {
	active  map[string]*models.Alert
	nextID  uint
	resolveCalls []string
}

func newFakeAlertRepo() *fakeAlertRepo {
	return &fakeAlertRepo{active: make(map[string]*models.Alert)}
}

func key(channelID string, kind models.AlertKind) string { return channelID + ":" + string(kind) }

func (f *fakeAlertRepo) GetActiveByChannelAndType(ctx context.Context, channelID string, alertType models.AlertKind) (*models.Alert, error) {
	return f.active[key(channelID, alertType)], nil
}

func (f *fakeAlertRepo) UpsertActive(ctx context.Context, alert *models.Alert) (*models.Alert, error) {
	k := key(alert.ChannelID, alert.AlertType)
	if existing, ok := f.active[k]; ok {
		return existing, nil
	}
	f.nextID++
	alert.ID = f.nextID
	alert.Status = models.AlertStatusActive
	f.active[k] = alert
	return alert, nil
}

func (f *fakeAlertRepo) ResolveActive(ctx context.Context, channelID string, alertType models.AlertKind) error {
	f.resolveCalls = append(f.resolveCalls, key(channelID, alertType))
	delete(f.active, key(channelID, alertType))
	return nil
}

func (f *fakeAlertRepo) ResolveStaleForDisabledChannels(ctx context.Context, enabledChannelIDs []string) (int64, error) {
	return 0, nil
}

func (f *fakeAlertRepo) GetByChannelID(ctx context.Context, channelID string, limit int) ([]*models.Alert, error) {
	return nil, nil
}

func (f *fakeAlertRepo) Acknowledge(ctx context.Context, id uint) error { return nil }

type fakePublisher struct {
	events []AlertEvent
}

func (p *fakePublisher) PublishAlert(ctx context.Context, event AlertEvent) error {
	p.events = append(p.events, event)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestHandle_UpsertsAndPublishesOnce(t *testing.T) {
	repo := newFakeAlertRepo()
	pub := &fakePublisher{}
	mgr := New(repo, nil, pub, testLogger())

	m := models.ChannelMetrics{ChannelID: "c1", ChannelName: "Channel 1", IsBlack: true, Timestamp: time.Now()}
	mgr.Handle(context.Background(), m, models.StatusAlarm)
	mgr.Handle(context.Background(), m, models.StatusAlarm) // second tick, same condition

	require.Len(t, pub.events, 1, "a second upsert for the same active alert must not republish")
	assert.Equal(t, models.AlertBlackScreen, pub.events[0].AlertType)
}

func TestHandle_ResolvesOnFlip(t *testing.T) {
	repo := newFakeAlertRepo()
	mgr := New(repo, nil, &fakePublisher{}, testLogger())

	m := models.ChannelMetrics{ChannelID: "c1", ChannelName: "Channel 1", IsBlack: true, Timestamp: time.Now()}
	mgr.Handle(context.Background(), m, models.StatusAlarm)
	require.Contains(t, repo.active, key("c1", models.AlertBlackScreen))

	m.IsBlack = false
	mgr.Handle(context.Background(), m, models.StatusNormal)
	assert.NotContains(t, repo.active, key("c1", models.AlertBlackScreen))
}

func TestHandle_OfflineSuppressesOtherAlertUpserts(t *testing.T) {
	repo := newFakeAlertRepo()
	mgr := New(repo, nil, &fakePublisher{}, testLogger())

	m := models.ChannelMetrics{ChannelID: "c1", ChannelName: "Channel 1", IsOffline: true, IsBlack: true, Timestamp: time.Now()}
	mgr.Handle(context.Background(), m, models.StatusOffline)

	assert.Contains(t, repo.active, key("c1", models.AlertOffline))
	assert.NotContains(t, repo.active, key("c1", models.AlertBlackScreen))
}
