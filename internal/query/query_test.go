package query

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"tg_forwarder/internal/state"
	"tg_forwarder/internal/telegram/platform"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	fixedNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	target   = platform.ChannelRef{Name: "private", ID: -1002659193089, Title: "Target"}
)

// fakeReader 模拟按新到旧返回、带 since/limit 语义的频道历史
type fakeReader struct {
	connected bool
	messages  []platform.Message // 新到旧
	err       error
	lastLimit int
}

func (f *fakeReader) Connected() bool { return f.connected }

func (f *fakeReader) History(_ context.Context, _ platform.ChannelRef, since time.Time, limit int) ([]platform.Message, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	var out []platform.Message
	for _, m := range f.messages {
		if len(out) >= limit {
			break
		}
		if m.Date.Before(since) {
			break
		}
		out = append(out, m)
	}
	return out, nil
}

func newService(reader platform.HistoryReader, tgt *platform.ChannelRef) *Service {
	shared := state.New()
	shared.Update(func(s *state.Snapshot) {
		s.Reader = reader
		s.Target = tgt
	})
	svc := NewService(shared)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func msg(id int, ago time.Duration, text string) platform.Message {
	return platform.Message{ID: id, Text: text, Date: fixedNow.Add(-ago)}
}

func TestMessagesUnavailable(t *testing.T) {
	tgt := target
	tests := []struct {
		name   string
		reader platform.HistoryReader
		target *platform.ChannelRef
	}{
		{name: "no session", reader: nil, target: &tgt},
		{name: "disconnected", reader: &fakeReader{connected: false}, target: &tgt},
		{name: "target unresolved", reader: &fakeReader{connected: true}, target: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(tt.reader, tt.target)

			res, err := svc.Messages(context.Background(), 24)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, ErrServiceUnavailable)

			combined, err := svc.Combined(context.Background(), 24)
			assert.Nil(t, combined)
			assert.ErrorIs(t, err, ErrServiceUnavailable)
		})
	}
}

func TestMessagesInvalidWindow(t *testing.T) {
	tgt := target
	svc := newService(&fakeReader{connected: true}, &tgt)

	_, err := svc.Messages(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestMessagesUpstreamError(t *testing.T) {
	tgt := target
	upstream := errors.New("FLOOD_WAIT_30")
	svc := newService(&fakeReader{connected: true, err: upstream}, &tgt)

	_, err := svc.Messages(context.Background(), 24)
	require.ErrorIs(t, err, ErrUpstreamRead)
	assert.ErrorIs(t, err, upstream)
}

func TestMessagesThreeMatching(t *testing.T) {
	tgt := target
	reader := &fakeReader{connected: true, messages: []platform.Message{
		msg(30, 1*time.Hour, "  newest  "),
		msg(29, 2*time.Hour, "   "),
		msg(28, 3*time.Hour, "middle"),
		msg(27, 4*time.Hour, ""),
		msg(26, 5*time.Hour, "oldest"),
		msg(25, 30*time.Hour, "outside window"),
	}}
	svc := newService(reader, &tgt)

	res, err := svc.Messages(context.Background(), 24)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, MaxMessages, reader.lastLimit)
	assert.Equal(t, 3, res.MessageCount)
	assert.Equal(t, 24, res.HoursRequested)
	assert.Equal(t, "-1002659193089", res.ChannelID)
	assert.Equal(t, fixedNow.Add(-24*time.Hour).Format(time.RFC3339), res.TimeThreshold)

	require.Len(t, res.Messages, 3)
	first := res.Messages[0]
	assert.Equal(t, 30, first.MessageID)
	assert.Equal(t, "newest", first.Text)
	assert.Equal(t, fixedNow.Add(-time.Hour).Unix(), first.Date)
	assert.Equal(t, "https://t.me/c/2659193089/30", first.Link)
	assert.Equal(t, "newest\n🔗 Source: https://t.me/c/2659193089/30", first.TextWithLink)

	ids := []int{res.Messages[0].MessageID, res.Messages[1].MessageID, res.Messages[2].MessageID}
	assert.Equal(t, []int{30, 28, 26}, ids)

	combined, err := svc.Combined(context.Background(), 24)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(combined.CombinedText, Separator))
	assert.Equal(t, "2026-10-15", combined.ProcessingDate)
}

func TestMessagesCapTruncatesToMostRecent(t *testing.T) {
	tgt := target
	var history []platform.Message
	for i := 0; i < 500; i++ {
		history = append(history, msg(1000-i, time.Duration(i)*time.Minute, "msg "+strconv.Itoa(i)))
	}
	svc := newService(&fakeReader{connected: true, messages: history}, &tgt)

	res, err := svc.Messages(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, MaxMessages, res.MessageCount)
	assert.Equal(t, 1000, res.Messages[0].MessageID)
	assert.Equal(t, 1000-MaxMessages+1, res.Messages[MaxMessages-1].MessageID)
}

func TestMessagesProperties(t *testing.T) {
	tgt := target
	history := []platform.Message{
		msg(10, 10*time.Minute, "a"),
		msg(9, 10*time.Minute, "tie keeps read order"),
		msg(8, 3*time.Hour, "b"),
		msg(7, 5*time.Hour, " \n\t "),
		msg(6, 7*time.Hour, "c"),
		msg(5, 20*time.Hour, "d"),
		msg(4, 40*time.Hour, "e"),
	}
	svc := newService(&fakeReader{connected: true, messages: history}, &tgt)
	linkPattern := regexp.MustCompile(`^https://t\.me/c/(\d+)/(\d+)$`)

	var previous map[int]bool
	for _, hours := range []int{1, 4, 8, 24, 48} {
		res, err := svc.Messages(context.Background(), hours)
		require.NoError(t, err)

		current := map[int]bool{}
		for i, item := range res.Messages {
			current[item.MessageID] = true
			assert.NotEmpty(t, strings.TrimSpace(item.Text))
			if i > 0 {
				assert.LessOrEqual(t, item.Date, res.Messages[i-1].Date)
			}
			m := linkPattern.FindStringSubmatch(item.Link)
			require.NotNil(t, m, "bad link %s", item.Link)
			assert.Equal(t, strconv.Itoa(item.MessageID), m[2])
		}
		for id := range previous {
			assert.True(t, current[id], "window %dh lost message %d", hours, id)
		}
		previous = current

		combined, err := svc.Combined(context.Background(), hours)
		require.NoError(t, err)
		if combined.MessageCount == 0 {
			assert.Empty(t, combined.CombinedText)
			continue
		}
		segments := strings.Split(combined.CombinedText, Separator)
		require.Len(t, segments, combined.MessageCount)
		for i, seg := range segments {
			assert.Equal(t, combined.Messages[i].TextWithLink, seg)
		}
	}

	res, err := svc.Messages(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, res.Messages, 2)
	assert.Equal(t, 10, res.Messages[0].MessageID)
	assert.Equal(t, 9, res.Messages[1].MessageID)
}

func TestBuildItemsSortsOutOfOrderHistory(t *testing.T) {
	threshold := fixedNow.Add(-24 * time.Hour)
	items := buildItems([]platform.Message{
		msg(1, 5*time.Hour, "older"),
		msg(2, 1*time.Hour, "newer"),
		msg(3, 48*time.Hour, "too old"),
	}, target.ID, threshold)

	require.Len(t, items, 2)
	assert.Equal(t, 2, items[0].MessageID)
	assert.Equal(t, 1, items[1].MessageID)
}

func TestCombineTextEmpty(t *testing.T) {
	assert.Equal(t, "", CombineText(nil))
}

func TestMessagesHugeWindowIsSuperset(t *testing.T) {
	reader := &fakeReader{connected: true, messages: []platform.Message{
		msg(3, time.Hour, "recent"),
		msg(2, 48*time.Hour, "two days"),
		msg(1, 24*365*time.Hour, "last year"),
	}}
	svc := newService(reader, &target)

	day, err := svc.Messages(context.Background(), 24)
	require.NoError(t, err)
	huge, err := svc.Messages(context.Background(), 3000000)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, huge.MessageCount, day.MessageCount)
	assert.Equal(t, 3, huge.MessageCount)
	assert.Equal(t, time.Time{}.Format(time.RFC3339), huge.TimeThreshold)
}

func TestWindowStart(t *testing.T) {
	assert.Equal(t, fixedNow.Add(-24*time.Hour), windowStart(fixedNow, 24))

	limit := int(maxWindowHours)
	assert.True(t, windowStart(fixedNow, limit).Before(fixedNow))
	assert.True(t, windowStart(fixedNow, limit+1).IsZero())
}
