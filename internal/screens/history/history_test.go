package history

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/lingoflow/internal/conversation"
	"github.com/abhisek/lingoflow/internal/router"
	"github.com/abhisek/lingoflow/internal/store"
)

type fakeArchive struct {
	list       []store.Conversation
	summaries  int
	deleted    []int64
	detailByID map[int64]*conversation.Detail
}

func (f *fakeArchive) ListCompleted(context.Context) ([]store.Conversation, error) {
	return f.list, nil
}

func (f *fakeArchive) History(_ context.Context, id int64) (*conversation.Detail, error) {
	d, ok := f.detailByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return d, nil
}

func (f *fakeArchive) Summary(context.Context, int64) (string, error) {
	f.summaries++
	return "You ordered well.", nil
}

func (f *fakeArchive) Delete(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	out := f.list[:0]
	for _, c := range f.list {
		if c.ID != id {
			out = append(out, c)
		}
	}
	f.list = out
	return nil
}

func newArchive() *fakeArchive {
	now := time.Now()
	return &fakeArchive{
		list: []store.Conversation{
			{ID: 2, ScenarioID: "station", Completed: true, PracticeLanguage: "Japanese", Timestamp: now},
			{ID: 1, ScenarioID: "cafe", Completed: true, PracticeLanguage: "Japanese", Timestamp: now.Add(-time.Hour)},
		},
		detailByID: map[int64]*conversation.Detail{
			1: {
				Conversation: store.Conversation{ID: 1, ScenarioID: "cafe", Completed: true},
				Messages: []store.Message{
					{Speaker: store.SpeakerUser, Content: "Kohii o kudasai"},
					{Speaker: store.SpeakerBot, Content: "Hai, douzo"},
				},
			},
		},
	}
}

func load(s interface {
	Init() tea.Cmd
}, update func(tea.Msg)) {
	update(s.Init()())
}

func TestHistoryScreen_ListAndNavigate(t *testing.T) {
	a := newArchive()
	s := New(a)
	load(s, func(m tea.Msg) { s.Update(m) })

	view := s.View(100, 30)
	if !strings.Contains(view, "station") || !strings.Contains(view, "cafe") {
		t.Fatalf("expected both conversations listed:\n%s", view)
	}

	s.Update(tea.KeyPressMsg{Code: tea.KeyDown})
	_, cmd := s.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	push, ok := cmd().(router.PushScreenMsg)
	if !ok {
		t.Fatal("expected detail screen push")
	}
	if d, ok := push.Screen.(*DetailScreen); !ok || d.id != 1 {
		t.Fatalf("expected detail for id 1, got %#v", push.Screen)
	}
}

func TestHistoryScreen_Delete(t *testing.T) {
	a := newArchive()
	s := New(a)
	load(s, func(m tea.Msg) { s.Update(m) })

	_, cmd := s.Update(tea.KeyPressMsg{Code: 'd', Text: "d"})
	_, cmd = s.Update(cmd())
	s.Update(cmd())

	if len(a.deleted) != 1 || a.deleted[0] != 2 {
		t.Fatalf("expected id 2 deleted, got %v", a.deleted)
	}
	if len(s.conversations) != 1 {
		t.Fatalf("expected list reloaded, got %d", len(s.conversations))
	}
}

func TestHistoryScreen_Empty(t *testing.T) {
	s := New(&fakeArchive{})
	load(s, func(m tea.Msg) { s.Update(m) })
	if !strings.Contains(s.View(100, 30), "No completed conversations") {
		t.Fatal("expected empty state")
	}
}

func TestDetailScreen_GeneratesMissingSummary(t *testing.T) {
	a := newArchive()
	d := NewDetail(a, 1)

	_, cmd := d.Update(d.Init()())
	if cmd == nil || !d.pending {
		t.Fatal("expected summary generation for a completed conversation without one")
	}
	d.Update(cmd())
	if a.summaries != 1 {
		t.Fatalf("expected one summary call, got %d", a.summaries)
	}

	view := d.View(100, 30)
	for _, want := range []string{"You ordered well.", "Kohii o kudasai", "Hai, douzo"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view:\n%s", want, view)
		}
	}
}

func TestDetailScreen_StoredSummaryNotRegenerated(t *testing.T) {
	a := newArchive()
	sum := "Already written."
	a.detailByID[1].Summary = &sum
	d := NewDetail(a, 1)

	if _, cmd := d.Update(d.Init()()); cmd != nil {
		t.Fatal("expected no generation when a summary exists")
	}
	if a.summaries != 0 || !strings.Contains(d.View(100, 30), sum) {
		t.Fatal("expected stored summary shown")
	}
}

func TestDetailScreen_NotFound(t *testing.T) {
	d := NewDetail(newArchive(), 42)
	d.Update(d.Init()())
	if !strings.Contains(d.View(100, 30), "not found") {
		t.Fatalf("expected not found error:\n%s", d.View(100, 30))
	}
}
