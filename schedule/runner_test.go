package schedule

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/parleyhq/parley/chat"
	"github.com/parleyhq/parley/llm"
)

// scriptedClient answers every fetch with the same text response.
type scriptedClient struct {
	reply   string
	calls   int
	lastReq *llm.Request
}

func (c *scriptedClient) Fetch(_ context.Context, req *llm.Request) (*llm.Response, error) {
	c.calls++
	c.lastReq = req
	return &llm.Response{Message: llm.NewTextMessage(llm.RoleAssistant, c.reply)}, nil
}

func chatFactory(client llm.Client) Factory {
	return func(_ context.Context) (*chat.Chat, error) {
		return chat.New(client, chat.Options{Name: "scheduled"}), nil
	}
}

func TestAddRejectsBadJobs(t *testing.T) {
	r := NewRunner(chatFactory(&scriptedClient{reply: "ok"}), 0, zerolog.Nop())

	cases := []struct {
		name string
		job  Job
	}{
		{"missing name", Job{Spec: "@hourly", Prompt: "hi"}},
		{"missing prompt", Job{Name: "digest", Spec: "@hourly"}},
		{"bad spec", Job{Name: "digest", Spec: "whenever", Prompt: "hi"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := r.Add(tc.job); err == nil {
				t.Errorf("Add(%+v) succeeded, want error", tc.job)
			}
		})
	}
}

func TestAddRejectsDuplicateName(t *testing.T) {
	r := NewRunner(chatFactory(&scriptedClient{reply: "ok"}), 0, zerolog.Nop())
	job := Job{Name: "digest", Spec: "@hourly", Prompt: "summarize"}

	if err := r.Add(job); err != nil {
		t.Fatalf("first Add returned error: %v", err)
	}
	err := r.Add(job)
	if err == nil {
		t.Fatal("second Add succeeded, want error")
	}
	if !strings.Contains(err.Error(), "already scheduled") {
		t.Errorf("error = %v, want already-scheduled", err)
	}
}

func TestRemove(t *testing.T) {
	r := NewRunner(chatFactory(&scriptedClient{reply: "ok"}), 0, zerolog.Nop())
	if err := r.Add(Job{Name: "digest", Spec: "@hourly", Prompt: "summarize"}); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}

	if !r.Remove("digest") {
		t.Error("Remove(digest) = false, want true")
	}
	if r.Remove("digest") {
		t.Error("second Remove(digest) = true, want false")
	}
	if len(r.Jobs()) != 0 {
		t.Errorf("Jobs() = %v, want empty", r.Jobs())
	}
}

func TestRunDrivesConversation(t *testing.T) {
	client := &scriptedClient{reply: "done"}
	r := NewRunner(chatFactory(client), 0, zerolog.Nop())

	r.run(Job{Name: "digest", Spec: "@hourly", Prompt: "summarize the day"})

	if client.calls != 1 {
		t.Fatalf("model calls = %d, want 1", client.calls)
	}
	msgs := client.lastReq.Messages
	if len(msgs) == 0 || msgs[len(msgs)-1].Text() != "summarize the day" {
		t.Errorf("request did not end with the job prompt: %+v", msgs)
	}
}

func TestRunSurvivesFactoryFailure(t *testing.T) {
	called := false
	factory := func(_ context.Context) (*chat.Chat, error) {
		called = true
		return nil, fmt.Errorf("no api key")
	}
	r := NewRunner(factory, 0, zerolog.Nop())

	r.run(Job{Name: "digest", Spec: "@hourly", Prompt: "hi"})

	if !called {
		t.Error("factory was not called")
	}
}

func TestNextBeforeAndAfterStart(t *testing.T) {
	r := NewRunner(chatFactory(&scriptedClient{reply: "ok"}), 0, zerolog.Nop())
	if err := r.Add(Job{Name: "daily", Spec: "@daily", Prompt: "hi"}); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}

	if next, ok := r.Next("daily"); !ok || !next.IsZero() {
		t.Errorf("before start: Next = (%v, %v), want zero time and true", next, ok)
	}
	if _, ok := r.Next("unknown"); ok {
		t.Error("Next(unknown) = true, want false")
	}

	r.Start()
	defer r.Stop()

	next, ok := r.Next("daily")
	if !ok || next.IsZero() {
		t.Errorf("after start: Next = (%v, %v), want a fire time", next, ok)
	}
}

func TestRunnerFiresOnSchedule(t *testing.T) {
	fired := make(chan struct{}, 1)
	client := &scriptedClient{reply: "done"}
	factory := func(_ context.Context) (*chat.Chat, error) {
		select {
		case fired <- struct{}{}:
		default:
		}
		return chat.New(client, chat.Options{}), nil
	}

	r := NewRunner(factory, 0, zerolog.Nop())
	if err := r.Add(Job{Name: "tick", Spec: "@every 1s", Prompt: "go"}); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	r.Start()
	defer func() { <-r.Stop().Done() }()

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not fire within 5s")
	}
}
