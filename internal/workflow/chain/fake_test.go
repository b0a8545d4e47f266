package chain

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type generateFunc func(call int, msgs []*schema.Message, opts ...model.Option) (*schema.Message, error)

type fakeChatModel struct {
	mu       sync.Mutex
	generate generateFunc
	prompts  []string
	optCount []int
}

func (m *fakeChatModel) Generate(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	call := len(m.prompts)
	if len(input) > 0 {
		m.prompts = append(m.prompts, input[len(input)-1].Content)
	} else {
		m.prompts = append(m.prompts, "")
	}
	m.optCount = append(m.optCount, len(opts))
	m.mu.Unlock()
	return m.generate(call, input, opts...)
}

func (m *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

type fakeFactory struct {
	model model.BaseChatModel
	err   error
	names []string
}

func (f *fakeFactory) Get(_ context.Context, name string) (model.BaseChatModel, error) {
	f.names = append(f.names, name)
	if f.err != nil {
		return nil, f.err
	}
	return f.model, nil
}

func reply(content string) generateFunc {
	return func(int, []*schema.Message, ...model.Option) (*schema.Message, error) {
		return schema.AssistantMessage(content, nil), nil
	}
}

type countingLimiter struct {
	waits  int
	pauses int
	err    error
}

func (l *countingLimiter) Pause(time.Duration) { l.pauses++ }

func (l *countingLimiter) Wait(context.Context) error {
	l.waits++
	return l.err
}
