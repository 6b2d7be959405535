package eventbus

import (
	"context"

	"github.com/weibaohui/goalagent/backend/internal/domain"
)

type RunEventType string

const (
	RunStarted      RunEventType = "RunStarted"
	RunPhaseChanged RunEventType = "RunPhaseChanged"
	RunProgress     RunEventType = "RunProgress"
	RunCompleted    RunEventType = "RunCompleted"
	RunFailed       RunEventType = "RunFailed"
	RunSuperseded   RunEventType = "RunSuperseded"
)

// RunEvent 运行生命周期事件
type RunEvent struct {
	Type    RunEventType
	RunID   string
	Request domain.RunRequest
	State   domain.RunState
	Answer  *domain.AggregatedAnswer
	Err     error
}

type RunEventHandler = Handler[RunEvent]
type RunEventBus = Bus[RunEventType, RunEvent]

func NewRunEventBus() *RunEventBus {
	return NewBus[RunEventType, RunEvent]()
}

// PublishRun 以事件自身的类型发布
func PublishRun(ctx context.Context, bus *RunEventBus, event RunEvent) error {
	if bus == nil {
		return nil
	}
	return bus.Publish(ctx, event.Type, event)
}
