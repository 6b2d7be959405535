package subscriber

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/weibaohui/goalagent/backend/internal/domain"
	"github.com/weibaohui/goalagent/backend/internal/eventbus"
	"github.com/weibaohui/goalagent/backend/internal/model"
	"github.com/weibaohui/goalagent/backend/internal/repository"
	"github.com/weibaohui/goalagent/backend/internal/utils"
	"k8s.io/klog/v2"
)

// RunEventSubscriber 把运行事件落库为运行历史，只写不读，不影响编排
type RunEventSubscriber struct {
	repo repository.RunRepository
}

func NewRunEventSubscriber(repo repository.RunRepository) *RunEventSubscriber {
	return &RunEventSubscriber{repo: repo}
}

func (s *RunEventSubscriber) Register(bus *eventbus.RunEventBus) {
	if bus == nil {
		return
	}
	bus.Subscribe(eventbus.RunStarted, s.handleStarted)
	bus.Subscribe(eventbus.RunPhaseChanged, s.handlePhase)
	bus.Subscribe(eventbus.RunProgress, s.handlePhase)
	bus.Subscribe(eventbus.RunSuperseded, s.handlePhase)
	bus.Subscribe(eventbus.RunCompleted, s.handleCompleted)
	bus.Subscribe(eventbus.RunFailed, s.handleFailed)
}

func (s *RunEventSubscriber) handleStarted(ctx context.Context, event eventbus.RunEvent) error {
	if event.RunID == "" {
		return fmt.Errorf("运行ID为空")
	}
	now := time.Now()
	record := &model.RunRecord{
		RunID:     event.RunID,
		Goal:      event.Request.Goal,
		Workspace: event.Request.Workspace,
		Pages:     utils.ToJSON(event.Request.Pages),
		Phase:     string(event.State.Phase),
		Progress:  event.State.ProgressPercent,
		StartedAt: &now,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		klog.Errorf("运行事件处理失败: type=%s, runID=%s, error=%v", event.Type, event.RunID, err)
		return err
	}
	klog.V(6).Infof("运行事件处理成功: type=%s, runID=%s, recordID=%d", event.Type, event.RunID, record.ID)
	return nil
}

func (s *RunEventSubscriber) handlePhase(ctx context.Context, event eventbus.RunEvent) error {
	if event.Err == nil {
		record, err := s.repo.GetByRunID(ctx, event.RunID)
		if err != nil {
			klog.Errorf("运行事件处理失败: type=%s, runID=%s, error=%v", event.Type, event.RunID, err)
			return err
		}
		// 运行已离开 analyzing/executing 后到达的进度事件不再回写
		if !inFlightPhase(record.Phase) {
			klog.V(6).Infof("忽略过期的运行事件: type=%s, runID=%s, recordPhase=%s, eventPhase=%s", event.Type, event.RunID, record.Phase, event.State.Phase)
			return nil
		}
		err = s.repo.UpdatePhase(ctx, event.RunID, string(event.State.Phase), event.State.ProgressPercent)
		if err != nil {
			klog.Errorf("运行事件处理失败: type=%s, runID=%s, error=%v", event.Type, event.RunID, err)
			return err
		}
		klog.V(6).Infof("运行事件处理成功: type=%s, runID=%s, phase=%s, progress=%d", event.Type, event.RunID, event.State.Phase, event.State.ProgressPercent)
		return nil
	}

	return s.update(ctx, event, func(record *model.RunRecord) {
		record.Phase = string(event.State.Phase)
		record.ErrorMsg = event.Err.Error()
	})
}

func (s *RunEventSubscriber) handleCompleted(ctx context.Context, event eventbus.RunEvent) error {
	return s.update(ctx, event, func(record *model.RunRecord) {
		now := time.Now()
		record.Phase = string(event.State.Phase)
		record.Progress = event.State.ProgressPercent
		record.CompletedAt = &now
		if event.Answer != nil {
			record.Reasoning = event.Answer.Reasoning
			record.ToolsUsed = utils.ToJSON(event.Answer.ToolsUsed)
			record.Answer = utils.ToJSON(event.Answer)
		}
	})
}

func (s *RunEventSubscriber) handleFailed(ctx context.Context, event eventbus.RunEvent) error {
	return s.update(ctx, event, func(record *model.RunRecord) {
		now := time.Now()
		record.Phase = string(event.State.Phase)
		record.CompletedAt = &now
		if event.Err != nil {
			record.ErrorMsg = event.Err.Error()
		} else {
			record.ErrorMsg = event.State.Error
		}
	})
}

func (s *RunEventSubscriber) update(ctx context.Context, event eventbus.RunEvent, mutate func(*model.RunRecord)) error {
	record, err := s.repo.GetByRunID(ctx, event.RunID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			klog.Warningf("运行记录不存在: type=%s, runID=%s", event.Type, event.RunID)
		}
		return err
	}
	mutate(record)
	if err := s.repo.Save(ctx, record); err != nil {
		klog.Errorf("运行事件处理失败: type=%s, runID=%s, error=%v", event.Type, event.RunID, err)
		return err
	}
	klog.V(6).Infof("运行事件处理成功: type=%s, runID=%s, phase=%s", event.Type, event.RunID, record.Phase)
	return nil
}

func inFlightPhase(phase string) bool {
	return phase == string(domain.PhaseAnalyzing) || phase == string(domain.PhaseExecuting)
}
