package aggregator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weibaohui/goalagent/backend/internal/domain"
)

var (
	resA = domain.Resource{Workspace: "ENG", Page: "A"}
	resB = domain.Resource{Workspace: "ENG", Page: "B"}
	resC = domain.Resource{Workspace: "ENG", Page: "C"}
)

func success(index int, res domain.Resource, tool domain.ToolKind, text string) domain.ExecutionOutcome {
	return domain.ExecutionOutcome{
		Step: domain.PlanStep{Index: index, Resource: res, Tool: tool, Status: domain.StepCompleted},
		Text: text,
	}
}

func failure(index int, tool domain.ToolKind, res domain.Resource, err *domain.ToolError) domain.ExecutionOutcome {
	return domain.ExecutionOutcome{
		Step: domain.PlanStep{Index: index, Resource: res, Tool: tool, Status: domain.StepFailed},
		Err:  err,
	}
}

func TestAggregate_VideoScenario(t *testing.T) {
	cls := &domain.ClassificationResult{
		Reasoning: "video rule",
		Tools:     []domain.ToolKind{domain.ToolVideoSummarizer},
		Resources: []domain.Resource{resA},
	}
	ans := Aggregate(cls, []domain.ExecutionOutcome{success(0, resA, domain.ToolVideoSummarizer, "summary")})

	text, ok := ans.Text(resA)
	require.True(t, ok)
	assert.Equal(t, "Video Analysis:\nsummary", text)
	assert.Equal(t, []domain.ToolKind{domain.ToolVideoSummarizer}, ans.ToolsUsed)
	assert.Equal(t, "video rule", ans.Reasoning)
	assert.Empty(t, ans.Errors)
}

func TestAggregate_OrderFollowsSelection(t *testing.T) {
	cls := &domain.ClassificationResult{Resources: []domain.Resource{resA, resB, resC}}
	outcomes := []domain.ExecutionOutcome{
		success(2, resC, domain.ToolSearch, "c"),
		success(0, resA, domain.ToolSearch, "a"),
		success(1, resB, domain.ToolSearch, "b"),
	}
	ans := Aggregate(cls, outcomes)

	require.Len(t, ans.Answers, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{ans.Answers[0].Label, ans.Answers[1].Label, ans.Answers[2].Label})
}

func TestAggregate_SectionsInEmissionOrder(t *testing.T) {
	cls := &domain.ClassificationResult{Resources: []domain.Resource{resA}}
	outcomes := []domain.ExecutionOutcome{
		success(1, resA, domain.ToolImageInsights, "img"),
		success(0, resA, domain.ToolSearch, "found"),
	}
	ans := Aggregate(cls, outcomes)

	text, _ := ans.Text(resA)
	assert.Equal(t, "AI Powered Search:\nfound"+SectionDelimiter+"Image Insights:\nimg", text)
	assert.Equal(t, []domain.ToolKind{domain.ToolSearch, domain.ToolImageInsights}, ans.ToolsUsed)
}

func TestAggregate_HardFailureScenario(t *testing.T) {
	cls := &domain.ClassificationResult{Resources: []domain.Resource{resA, resB}}
	timeout := domain.ClassifyToolError(domain.ToolSearch, fmt.Errorf("request failed: %w", context.DeadlineExceeded))
	outcomes := []domain.ExecutionOutcome{
		success(0, resA, domain.ToolSearch, "answer A"),
		failure(1, domain.ToolSearch, resB, timeout),
	}
	ans := Aggregate(cls, outcomes)

	require.Len(t, ans.Errors, 1)
	assert.Equal(t, resB, ans.Errors[0].Resource)
	assert.Equal(t, domain.ErrorKindToolHardFailure, ans.Errors[0].Kind)

	textA, _ := ans.Text(resA)
	assert.Equal(t, "AI Powered Search:\nanswer A", textA)
	textB, _ := ans.Text(resB)
	assert.Equal(t, "Errors:\n- AI Powered Search: "+timeout.Message, textB)
}

func TestAggregate_SoftFailureOmitted(t *testing.T) {
	cls := &domain.ClassificationResult{Resources: []domain.Resource{resA}}
	outcomes := []domain.ExecutionOutcome{
		failure(0, domain.ToolVideoSummarizer, resA, domain.NewSoftFailure(domain.ToolVideoSummarizer, "no video found")),
	}
	ans := Aggregate(cls, outcomes)

	text, _ := ans.Text(resA)
	assert.Equal(t, NoActionPlaceholder, text)
	assert.Empty(t, ans.Errors)
	assert.Empty(t, ans.ToolsUsed)
}

func TestAggregate_SuccessWithErrorsSection(t *testing.T) {
	cls := &domain.ClassificationResult{Resources: []domain.Resource{resA}}
	outcomes := []domain.ExecutionOutcome{
		success(0, resA, domain.ToolSearch, "ok"),
		failure(1, domain.ToolImageInsights, resA, domain.NewHardFailure(domain.ToolImageInsights, errors.New("status 500: boom"))),
	}
	ans := Aggregate(cls, outcomes)

	text, _ := ans.Text(resA)
	assert.Equal(t, "AI Powered Search:\nok"+SectionDelimiter+"Errors:\n- Image Insights: status 500: boom", text)
}

func TestAggregate_ImpactSingleEntry(t *testing.T) {
	cls := &domain.ClassificationResult{
		Tools:     []domain.ToolKind{domain.ToolImpactAnalyzer},
		Resources: []domain.Resource{resA, resB},
	}
	peer := resB
	outcomes := []domain.ExecutionOutcome{{
		Step: domain.PlanStep{Index: 0, Resource: resA, Peer: &peer, Tool: domain.ToolImpactAnalyzer},
		Text: "breaking change",
	}}
	ans := Aggregate(cls, outcomes)

	require.Len(t, ans.Answers, 1)
	assert.Equal(t, "A ↔ B", ans.Answers[0].Label)
	assert.Equal(t, "Impact Analysis:\nbreaking change", ans.Answers[0].Text)
	_, ok := ans.Text(resB)
	assert.False(t, ok)
	assert.Equal(t, []domain.Resource{resA, resB}, ans.Resources)
}

func TestAggregate_SplitSearchSectionsNameInstruction(t *testing.T) {
	cls := &domain.ClassificationResult{Tools: []domain.ToolKind{domain.ToolSearch}, Resources: []domain.Resource{resA}}
	first := success(0, resA, domain.ToolSearch, "the platform team")
	first.Step.Label = "Who owns it"
	second := failure(1, domain.ToolSearch, resA, domain.NewHardFailure(domain.ToolSearch, errors.New("status 502: bad gateway")))
	second.Step.Label = "When was it released"

	answer := Aggregate(cls, []domain.ExecutionOutcome{first, second})
	require.Len(t, answer.Answers, 1)
	assert.Equal(t,
		"AI Powered Search (Who owns it):\nthe platform team"+SectionDelimiter+
			"Errors:\n- AI Powered Search (When was it released): status 502: bad gateway",
		answer.Answers[0].Text)
}

func TestAggregate_EmptyPlan(t *testing.T) {
	cls := &domain.ClassificationResult{Tools: []domain.ToolKind{domain.ToolNone}, Resources: []domain.Resource{resA, resB}}
	ans := Aggregate(cls, nil)

	require.Len(t, ans.Answers, 2)
	for _, a := range ans.Answers {
		assert.Equal(t, NoActionPlaceholder, a.Text)
	}
	assert.NotNil(t, Aggregate(nil, nil))
}
