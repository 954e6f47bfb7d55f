package session

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/codes"

	"github.com/zjrosen/agentpanel/internal/pending"
	"github.com/zjrosen/agentpanel/internal/protocol/messages"
	"github.com/zjrosen/agentpanel/internal/protocol/outbound"
	"github.com/zjrosen/agentpanel/internal/protocol/schema"
	"github.com/zjrosen/agentpanel/internal/state"
	"github.com/zjrosen/agentpanel/internal/tracing"
)

// request sends one envelope inside an outbound span. When key is set the
// request is tracked until its broadcast arrives. The key is marked before
// posting because the answer may be dispatched before send returns.
func (s *Session) request(ctx context.Context, e schema.Entry, key string, send func(context.Context) error) error {
	ctx, span := tracing.StartOutbound(ctx, s.tracer, e, s.id)
	defer span.End()

	if key != "" {
		s.tracker.Begin(key, e.Kind)
	}
	if err := send(ctx); err != nil {
		if key != "" {
			s.tracker.Resolve(key)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// RequestAgentsStatus asks the host for an agents-status-update.
func (s *Session) RequestAgentsStatus(ctx context.Context) error {
	return s.request(ctx, messages.GetAgentsStatus.Entry(), pending.RosterKey, func(ctx context.Context) error {
		return outbound.SendEmpty(ctx, s.client, messages.GetAgentsStatus)
	})
}

// RequestTaskQueue asks the host for a task-queue-update.
func (s *Session) RequestTaskQueue(ctx context.Context) error {
	return s.request(ctx, messages.GetTaskQueueStatus.Entry(), pending.TaskQueueKey, func(ctx context.Context) error {
		return outbound.SendEmpty(ctx, s.client, messages.GetTaskQueueStatus)
	})
}

// RequestMemorySnapshot asks the host for the memories of one agent.
func (s *Session) RequestMemorySnapshot(ctx context.Context, agentID string) error {
	return s.request(ctx, messages.RequestMemorySnapshot.Entry(), pending.MemoryKey(agentID), func(ctx context.Context) error {
		return outbound.Send(ctx, s.client, messages.RequestMemorySnapshot, messages.MemorySnapshotRequest{AgentID: agentID})
	})
}

// SaveMemoryItem asks the host to remember content for an agent. A nil tags
// slice is sent as an empty array.
func (s *Session) SaveMemoryItem(ctx context.Context, agentID, content string, tags []string) error {
	if tags == nil {
		tags = []string{}
	}
	req := messages.SaveMemoryItemRequest{AgentID: agentID, Content: content, Tags: tags}
	return s.request(ctx, messages.SaveMemoryItem.Entry(), "", func(ctx context.Context) error {
		return outbound.Send(ctx, s.client, messages.SaveMemoryItem, req)
	})
}

// DeleteMemoryItem asks the host to forget one item.
func (s *Session) DeleteMemoryItem(ctx context.Context, agentID, itemID string) error {
	ref := messages.MemoryItemRef{AgentID: agentID, ItemID: itemID}
	return s.request(ctx, messages.DeleteMemoryItem.Entry(), "", func(ctx context.Context) error {
		return outbound.Send(ctx, s.client, messages.DeleteMemoryItem, ref)
	})
}

// RetryTask asks the host to re-run a task. The retry shows as pending until
// its agent-retry-result arrives; a request that cannot be sent is recorded
// as a failed result carrying the send error.
func (s *Session) RetryTask(ctx context.Context, agentID, taskID string) error {
	req := messages.RetryRequest{AgentID: agentID, TaskID: taskID}
	s.retries.Set(state.ReduceRetryRequested(s.retries.Load(), req, s.now()))

	err := s.request(ctx, messages.AgentRetryRequest.Entry(), pending.RetryKey(agentID, taskID), func(ctx context.Context) error {
		return outbound.Send(ctx, s.client, messages.AgentRetryRequest, req)
	})
	if err != nil {
		s.retries.Set(state.ReduceRetryResult(s.retries.Load(), messages.RetryResult{
			AgentID: agentID, TaskID: taskID, Success: false, Message: err.Error(),
		}, s.now()))
		return fmt.Errorf("retry %s/%s: %w", agentID, taskID, err)
	}
	return nil
}

// RequestAuthStatus asks the host for an auth-status-update.
func (s *Session) RequestAuthStatus(ctx context.Context) error {
	return s.request(ctx, messages.GetAuthStatus.Entry(), pending.AuthKey, func(ctx context.Context) error {
		return outbound.SendEmpty(ctx, s.client, messages.GetAuthStatus)
	})
}

// RequestSuggestions asks the host for suggestions, optionally for one agent.
func (s *Session) RequestSuggestions(ctx context.Context, agentID string) error {
	req := messages.SuggestionsRequest{AgentID: agentID}
	return s.request(ctx, messages.GetSuggestions.Entry(), pending.SuggestionsKey, func(ctx context.Context) error {
		return outbound.Send(ctx, s.client, messages.GetSuggestions, req)
	})
}
