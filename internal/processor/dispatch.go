package processor

import (
	"context"

	"github.com/omnivoice/omni/internal/errors"
	"github.com/omnivoice/omni/internal/feedback"
	"github.com/omnivoice/omni/internal/task"
)

// handle is the listening cycle's Processing handler: resolve the text,
// execute the task, and speak the outcome.
func (p *Processor) handle(ctx context.Context, text string) error {
	res := p.resolver.Resolve(text)

	switch {
	case res.Canceled:
		p.queue.Enqueue(feedback.Message{
			Text:          "Okay, never mind.",
			Category:      feedback.Guide,
			Priority:      feedback.Normal,
			Interruptible: true,
		})
		return nil

	case !res.Known:
		p.queue.Enqueue(feedback.Message{
			Text:          "Sorry, I didn't get that.",
			Category:      feedback.Guide,
			Priority:      feedback.Normal,
			Interruptible: true,
		})
		return nil
	}

	result, err := p.Execute(ctx, res.Task, text)
	if err != nil {
		if errors.Is(err, errors.ErrOffline) {
			p.queue.Enqueue(feedback.Message{
				Text:          "I can't do that while offline.",
				Category:      feedback.Status,
				Priority:      feedback.High,
				Interruptible: true,
			})
			return nil
		}
		// The listening cycle speaks the generic apology.
		return err
	}

	if result.Speech != "" {
		p.queue.Enqueue(feedback.Message{
			Text:          result.Speech,
			Category:      feedback.Task,
			Priority:      feedback.Normal,
			Interruptible: true,
		})
	}
	return nil
}

// Execute runs a task through the cache, the batch coordinator, and the
// scheduler. rawText keys the result cache; pass "" to skip caching.
func (p *Processor) Execute(ctx context.Context, tk task.Task, rawText string) (Result, error) {
	if p.offline.Load() && tk.Connectivity == task.Online {
		return Result{}, errors.Wrapf(errors.ErrOffline, "%s requires network access", tk.Type)
	}

	var key string
	if rawText != "" && cacheable(tk.Type) {
		key = p.resolver.CacheKey(tk.Type, rawText)
		if cached, ok := p.cache.Get(key); ok {
			if result, ok := cached.(Result); ok {
				p.logger.Debug("cache hit", "key", key)
				result.Cached = true
				return result, nil
			}
		}
	}

	raw, err := p.run(ctx, tk)
	if err != nil {
		return Result{}, err
	}

	result := toResult(raw)
	if key != "" && !result.Cached {
		// Cache write failures only cost future hits.
		if err := p.cache.Set(key, result, p.cfg.Cache.DefaultTTL()); err != nil {
			p.logger.Debug("cache store failed", "key", key, "error", err)
		}
	}
	return result, nil
}

// cacheable reports whether results of this task type may be replayed
// from the cache. Timers and device commands have side effects, so a
// cached acknowledgement would skip the action itself.
func cacheable(t task.Type) bool {
	return t == task.Weather || t == task.Calendar
}

// run dispatches through the batch coordinator for batchable types and
// straight through the scheduler otherwise.
func (p *Processor) run(ctx context.Context, tk task.Task) (any, error) {
	if p.batch.Batchable(tk.Type) {
		pending, err := p.batch.Submit(tk.Type, tk.Payload)
		if err == nil {
			return pending.Wait(ctx)
		}
		p.logger.Debug("batch submit failed, running unbatched",
			"task_type", tk.Type.String(), "error", err)
	}

	executor, ok := p.executors[tk.Type]
	if !ok {
		return nil, errors.NewProcessingError("no executor registered", nil).
			WithTaskType(tk.Type.String())
	}
	return p.scheduler.Run(ctx, tk, task.PriorityFor(tk.Type), executor)
}

// toResult normalizes an executor's return value.
func toResult(raw any) Result {
	switch v := raw.(type) {
	case Result:
		return v
	case *Result:
		if v != nil {
			return *v
		}
		return Result{}
	case string:
		return Result{Speech: v}
	default:
		return Result{Data: map[string]any{"value": raw}}
	}
}
