package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/lumenmind/memoryengine/internal/domain"
	"github.com/lumenmind/memoryengine/internal/platform/dbctx"
	"github.com/lumenmind/memoryengine/internal/repos"
)

// Context is the capability-scoped execution handle a handler receives for
// one claimed job. Handlers never touch job_run rows directly; every
// lifecycle transition goes through Fail/Succeed here so invariants (locked_at
// cleared, last_error_at set, result serialized) stay centralized.
type Context struct {
	Ctx     context.Context
	Job     *domain.JobRun
	Repo    repos.JobRunRepo
	payload map[string]any
}

func NewContext(ctx context.Context, job *domain.JobRun, repo repos.JobRunRepo) *Context {
	c := &Context{Ctx: ctx, Job: job, Repo: repo}
	c.decodePayload()
	return c
}

func (c *Context) decodePayload() {
	if c.Job == nil || len(c.Job.Payload) == 0 {
		c.payload = map[string]any{}
		return
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil {
		c.payload = map[string]any{}
		return
	}
	c.payload = m
}

func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(fmt.Sprint(v))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Fail marks the job failed: status=failed, last_error set,
// locked_at cleared so a future ClaimNextRunnable can retry it once
// attempts/backoff allow.
func (c *Context) Fail(stage string, err error) {
	if c == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	now := time.Now()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	_ = c.Repo.UpdateFields(dbctx.Bare(c.Ctx), c.Job.ID, map[string]interface{}{
		"status":        domain.JobStatusFailed,
		"stage":         stage,
		"last_error":    msg,
		"last_error_at": now,
		"locked_at":     nil,
	})
}

// Succeed marks the job terminally succeeded and persists a JSON result.
func (c *Context) Succeed(finalStage string, result any) {
	if c == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	var res datatypes.JSON
	if result != nil {
		if b, err := json.Marshal(result); err == nil {
			res = datatypes.JSON(b)
		}
	}
	_ = c.Repo.UpdateFields(dbctx.Bare(c.Ctx), c.Job.ID, map[string]interface{}{
		"status":    domain.JobStatusSucceeded,
		"stage":     finalStage,
		"result":    res,
		"locked_at": nil,
	})
}
