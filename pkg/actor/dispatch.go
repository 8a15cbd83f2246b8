package actor

import (
	"context"
	"runtime"

	"github.com/lwmacct/251220-go-pkg-actorhub/pkg/eventbus"
)

// dispatch Actor 消息处理循环
//
// 每个 Actor 一个 goroutine，同一 Actor 的 Receive 永远串行。
// 返回 true 表示因故障暂停而退出，false 表示取消或邮箱停止。
func (d *Director) dispatch(c *actorCell, loop uint64) (paused bool) {
	ctx := c.ctx
	decide := d.cfg.decider()

	for tx := range c.mailbox.Dequeue(ctx) {
		d.bus.Publish(eventbus.ThreadInformation{
			DirectorID: d.id,
			ActorID:    c.id,
			Loop:       loop,
			Goroutines: runtime.NumGoroutine(),
			At:         d.clock.Now(),
		})

		// 闸门与取消在同一挂起点检查
		if err := c.gate.Wait(ctx); err != nil {
			tx.Rollback()
			return false
		}

		msg := tx.Message()
		c.onMessageReceived()

		start := d.clock.Now()
		err := c.retry.Execute(ctx, func(ctx context.Context) error {
			return c.actor.Receive(c.newContext(ctx), msg)
		})

		if err == nil {
			tx.Commit()
			c.stats.RecordHandled(d.clock.Since(start))
			c.onMessageCommitted()
			continue
		}

		// 取消视为正常关闭，消息保留
		if ctx.Err() != nil {
			tx.Rollback()
			return false
		}

		c.stats.RecordFailed()
		c.notifyError(msg, err)

		switch decide(err) {
		case DirectiveSkip:
			c.logger.Warn("dropping message after retries exhausted", "kind", msg.Kind(), "error", err)
			tx.Commit()
			c.onMessageCommitted()

		default:
			c.logger.Error("pausing actor after retries exhausted", "kind", msg.Kind(), "error", err)
			c.onMessageFailed(err)
			tx.Rollback()
			return true
		}
	}
	return false
}
