// Package actor 提供轻量级 Actor 运行时的核心组件
//
// 每个 Actor 是独立的计算单元：
// • 拥有私有状态（无需锁保护）
// • 通过事务性邮箱（mailbox）接收消息
// • 消息处理串行化（一次处理一条）
// • 故障被隔离在单个 Actor 内，不影响同一 Director 下的其他 Actor
//
// # 核心组件
//
// [Registration] 将消息类型映射到 Actor 工厂，宿主启动时注册一次：
//
//	reg := actor.NewRegistration().
//		AddActor("contest", func() actor.Actor { return &ContestActor{} })
//
// [Director] 持有一组 Actor 的注册表，按消息推导 actorID（默认 "<kind>|<partition key>"），
// 惰性创建 Actor，并为每个 Actor 启动独立的分发 goroutine：
//
//	d, err := actor.NewDirector(actor.DefaultConfig(), reg, bus)
//	defer d.Dispose()
//	err = d.Send(ctx, msg)
//
// [Mailbox] 有三种实现（[Bounded]、[Unbounded]、[CountingQueue]），写满时按 [OverflowPolicy]
// 处理：BlockProducer 阻塞生产者，DropOldest 丢弃最早的消息，DropNewest 丢弃新消息，
// FailFast 返回 [ErrMailboxFull]。出队是事务性的，[Transaction.Commit] 后才移除消息，
// [Transaction.Rollback] 保留消息重新投递，实现至少一次语义。
//
// # 故障处理
//
// Receive 返回错误或 panic 时按 [RetryPolicy] 重试（1 + RetryCount 次尝试，取消从不重试）。
// 重试耗尽后调用 Actor 的 OnError 钩子，再由 [Decider] 决定：
// [DirectivePause] 回滚消息并暂停 Actor，等待 [Director.ResumeActor] 后重新投递；
// [DirectiveSkip] 提交（丢弃）消息继续处理。默认由 Config.StopOnUnhandledError 选择。
//
// 向暂停中的 Actor 发送消息返回 [ErrActorPaused]。
//
// # 遥测
//
// 生命周期事件通过宿主创建的 eventbus.Bus 发布，Director 的最后活跃时间
// 由其 Actor 的 ActorReceivedMessage 事件驱动。
//
// 完整使用示例请参考 example_test.go 或运行 go doc -all。
package actor
