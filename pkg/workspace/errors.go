package workspace

import "errors"

var (
	// ErrNoActorRegistered 消息类型没有对应的 Actor 映射
	ErrNoActorRegistered = errors.New("no actor registered for message kind")
	// ErrNoDirectorAvailable 没有可用的 Director
	ErrNoDirectorAvailable = errors.New("no director available")
	// ErrWorkspaceDisposed Workspace 已释放
	ErrWorkspaceDisposed = errors.New("workspace is disposed")
)
