package state

import (
	"sync/atomic"

	"tg_forwarder/internal/telegram/platform"
)

// Phase Relay 状态机
type Phase string

const (
	PhaseUnconfigured      Phase = "unconfigured"
	PhaseAuthenticating    Phase = "authenticating"
	PhaseChannelsResolving Phase = "channels_resolving"
	PhaseActive            Phase = "active"
	PhaseDisconnected      Phase = "disconnected"
	PhaseTerminated        Phase = "terminated"
	PhaseFailed            Phase = "failed" // Active 之前失败，本进程内不再恢复
)

// Snapshot Relay 与查询服务共享的只读快照
type Snapshot struct {
	Reader     platform.HistoryReader // 会话建立后才非空
	Target     *platform.ChannelRef   // 目标频道解析成功后才非空
	Forwarding bool                   // 转发订阅是否生效
	Phase      Phase
	LastError  string
}

// Connected 会话是否在线
func (s Snapshot) Connected() bool {
	return s.Reader != nil && s.Reader.Connected()
}

// Ready 会话在线、目标频道已解析且转发生效
func (s Snapshot) Ready() bool {
	return s.Connected() && s.Target != nil && s.Forwarding
}

// Shared 进程内唯一的共享上下文，快照整体原子替换
type Shared struct {
	v atomic.Pointer[Snapshot]
}

// New 创建共享上下文
func New() *Shared {
	s := &Shared{}
	s.v.Store(&Snapshot{Phase: PhaseUnconfigured})
	return s
}

// Load 返回当前快照副本
func (s *Shared) Load() Snapshot {
	return *s.v.Load()
}

// Update 基于当前快照计算新快照并原子替换
func (s *Shared) Update(fn func(*Snapshot)) Snapshot {
	for {
		old := s.v.Load()
		next := *old
		fn(&next)
		if s.v.CompareAndSwap(old, &next) {
			return next
		}
	}
}

// SetPhase 切换状态
func (s *Shared) SetPhase(phase Phase) {
	s.Update(func(snap *Snapshot) { snap.Phase = phase })
}
