package grid

import (
	"github.com/KOMKZ/go-yogan-bucket/bucket"
)

// EntryProcessor 对存储中的状态执行一条 Command。
//
// 状态不存在时按配置新建初始状态并标记为已恢复，
// 计数重置而不是让请求失败。
// 命令修改了状态或发生恢复时写回。
type EntryProcessor[T any] struct {
	cfg *bucket.Configuration
	cmd Command[T]

	result   T
	restored bool
	snapshot []byte
}

func NewEntryProcessor[T any](cfg *bucket.Configuration, cmd Command[T]) *EntryProcessor[T] {
	return &EntryProcessor[T]{cfg: cfg, cmd: cmd}
}

func (p *EntryProcessor[T]) Process(current []byte) ([]byte, bool, error) {
	var zero T
	p.result, p.restored, p.snapshot = zero, false, nil

	var state *bucket.State
	if current == nil {
		state = bucket.NewInitialState(p.cfg)
		p.restored = true
	} else {
		decoded, err := bucket.DecodeState(p.cfg, current)
		if err != nil {
			return nil, false, err
		}
		state = decoded
	}

	result, modified := p.cmd.Execute(state, p.cfg)
	p.result = result
	if !modified && !p.restored {
		return nil, false, nil
	}

	data, err := state.MarshalBinary()
	if err != nil {
		return nil, false, err
	}
	p.snapshot = data
	return data, true, nil
}

// Result 最近一次 Process 的命令结果
func (p *EntryProcessor[T]) Result() T { return p.result }

// Restored 最近一次 Process 是否重建了缺失的状态
func (p *EntryProcessor[T]) Restored() bool { return p.restored }

// BackupProcessor 把命令执行后的快照带给副本
func (p *EntryProcessor[T]) BackupProcessor() Processor {
	if p.snapshot == nil {
		return nil
	}
	return &BackupProcessor{Snapshot: p.snapshot}
}

// BackupProcessor 副本侧：直接覆盖，不重新执行命令
type BackupProcessor struct {
	Snapshot []byte
}

func (p *BackupProcessor) Process([]byte) ([]byte, bool, error) {
	return p.Snapshot, true, nil
}
