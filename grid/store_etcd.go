package grid

import (
	"context"
	"errors"
	"time"

	"github.com/KOMKZ/go-yogan-bucket/retry"
	clientv3 "go.etcd.io/etcd/client/v3"
)

var errRevisionMoved = errors.New("etcd: revision moved")

// EtcdStore 乐观存储：Get 记录 revision，Txn 只在 key 仍是该 revision
// （或仍不存在）时提交。
type EtcdStore struct {
	kv          clientv3.KV
	keyPrefix   string
	maxAttempts int
}

// NewEtcdStore kv 一般是 *clientv3.Client
func NewEtcdStore(kv clientv3.KV, keyPrefix string) *EtcdStore {
	if keyPrefix == "" {
		keyPrefix = "/bucket/"
	}
	return &EtcdStore{kv: kv, keyPrefix: keyPrefix, maxAttempts: 100}
}

func (s *EtcdStore) buildKey(key string) string {
	return s.keyPrefix + key
}

func (s *EtcdStore) Execute(ctx context.Context, key string, p Processor) error {
	fullKey := s.buildKey(key)

	err := retry.Do(ctx, func() error {
		resp, err := s.kv.Get(ctx, fullKey)
		if err != nil {
			return err
		}

		var (
			current []byte
			cmp     clientv3.Cmp
		)
		if len(resp.Kvs) == 0 {
			cmp = clientv3.Compare(clientv3.CreateRevision(fullKey), "=", 0)
		} else {
			current = resp.Kvs[0].Value
			cmp = clientv3.Compare(clientv3.ModRevision(fullKey), "=", resp.Kvs[0].ModRevision)
		}

		next, write, err := p.Process(current)
		if err != nil || !write {
			return err
		}

		txn, err := s.kv.Txn(ctx).If(cmp).Then(clientv3.OpPut(fullKey, string(next))).Commit()
		if err != nil {
			return err
		}
		if !txn.Succeeded {
			return errRevisionMoved
		}
		return nil
	},
		retry.MaxAttempts(s.maxAttempts),
		retry.Backoff(retry.ExponentialBackoff(time.Millisecond, retry.WithMaxDelay(50*time.Millisecond), retry.WithJitter(0.2))),
		retry.Condition(retry.RetryOnError(errRevisionMoved)),
	)
	if err == nil {
		return nil
	}
	if errors.Is(err, errRevisionMoved) {
		return ErrConflict.Wrap(err)
	}
	return unwrapRetry(err)
}

func (s *EtcdStore) PutIfAbsent(ctx context.Context, key string, value []byte) error {
	fullKey := s.buildKey(key)
	_, err := s.kv.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(fullKey), "=", 0)).
		Then(clientv3.OpPut(fullKey, string(value))).
		Commit()
	return err
}

// Delete 删除 key 的状态
func (s *EtcdStore) Delete(ctx context.Context, key string) error {
	_, err := s.kv.Delete(ctx, s.buildKey(key))
	return err
}
