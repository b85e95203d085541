// internal/pkg/zookeeper/lock.go
package zookeeper

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"

	"stockflow/internal/pkg/lock"
	"stockflow/internal/pkg/metrics"
)

const (
	lockRoot       = "/distributed_locks" // 所有分布式锁的根节点
	lockNodePrefix = "lock-"
)

// Locker 是 lock.Locker 的 ZooKeeper 实现
type Locker struct {
	conn Client
}

func NewLocker(conn Client) (*Locker, error) {
	if err := ensurePath(conn, lockRoot); err != nil {
		return nil, err
	}
	return &Locker{conn: conn}, nil
}

func (l *Locker) Acquire(ctx context.Context, key string, wait, lease time.Duration) (lock.Handle, error) {
	start := time.Now()
	dl, err := NewDistributedLock(l.conn, key)
	if err != nil {
		return nil, err
	}
	if err := dl.Lock(ctx, wait, lease); err != nil {
		result := "error"
		if errors.Is(err, lock.ErrLockUnavailable) {
			result = "timeout"
		}
		metrics.LockWaitSeconds.WithLabelValues("zookeeper", result).Observe(time.Since(start).Seconds())
		return nil, err
	}
	metrics.LockWaitSeconds.WithLabelValues("zookeeper", "acquired").Observe(time.Since(start).Seconds())
	return dl, nil
}

// DistributedLock 定义了一个分布式锁对象
type DistributedLock struct {
	conn     Client
	key      string
	path     string // 锁的路径，例如 /distributed_locks/lock:product:123
	lockNode string // 成功获取锁后，自己创建的节点路径

	mu         sync.Mutex
	leaseTimer *time.Timer
}

// NewDistributedLock 创建一个新的分布式锁实例
func NewDistributedLock(conn Client, key string) (*DistributedLock, error) {
	lockPath := lockRoot + "/" + key
	if err := ensurePath(conn, lockPath); err != nil {
		return nil, err
	}
	return &DistributedLock{conn: conn, key: key, path: lockPath}, nil
}

func (l *DistributedLock) Key() string { return l.key }

// Lock 在 wait 内尝试获取锁；成功后 lease 到期会自动删除自己的节点
func (l *DistributedLock) Lock(ctx context.Context, wait, lease time.Duration) error {
	// 1. 在锁路径下创建一个临时顺序节点，格式为 /distributed_locks/<key>/_c_<guid>-lock-0000000001
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/"+lockNodePrefix, []byte(""), zk.WorldACL(zk.PermAll))
	if err != nil {
		return errors.Wrap(err, "failed to create sequential node")
	}
	l.lockNode = nodePath
	myNodeName := strings.TrimPrefix(nodePath, l.path+"/")

	deadline := time.NewTimer(wait)
	defer deadline.Stop()

	for {
		// 2. 获取所有子节点，按顺序号排序
		children, _, err := l.conn.Children(l.path)
		if err != nil {
			l.abandon()
			return errors.Wrap(err, "failed to get children nodes")
		}
		sortBySequence(children)

		// 3. 判断自己是否是最小的节点
		idx := indexOf(children, myNodeName)
		if idx < 0 {
			// 自己的节点不见了，说明会话过期
			l.lockNode = ""
			return fmt.Errorf("%w: %s: lock node vanished", lock.ErrLockUnavailable, l.key)
		}
		if idx == 0 {
			l.startLease(lease)
			return nil
		}

		// 4. 不是最小节点，只监听前一个节点，避免羊群效应
		prevNodePath := l.path + "/" + children[idx-1]
		exists, _, eventChan, err := l.conn.ExistsW(prevNodePath)
		if err != nil {
			l.abandon()
			return errors.Wrap(err, "failed to watch previous node")
		}
		if !exists {
			continue
		}

		select {
		case <-eventChan:
			// 前一个节点被删除或发生变化，重新竞争
		case <-deadline.C:
			l.abandon()
			return fmt.Errorf("%w: %s", lock.ErrLockUnavailable, l.key)
		case <-ctx.Done():
			l.abandon()
			return fmt.Errorf("%w: %s: %v", lock.ErrLockUnavailable, l.key, ctx.Err())
		}
	}
}

// startLease 持有者进程存活但忘记释放时，由本地定时器兜底删除节点；
// 持有者崩溃时由会话过期删除临时节点。
func (l *DistributedLock) startLease(lease time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	node := l.lockNode
	l.leaseTimer = time.AfterFunc(lease, func() {
		if err := l.conn.Delete(node, -1); err != nil && !errors.Is(err, zk.ErrNoNode) {
			zlog.Warn().Err(err).Str("lock_key", l.key).Msg("failed to expire lock lease")
			return
		}
		zlog.Warn().Str("lock_key", l.key).Dur("lease", lease).Msg("lock lease expired before release")
	})
}

// abandon 放弃等待，删除自己的排队节点
func (l *DistributedLock) abandon() {
	if l.lockNode == "" {
		return
	}
	if err := l.conn.Delete(l.lockNode, -1); err != nil && !errors.Is(err, zk.ErrNoNode) {
		zlog.Warn().Err(err).Str("node", l.lockNode).Msg("failed to delete abandoned lock node")
	}
	l.lockNode = ""
}

// Release 释放锁
func (l *DistributedLock) Release(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lockNode == "" {
		return fmt.Errorf("%w: %s", lock.ErrLockNotHeld, l.key)
	}
	expired := l.leaseTimer != nil && !l.leaseTimer.Stop()
	err := l.conn.Delete(l.lockNode, -1)
	l.lockNode = ""
	if expired {
		return fmt.Errorf("%w: %s: lease expired", lock.ErrLockNotHeld, l.key)
	}
	if err != nil && !errors.Is(err, zk.ErrNoNode) {
		return errors.Wrap(err, "failed to delete lock node")
	}
	return nil
}

// sortBySequence 按顺序号排序。受保护节点带有 GUID 前缀，不能直接按字符串排序。
func sortBySequence(children []string) {
	sort.Slice(children, func(i, j int) bool {
		return sequenceOf(children[i]) < sequenceOf(children[j])
	})
}

// sequenceOf 取出 ZooKeeper 追加的 10 位顺序号
func sequenceOf(node string) string {
	if len(node) < 10 {
		return node
	}
	return node[len(node)-10:]
}

func indexOf(children []string, name string) int {
	for i, child := range children {
		if child == name {
			return i
		}
	}
	return -1
}
