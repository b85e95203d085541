package zookeeper

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/go-zookeeper/zk"
)

// fakeClient 是内存里的 ZooKeeper 节点树，支持顺序节点和一次性的存在性 watch
type fakeClient struct {
	mu      sync.Mutex
	nodes   map[string]bool
	seq     map[string]int
	guid    int
	watches map[string][]chan zk.Event
}

func newFakeClient() *fakeClient {
	return &fakeClient{nodes: map[string]bool{}, seq: map[string]int{}, watches: map[string][]chan zk.Event{}}
}

func (f *fakeClient) Exists(p string) (bool, *zk.Stat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nodes[p], &zk.Stat{}, nil
}

func (f *fakeClient) ExistsW(p string) (bool, *zk.Stat, <-chan zk.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan zk.Event, 1)
	f.watches[p] = append(f.watches[p], ch)
	return f.nodes[p], &zk.Stat{}, ch, nil
}

func (f *fakeClient) Create(p string, _ []byte, _ int32, _ []zk.ACL) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nodes[p] {
		return "", zk.ErrNodeExists
	}
	f.nodes[p] = true
	return p, nil
}

func (f *fakeClient) CreateProtectedEphemeralSequential(p string, _ []byte, _ []zk.ACL) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dir, base := path.Split(p)
	dir = strings.TrimSuffix(dir, "/")
	f.seq[dir]++
	f.guid++
	node := fmt.Sprintf("%s/_c_%04x-%s%010d", dir, f.guid, base, f.seq[dir])
	f.nodes[node] = true
	return node, nil
}

func (f *fakeClient) Children(p string) ([]string, *zk.Stat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for node := range f.nodes {
		if rest, ok := strings.CutPrefix(node, p+"/"); ok && !strings.Contains(rest, "/") {
			out = append(out, rest)
		}
	}
	sort.Strings(out)
	return out, &zk.Stat{}, nil
}

func (f *fakeClient) Delete(p string, _ int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.nodes[p] {
		return zk.ErrNoNode
	}
	delete(f.nodes, p)
	for _, ch := range f.watches[p] {
		ch <- zk.Event{Type: zk.EventNodeDeleted, Path: p}
	}
	delete(f.watches, p)
	return nil
}

func (f *fakeClient) children(p string) []string {
	out, _, _ := f.Children(p)
	return out
}
