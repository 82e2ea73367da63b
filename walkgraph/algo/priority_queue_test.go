package algo_test

import (
	"container/heap"
	"testing"

	"git.fiblab.net/sim/walkshed/walkgraph/algo"
	"github.com/stretchr/testify/assert"
)

func TestPriorityQueue(t *testing.T) {
	pq := make(algo.PriorityQueue, 0)
	pq.Push(&algo.Item{Value: 4, Priority: 4})
	pq.Push(&algo.Item{Value: 2, Priority: 2})
	pq.Push(&algo.Item{Value: 1, Priority: 1})
	pq.Push(&algo.Item{Value: 3, Priority: 3})

	// 建堆
	heap.Init(&pq)

	// 弹出
	item := heap.Pop(&pq).(*algo.Item)
	assert.Equal(t, 1, item.Value)
	assert.Equal(t, 1.0, item.Priority)
	item = heap.Pop(&pq).(*algo.Item)
	assert.Equal(t, 2, item.Value)
	assert.Equal(t, 2.0, item.Priority)
}

func TestPriorityQueueChangePriority(t *testing.T) {
	pq := make(algo.PriorityQueue, 0)
	pq.Push(&algo.Item{Value: 4, Priority: 4})
	pq.Push(&algo.Item{Value: 2, Priority: 2})
	pq.Push(&algo.Item{Value: 1, Priority: 1})
	pq.Push(&algo.Item{Value: 3, Priority: 3})

	// 建堆
	heap.Init(&pq)

	// 修改优先级（将Value==3的优先级改为0）
	for _, item := range pq {
		if item.Value == 3 {
			item.Priority = 0
			heap.Fix(&pq, item.Index)
		}
	}

	// 弹出
	item := heap.Pop(&pq).(*algo.Item)
	assert.Equal(t, 3, item.Value)
	assert.Equal(t, 0.0, item.Priority)

	item = heap.Pop(&pq).(*algo.Item)
	assert.Equal(t, 1, item.Value)
	assert.Equal(t, 1.0, item.Priority)

	item = heap.Pop(&pq).(*algo.Item)
	assert.Equal(t, 2, item.Value)
	assert.Equal(t, 2.0, item.Priority)

	item = heap.Pop(&pq).(*algo.Item)
	assert.Equal(t, 4, item.Value)
	assert.Equal(t, 4.0, item.Priority)

	// 空堆
	assert.Equal(t, 0, pq.Len())
}

func TestPriorityQueueDuplicateValues(t *testing.T) {
	// Dijkstra中同一个点可能以不同优先级多次入堆
	pq := make(algo.PriorityQueue, 0)
	heap.Init(&pq)
	heap.Push(&pq, &algo.Item{Value: 7, Priority: 5})
	heap.Push(&pq, &algo.Item{Value: 7, Priority: 2})
	heap.Push(&pq, &algo.Item{Value: 8, Priority: 3})

	item := heap.Pop(&pq).(*algo.Item)
	assert.Equal(t, 7, item.Value)
	assert.Equal(t, 2.0, item.Priority)
	assert.Equal(t, -1, item.Index)
	item = heap.Pop(&pq).(*algo.Item)
	assert.Equal(t, 8, item.Value)
	item = heap.Pop(&pq).(*algo.Item)
	assert.Equal(t, 7, item.Value)
	assert.Equal(t, 5.0, item.Priority)
	assert.Equal(t, 0, pq.Len())
}
