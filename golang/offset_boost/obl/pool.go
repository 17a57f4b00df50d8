package obl

import "sync"

//Task is a unit of work executed by the pool.
type Task interface {
	Run()
}

//Pool runs tasks on a fixed number of worker goroutines.
type Pool struct {
	tasks chan Task
	wg    sync.WaitGroup
}

//NewPool starts threadsNum workers consuming the task queue.
func NewPool(threadsNum int) *Pool {
	pool := &Pool{tasks: make(chan Task, threadsNum)}
	pool.wg.Add(threadsNum)
	for worker := 0; worker < threadsNum; worker++ {
		go func() {
			defer pool.wg.Done()
			for task := range pool.tasks {
				task.Run()
			}
		}()
	}
	return pool
}

//AddTask queues one task. Must not be called after Close.
func (pool *Pool) AddTask(task Task) {
	pool.tasks <- task
}

//Close signals that no more tasks will arrive.
func (pool *Pool) Close() {
	close(pool.tasks)
}

//WaitAll blocks until every queued task has run.
func (pool *Pool) WaitAll() {
	pool.wg.Wait()
}

//TaskFindBestSplit scans one feature column and stores the outcome at its
//slot of the shared result slice.
type TaskFindBestSplit struct {
	result []BestSplit
	q      int
	find   func(int) BestSplit
}

func (task *TaskFindBestSplit) Run() {
	task.result[task.q] = task.find(task.q)
}
