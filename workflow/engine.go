package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jing2uo/valuedb/calc"
	"github.com/jing2uo/valuedb/database"
)

// TaskState represents the state of a task execution
type TaskState string

const (
	StatePending   TaskState = "pending"
	StateRunning   TaskState = "running"
	StateCompleted TaskState = "completed"
	StateSkipped   TaskState = "skipped"
	StateFailed    TaskState = "failed"
)

// TaskResult holds the execution result of a task
type TaskResult struct {
	State   TaskState
	Rows    int
	Message string
	Error   error
}

type ErrorMode int

const (
	ErrorModeStop ErrorMode = iota
	ErrorModeSkip
)

// TaskFunc is the function that executes a task
type TaskFunc func(ctx context.Context, db database.DataRepository, args *TaskArgs) (*TaskResult, error)

// SkipCondition determines if a task should be skipped
type SkipCondition func(ctx context.Context, db database.DataRepository, args *TaskArgs) bool

// Task represents a unit of work with dependencies
type Task struct {
	Name      string
	DependsOn []string
	Executor  TaskFunc
	SkipIf    SkipCondition
	OnError   ErrorMode
}

type TaskArgs struct {
	PricesCSV    string
	SplitsCSV    string
	DividendsCSV string
	SharesCSV    string
	FactsCSV     string

	// Tickers 为空时计算库中全部代码
	Tickers     []string
	Date        time.Time
	Concurrency int
	CalcOptions []calc.Option

	OutputDir    string
	OutputFormat string

	Extra map[string]interface{}
}

// TaskExecutor manages and executes tasks with dependency resolution
type TaskExecutor struct {
	db    database.DataRepository
	tasks map[string]*Task

	mu      sync.Mutex
	results map[string]*TaskResult
}

// NewTaskExecutor creates a new task executor
func NewTaskExecutor(db database.DataRepository, tasks map[string]*Task) *TaskExecutor {
	return &TaskExecutor{
		db:    db,
		tasks: tasks,
	}
}

// Run 按依赖顺序执行, 同一层的任务并发执行.
// ErrorModeSkip 的任务失败后, 依赖它的任务被跳过
func (te *TaskExecutor) Run(ctx context.Context, taskNames []string, args *TaskArgs) error {
	te.results = make(map[string]*TaskResult)
	if len(taskNames) == 0 {
		return nil
	}

	order, err := te.topologicalSort(taskNames)
	if err != nil {
		return fmt.Errorf("failed to resolve task dependencies: %w", err)
	}

	pending := make(map[string]bool)
	for _, name := range order {
		pending[name] = true
	}

	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ready := te.findReadyTasks(pending)
		if len(ready) == 0 {
			return fmt.Errorf("circular dependency detected or no ready tasks")
		}

		var wg sync.WaitGroup
		for _, name := range ready {
			task := te.tasks[name]

			if dep := te.failedDependency(task); dep != "" {
				te.setResult(name, &TaskResult{State: StateSkipped, Message: "dependency " + dep + " failed"})
				continue
			}

			if task.SkipIf != nil && task.SkipIf(ctx, te.db, args) {
				te.setResult(name, &TaskResult{State: StateSkipped, Message: "skipped by condition"})
				continue
			}

			te.setResult(name, &TaskResult{State: StateRunning})
			wg.Add(1)
			go func() {
				defer wg.Done()
				te.setResult(name, te.executeTask(ctx, task, args))
			}()
		}

		wg.Wait()

		for _, name := range ready {
			result := te.Result(name)
			if result.Error != nil && te.tasks[name].OnError == ErrorModeStop {
				return fmt.Errorf("task %s failed: %w", name, result.Error)
			}
			delete(pending, name)
		}
	}

	return nil
}

func (te *TaskExecutor) executeTask(ctx context.Context, task *Task, args *TaskArgs) *TaskResult {
	result, err := task.Executor(ctx, te.db, args)
	if err != nil {
		return &TaskResult{
			State: StateFailed,
			Error: err,
		}
	}
	if result == nil {
		result = &TaskResult{State: StateCompleted}
	}
	return result
}

func (te *TaskExecutor) setResult(name string, r *TaskResult) {
	te.mu.Lock()
	te.results[name] = r
	te.mu.Unlock()
}

// Result 返回最近一次 Run 中 name 的结果, 未执行时为 nil
func (te *TaskExecutor) Result(name string) *TaskResult {
	te.mu.Lock()
	defer te.mu.Unlock()
	return te.results[name]
}

func (te *TaskExecutor) failedDependency(task *Task) string {
	for _, dep := range task.DependsOn {
		if r := te.Result(dep); r != nil && r.State == StateFailed {
			return dep
		}
	}
	return ""
}

func (te *TaskExecutor) topologicalSort(taskNames []string) ([]string, error) {
	inDegree := make(map[string]int)
	adj := make(map[string][]string)
	taskSet := make(map[string]bool)

	for _, name := range taskNames {
		if _, exists := te.tasks[name]; !exists {
			return nil, fmt.Errorf("task %s not found", name)
		}
		taskSet[name] = true
		inDegree[name] = 0
	}

	for _, name := range taskNames {
		task := te.tasks[name]
		for _, dep := range task.DependsOn {
			if !taskSet[dep] {
				continue
			}
			adj[dep] = append(adj[dep], name)
			inDegree[name]++
		}
	}

	var queue []string
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	var order []string
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		for _, neighbor := range adj[current] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	if len(order) != len(taskNames) {
		return nil, fmt.Errorf("circular dependency detected")
	}

	return order, nil
}

// findReadyTasks 依赖不在本次执行集合中的视为已满足
func (te *TaskExecutor) findReadyTasks(pending map[string]bool) []string {
	var ready []string

	for name := range pending {
		task := te.tasks[name]

		allDepsDone := true
		for _, dep := range task.DependsOn {
			if pending[dep] {
				allDepsDone = false
				break
			}
		}

		if allDepsDone {
			ready = append(ready, name)
		}
	}

	sort.Strings(ready)
	return ready
}

func (te *TaskExecutor) GetTaskNames() []string {
	names := make([]string, 0, len(te.tasks))
	for name := range te.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (te *TaskExecutor) HasTask(name string) bool {
	_, exists := te.tasks[name]
	return exists
}
