package task

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DefaultSlippageBps is applied when a task sets no tolerance of its own.
const DefaultSlippageBps uint64 = 50

// Manager loads and parses Task definitions.
type Manager struct {
	logger *zap.Logger
}

// TaskConfig represents the structure of the tasks YAML file
type TaskConfig struct {
	Tasks []struct {
		TaskName    string `yaml:"task_name"`
		Wallet      string `yaml:"wallet"`
		Operation   string `yaml:"operation"`
		Token       string `yaml:"token"`
		Amount      string `yaml:"amount"`
		SlippageBps uint64 `yaml:"slippage_bps"`
	} `yaml:"tasks"`
}

// NewManager constructs a Manager with the given logger.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{logger: logger.Named("tasks")}
}

func parseOperation(s string) (OperationType, error) {
	op := OperationType(s)
	switch op {
	case OperationBuy, OperationSell:
		return op, nil
	default:
		return "", fmt.Errorf("unsupported operation: %q", s)
	}
}

// LoadTasksYAML reads tasks from a YAML file. Tasks that fail validation
// are skipped with a warning; an empty result is an error.
func (m *Manager) LoadTasksYAML(path string) ([]*Task, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config TaskConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(config.Tasks) == 0 {
		return nil, fmt.Errorf("no tasks found in configuration")
	}

	tasks := make([]*Task, 0, len(config.Tasks))
	for i, taskData := range config.Tasks {
		op, err := parseOperation(taskData.Operation)
		if err != nil {
			m.logger.Warn("Skipping invalid task",
				zap.String("task_name", taskData.TaskName), zap.Error(err))
			continue
		}

		slippage := taskData.SlippageBps
		if slippage == 0 || slippage >= 10_000 {
			slippage = DefaultSlippageBps
		}

		t := &Task{
			ID:          i,
			TaskName:    taskData.TaskName,
			WalletName:  taskData.Wallet,
			Operation:   op,
			Token:       taskData.Token,
			Amount:      taskData.Amount,
			SlippageBps: slippage,
			CreatedAt:   time.Now(),
		}
		if err := t.Validate(); err != nil {
			m.logger.Warn("Skipping invalid task",
				zap.String("task_name", t.TaskName), zap.Error(err))
			continue
		}
		tasks = append(tasks, t)
	}

	if len(tasks) == 0 {
		return nil, fmt.Errorf("no valid tasks in %s", path)
	}
	m.logger.Info("tasks loaded", zap.Int("count", len(tasks)), zap.String("path", path))
	return tasks, nil
}
