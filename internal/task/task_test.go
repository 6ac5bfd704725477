package task

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTaskValidate(t *testing.T) {
	valid := NewTask("buy crv", "main", OperationBuy,
		"0x0000000000000000000000000000000000000011", "150000000", 50)
	require.NoError(t, valid.Validate())
	assert.Equal(t, big.NewInt(150_000_000), valid.AmountInt())

	tests := []struct {
		name   string
		mutate func(*Task)
	}{
		{"empty name", func(tk *Task) { tk.TaskName = "" }},
		{"empty wallet", func(tk *Task) { tk.WalletName = "" }},
		{"empty token", func(tk *Task) { tk.Token = "" }},
		{"bad operation", func(tk *Task) { tk.Operation = "swap" }},
		{"non-numeric amount", func(tk *Task) { tk.Amount = "1.5" }},
		{"zero amount", func(tk *Task) { tk.Amount = "0" }},
		{"slippage at 100%", func(tk *Task) { tk.SlippageBps = 10_000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := NewTask("buy crv", "main", OperationBuy,
				"0x0000000000000000000000000000000000000011", "150000000", 50)
			tt.mutate(tk)
			assert.Error(t, tk.Validate())
		})
	}
}

func writeTasks(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadTasksYAML(t *testing.T) {
	m := NewManager(zap.NewNop())

	path := writeTasks(t, `
tasks:
  - task_name: buy crv
    wallet: main
    operation: buy
    token: "0x0000000000000000000000000000000000000011"
    amount: "150000000"
    slippage_bps: 100
  - task_name: sell crv
    wallet: main
    operation: sell
    token: "0x0000000000000000000000000000000000000011"
    amount: "500"
`)

	tasks, err := m.LoadTasksYAML(path)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	assert.Equal(t, OperationBuy, tasks[0].Operation)
	assert.Equal(t, uint64(100), tasks[0].SlippageBps)
	// Unset slippage falls back to the default.
	assert.Equal(t, DefaultSlippageBps, tasks[1].SlippageBps)
	assert.Equal(t, "500", tasks[1].Amount)
}

func TestLoadTasksYAMLSkipsInvalid(t *testing.T) {
	m := NewManager(zap.NewNop())

	path := writeTasks(t, `
tasks:
  - task_name: bad op
    wallet: main
    operation: swap
    token: "0x0000000000000000000000000000000000000011"
    amount: "100"
  - task_name: good
    wallet: main
    operation: buy
    token: "0x0000000000000000000000000000000000000011"
    amount: "100"
`)

	tasks, err := m.LoadTasksYAML(path)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "good", tasks[0].TaskName)
}

func TestLoadTasksYAMLFailures(t *testing.T) {
	m := NewManager(zap.NewNop())

	_, err := m.LoadTasksYAML(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = m.LoadTasksYAML(writeTasks(t, "tasks: []\n"))
	assert.Error(t, err)

	// All tasks invalid is as bad as none.
	_, err = m.LoadTasksYAML(writeTasks(t, `
tasks:
  - task_name: nope
    wallet: main
    operation: swap
    token: "0x01"
    amount: "100"
`))
	assert.Error(t, err)
}
