package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/OFFIS-RIT/suppkb/internal/pipeline"
	"github.com/OFFIS-RIT/suppkb/pkg/logger"
)

// CompileJobMsg triggers one compile run. Empty fields fall back to the
// worker's configured defaults.
type CompileJobMsg struct {
	JobID      string `json:"job_id"`
	DataDir    string `json:"data_dir,omitempty"`
	OutputFile string `json:"output_file,omitempty"`
}

// OutputFileFor returns the archive path a job message writes to, falling
// back to the configured default when the message does not override it.
func OutputFileFor(body []byte, base pipeline.Config) string {
	var msg CompileJobMsg
	if err := json.Unmarshal(body, &msg); err == nil && msg.OutputFile != "" {
		return msg.OutputFile
	}
	return base.OutputFile
}

// ProcessCompileMessage runs the batch pipeline for one job message.
func ProcessCompileMessage(ctx context.Context, body []byte, base pipeline.Config) error {
	var msg CompileJobMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("failed to parse compile job: %w", err)
	}

	config := base
	if msg.DataDir != "" {
		config.DataDir = msg.DataDir
	}
	if msg.OutputFile != "" {
		config.OutputFile = msg.OutputFile
	}

	logger.Info("[Queue] Starting compile job", "job_id", msg.JobID, "data_dir", config.DataDir)

	summary, err := pipeline.Run(ctx, config)
	if err != nil {
		return fmt.Errorf("compile job %s failed: %w", msg.JobID, err)
	}

	logger.Info(
		"[Queue] Compile job finished",
		"job_id", msg.JobID,
		"run_id", summary.RunID,
		"output", summary.OutputFile,
	)
	return nil
}
