package runner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/abdul-hamid-achik/bankspec/packages/core/env"
	"go.uber.org/zap"
)

// runHooks runs shell commands in order and stops at the first failure.
// Commands prefixed with "-" may fail.
func (r *Runner) runHooks(ctx context.Context, commands []string, baseDir string, resolver *env.Resolver) error {
	for _, command := range commands {
		if err := r.runHook(ctx, command, baseDir, resolver); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runHook(ctx context.Context, command, baseDir string, resolver *env.Resolver) error {
	cmdStr := strings.TrimSpace(resolver.Resolve(command))
	if cmdStr == "" {
		return nil
	}

	ignoreError := strings.HasPrefix(cmdStr, "-")
	if ignoreError {
		cmdStr = strings.TrimSpace(strings.TrimPrefix(cmdStr, "-"))
	}

	parts := strings.Fields(cmdStr)
	if len(parts) > 0 {
		executable := parts[0]
		if strings.HasPrefix(executable, "./") || strings.HasPrefix(executable, "../") {
			parts[0] = filepath.Join(baseDir, executable)
			cmdStr = strings.Join(parts, " ")
		}
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", cmdStr)
	cmd.Dir = baseDir
	cmd.Env = os.Environ()

	output, err := cmd.CombinedOutput()
	if len(output) > 0 {
		r.log.Debug("hook output", zap.String("command", command), zap.ByteString("output", output))
	}
	if err != nil {
		if ignoreError {
			r.log.Debug("ignored hook failure", zap.String("command", command), zap.Error(err))
			return nil
		}
		return fmt.Errorf("command %q failed: %v\nOutput: %s", command, err, output)
	}
	return nil
}
