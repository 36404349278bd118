package agent

import (
	"errors"
	"fmt"
	"os/exec"

	"go.uber.org/zap"
)

type execCompanion struct {
	log     *zap.Logger
	command []string
}

func (c execCompanion) Launch() error {
	if len(c.command) == 0 {
		return errors.New("empty companion command")
	}
	cmd := exec.Command(c.command[0], c.command[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start companion %s: %w", c.command[0], err)
	}
	c.log.Info("Companion started", zap.String("command", c.command[0]), zap.Int("pid", cmd.Process.Pid))
	go func() {
		err := cmd.Wait()
		c.log.Info("Companion exited", zap.Error(err))
	}()
	return nil
}
