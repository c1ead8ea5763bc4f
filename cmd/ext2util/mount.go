package main

import (
	"github.com/devine-kernel/ext2fs/pkg/blockdev"
	"github.com/devine-kernel/ext2fs/pkg/elog"
	"github.com/devine-kernel/ext2fs/pkg/ext2"
)

type cliLogger struct{}

func (cliLogger) Debugf(format string, x ...interface{}) { log.Debugf(format, x...) }
func (cliLogger) Errorf(format string, x ...interface{}) { log.Errorf(format, x...) }
func (cliLogger) Infof(format string, x ...interface{})  { log.Infof(format, x...) }
func (cliLogger) Warnf(format string, x ...interface{})  { log.Warnf(format, x...) }
func (cliLogger) IsDebugEnabled() bool                    { return flagDebug }

var _ elog.Logger = cliLogger{}

// mountImage opens path as a FileDevice and mounts it. Callers must Unmount
// the returned FS (which flushes) when done.
func mountImage(path string) (*ext2.FS, *blockdev.FileDevice, error) {
	dev, err := blockdev.OpenFileDevice(path, 1024)
	if err != nil {
		return nil, nil, err
	}

	fs, err := ext2.Mount(dev, ext2.MountOptions{Log: cliLogger{}})
	if err != nil {
		dev.Close()
		return nil, nil, err
	}

	return fs, dev, nil
}
