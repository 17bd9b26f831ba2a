package pipeline

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/aiphotofinder/photofinder/internal/errors"
	"github.com/aiphotofinder/photofinder/internal/scanner"
)

// diskFree returns the free bytes on the volume holding path
func diskFree(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// checkDiskSpace verifies the source volume can hold a metadata backup of
// every candidate file.
func (o *Orchestrator) checkDiskSpace(files []scanner.MediaFile) error {
	required := scanner.TotalSize(files)

	free, err := o.deps.DiskFree(o.cfg.SourceDir)
	if err != nil {
		return errors.New(fmt.Errorf("failed to get disk usage: %w", err)).
			Component("pipeline").
			Category(errors.CategorySystem).
			Context("dir", o.cfg.SourceDir).
			Build()
	}

	if required > 0 && free < uint64(required) {
		return errors.Newf("insufficient disk space for metadata backups: need %d bytes, %d available", required, free).
			Component("pipeline").
			Category(errors.CategoryResource).
			Priority(errors.PriorityHigh).
			Context("dir", o.cfg.SourceDir).
			Context("required_bytes", required).
			Context("free_bytes", free).
			Build()
	}

	return nil
}
