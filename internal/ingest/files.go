package ingest

import (
	"context"
	"fmt"
	"os"

	"github.com/suPer8Hu/sms-archive/internal/attachments"
)

func (r *Run) ImportXMLFile(ctx context.Context, path string) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return r.stats, fmt.Errorf("open backup: %w", err)
	}
	defer f.Close()
	return r.ImportXML(ctx, f)
}

// ImportCSVFile imports path, matching attachments from attachmentsDir when it
// is not empty.
func (r *Run) ImportCSVFile(ctx context.Context, path, attachmentsDir string) (Stats, error) {
	var idx attachments.Index
	if attachmentsDir != "" {
		var err error
		if idx, err = attachments.Build(attachmentsDir); err != nil {
			return r.stats, err
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return r.stats, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()
	return r.ImportCSV(ctx, f, idx)
}
