package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rileyhilliard/crmon/internal/cluster"
	"github.com/rileyhilliard/crmon/internal/ui"
	"gopkg.in/yaml.v3"
)

type outputFormat int

const (
	formatText outputFormat = iota
	formatJSON
	formatYAML
)

// statusCommand connects, waits for the first cluster status and prints one
// snapshot.
func statusCommand(ctx context.Context, flags ClusterFlags, format outputFormat) error {
	if ctx == nil {
		ctx = context.Background()
	}
	err := runStatus(ctx, os.Stdout, flags, format)
	if err != nil && format == formatJSON {
		_ = WriteJSONFromError(os.Stdout, err)
	}
	return err
}

func runStatus(ctx context.Context, w io.Writer, flags ClusterFlags, format outputFormat) error {
	timeout, err := ParseTimeout(flags.Timeout)
	if err != nil {
		return err
	}
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	sess, err := connect(ctx, cfg, flags.Cluster)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.waitReady(ctx, timeout); err != nil {
		return err
	}
	return writeStatus(w, sess.cluster.Snapshot(), format)
}

// writeStatus renders a snapshot in the requested format.
func writeStatus(w io.Writer, snap cluster.Snapshot, format outputFormat) error {
	switch format {
	case formatJSON:
		return WriteJSONSuccess(w, snap)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return err
		}
		return enc.Close()
	default:
		_, err := fmt.Fprint(w, ui.RenderSnapshot(snap))
		return err
	}
}
