package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/rileyhilliard/crmon/internal/cluster"
	"github.com/rileyhilliard/crmon/internal/config"
	"github.com/rileyhilliard/crmon/internal/errors"
	"github.com/rileyhilliard/crmon/internal/logger"
	"github.com/rileyhilliard/crmon/internal/poll"
)

// clusterOptions builds the options for one configured cluster.
func clusterOptions(cfg *config.Config, name string, cc config.ClusterConfig, conn poll.Connector) cluster.Options {
	return cluster.Options{
		Name:                 name,
		Hosts:                append([]string(nil), cc.Hosts...),
		ClusterStatusCommand: cfg.Poll.ClusterStatusCommand,
		ReplicationCommand:   cfg.Poll.ReplicationCommand,
		RetryDelay:           cfg.Poll.RetryDelay,
		SelfInflicted:        append([]int(nil), cfg.Poll.SelfInflictedExitCodes...),
		Connector:            conn,
		Logger:               logger.New("cluster"),
	}
}

// session is a started cluster and everything that must be closed with it.
type session struct {
	registry *cluster.Registry
	pool     *poll.Pool
	cluster  *cluster.Cluster
}

// connect starts polling the selected cluster over SSH.
func connect(ctx context.Context, cfg *config.Config, clusterFlag string) (*session, error) {
	name, cc, err := resolveCluster(cfg, clusterFlag)
	if err != nil {
		return nil, err
	}

	pool := poll.NewPool(poll.SSHDialer(cfg.Poll.DialTimeout))
	reg := cluster.NewRegistry()
	c, err := reg.Add(ctx, clusterOptions(cfg, name, cc, pool))
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &session{registry: reg, pool: pool, cluster: c}, nil
}

// waitReady waits up to timeout for the first cluster status. Zero waits
// until ctx is done.
func (s *session) waitReady(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := s.cluster.WaitReady(ctx); err != nil {
		return errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("No cluster status from %s within %s", s.cluster.Name(), timeout),
			"Check the hosts are reachable with 'ssh <host>' and that the status helper is installed")
	}
	return nil
}

// Close disconnects the cluster and closes every SSH connection.
func (s *session) Close() {
	s.registry.DisconnectAll()
	logger.New("ssh").Debug("closing %d cached connections", s.pool.Size())
	s.pool.Close()
}
