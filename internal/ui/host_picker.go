package ui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/crmon/internal/errors"
	"github.com/rileyhilliard/crmon/pkg/sshutil"
	"golang.org/x/term"
)

// HostOptions turns ssh_config entries into picker options labelled with
// their description.
func HostOptions(entries []sshutil.HostEntry) []huh.Option[string] {
	opts := make([]huh.Option[string], 0, len(entries))
	for _, e := range entries {
		label := e.Alias
		if d := e.Description(); d != e.Alias {
			label = fmt.Sprintf("%s  %s", e.Alias, MutedStyle().Render(d))
		}
		opts = append(opts, huh.NewOption(label, e.Alias))
	}
	return opts
}

// PickHosts asks the user which ssh_config hosts form a cluster. The order
// of the returned aliases is the order the entries were offered in.
func PickHosts(entries []sshutil.HostEntry) ([]string, error) {
	if len(entries) == 0 {
		return nil, errors.New(errors.ErrConfig,
			"No usable hosts in ~/.ssh/config",
			"Add Host entries with an IdentityFile, or pass host aliases as arguments")
	}

	var picked []string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Cluster hosts").
				Description("Select every node of the cluster").
				Options(HostOptions(entries)...).
				Value(&picked).
				Validate(func(v []string) error {
					if len(v) == 0 {
						return fmt.Errorf("select at least one host")
					}
					return nil
				}),
		),
	)
	if err := form.Run(); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Pass host aliases as arguments instead")
	}
	return orderLike(entries, picked), nil
}

func orderLike(entries []sshutil.HostEntry, picked []string) []string {
	chosen := make(map[string]bool, len(picked))
	for _, p := range picked {
		chosen[p] = true
	}
	out := make([]string, 0, len(picked))
	for _, e := range entries {
		if chosen[e.Alias] {
			out = append(out, e.Alias)
		}
	}
	return out
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
