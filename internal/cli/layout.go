package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/rileyhilliard/crmon/internal/config"
	"github.com/rileyhilliard/crmon/internal/errors"
	"github.com/rileyhilliard/crmon/internal/layout"
	"github.com/rileyhilliard/crmon/internal/store"
	"github.com/rileyhilliard/crmon/internal/ui"
	"github.com/spf13/cobra"
)

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Manage saved layout positions",
	Long: `Layout hints are (x, y) positions a presentation layer stores per host
and model object. Keys are object refs such as service:res_IPaddr2_1 or
replication-volume:r0/0.`,
}

var layoutSetCmd = &cobra.Command{
	Use:     "set <host> <ref> <x> <y>",
	Short:   "Save a position",
	Example: `  crmon layout set node-a service:res_IPaddr2_1 120 40`,
	Args:    cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openLayout()
		if err != nil {
			return err
		}
		defer st.Close()
		return layoutSet(st, args[0], args[1], args[2], args[3])
	},
}

var layoutGetCmd = &cobra.Command{
	Use:   "get [host] [ref]",
	Short: "Show saved positions",
	Long:  "Without arguments, lists the hosts that have saved positions.",
	Example: `  crmon layout get
  crmon layout get node-a
  crmon layout get node-a service:res_IPaddr2_1`,
	Args: cobra.RangeArgs(0, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openLayout()
		if err != nil {
			return err
		}
		defer st.Close()
		switch len(args) {
		case 0:
			return layoutHosts(os.Stdout, st)
		case 1:
			return layoutGet(os.Stdout, st, args[0], "")
		default:
			return layoutGet(os.Stdout, st, args[0], args[1])
		}
	},
}

var layoutDeleteCmd = &cobra.Command{
	Use:     "delete <host> <ref>",
	Short:   "Forget a saved position",
	Example: `  crmon layout delete node-a service:res_IPaddr2_1`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openLayout()
		if err != nil {
			return err
		}
		defer st.Close()
		return st.Delete(args[0], args[1])
	},
}

func init() {
	layoutCmd.AddCommand(layoutSetCmd)
	layoutCmd.AddCommand(layoutGetCmd)
	layoutCmd.AddCommand(layoutDeleteCmd)
	rootCmd.AddCommand(layoutCmd)
}

func openLayout() (*layout.Store, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return layout.Open(config.ExpandTilde(cfg.Layout.Path))
}

func layoutSet(st *layout.Store, host, ref, xs, ys string) error {
	if _, err := store.ParseRef(ref); err != nil {
		return errors.WrapWithCode(err, errors.ErrLayout,
			fmt.Sprintf("'%s' isn't a model ref", ref),
			"Use kind:id, e.g. service:res_IPaddr2_1 or replication-volume:r0/0")
	}
	x, err := strconv.Atoi(xs)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrLayout, fmt.Sprintf("x '%s' isn't an integer", xs), "")
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrLayout, fmt.Sprintf("y '%s' isn't an integer", ys), "")
	}
	return st.Put(host, ref, layout.Point{X: x, Y: y})
}

func layoutGet(w io.Writer, st *layout.Store, host, ref string) error {
	if ref != "" {
		p, ok, err := st.Get(host, ref)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New(errors.ErrLayout,
				fmt.Sprintf("No position saved for %s on %s", ref, host),
				"Save one with 'crmon layout set'")
		}
		fmt.Fprintf(w, "%d %d\n", p.X, p.Y)
		return nil
	}

	all, err := st.All(host)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		p := all[k]
		rows = append(rows, []string{k, strconv.Itoa(p.X), strconv.Itoa(p.Y)})
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, ui.MutedStyle().Render("No positions saved for "+host))
		return nil
	}
	_, err = fmt.Fprintln(w, ui.RenderSimpleTable([]ui.TableColumn{
		{Title: "REF", Width: 10},
		{Title: "X", Width: 5},
		{Title: "Y", Width: 5},
	}, rows))
	return err
}

func layoutHosts(w io.Writer, st *layout.Store) error {
	hosts, err := st.Hosts()
	if err != nil {
		return err
	}
	if len(hosts) == 0 {
		fmt.Fprintln(w, ui.MutedStyle().Render("No positions saved in "+st.Path()))
		return nil
	}
	for _, h := range hosts {
		fmt.Fprintln(w, h)
	}
	return nil
}
