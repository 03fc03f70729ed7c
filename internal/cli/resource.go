package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rileyhilliard/crmon/internal/store"
	"github.com/rileyhilliard/crmon/internal/ui"
	"github.com/spf13/cobra"
)

// resourceDefineOptions holds the flags of `resource define`.
type resourceDefineOptions struct {
	Cluster  ClusterFlags
	Name     string
	Kind     string
	Class    string
	Provider string
	ID       string
	Parent   string
	Contains string
	Params   []string
	JSON     bool
}

var resourceDefineOpts resourceDefineOptions

var resourceCmd = &cobra.Command{
	Use:   "resource",
	Short: "Work with cluster resources",
}

// resourceDefineCmd previews the ids a new resource would get
var resourceDefineCmd = &cobra.Command{
	Use:   "define",
	Short: "Allocate ids for a new resource against the live model",
	Long: `Connect to a cluster, wait for its status and define a new resource as a
pending local edit. Prints the CRM id and short id the resource gets, after
collision handling against everything the cluster already has.

Examples:
  crmon resource define --name IPaddr2 --class ocf --provider heartbeat --param ip=10.0.0.10
  crmon resource define --name Filesystem --parent grp_web
  crmon resource define --kind group --contains res_IPaddr2_1`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return resourceDefineCommand(cmd.Context(), resourceDefineOpts)
	},
}

func init() {
	f := resourceDefineCmd.Flags()
	AddClusterFlags(resourceDefineCmd, &resourceDefineOpts.Cluster)
	f.StringVar(&resourceDefineOpts.Name, "name", "", "resource agent type (e.g., IPaddr2)")
	f.StringVar(&resourceDefineOpts.Kind, "kind", "primitive", "primitive, group, clone or master")
	f.StringVar(&resourceDefineOpts.Class, "class", "ocf", "resource agent class")
	f.StringVar(&resourceDefineOpts.Provider, "provider", "heartbeat", "resource agent provider")
	f.StringVar(&resourceDefineOpts.ID, "id", "", "explicit short id (renamed on collision)")
	f.StringVar(&resourceDefineOpts.Parent, "parent", "", "CRM id of the container to add the resource to")
	f.StringVar(&resourceDefineOpts.Contains, "contains", "", "CRM id of the resource a new container wraps")
	f.StringArrayVar(&resourceDefineOpts.Params, "param", nil, "instance parameter as key=value (repeatable)")
	f.BoolVar(&resourceDefineOpts.JSON, "json", false, "output as JSON")

	resourceCmd.AddCommand(resourceDefineCmd)
	rootCmd.AddCommand(resourceCmd)
}

// definer is the part of a cluster resource definition needs.
type definer interface {
	Define(def store.Definition) (store.ServiceInfo, error)
}

func resourceDefineCommand(ctx context.Context, opts resourceDefineOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	def, err := opts.definition()
	if err != nil {
		return err
	}
	timeout, err := ParseTimeout(opts.Cluster.Timeout)
	if err != nil {
		return err
	}
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	sess, err := connect(ctx, cfg, opts.Cluster.Cluster)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.waitReady(ctx, timeout); err != nil {
		return err
	}
	return defineResource(os.Stdout, sess.cluster, def, opts.JSON)
}

func (o resourceDefineOptions) definition() (store.Definition, error) {
	kind, err := parseKind(o.Kind)
	if err != nil {
		return store.Definition{}, err
	}
	params, err := parseParams(o.Params)
	if err != nil {
		return store.Definition{}, err
	}
	return store.Definition{
		Name:       o.Name,
		Kind:       kind,
		Class:      o.Class,
		Provider:   o.Provider,
		ExplicitID: o.ID,
		Parent:     o.Parent,
		Contains:   o.Contains,
		Params:     params,
	}, nil
}

// defineResource inserts def and reports the allocated ids.
func defineResource(w io.Writer, d definer, def store.Definition, asJSON bool) error {
	svc, err := d.Define(def)
	if err != nil {
		return err
	}
	if asJSON {
		return WriteJSONSuccess(w, svc)
	}

	fmt.Fprintf(w, "%s %s\n", ui.SuccessStyle().Render(ui.SymbolPending), svc.CRMID)
	fmt.Fprintf(w, "  kind: %s\n", svc.Kind)
	fmt.Fprintf(w, "  id:   %s\n", svc.ID)
	if svc.Parent != "" {
		fmt.Fprintf(w, "  in:   %s\n", svc.Parent)
	}
	return nil
}
